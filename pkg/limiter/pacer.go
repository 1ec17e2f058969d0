package limiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer 保证相邻两次调用之间至少间隔 interval。
// 第一次 Wait 立即返回，之后每次都会真正等待。
type Pacer struct {
	interval time.Duration
	limiter  *rate.Limiter
}

// NewPacer 创建调用节拍器，interval <= 0 时不做限制
func NewPacer(interval time.Duration) *Pacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Pacer{
		interval: interval,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Interval 返回最小调用间隔
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Wait 阻塞直到允许下一次调用，ctx 取消时提前返回错误
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
