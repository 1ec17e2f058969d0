package decorators

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fundbot/pkg/dataset"
	"fundbot/pkg/logger"
	"fundbot/pkg/provider/core"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// CircuitBreakerProvider 熔断器装饰器
// 使用 sony/gobreaker 提供熔断功能，上游连续失败时直接拒绝后续代码的请求
type CircuitBreakerProvider struct {
	*BaseDecorator

	// 熔断器组件
	cb     *gobreaker.CircuitBreaker
	config CircuitBreakerConfig
	log    *logrus.Entry

	// 统计信息
	mu    sync.RWMutex
	stats CircuitBreakerStats
}

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`       // 是否启用熔断器
	MaxRequests uint32        `mapstructure:"max_requests"`  // 半开状态下的最大请求数
	Interval    time.Duration `mapstructure:"interval"`      // 统计窗口时间
	Timeout     time.Duration `mapstructure:"timeout"`       // 熔断器打开后的超时时间
	ReadyToTrip uint32        `mapstructure:"ready_to_trip"` // 触发熔断的连续失败次数
}

// CircuitBreakerStats 熔断器统计信息
type CircuitBreakerStats struct {
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	RejectedRequests   int64     `json:"rejected_requests"`
	LastFailure        time.Time `json:"last_failure"`
}

// DefaultCircuitBreakerConfig 默认熔断器配置
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Enabled:     true,
		MaxRequests: 1,               // 半开状态允许1个探测请求
		Interval:    0,               // 关闭状态下不清零计数
		Timeout:     2 * time.Minute, // 熔断2分钟
		ReadyToTrip: 5,               // 连续5次失败触发熔断
	}
}

// NewCircuitBreakerProvider 创建熔断器装饰器
func NewCircuitBreakerProvider(base core.SeriesProvider, config CircuitBreakerConfig, log logrus.FieldLogger) *CircuitBreakerProvider {
	p := &CircuitBreakerProvider{
		BaseDecorator: NewBaseDecorator(base),
		config:        config,
		log:           logger.WithComponent(log, "CircuitBreaker").WithField("provider", base.Name()),
	}

	settings := gobreaker.Settings{
		Name:        base.Name(),
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.ReadyToTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Warn("熔断器状态变更")
		},
	}
	p.cb = gobreaker.NewCircuitBreaker(settings)
	return p
}

// Name 返回装饰器名称
func (c *CircuitBreakerProvider) Name() string {
	return c.base.Name()
}

// IsHealthy 熔断器打开状态视为不健康
func (c *CircuitBreakerProvider) IsHealthy() bool {
	if !c.config.Enabled {
		return c.base.IsHealthy()
	}
	return c.cb.State() != gobreaker.StateOpen && c.base.IsHealthy()
}

// FetchSeries 通过熔断器获取数据
func (c *CircuitBreakerProvider) FetchSeries(ctx context.Context, id string, start, end time.Time, period string) ([]dataset.Row, error) {
	if !c.config.Enabled {
		return c.base.FetchSeries(ctx, id, start, end, period)
	}

	c.mu.Lock()
	c.stats.TotalRequests++
	c.mu.Unlock()

	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.base.FetchSeries(ctx, id, start, end, period)
	})

	c.handleResult(err)

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, core.NewProviderError(c.base.Name(), id, fmt.Errorf("%w: %v", core.ErrProviderNotHealthy, err))
	}
	if err != nil {
		return nil, err
	}

	rows, ok := result.([]dataset.Row)
	if !ok {
		return nil, core.NewProviderError(c.base.Name(), id, fmt.Errorf("熔断器返回数据类型错误"))
	}
	return rows, nil
}

// handleResult 处理请求结果和更新统计信息
func (c *CircuitBreakerProvider) handleResult(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests:
		c.stats.RejectedRequests++
	case err != nil:
		c.stats.FailedRequests++
		c.stats.LastFailure = time.Now()
	default:
		c.stats.SuccessfulRequests++
	}
}

// GetState 获取熔断器当前状态
func (c *CircuitBreakerProvider) GetState() gobreaker.State {
	return c.cb.State()
}

// GetStats 获取统计信息
func (c *CircuitBreakerProvider) GetStats() CircuitBreakerStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}
