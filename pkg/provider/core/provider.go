package core

import (
	"context"
	"time"

	"fundbot/pkg/dataset"
	"fundbot/pkg/interval"
)

// Provider 数据提供商基础接口
// 所有数据提供商都必须实现此接口
type Provider interface {
	// Name 返回提供商名称，用于标识和日志记录
	Name() string

	// IsHealthy 检查提供商健康状态
	// 返回 true 表示提供商可以正常工作
	IsHealthy() bool
}

// SeriesProvider 历史序列数据提供商接口
// 每次调用只获取一个代码在 [start, end] 区间内的数据
type SeriesProvider interface {
	Provider

	// FetchSeries 获取历史数据
	// id: 代码（股票指数、ETF、交易对或经济序列）
	// start, end: 起止日期（含）
	// period: 统一周期标记，如 "1mo"、"1d"，由提供商转换为自身词汇
	// 没有数据时返回空切片和 nil 错误
	FetchSeries(ctx context.Context, id string, start, end time.Time, period string) ([]dataset.Row, error)

	// Vocabulary 提供商使用的周期词汇
	Vocabulary() interval.Vocabulary

	// Fields 返回行中包含的字段
	Fields() []string
}

// StartFloor 有最早可查询日期的提供商实现此接口，早于该日期的起始日期会被截断
type StartFloor interface {
	// EarliestStart 返回最早可查询的日期，零值表示没有限制
	EarliestStart() time.Time
}

// EffectiveStart 返回提供商实际使用的起始日期，clamped 表示发生了截断
func EffectiveStart(p SeriesProvider, start time.Time) (effective time.Time, clamped bool) {
	f, ok := p.(StartFloor)
	if !ok {
		return start, false
	}
	floor := f.EarliestStart()
	if floor.IsZero() || !start.Before(floor) {
		return start, false
	}
	return floor, true
}

// Closable 可关闭接口
// 需要清理资源的提供商应实现此接口
type Closable interface {
	// Close 关闭提供商，清理资源
	Close() error
}
