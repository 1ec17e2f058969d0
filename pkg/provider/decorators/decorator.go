package decorators

import (
	"time"

	"fundbot/pkg/interval"
	"fundbot/pkg/provider/core"
)

// Decorator 装饰器基础接口
// 所有装饰器都应该实现此接口
type Decorator interface {
	core.SeriesProvider

	// GetBaseProvider 获取被装饰的基础 Provider
	GetBaseProvider() core.SeriesProvider
}

// BaseDecorator 装饰器基础实现
// 代理除 FetchSeries 以外的全部方法
type BaseDecorator struct {
	base core.SeriesProvider
}

// NewBaseDecorator 创建基础装饰器
func NewBaseDecorator(base core.SeriesProvider) *BaseDecorator {
	return &BaseDecorator{base: base}
}

// Name 实现 Provider 接口
func (d *BaseDecorator) Name() string {
	return d.base.Name()
}

// IsHealthy 实现 Provider 接口
func (d *BaseDecorator) IsHealthy() bool {
	return d.base.IsHealthy()
}

// Vocabulary 实现 SeriesProvider 接口
func (d *BaseDecorator) Vocabulary() interval.Vocabulary {
	return d.base.Vocabulary()
}

// Fields 实现 SeriesProvider 接口
func (d *BaseDecorator) Fields() []string {
	return append([]string(nil), d.base.Fields()...)
}

// EarliestStart 实现 core.StartFloor 接口，被装饰的提供商没有限制时返回零值
func (d *BaseDecorator) EarliestStart() time.Time {
	if f, ok := d.base.(core.StartFloor); ok {
		return f.EarliestStart()
	}
	return time.Time{}
}

// GetBaseProvider 实现 Decorator 接口
func (d *BaseDecorator) GetBaseProvider() core.SeriesProvider {
	return d.base
}

// Unwrap 逐层剥离装饰器，返回最内层的提供商
func Unwrap(p core.SeriesProvider) core.SeriesProvider {
	for {
		d, ok := p.(Decorator)
		if !ok {
			return p
		}
		p = d.GetBaseProvider()
	}
}
