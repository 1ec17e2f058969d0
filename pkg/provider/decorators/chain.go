package decorators

import (
	"fundbot/pkg/limiter"
	"fundbot/pkg/provider/core"

	"github.com/sirupsen/logrus"
)

// Config 提供商装饰器配置
type Config struct {
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Retry          RetryConfig          `mapstructure:"retry"`
}

// RetryConfig 重试装饰器配置
type RetryConfig struct {
	Enabled            bool `mapstructure:"enabled"`
	limiter.RetryPolicy `mapstructure:",squash"`
}

// DefaultConfig 默认启用重试与熔断
func DefaultConfig() Config {
	return Config{
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Retry: RetryConfig{
			Enabled:     true,
			RetryPolicy: limiter.DefaultRetryPolicy(),
		},
	}
}

// DecoratorChain 装饰器链
// 用于组合多个装饰器，先添加的在内层
type DecoratorChain struct {
	decorators []func(core.SeriesProvider) core.SeriesProvider
}

// NewDecoratorChain 创建装饰器链
func NewDecoratorChain() *DecoratorChain {
	return &DecoratorChain{}
}

// AddDecorator 添加装饰器到链中
func (dc *DecoratorChain) AddDecorator(decorator func(core.SeriesProvider) core.SeriesProvider) *DecoratorChain {
	dc.decorators = append(dc.decorators, decorator)
	return dc
}

// Apply 应用装饰器链到指定的 Provider
func (dc *DecoratorChain) Apply(base core.SeriesProvider) core.SeriesProvider {
	provider := base
	for _, decorator := range dc.decorators {
		provider = decorator(provider)
	}
	return provider
}

// Decorate 按配置为提供商套上重试（内层）和熔断（外层）。
// 熔断器只统计重试耗尽后的最终失败。
func Decorate(base core.SeriesProvider, config Config, log logrus.FieldLogger) core.SeriesProvider {
	chain := NewDecoratorChain()
	if config.Retry.Enabled {
		chain.AddDecorator(func(p core.SeriesProvider) core.SeriesProvider {
			return NewRetryProvider(p, config.Retry.RetryPolicy, log)
		})
	}
	if config.CircuitBreaker.Enabled {
		chain.AddDecorator(func(p core.SeriesProvider) core.SeriesProvider {
			return NewCircuitBreakerProvider(p, config.CircuitBreaker, log)
		})
	}
	return chain.Apply(base)
}
