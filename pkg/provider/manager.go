// Package provider 管理已注册的历史序列数据提供商，市场按提供商名称查找。
package provider

import (
	"fmt"
	"sort"
	"sync"

	"fundbot/pkg/provider/core"
)

// ProviderManager 提供商管理器
type ProviderManager struct {
	providers map[string]core.SeriesProvider
	mu        sync.RWMutex
}

// NewProviderManager 创建新的提供商管理器
func NewProviderManager() *ProviderManager {
	return &ProviderManager{
		providers: make(map[string]core.SeriesProvider),
	}
}

// Register 注册提供商，同名提供商会被替换
func (m *ProviderManager) Register(name string, provider core.SeriesProvider) error {
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.providers[name] = provider
	return nil
}

// Get 获取提供商
func (m *ProviderManager) Get(name string) (core.SeriesProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if provider, exists := m.providers[name]; exists {
		return provider, nil
	}
	return nil, fmt.Errorf("%w: %s", core.ErrProviderNotFound, name)
}

// Names 返回已注册的提供商名称
func (m *ProviderManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close 关闭所有实现了 Closable 的提供商
func (m *ProviderManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, p := range m.providers {
		if c, ok := p.(core.Closable); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
