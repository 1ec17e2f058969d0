package decorators

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fundbot/pkg/dataset"
	apperr "fundbot/pkg/error"
	"fundbot/pkg/interval"
	"fundbot/pkg/limiter"
	"fundbot/pkg/logger"
	"fundbot/pkg/provider/core"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockSeriesProvider 用于测试的模拟 Provider
type MockSeriesProvider struct {
	mu        sync.Mutex
	name      string
	errs      []error // 依次返回的错误，耗尽后返回成功
	callCount int
}

func NewMockSeriesProvider(name string, errs ...error) *MockSeriesProvider {
	return &MockSeriesProvider{name: name, errs: errs}
}

func (m *MockSeriesProvider) Name() string                    { return m.name }
func (m *MockSeriesProvider) IsHealthy() bool                 { return true }
func (m *MockSeriesProvider) Vocabulary() interval.Vocabulary { return interval.PriceHistory }
func (m *MockSeriesProvider) Fields() []string                { return dataset.OHLCVFields }

func (m *MockSeriesProvider) FetchSeries(ctx context.Context, id string, start, end time.Time, period string) ([]dataset.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, core.NewProviderError(m.name, id, err)
		}
	}
	return []dataset.Row{{Date: start, ID: id, Values: map[string]float64{dataset.FieldClose: 1}}}, nil
}

func (m *MockSeriesProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestBaseDecorator_基础功能测试(t *testing.T) {
	mock := NewMockSeriesProvider("yahoo")
	decorated := Decorate(mock, DefaultConfig(), logger.Discard())

	assert.Equal(t, "yahoo", decorated.Name())
	assert.Equal(t, interval.PriceHistory, decorated.Vocabulary())
	assert.Equal(t, dataset.OHLCVFields, decorated.Fields())
	assert.True(t, decorated.IsHealthy())
	assert.Same(t, mock, Unwrap(decorated).(*MockSeriesProvider))
}

type flooredProvider struct {
	*MockSeriesProvider
	floor time.Time
}

func (f *flooredProvider) EarliestStart() time.Time { return f.floor }

func TestBaseDecorator_转发最早日期(t *testing.T) {
	floor := time.Date(2017, 7, 14, 0, 0, 0, 0, time.UTC)
	decorated := Decorate(&flooredProvider{NewMockSeriesProvider("binance"), floor}, DefaultConfig(), logger.Discard())

	got, clamped := core.EffectiveStart(decorated, time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, clamped)
	assert.Equal(t, floor, got)

	later := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	got, clamped = core.EffectiveStart(decorated, later)
	assert.False(t, clamped)
	assert.Equal(t, later, got)

	plain := Decorate(NewMockSeriesProvider("yahoo"), DefaultConfig(), logger.Discard())
	got, clamped = core.EffectiveStart(plain, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, clamped)
	assert.Equal(t, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestRetryProvider_重试网络错误(t *testing.T) {
	mock := NewMockSeriesProvider("binance", errors.New("i/o timeout"), errors.New("i/o timeout"))
	r := NewRetryProvider(mock, limiter.DefaultRetryPolicy(), logger.Discard())
	r.sleep = noSleep

	rows, err := r.FetchSeries(context.Background(), "BTCUSDT", time.Now(), time.Now(), "1d")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 3, mock.Calls())
}

func TestRetryProvider_不重试参数错误(t *testing.T) {
	mock := NewMockSeriesProvider("fred", &core.StatusError{Provider: "fred", Status: 400})
	r := NewRetryProvider(mock, limiter.DefaultRetryPolicy(), logger.Discard())
	r.sleep = noSleep

	_, err := r.FetchSeries(context.Background(), "NOPE", time.Now(), time.Now(), "1d")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrProvider))
	assert.Equal(t, 1, mock.Calls())
}

func TestRetryProvider_达到最大次数(t *testing.T) {
	timeout := errors.New("i/o timeout")
	mock := NewMockSeriesProvider("yahoo", timeout, timeout, timeout, timeout, timeout)
	r := NewRetryProvider(mock, limiter.RetryPolicy{MaxRetries: 2}, logger.Discard())
	r.sleep = noSleep

	_, err := r.FetchSeries(context.Background(), "^GSPC", time.Now(), time.Now(), "1d")
	require.Error(t, err)
	assert.Equal(t, 3, mock.Calls())
}

func TestCircuitBreaker_连续失败后打开(t *testing.T) {
	boom := errors.New("some other error")
	mock := NewMockSeriesProvider("yahoo", boom, boom, boom)
	cfg := DefaultCircuitBreakerConfig()
	cfg.ReadyToTrip = 2
	cb := NewCircuitBreakerProvider(mock, cfg, logger.Discard())

	for i := 0; i < 2; i++ {
		_, err := cb.FetchSeries(context.Background(), "GLD", time.Now(), time.Now(), "1d")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.GetState())
	assert.False(t, cb.IsHealthy())

	_, err := cb.FetchSeries(context.Background(), "USO", time.Now(), time.Now(), "1d")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrProviderNotHealthy))
	assert.True(t, errors.Is(err, apperr.ErrProvider))
	assert.Equal(t, 2, mock.Calls(), "熔断打开后不应再调用上游")

	stats := cb.GetStats()
	assert.Equal(t, int64(3), stats.TotalRequests)
	assert.Equal(t, int64(2), stats.FailedRequests)
	assert.Equal(t, int64(1), stats.RejectedRequests)
}

func TestCircuitBreaker_禁用时直接透传(t *testing.T) {
	mock := NewMockSeriesProvider("yahoo", errors.New("x"))
	cfg := DefaultCircuitBreakerConfig()
	cfg.Enabled = false
	cb := NewCircuitBreakerProvider(mock, cfg, nil)

	_, err := cb.FetchSeries(context.Background(), "SLV", time.Now(), time.Now(), "1d")
	require.Error(t, err)
	rows, err := cb.FetchSeries(context.Background(), "SLV", time.Now(), time.Now(), "1d")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, int64(0), cb.GetStats().TotalRequests)
}
