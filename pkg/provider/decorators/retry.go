package decorators

import (
	"context"
	"time"

	"fundbot/pkg/dataset"
	"fundbot/pkg/limiter"
	"fundbot/pkg/logger"
	"fundbot/pkg/provider/core"

	"github.com/sirupsen/logrus"
)

// RetryProvider 重试装饰器
// 按错误分类器的判定对网络类错误重试，其他错误直接返回
type RetryProvider struct {
	*BaseDecorator

	classifier *limiter.ErrorClassifier
	sleep      func(ctx context.Context, d time.Duration) error
	log        *logrus.Entry
}

// NewRetryProvider 创建重试装饰器
func NewRetryProvider(base core.SeriesProvider, policy limiter.RetryPolicy, log logrus.FieldLogger) *RetryProvider {
	return &RetryProvider{
		BaseDecorator: NewBaseDecorator(base),
		classifier:    limiter.NewErrorClassifier(policy),
		sleep:         sleepContext,
		log:           logger.WithComponent(log, "Retry").WithField("provider", base.Name()),
	}
}

// FetchSeries 获取数据，失败时按策略重试
func (r *RetryProvider) FetchSeries(ctx context.Context, id string, start, end time.Time, period string) ([]dataset.Row, error) {
	for attempt := 0; ; attempt++ {
		rows, err := r.base.FetchSeries(ctx, id, start, end, period)
		if err == nil {
			return rows, nil
		}

		level := r.classifier.Classify(err)
		shouldRetry, wait := r.classifier.GetRetryStrategy(level, attempt)
		entry := r.log.WithFields(logrus.Fields{
			"id":      id,
			"attempt": attempt + 1,
			"level":   level.String(),
		})
		if !shouldRetry {
			if attempt > 0 {
				entry.Warn(r.classifier.GetRetryMessage(level, attempt))
			}
			return nil, err
		}

		entry.WithField("wait", wait).WithError(err).Warn(r.classifier.GetRetryMessage(level, attempt))
		if err := r.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
