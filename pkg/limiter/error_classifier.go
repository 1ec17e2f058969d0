package limiter

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// ErrorLevel 定义错误的严重级别
type ErrorLevel int

const (
	LevelFatal   ErrorLevel = iota // 致命级，立即终止
	LevelNetwork                   // 网络错误或上游临时故障，可重试
	LevelInvalid                   // 无效参数，可忽略或特殊处理
	LevelUnknown                   // 未知错误
)

// String 返回级别名称，用于日志
func (l ErrorLevel) String() string {
	switch l {
	case LevelFatal:
		return "fatal"
	case LevelNetwork:
		return "network"
	case LevelInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// StatusCoder 携带 HTTP 状态码的错误
type StatusCoder interface {
	StatusCode() int
}

// RetryPolicy 重试策略
type RetryPolicy struct {
	MaxRetries int             `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	Backoff    []time.Duration `mapstructure:"backoff"`
}

// DefaultRetryPolicy 默认重试策略：最多3次，等待 2s、5s、10s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		Backoff:    []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second},
	}
}

// ErrorClassifier 负责根据错误类型进行分类
type ErrorClassifier struct {
	policy RetryPolicy
}

// NewErrorClassifier 创建新的错误分类器
func NewErrorClassifier(policy RetryPolicy) *ErrorClassifier {
	return &ErrorClassifier{policy: policy}
}

// Classify 根据错误内容分类错误级别
func (c *ErrorClassifier) Classify(err error) ErrorLevel {
	if err == nil {
		return LevelUnknown
	}

	// 调用方取消不重试
	if errors.Is(err, context.Canceled) {
		return LevelFatal
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return LevelNetwork
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		switch code := sc.StatusCode(); {
		case code == 429 || code >= 500:
			return LevelNetwork
		case code == 401 || code == 403:
			return LevelFatal
		case code >= 400:
			return LevelInvalid
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return LevelNetwork
	}

	msg := strings.ToLower(err.Error())

	// 致命级错误 - 立即终止
	switch {
	case strings.Contains(msg, "connection refused"):
		return LevelFatal
	case strings.Contains(msg, "connection reset") && (!strings.Contains(msg, "read tcp") && !strings.Contains(msg, "write tcp")):
		return LevelFatal // 只有直接连接重置才是致命错误，TCP读写重置是网络错误
	case strings.Contains(msg, "no such host"),
		strings.Contains(msg, "nosuchhost"):
		return LevelFatal
	}

	// 网络错误 - 可重试
	switch {
	case strings.Contains(msg, "timeout"):
		return LevelNetwork
	case strings.Contains(msg, "network is unreachable"):
		return LevelNetwork
	case strings.Contains(msg, "temporary failure"):
		return LevelNetwork
	case strings.Contains(msg, "read tcp") && strings.Contains(msg, "connection reset"):
		return LevelNetwork
	case strings.Contains(msg, "write tcp"):
		return LevelNetwork
	case strings.Contains(msg, "unexpected eof"):
		return LevelNetwork
	}

	// 无效参数 - 通常可忽略
	switch {
	case strings.Contains(msg, "invalid argument"):
		return LevelInvalid
	case strings.Contains(msg, "bad request"):
		return LevelInvalid
	}

	return LevelUnknown
}

// GetRetryStrategy 根据错误级别提供重试策略
func (c *ErrorClassifier) GetRetryStrategy(level ErrorLevel, attempt int) (shouldRetry bool, waitDuration time.Duration) {
	if level != LevelNetwork || attempt >= c.policy.MaxRetries {
		return false, 0
	}
	if len(c.policy.Backoff) == 0 {
		return true, 0
	}
	if attempt < len(c.policy.Backoff) {
		return true, c.policy.Backoff[attempt]
	}
	return true, c.policy.Backoff[len(c.policy.Backoff)-1]
}

// GetRetryMessage 获取重试提示信息
func (c *ErrorClassifier) GetRetryMessage(level ErrorLevel, attempt int) string {
	switch level {
	case LevelFatal:
		return "致命错误，立即终止操作"
	case LevelNetwork:
		if attempt >= c.policy.MaxRetries {
			return "网络错误已达到最大重试次数，终止此次操作"
		}
		return "网络错误，等待重试..."
	case LevelInvalid:
		return "参数无效，跳过重试"
	default:
		return "未知错误，跳过重试"
	}
}
