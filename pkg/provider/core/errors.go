package core

import (
	"errors"
	"fmt"

	apperr "fundbot/pkg/error"
)

// 定义核心错误
var (
	// ErrProviderNotFound 提供商未找到错误
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderNotHealthy 提供商不健康错误（熔断器打开）
	ErrProviderNotHealthy = errors.New("provider is not healthy")

	// ErrInvalidRange 起止日期无效
	ErrInvalidRange = errors.New("start date is after end date")
)

// StatusError 上游返回了非 200 状态码
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: HTTP status %d: %s", e.Provider, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: HTTP status %d", e.Provider, e.Status)
}

// StatusCode 供错误分类器识别
func (e *StatusError) StatusCode() int {
	return e.Status
}

// NewProviderError 包装单个代码的上游错误
func NewProviderError(provider, id string, cause error) *apperr.BaseError {
	return apperr.WrapError(apperr.CodeProvider, fmt.Sprintf("%s fetch %s", provider, id), cause).
		WithContext("provider", provider).
		WithContext("id", id)
}

// MissingCredential 构造时缺少凭证
func MissingCredential(provider, name string) *apperr.BaseError {
	return apperr.NewError(apperr.CodeConfiguration, fmt.Sprintf("%s: %s is not set", provider, name)).
		WithContext("provider", provider)
}
