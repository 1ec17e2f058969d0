package error

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode 错误代码类型
type ErrorCode string

const (
	// CodeConfiguration 配置错误（缺少凭证、追踪文件无法读取等），对单个市场是致命的
	CodeConfiguration ErrorCode = "CONFIGURATION"
	// CodeProvider 上游数据源对单个代码的请求失败
	CodeProvider ErrorCode = "PROVIDER"
	// CodeEmptyResult 某个代码没有返回任何数据行，仅作警告
	CodeEmptyResult ErrorCode = "EMPTY_RESULT"
	// CodePersistence 数据集或追踪文件写入失败
	CodePersistence ErrorCode = "PERSISTENCE"
	// CodeTrackerCorrupted 追踪文件内容无法解析
	CodeTrackerCorrupted ErrorCode = "TRACKER_CORRUPTED"
	// CodeInvalidInterval 周期标记格式无效
	CodeInvalidInterval ErrorCode = "INVALID_INTERVAL"
)

// 用于 errors.Is 比较的哨兵错误
var (
	ErrConfiguration    = NewError(CodeConfiguration, "configuration error")
	ErrProvider         = NewError(CodeProvider, "provider error")
	ErrEmptyResult      = NewError(CodeEmptyResult, "empty result")
	ErrPersistence      = NewError(CodePersistence, "persistence error")
	ErrTrackerCorrupted = NewError(CodeTrackerCorrupted, "tracker store corrupted")
	ErrInvalidInterval  = NewError(CodeInvalidInterval, "invalid interval token")
)

// BaseError 基础错误类型
type BaseError struct {
	Code      ErrorCode              `json:"code"`              // 错误的分类代码
	Message   string                 `json:"message"`           // 人类可读的错误信息
	Cause     error                  `json:"-"`                 // 导致此错误的原始错误
	Context   map[string]interface{} `json:"context,omitempty"` // 额外的上下文信息
	Timestamp time.Time              `json:"timestamp"`         // 错误发生的时间戳
}

// NewError 创建新的基础错误
func NewError(code ErrorCode, message string) *BaseError {
	return &BaseError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Context:   make(map[string]interface{}),
	}
}

// Error 实现 error 接口
func (e *BaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap 支持错误包装
func (e *BaseError) Unwrap() error {
	return e.Cause
}

// Is 支持错误比较，错误代码相同即视为同一类错误
func (e *BaseError) Is(target error) bool {
	if t, ok := target.(*BaseError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext 为错误附加一个键值对形式的上下文信息。
func (e *BaseError) WithContext(key string, value interface{}) *BaseError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WrapError 包装现有错误
func WrapError(code ErrorCode, message string, cause error) *BaseError {
	return &BaseError{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now(),
		Context:   make(map[string]interface{}),
	}
}

// CodeOf 返回错误链中第一个 BaseError 的错误代码，没有则返回空字符串
func CodeOf(err error) ErrorCode {
	var be *BaseError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
