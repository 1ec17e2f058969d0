package collector

import (
	"fmt"

	apperr "fundbot/pkg/error"
)

// 采集过程中的错误
var (
	// ErrNoRows 所有代码都没有返回数据，数据集与进度都不变
	ErrNoRows = apperr.NewError(apperr.CodeEmptyResult, "no rows fetched for any id")
)

// IDFailure 单个代码的失败记录
type IDFailure struct {
	ID    string           `json:"id"`
	Code  apperr.ErrorCode `json:"code"`
	Error string           `json:"error"`
}

func newIDFailure(id string, err error) IDFailure {
	code := apperr.CodeOf(err)
	if code == "" {
		code = apperr.CodeProvider
	}
	return IDFailure{ID: id, Code: code, Error: err.Error()}
}

// emptyResult 单个代码没有数据时的警告
func emptyResult(market, id string) *apperr.BaseError {
	return apperr.NewError(apperr.CodeEmptyResult, fmt.Sprintf("%s: no rows returned for %s", market, id)).
		WithContext("market", market).
		WithContext("id", id)
}

// emptyWindow 起始日期晚于结束日期
func emptyWindow(market string, w Window) *apperr.BaseError {
	return apperr.NewError(apperr.CodeConfiguration, fmt.Sprintf("%s: start date is after end date (%s)", market, w)).
		WithContext("market", market)
}

// panicError 把市场采集中的 panic 转换为错误
func panicError(market string, v interface{}) *apperr.BaseError {
	return apperr.NewError(apperr.CodeProvider, fmt.Sprintf("%s: collector panic: %v", market, v)).
		WithContext("market", market)
}
