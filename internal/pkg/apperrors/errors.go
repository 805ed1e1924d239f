// internal/pkg/apperrors/errors.go
package apperrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code 是暴露给调用方的稳定错误码。
// 接口层只依据 Code 映射 HTTP 状态码，永远不向外透出内部细节。
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeConflict          Code = "CONFLICT"
	CodeInvalidState      Code = "INVALID_STATE"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeAmountMismatch    Code = "AMOUNT_MISMATCH"
	CodeGatewayError      Code = "GATEWAY_ERROR"
	CodeValidation        Code = "VALIDATION_ERROR"
)

// Error 携带稳定错误码和面向用户的描述，可选地包装底层原因。
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is 让 errors.Is 按错误码比较，调用方无需持有同一个实例。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 构造一个带错误码的业务错误。
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf 同 New，带格式化。
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装一个底层错误并赋予错误码。
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: errors.WithStack(err)}
}

// CodeOf 提取错误码；非业务错误一律归为网关/内部错误之外的空码。
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// IsCode 判断 err 是否携带指定错误码。
func IsCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
