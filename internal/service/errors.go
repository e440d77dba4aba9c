package service

import (
	"errors"
	"fmt"
)

// Kind 错误类别。不是 *Error 的错误都算意外错误（数据库或运行环境问题）
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	default:
		return "unexpected"
	}
}

// 供 errors.Is 使用，*Error 会匹配与其类别对应的哨兵错误
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
)

// FieldError 单个字段的校验错误
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error 返回给调用方的业务错误
type Error struct {
	Kind    Kind
	Message string
	Details []FieldError
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s %s", e.Message, e.Details[0].Field, e.Details[0].Message)
}

// Is 按类别匹配 ErrNotFound 等哨兵错误
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrConflict:
		return e.Kind == KindConflict
	case ErrForbidden:
		return e.Kind == KindForbidden
	}
	return false
}

// KindOf 返回 err 的类别，其它错误返回 KindUnexpected
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

func validationError(msg string, details ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

func fieldError(field, msg string) *Error {
	return validationError("Validation failed", FieldError{Field: field, Message: msg})
}

func notFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found or you do not have access to it"}
}

func conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// validator 收集全部字段错误后一次性返回
type validator struct {
	details []FieldError
}

func (v *validator) add(field, msg string) {
	v.details = append(v.details, FieldError{Field: field, Message: msg})
}

func (v *validator) err() error {
	if len(v.details) == 0 {
		return nil
	}
	return validationError("Validation failed", v.details...)
}
