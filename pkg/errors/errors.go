package errors

import (
	"errors"
	"fmt"
)

// ── 排课引擎错误分类 ──

var (
	// ErrMalformedInput 输入数据存在结构或引用完整性缺陷（致命，不重试）
	ErrMalformedInput = errors.New("输入数据不合法")
	// ErrPrecondition 调用方违反前置条件（编程错误，致命）
	ErrPrecondition = errors.New("前置条件不满足")
)

// MalformedInputError 结构/引用完整性错误
// Field 指向出错字段（如 sessions[3].instructor_ids），Value 为出错值
type MalformedInputError struct {
	Field   string
	Value   any
	Message string
}

// NewMalformedInput 构造 MalformedInputError
func NewMalformedInput(field string, value any, format string, args ...any) *MalformedInputError {
	return &MalformedInputError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *MalformedInputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("输入数据不合法: %s", e.Message)
	}
	return fmt.Sprintf("输入数据不合法 [%s=%v]: %s", e.Field, e.Value, e.Message)
}

// Is 支持 errors.Is(err, ErrMalformedInput)
func (e *MalformedInputError) Is(target error) bool { return target == ErrMalformedInput }

// Details 结构化错误详情，供 API 层输出
func (e *MalformedInputError) Details() map[string]any {
	return map[string]any{
		"error_type": "MalformedInputError",
		"field":      e.Field,
		"value":      e.Value,
		"message":    e.Message,
	}
}

// PreconditionError 前置条件错误（如对未通过校验的课表执行富化）
type PreconditionError struct {
	Op      string
	Message string
}

// NewPrecondition 构造 PreconditionError
func NewPrecondition(op, format string, args ...any) *PreconditionError {
	return &PreconditionError{Op: op, Message: fmt.Sprintf(format, args...)}
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: 前置条件不满足: %s", e.Op, e.Message)
}

// Is 支持 errors.Is(err, ErrPrecondition)
func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }
