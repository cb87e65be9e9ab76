package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConstraintsViolated 存在约束违反
	ErrConstraintsViolated = errors.New("constraints violated")
	// ErrValidationFailed 校验过程本身失败（不同于约束违反）
	ErrValidationFailed = errors.New("validation failed")
	// ErrInvalidConfiguration 约束配置无效
	ErrInvalidConfiguration = errors.New("invalid constraint configuration")
)

// ConstraintsViolatedError 携带全部违反的错误
type ConstraintsViolatedError struct {
	Violations []*Violation
}

// NewConstraintsViolatedError 创建约束违反错误
func NewConstraintsViolatedError(violations []*Violation) *ConstraintsViolatedError {
	return &ConstraintsViolatedError{Violations: violations}
}

func (e *ConstraintsViolatedError) Error() string {
	if len(e.Violations) == 0 {
		return ErrConstraintsViolated.Error()
	}
	var builder strings.Builder
	builder.WriteString(ErrConstraintsViolated.Error())
	builder.WriteString(": ")
	for i, v := range e.Violations {
		if i > 0 {
			builder.WriteString("; ")
		}
		builder.WriteString(v.String())
	}
	return builder.String()
}

func (e *ConstraintsViolatedError) Is(target error) bool {
	return target == ErrConstraintsViolated
}

// First 返回第一个违反，没有时返回 nil
func (e *ConstraintsViolatedError) First() *Violation {
	if len(e.Violations) == 0 {
		return nil
	}
	return e.Violations[0]
}

// ValidationFailedError 校验执行失败
type ValidationFailedError struct {
	Context Context
	Err     error
}

func (e *ValidationFailedError) Error() string {
	if e.Context == nil {
		return fmt.Sprintf("%s: %v", ErrValidationFailed, e.Err)
	}
	return fmt.Sprintf("%s at %s: %v", ErrValidationFailed, e.Context, e.Err)
}

func (e *ValidationFailedError) Unwrap() error {
	return e.Err
}

func (e *ValidationFailedError) Is(target error) bool {
	return target == ErrValidationFailed
}

// NewValidationFailedError 包装校验过程中的错误
// 已经是 ValidationFailedError 的错误原样返回
func NewValidationFailedError(at Context, err error) error {
	var vfe *ValidationFailedError
	if errors.As(err, &vfe) {
		return err
	}
	return &ValidationFailedError{Context: at, Err: err}
}

// InvalidConfigurationError 配置错误
type InvalidConfigurationError struct {
	// Source 出错的配置来源（校验名、文件、标签等）
	Source string
	Err    error
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrInvalidConfiguration, e.Source, e.Err)
}

func (e *InvalidConfigurationError) Unwrap() error {
	return e.Err
}

func (e *InvalidConfigurationError) Is(target error) bool {
	return target == ErrInvalidConfiguration
}

// InvalidConfiguration 创建配置错误
func InvalidConfiguration(source, format string, args ...any) error {
	return &InvalidConfigurationError{Source: source, Err: fmt.Errorf(format, args...)}
}
