package guard

import (
	"errors"

	"katydid-common-contract/pkg/validator/core"
)

var (
	// ErrInvalidArgument 参数或前置条件不满足
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIllegalState 不变式、返回值或后置条件不满足
	ErrIllegalState = errors.New("illegal state")
)

// ErrorTranslator 把约束违反转换为调用方看到的错误
type ErrorTranslator interface {
	Translate(err *core.ConstraintsViolatedError) error
}

// TranslatorFunc 函数形式的转换器
type TranslatorFunc func(err *core.ConstraintsViolatedError) error

// Translate 实现 ErrorTranslator
func (f TranslatorFunc) Translate(err *core.ConstraintsViolatedError) error {
	return f(err)
}

// DefaultTranslator 原样返回 *core.ConstraintsViolatedError
var DefaultTranslator ErrorTranslator = TranslatorFunc(func(err *core.ConstraintsViolatedError) error {
	return err
})

// ContractError StandardTranslator 产生的错误
// errors.Is 同时匹配 Kind 和 core.ErrConstraintsViolated，errors.As 可取出违反列表
type ContractError struct {
	Kind       error
	Violations *core.ConstraintsViolatedError
}

func (e *ContractError) Error() string {
	return e.Kind.Error() + ": " + e.Violations.Error()
}

func (e *ContractError) Unwrap() []error {
	return []error{e.Kind, e.Violations}
}

// StandardTranslator 按第一个违反的位置选择错误类别
// 参数和方法入口 -> ErrInvalidArgument，其余 -> ErrIllegalState
type StandardTranslator struct{}

// Translate 实现 ErrorTranslator
func (StandardTranslator) Translate(err *core.ConstraintsViolatedError) error {
	kind := ErrIllegalState
	if first := err.First(); first != nil && first.Context != nil {
		switch first.Context.Kind() {
		case core.KindMethodParameter, core.KindConstructorParameter, core.KindMethodEntry:
			kind = ErrInvalidArgument
		}
	}
	return &ContractError{Kind: kind, Violations: err}
}
