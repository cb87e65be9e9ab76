package check

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"katydid-common-contract/pkg/validator/core"
)

const (
	NameEqualField = "equaltofield"
	NameNotEqField = "notequaltofield"
	NameWithMethod = "validatewithmethod"
	NameCheckWith  = "checkwith"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// EqualToField 值必须等于所属对象另一字段的值（跨字段校验）
type EqualToField struct {
	core.Settings
	Field string
}

func NewEqualToField(field string) *EqualToField {
	return &EqualToField{Settings: core.NewSettings(NameEqualField), Field: field}
}

func (c *EqualToField) IsSatisfied(_ context.Context, validatedObject, value any, _ core.Context) (bool, error) {
	if core.IsNil(value) {
		return true, nil
	}
	other, err := FieldValue(validatedObject, c.Field)
	if err != nil {
		return false, err
	}
	return valuesEqual(value, other), nil
}

func (c *EqualToField) MessageVariables() map[string]string {
	return map[string]string{"fieldName": c.Field}
}

func buildEqualToField(args Args) (core.Check, error) {
	field, err := args.Require(NameEqualField, "value", 0)
	if err != nil {
		return nil, err
	}
	return NewEqualToField(field), nil
}

// NotEqualToField 值不能等于所属对象另一字段的值
type NotEqualToField struct {
	core.Settings
	Field string
}

func NewNotEqualToField(field string) *NotEqualToField {
	return &NotEqualToField{Settings: core.NewSettings(NameNotEqField), Field: field}
}

func (c *NotEqualToField) IsSatisfied(_ context.Context, validatedObject, value any, _ core.Context) (bool, error) {
	if core.IsNil(value) {
		return true, nil
	}
	other, err := FieldValue(validatedObject, c.Field)
	if err != nil {
		return false, err
	}
	return !valuesEqual(value, other), nil
}

func (c *NotEqualToField) MessageVariables() map[string]string {
	return map[string]string{"fieldName": c.Field}
}

func buildNotEqualToField(args Args) (core.Check, error) {
	field, err := args.Require(NameNotEqField, "value", 0)
	if err != nil {
		return nil, err
	}
	return NewNotEqualToField(field), nil
}

// FieldValue 通过字段名读取结构体字段（支持嵌入字段提升）
func FieldValue(obj any, name string) (any, error) {
	rv, ok := core.Indirect(obj)
	if !ok {
		return nil, fmt.Errorf("cannot read field %q of nil object", name)
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot read field %q of non-struct %s", name, rv.Type())
	}
	sf, found := rv.Type().FieldByName(name)
	if !found {
		return nil, fmt.Errorf("field %q not found in %s", name, rv.Type())
	}
	fv, err := rv.FieldByIndexErr(sf.Index)
	if err != nil {
		// 经过 nil 嵌入指针的字段视为 nil
		return nil, nil
	}
	if !fv.CanInterface() {
		return nil, fmt.Errorf("field %q of %s is not exported", name, rv.Type())
	}
	return fv.Interface(), nil
}

func valuesEqual(a, b any) bool {
	ra, okA := core.Indirect(a)
	rb, okB := core.Indirect(b)
	if !okA || !okB {
		return okA == okB
	}
	return reflect.DeepEqual(core.Interface(ra), core.Interface(rb))
}

// ValidateWithMethod 调用被校验对象的方法判断值是否合法
// 方法签名支持 func(T) bool 和 func(T) error
type ValidateWithMethod struct {
	core.Settings
	Method      string
	IgnoreIfNil bool
}

func NewValidateWithMethod(method string) *ValidateWithMethod {
	return &ValidateWithMethod{Settings: core.NewSettings(NameWithMethod), Method: method, IgnoreIfNil: true}
}

func (c *ValidateWithMethod) IsSatisfied(_ context.Context, validatedObject, value any, _ core.Context) (bool, error) {
	if c.IgnoreIfNil && core.IsNil(value) {
		return true, nil
	}
	if validatedObject == nil {
		return false, fmt.Errorf("method %s requires a validated object", c.Method)
	}

	m := reflect.ValueOf(validatedObject).MethodByName(c.Method)
	if !m.IsValid() {
		return false, fmt.Errorf("method %s not found on %T", c.Method, validatedObject)
	}
	mt := m.Type()
	if mt.NumIn() != 1 || mt.NumOut() != 1 {
		return false, fmt.Errorf("method %s of %T must take one argument and return bool or error", c.Method, validatedObject)
	}

	arg, err := convertArg(value, mt.In(0))
	if err != nil {
		return false, fmt.Errorf("method %s: %w", c.Method, err)
	}
	out := m.Call([]reflect.Value{arg})[0]
	switch {
	case out.Kind() == reflect.Bool:
		return out.Bool(), nil
	case out.Type().Implements(errorType):
		return out.IsNil(), nil
	default:
		return false, fmt.Errorf("method %s of %T must return bool or error", c.Method, validatedObject)
	}
}

func (c *ValidateWithMethod) MessageVariables() map[string]string {
	return map[string]string{"method": c.Method}
}

func buildValidateWithMethod(args Args) (core.Check, error) {
	method, err := args.Require(NameWithMethod, "value", 0)
	if err != nil {
		return nil, err
	}
	c := NewValidateWithMethod(method)
	if c.IgnoreIfNil, err = args.Bool(NameWithMethod, "ignoreIfNil", 1, true); err != nil {
		return nil, err
	}
	return c, nil
}

func convertArg(value any, want reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(want), nil
	}
	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(want) {
		return rv, nil
	}
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Type().AssignableTo(want) {
		return rv.Elem(), nil
	}
	if rv.Type().ConvertibleTo(want) {
		return rv.Convert(want), nil
	}
	return reflect.Value{}, fmt.Errorf("value of type %s is not assignable to %s", rv.Type(), want)
}

// CheckWith 使用 Go 谓词函数校验（替代表达式语言校验）
type CheckWith struct {
	core.Settings
	FuncName    string
	Fn          PredicateFunc
	IgnoreIfNil bool
}

// NewCheckWith 用函数直接创建校验
func NewCheckWith(name string, fn PredicateFunc) *CheckWith {
	return &CheckWith{Settings: core.NewSettings(NameCheckWith), FuncName: name, Fn: fn, IgnoreIfNil: true}
}

func (c *CheckWith) IsSatisfied(ctx context.Context, validatedObject, value any, _ core.Context) (bool, error) {
	if c.IgnoreIfNil && core.IsNil(value) {
		return true, nil
	}
	if c.Fn == nil {
		return false, errors.New("checkwith without predicate")
	}
	return c.Fn(ctx, validatedObject, value)
}

func (c *CheckWith) MessageVariables() map[string]string {
	return map[string]string{"func": c.FuncName}
}

func (r *Registry) buildCheckWith(args Args) (core.Check, error) {
	name, err := args.Require(NameCheckWith, "value", 0)
	if err != nil {
		return nil, err
	}
	fn, ok := r.lookupFunc(name)
	if !ok {
		return nil, core.InvalidConfiguration(NameCheckWith, "unknown predicate %q", name)
	}
	c := NewCheckWith(name, fn)
	if c.IgnoreIfNil, err = args.Bool(NameCheckWith, "ignoreIfNil", 1, true); err != nil {
		return nil, err
	}
	return c, nil
}
