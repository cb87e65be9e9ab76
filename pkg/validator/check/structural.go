package check

import (
	"context"
	"reflect"

	"katydid-common-contract/pkg/validator/core"
)

// 结构性校验由校验引擎直接处理，IsSatisfied 恒为 true
const (
	NameValid   = "valid"
	NameSet     = "set"
	NameFieldOf = "fieldof"
)

// AssertValid 级联校验：对值（结构体、指针或容器中的每个元素）执行完整校验
// 嵌套违反作为 Causes 挂在一条 valid 违反上
type AssertValid struct {
	core.Settings
}

func NewAssertValid() *AssertValid {
	return &AssertValid{Settings: core.NewSettings(NameValid)}
}

func (c *AssertValid) IsSatisfied(context.Context, any, any, core.Context) (bool, error) {
	return true, nil
}

// AssertConstraintSet 引用已注册的命名约束集
type AssertConstraintSet struct {
	core.Settings
	ID string
}

func NewAssertConstraintSet(id string) *AssertConstraintSet {
	return &AssertConstraintSet{Settings: core.NewSettings(NameSet), ID: id}
}

func (c *AssertConstraintSet) IsSatisfied(context.Context, any, any, core.Context) (bool, error) {
	return true, nil
}

func (c *AssertConstraintSet) MessageVariables() map[string]string {
	return map[string]string{"id": c.ID}
}

func buildAssertConstraintSet(args Args) (core.Check, error) {
	id, err := args.Require(NameSet, "id", 0)
	if err != nil {
		return nil, err
	}
	return NewAssertConstraintSet(id), nil
}

// AssertFieldConstraints 复用某类型字段上声明的约束
// 典型用法：被守护方法的参数沿用对应字段的约束
// Type 为空时使用被校验对象（或被调用对象）的类型
type AssertFieldConstraints struct {
	core.Settings
	Field string
	Type  reflect.Type
}

func NewAssertFieldConstraints(field string, typ reflect.Type) *AssertFieldConstraints {
	return &AssertFieldConstraints{Settings: core.NewSettings(NameFieldOf), Field: field, Type: typ}
}

func (c *AssertFieldConstraints) IsSatisfied(context.Context, any, any, core.Context) (bool, error) {
	return true, nil
}

func (c *AssertFieldConstraints) MessageVariables() map[string]string {
	return map[string]string{"fieldName": c.Field}
}

func buildAssertFieldConstraints(args Args) (core.Check, error) {
	field, err := args.Require(NameFieldOf, "value", 0)
	if err != nil {
		return nil, err
	}
	return NewAssertFieldConstraints(field, nil), nil
}
