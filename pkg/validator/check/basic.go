package check

import (
	"context"
	"reflect"
	"strings"

	"katydid-common-contract/pkg/validator/core"
)

// 内置校验名称
const (
	NameNotNull     = "notnull"
	NameAssertNull  = "assertnull"
	NameNotEmpty    = "notempty"
	NameNotBlank    = "notblank"
	NameAssertTrue  = "asserttrue"
	NameAssertFalse = "assertfalse"
)

// NotNull 值不能为 nil
type NotNull struct {
	core.Settings
}

func NewNotNull() *NotNull {
	return &NotNull{Settings: core.NewSettings(NameNotNull)}
}

func (c *NotNull) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	return !core.IsNil(value), nil
}

// AssertNull 值必须为 nil
type AssertNull struct {
	core.Settings
}

func NewAssertNull() *AssertNull {
	return &AssertNull{Settings: core.NewSettings(NameAssertNull)}
}

func (c *AssertNull) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	return core.IsNil(value), nil
}

// NotEmpty 字符串或容器不能为空，nil 视为满足
type NotEmpty struct {
	core.Settings
}

func NewNotEmpty() *NotEmpty {
	return &NotEmpty{Settings: core.NewSettings(NameNotEmpty)}
}

func (c *NotEmpty) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	if core.IsNil(value) {
		return true, nil
	}
	n, ok := core.Size(value)
	if !ok {
		return true, nil
	}
	return n > 0, nil
}

// NotBlank 字符串不能只包含空白字符，nil 视为满足
type NotBlank struct {
	core.Settings
}

func NewNotBlank() *NotBlank {
	return &NotBlank{Settings: core.NewSettings(NameNotBlank)}
}

func (c *NotBlank) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	s, ok := core.ToString(value)
	if !ok {
		return true, nil
	}
	return strings.TrimSpace(s) != "", nil
}

// AssertTrue 布尔值必须为 true
type AssertTrue struct {
	core.Settings
}

func NewAssertTrue() *AssertTrue {
	return &AssertTrue{Settings: core.NewSettings(NameAssertTrue)}
}

func (c *AssertTrue) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	b, ok := toBool(value)
	return !ok || b, nil
}

// AssertFalse 布尔值必须为 false
type AssertFalse struct {
	core.Settings
}

func NewAssertFalse() *AssertFalse {
	return &AssertFalse{Settings: core.NewSettings(NameAssertFalse)}
}

func (c *AssertFalse) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	b, ok := toBool(value)
	return !ok || !b, nil
}

func toBool(value any) (bool, bool) {
	rv, ok := core.Indirect(value)
	if !ok || rv.Kind() != reflect.Bool {
		return false, false
	}
	return rv.Bool(), true
}
