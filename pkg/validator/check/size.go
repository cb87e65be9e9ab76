package check

import (
	"context"
	"math"
	"reflect"
	"strconv"

	"katydid-common-contract/pkg/validator/core"
)

const (
	NameLength    = "length"
	NameMinLength = "minlength"
	NameMaxLength = "maxlength"
	NameSize      = "size"
	NameMinSize   = "minsize"
	NameMaxSize   = "maxsize"
)

// Length 字符串长度（按字符计）必须在 [Min, Max] 之间
// 容器按元素数计算，nil 视为满足
type Length struct {
	core.Settings
	Min int
	Max int
}

// NewLength 创建长度校验，min > max 时返回配置错误
func NewLength(min, max int) (*Length, error) {
	return newLength(NameLength, min, max)
}

func newLength(name string, min, max int) (*Length, error) {
	if min < 0 || min > max {
		return nil, core.InvalidConfiguration(name, "invalid bounds min=%d max=%d", min, max)
	}
	return &Length{Settings: core.NewSettings(name), Min: min, Max: max}, nil
}

func (c *Length) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	n, ok := core.Size(value)
	if !ok {
		return true, nil
	}
	return n >= c.Min && n <= c.Max, nil
}

func (c *Length) MessageVariables() map[string]string {
	return map[string]string{"min": strconv.Itoa(c.Min), "max": strconv.Itoa(c.Max)}
}

func buildLength(args Args) (core.Check, error) {
	min, err := args.Int(NameLength, "min", 0, 0)
	if err != nil {
		return nil, err
	}
	max, err := args.Int(NameLength, "max", 1, math.MaxInt32)
	if err != nil {
		return nil, err
	}
	return NewLength(min, max)
}

func buildMinLength(args Args) (core.Check, error) {
	min, err := args.Int(NameMinLength, "value", 0, 0)
	if err != nil {
		return nil, err
	}
	return newLength(NameMinLength, min, math.MaxInt32)
}

func buildMaxLength(args Args) (core.Check, error) {
	max, err := args.Int(NameMaxLength, "value", 0, -1)
	if err != nil {
		return nil, err
	}
	return newLength(NameMaxLength, 0, max)
}

// Size 容器元素数量必须在 [Min, Max] 之间
// 与 Length 的区别：只对 slice/array/map 生效，字符串视为满足
type Size struct {
	core.Settings
	Min int
	Max int
}

// NewSize 创建容器大小校验
func NewSize(min, max int) (*Size, error) {
	return newSize(NameSize, min, max)
}

func newSize(name string, min, max int) (*Size, error) {
	if min < 0 || min > max {
		return nil, core.InvalidConfiguration(name, "invalid bounds min=%d max=%d", min, max)
	}
	return &Size{Settings: core.NewSettings(name), Min: min, Max: max}, nil
}

func (c *Size) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	rv, ok := core.Indirect(value)
	if !ok {
		return true, nil
	}
	// []byte 在遍历时按标量处理，但大小仍按元素个数计算
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
	default:
		return true, nil
	}
	n := rv.Len()
	return n >= c.Min && n <= c.Max, nil
}

func (c *Size) MessageVariables() map[string]string {
	return map[string]string{"min": strconv.Itoa(c.Min), "max": strconv.Itoa(c.Max)}
}

func buildSize(args Args) (core.Check, error) {
	min, err := args.Int(NameSize, "min", 0, 0)
	if err != nil {
		return nil, err
	}
	max, err := args.Int(NameSize, "max", 1, math.MaxInt32)
	if err != nil {
		return nil, err
	}
	return NewSize(min, max)
}

func buildMinSize(args Args) (core.Check, error) {
	min, err := args.Int(NameMinSize, "value", 0, 0)
	if err != nil {
		return nil, err
	}
	return newSize(NameMinSize, min, math.MaxInt32)
}

func buildMaxSize(args Args) (core.Check, error) {
	max, err := args.Int(NameMaxSize, "value", 0, -1)
	if err != nil {
		return nil, err
	}
	return newSize(NameMaxSize, 0, max)
}
