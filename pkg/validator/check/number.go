package check

import (
	"cmp"
	"context"
	"math"
	"reflect"
	"strconv"
	"strings"

	"katydid-common-contract/pkg/validator/core"
)

const (
	NameRange       = "range"
	NameMin         = "min"
	NameMax         = "max"
	NameNotNegative = "notnegative"
	NameDigits      = "digits"
)

// Range 数值必须在 [Min, Max] 之间
// 非数值（且不可解析为数值）的字符串视为违反
type Range struct {
	core.Settings
	Min float64
	Max float64
}

// NewRange 创建数值范围校验
func NewRange(min, max float64) (*Range, error) {
	if min > max {
		return nil, core.InvalidConfiguration(NameRange, "invalid bounds min=%v max=%v", min, max)
	}
	return &Range{Settings: core.NewSettings(NameRange), Min: min, Max: max}, nil
}

func (c *Range) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	if core.IsNil(value) {
		return true, nil
	}
	lo, ok := compareBound(value, c.Min)
	if !ok {
		return false, nil
	}
	hi, ok := compareBound(value, c.Max)
	return ok && lo >= 0 && hi <= 0, nil
}

func (c *Range) MessageVariables() map[string]string {
	return map[string]string{"min": formatFloat(c.Min), "max": formatFloat(c.Max)}
}

func buildRange(args Args) (core.Check, error) {
	min, err := args.Float(NameRange, "min", 0, -math.MaxFloat64)
	if err != nil {
		return nil, err
	}
	max, err := args.Float(NameRange, "max", 1, math.MaxFloat64)
	if err != nil {
		return nil, err
	}
	return NewRange(min, max)
}

// Min 数值下限，Inclusive 为 false 时不包含边界
type Min struct {
	core.Settings
	Value     float64
	Inclusive bool
}

func NewMin(value float64, inclusive bool) *Min {
	return &Min{Settings: core.NewSettings(NameMin), Value: value, Inclusive: inclusive}
}

func (c *Min) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	if core.IsNil(value) {
		return true, nil
	}
	r, ok := compareBound(value, c.Value)
	if !ok {
		return false, nil
	}
	if c.Inclusive {
		return r >= 0, nil
	}
	return r > 0, nil
}

func (c *Min) MessageVariables() map[string]string {
	return map[string]string{"min": formatFloat(c.Value), "inclusive": strconv.FormatBool(c.Inclusive)}
}

func buildMin(args Args) (core.Check, error) {
	raw, err := args.Require(NameMin, "value", 0)
	if err != nil {
		return nil, err
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, core.InvalidConfiguration(NameMin, "argument value=%q is not a number", raw)
	}
	inclusive, err := args.Bool(NameMin, "inclusive", 1, true)
	if err != nil {
		return nil, err
	}
	return NewMin(value, inclusive), nil
}

// Max 数值上限，Inclusive 为 false 时不包含边界
type Max struct {
	core.Settings
	Value     float64
	Inclusive bool
}

func NewMax(value float64, inclusive bool) *Max {
	return &Max{Settings: core.NewSettings(NameMax), Value: value, Inclusive: inclusive}
}

func (c *Max) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	if core.IsNil(value) {
		return true, nil
	}
	r, ok := compareBound(value, c.Value)
	if !ok {
		return false, nil
	}
	if c.Inclusive {
		return r <= 0, nil
	}
	return r < 0, nil
}

func (c *Max) MessageVariables() map[string]string {
	return map[string]string{"max": formatFloat(c.Value), "inclusive": strconv.FormatBool(c.Inclusive)}
}

func buildMax(args Args) (core.Check, error) {
	raw, err := args.Require(NameMax, "value", 0)
	if err != nil {
		return nil, err
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, core.InvalidConfiguration(NameMax, "argument value=%q is not a number", raw)
	}
	inclusive, err := args.Bool(NameMax, "inclusive", 1, true)
	if err != nil {
		return nil, err
	}
	return NewMax(value, inclusive), nil
}

// NotNegative 数值不能小于 0
type NotNegative struct {
	core.Settings
}

func NewNotNegative() *NotNegative {
	return &NotNegative{Settings: core.NewSettings(NameNotNegative)}
}

func (c *NotNegative) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	if core.IsNil(value) {
		return true, nil
	}
	r, ok := compareBound(value, 0)
	if !ok {
		return false, nil
	}
	return r >= 0, nil
}

// Digits 整数部分和小数部分的位数限制
type Digits struct {
	core.Settings
	MinInteger  int
	MaxInteger  int
	MinFraction int
	MaxFraction int
}

func NewDigits(maxInteger, maxFraction int) *Digits {
	return &Digits{
		Settings:    core.NewSettings(NameDigits),
		MaxInteger:  maxInteger,
		MaxFraction: maxFraction,
	}
}

func (c *Digits) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	rv, ok := core.Indirect(value)
	if !ok {
		return true, nil
	}
	var s string
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		s = strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		s = strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		s = strconv.FormatFloat(rv.Float(), 'f', -1, 32)
	case reflect.Float64:
		s = strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	case reflect.String:
		s = strings.TrimSpace(rv.String())
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return false, nil
		}
	default:
		return false, nil
	}

	s = strings.TrimLeft(s, "+-")
	integer, fraction, _ := strings.Cut(s, ".")
	integer = strings.TrimLeft(integer, "0")
	fraction = strings.TrimRight(fraction, "0")

	if len(integer) < c.MinInteger || len(fraction) < c.MinFraction {
		return false, nil
	}
	if c.MaxInteger >= 0 && len(integer) > c.MaxInteger {
		return false, nil
	}
	if c.MaxFraction >= 0 && len(fraction) > c.MaxFraction {
		return false, nil
	}
	return true, nil
}

func (c *Digits) MessageVariables() map[string]string {
	return map[string]string{
		"minInteger":  strconv.Itoa(c.MinInteger),
		"maxInteger":  strconv.Itoa(c.MaxInteger),
		"minFraction": strconv.Itoa(c.MinFraction),
		"maxFraction": strconv.Itoa(c.MaxFraction),
	}
}

func buildDigits(args Args) (core.Check, error) {
	c := NewDigits(-1, -1)
	var err error
	if c.MaxInteger, err = args.Int(NameDigits, "maxInteger", 0, -1); err != nil {
		return nil, err
	}
	if c.MaxFraction, err = args.Int(NameDigits, "maxFraction", 1, -1); err != nil {
		return nil, err
	}
	if c.MinInteger, err = args.Int(NameDigits, "minInteger", 2, 0); err != nil {
		return nil, err
	}
	if c.MinFraction, err = args.Int(NameDigits, "minFraction", 3, 0); err != nil {
		return nil, err
	}
	if (c.MaxInteger >= 0 && c.MinInteger > c.MaxInteger) || (c.MaxFraction >= 0 && c.MinFraction > c.MaxFraction) {
		return nil, core.InvalidConfiguration(NameDigits, "minimum digits exceed maximum digits")
	}
	return c, nil
}

// compareBound 比较数值与边界，返回 -1、0 或 1
// 整数按整数比较，超过 2^53 的 int64/uint64 不会因转换为 float64 丢失精度
// 无法转换为数值或值为 NaN 时第二个返回值为 false
func compareBound(value any, bound float64) (int, bool) {
	rv, ok := core.Indirect(value)
	if !ok {
		return 0, false
	}
	if !math.IsNaN(bound) {
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return compareInt(rv.Int(), bound), true
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return compareUint(rv.Uint(), bound), true
		}
	}
	f, ok := core.ToFloat(value)
	if !ok || math.IsNaN(f) || math.IsNaN(bound) {
		return 0, false
	}
	return cmp.Compare(f, bound), true
}

func compareInt(i int64, bound float64) int {
	switch {
	case bound >= 1<<63:
		return -1
	case bound < -(1 << 63):
		return 1
	case bound == math.Trunc(bound):
		return cmp.Compare(i, int64(bound))
	}
	// 非整数边界：i > bound 等价于 i > floor(bound)
	if i <= int64(math.Floor(bound)) {
		return -1
	}
	return 1
}

func compareUint(u uint64, bound float64) int {
	switch {
	case bound < 0:
		return 1
	case bound >= 1<<64:
		return -1
	case bound == math.Trunc(bound):
		return cmp.Compare(u, uint64(bound))
	}
	if u <= uint64(math.Floor(bound)) {
		return -1
	}
	return 1
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
