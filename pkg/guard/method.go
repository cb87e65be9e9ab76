package guard

import (
	"context"
	"fmt"
	"reflect"

	"katydid-common-contract/pkg/validator"
	"katydid-common-contract/pkg/validator/core"
)

// 前置和后置条件的校验名称，对应消息键 katydid.contract.pre.violated / post.violated
const (
	NamePre  = "pre"
	NamePost = "post"
)

// Condition 前置或后置条件
// 前置条件执行时 Result 与 Old 尚未设置
type Condition func(inv *Invocation) bool

// ConditionOption 调整条件的消息、错误码、严重级别或 profile
type ConditionOption func(s *core.Settings)

// WithMessage 自定义消息模板或消息键
func WithMessage(message string) ConditionOption {
	return func(s *core.Settings) { s.Message = message }
}

// WithErrorCode 自定义错误码
func WithErrorCode(code string) ConditionOption {
	return func(s *core.Settings) { s.ErrorCode = code }
}

// WithSeverity 严重级别
func WithSeverity(severity int) ConditionOption {
	return func(s *core.Settings) { s.Severity = severity }
}

// WithProfiles 条件所属的 profile
func WithProfiles(profiles ...string) ConditionOption {
	return func(s *core.Settings) { s.Profiles = profiles }
}

// condition 把 Condition 包装为 core.Check，复用验证器的 profile 过滤与消息渲染
type condition struct {
	core.Settings
	Expr string
	fn   Condition
}

func newCondition(name, expr string, fn Condition, opts []ConditionOption) *condition {
	c := &condition{Settings: core.NewSettings(name), Expr: expr, fn: fn}
	for _, opt := range opts {
		opt(&c.Settings)
	}
	return c
}

func (c *condition) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	inv, ok := value.(*Invocation)
	if !ok {
		return false, fmt.Errorf("%s condition %q evaluated without invocation", c.Name, c.Expr)
	}
	return c.fn(inv), nil
}

func (c *condition) MessageVariables() map[string]string {
	return map[string]string{"condition": c.Expr}
}

// ============================================================================
// 方法契约
// ============================================================================

// Method 被守护方法或构造函数的契约
// 通过链式调用构建，构建完成后可被多个 goroutine 共享
//
// 使用示例：
//
//	var withdraw = guard.NewMethod((*Account)(nil), "Withdraw", "amount").
//	    Param(0, check.NewNotNegative()).
//	    Pre("amount <= balance", func(inv *guard.Invocation) bool {
//	        return inv.Arg(0).(int) <= inv.Target.(*Account).Balance
//	    }).
//	    Old(func(inv *guard.Invocation) any { return inv.Target.(*Account).Balance }).
//	    Post("balance decreased", func(inv *guard.Invocation) bool {
//	        return inv.Target.(*Account).Balance == inv.Old.(int)-inv.Arg(0).(int)
//	    })
type Method struct {
	ref        validator.MethodRef
	params     map[int][]core.Check
	returns    []core.Check
	pre        []core.Check
	post       []core.Check
	old        func(inv *Invocation) any
	invariants *bool
}

// NewMethod 创建方法契约，sample 为接收者类型的值或 nil 指针
func NewMethod(sample any, name string, paramNames ...string) *Method {
	return &Method{
		ref:    validator.MethodRef{Type: sampleType(sample), Name: name, ParamNames: paramNames},
		params: make(map[int][]core.Check),
	}
}

// NewConstructor 创建构造函数契约，sample 为被构造类型的值或 nil 指针
func NewConstructor(sample any, name string, paramNames ...string) *Method {
	m := NewMethod(sample, name, paramNames...)
	m.ref.Constructor = true
	return m
}

func sampleType(sample any) reflect.Type {
	t := reflect.TypeOf(sample)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// Param 为第 index 个参数追加约束
func (m *Method) Param(index int, checks ...core.Check) *Method {
	m.params[index] = append(m.params[index], checks...)
	return m
}

// Returns 为返回值追加约束
func (m *Method) Returns(checks ...core.Check) *Method {
	m.returns = append(m.returns, checks...)
	return m
}

// Pre 追加前置条件，expr 用于消息中的 {condition}
func (m *Method) Pre(expr string, fn Condition, opts ...ConditionOption) *Method {
	m.pre = append(m.pre, newCondition(NamePre, expr, fn, opts))
	return m
}

// Post 追加后置条件
func (m *Method) Post(expr string, fn Condition, opts ...ConditionOption) *Method {
	m.post = append(m.post, newCondition(NamePost, expr, fn, opts))
	return m
}

// Old 在方法执行前保存快照，后置条件通过 Invocation.Old 读取
func (m *Method) Old(fn func(inv *Invocation) any) *Method {
	m.old = fn
	return m
}

// CheckInvariants 是否在调用前后校验接收者不变式，未设置时使用类型配置（默认 true）
func (m *Method) CheckInvariants(enabled bool) *Method {
	m.invariants = &enabled
	return m
}

// Ref 方法引用
func (m *Method) Ref() validator.MethodRef {
	return m.ref
}

// Name 方法名
func (m *Method) Name() string {
	return m.ref.Name
}

// IsConstructor 是否为构造函数
func (m *Method) IsConstructor() bool {
	return m.ref.Constructor
}

func (m *Method) String() string {
	if m.ref.Constructor {
		return m.ref.Name + "()"
	}
	return core.TypeName(m.ref.Type) + "." + m.ref.Name + "()"
}

func (m *Method) entryContext() core.Context {
	return &core.MethodEntryContext{Type: m.ref.Type, Method: m.ref.Name}
}

func (m *Method) exitContext() core.Context {
	return &core.MethodExitContext{Type: m.ref.Type, Method: m.ref.Name}
}
