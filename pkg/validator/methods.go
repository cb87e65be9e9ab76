package validator

import (
	"context"
	"fmt"
	"reflect"

	"katydid-common-contract/pkg/validator/core"
	"katydid-common-contract/pkg/validator/registry"
)

// MethodRef 描述被守护的方法或构造函数
type MethodRef struct {
	// Type 接收者类型；构造函数为被构造的类型
	Type reflect.Type
	// Name 方法名或构造函数名（如 NewUser）
	Name string
	// Constructor 是否为构造函数
	Constructor bool
	// ParamNames 参数名，用于消息中的位置描述
	ParamNames []string
}

func (m MethodRef) paramName(i int) string {
	if i < len(m.ParamNames) {
		return m.ParamNames[i]
	}
	return ""
}

// ParameterContext 参数位置
func (m MethodRef) ParameterContext(i int, name string) core.Context {
	if m.Constructor {
		return &core.ConstructorParameterContext{Type: m.Type, Constructor: m.Name, Index: i, Name: name}
	}
	return &core.MethodParameterContext{Type: m.Type, Method: m.Name, Index: i, Name: name}
}

// ReturnContext 返回值位置
func (m MethodRef) ReturnContext() core.Context {
	return &core.MethodReturnValueContext{Type: m.Type, Method: m.Name}
}

func (v *Validator) methodInfo(m MethodRef) (*registry.MethodInfo, reflect.Type, error) {
	if m.Type == nil {
		return nil, nil, nil
	}
	info, err := v.types.Resolve(m.Type)
	if err != nil {
		return nil, nil, err
	}
	if m.Constructor {
		return info.Constructor(m.Name), info.Type, nil
	}
	return info.Method(m.Name), info.Type, nil
}

// ValidateParameters 校验方法参数：配置器声明的约束加上 extra 中按下标给出的约束
func (v *Validator) ValidateParameters(ctx context.Context, target any, m MethodRef, args []any, extra map[int][]core.Check) ([]*core.Violation, error) {
	mi, owner, err := v.methodInfo(m)
	if err != nil {
		return nil, err
	}

	st := acquireState(v, ctx, nil)
	defer releaseState(st)
	st.owner = owner

	var out []*core.Violation
	for i, arg := range args {
		name := m.paramName(i)
		var checks []core.Check
		if p := mi.Parameter(i); p != nil {
			checks = append(checks, p.Checks...)
			if name == "" {
				name = p.Name
			}
		}
		checks = append(checks, extra[i]...)
		if len(checks) == 0 {
			continue
		}
		vs, err := st.checkValue(target, arg, m.ParameterContext(i, name), checks)
		out = append(out, vs...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// ValidateReturnValue 校验方法返回值
func (v *Validator) ValidateReturnValue(ctx context.Context, target any, m MethodRef, result any, extra []core.Check) ([]*core.Violation, error) {
	mi, owner, err := v.methodInfo(m)
	if err != nil {
		return nil, err
	}
	var checks []core.Check
	if mi != nil {
		checks = append(checks, mi.ReturnChecks...)
	}
	checks = append(checks, extra...)
	if len(checks) == 0 {
		return nil, nil
	}

	st := acquireState(v, ctx, nil)
	defer releaseState(st)
	st.owner = owner
	return st.checkValue(target, result, m.ReturnContext(), checks)
}

// ValidateInvariants 校验对象不变式（字段、getter、对象级约束和 SelfValidator）
// 与 Validate 不同，不触发监听器
func (v *Validator) ValidateInvariants(ctx context.Context, target any) ([]*core.Violation, error) {
	if core.IsNil(target) {
		return nil, nil
	}
	st := acquireState(v, ctx, nil)
	defer releaseState(st)
	return st.validateRoot(target)
}

// ValidateConditions 以 target 为所属对象对 value 执行一组校验，Guard 的前置和后置条件使用
func (v *Validator) ValidateConditions(ctx context.Context, target, value any, at core.Context, checks []core.Check) ([]*core.Violation, error) {
	if len(checks) == 0 {
		return nil, nil
	}
	st := acquireState(v, ctx, nil)
	defer releaseState(st)
	if target != nil {
		st.owner = reflect.TypeOf(target)
		for st.owner.Kind() == reflect.Pointer {
			st.owner = st.owner.Elem()
		}
	}
	vs, err := st.checkValue(target, value, at, checks)
	// 条件的值通常是调用本身，违反中只保留其字符串形式
	if sv, ok := value.(fmt.Stringer); ok {
		for _, violation := range vs {
			if sameValue(violation.InvalidValue, value) {
				violation.InvalidValue = sv.String()
			}
		}
	}
	return vs, err
}

func sameValue(a, b any) bool {
	t := reflect.TypeOf(a)
	return t != nil && t == reflect.TypeOf(b) && t.Comparable() && a == b
}
