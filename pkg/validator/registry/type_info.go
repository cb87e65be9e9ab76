package registry

import (
	"reflect"

	"katydid-common-contract/pkg/validator/config"
	"katydid-common-contract/pkg/validator/core"
)

// FieldInfo 字段及其约束
// 包含全部导出字段（含嵌入结构体提升的字段），Checks 可能为空
type FieldInfo struct {
	Name   string
	Index  []int
	Type   reflect.Type
	Checks []core.Check
}

// GetterInfo getter 不变式（无参、单返回值方法）
type GetterInfo struct {
	Name   string
	Checks []core.Check
	// Promoted 方法可能经由提升得到时，最浅的嵌入字段下标路径；类型自身的方法为 nil
	Promoted []int
}

// ParameterInfo 参数约束
type ParameterInfo struct {
	Index  int
	Name   string
	Checks []core.Check
}

// MethodInfo 方法或构造函数的参数与返回值约束
type MethodInfo struct {
	Name         string
	Parameters   []*ParameterInfo
	ReturnChecks []core.Check
}

// Parameter 按下标查找参数约束
func (m *MethodInfo) Parameter(index int) *ParameterInfo {
	if m == nil {
		return nil
	}
	for _, p := range m.Parameters {
		if p.Index == index {
			return p
		}
	}
	return nil
}

// TypeInfo 解析后的类型约束（不可变，修改通过 TypeRegistry.Update 以写时复制完成）
type TypeInfo struct {
	Type         reflect.Type
	Fields       []*FieldInfo
	Getters      []*GetterInfo
	ObjectChecks []core.Check
	Methods      map[string]*MethodInfo
	Constructors map[string]*MethodInfo

	// CheckInvariants 守护调用前后是否校验不变式，默认 true
	CheckInvariants bool
	// SelfValidator 类型（或其指针）实现了 core.SelfValidator
	SelfValidator bool
	// Embedded 直接或间接嵌入的结构体类型
	Embedded []reflect.Type

	fieldIndex map[string]int
}

// Field 按名称查找字段
func (i *TypeInfo) Field(name string) *FieldInfo {
	if idx, ok := i.fieldIndex[name]; ok {
		return i.Fields[idx]
	}
	return nil
}

// Getter 按名称查找 getter
func (i *TypeInfo) Getter(name string) *GetterInfo {
	for _, g := range i.Getters {
		if g.Name == name {
			return g
		}
	}
	return nil
}

// Method 按名称查找方法约束
func (i *TypeInfo) Method(name string) *MethodInfo {
	return i.Methods[name]
}

// Constructor 按名称查找构造函数约束
func (i *TypeInfo) Constructor(name string) *MethodInfo {
	return i.Constructors[name]
}

// HasConstraints 是否声明了任何字段、getter 或对象级约束
func (i *TypeInfo) HasConstraints() bool {
	if len(i.Getters) > 0 || len(i.ObjectChecks) > 0 || i.SelfValidator {
		return true
	}
	for _, f := range i.Fields {
		if len(f.Checks) > 0 {
			return true
		}
	}
	return false
}

func (i *TypeInfo) embeds(t reflect.Type) bool {
	for _, e := range i.Embedded {
		if e == t {
			return true
		}
	}
	return false
}

// clone 复制可变部分，供写时复制使用
func (i *TypeInfo) clone() *TypeInfo {
	out := *i
	out.Fields = make([]*FieldInfo, len(i.Fields))
	for n, f := range i.Fields {
		cp := *f
		cp.Checks = append([]core.Check(nil), f.Checks...)
		out.Fields[n] = &cp
	}
	out.Getters = make([]*GetterInfo, len(i.Getters))
	for n, g := range i.Getters {
		cp := *g
		cp.Checks = append([]core.Check(nil), g.Checks...)
		out.Getters[n] = &cp
	}
	out.ObjectChecks = append([]core.Check(nil), i.ObjectChecks...)
	out.Methods = cloneMethods(i.Methods)
	out.Constructors = cloneMethods(i.Constructors)
	return &out
}

// inheritable 转换为配置形式，供嵌入该类型的类型继承
func (i *TypeInfo) inheritable() *config.TypeConfig {
	tc := &config.TypeConfig{Type: i.Type, ObjectChecks: i.ObjectChecks}
	for _, f := range i.Fields {
		if len(f.Checks) > 0 {
			tc.Fields = append(tc.Fields, &config.MemberConfig{Name: f.Name, Checks: f.Checks})
		}
	}
	for _, g := range i.Getters {
		tc.Getters = append(tc.Getters, &config.MemberConfig{Name: g.Name, Checks: g.Checks})
	}
	for _, m := range i.Methods {
		mc := &config.MethodConfig{Name: m.Name}
		for _, p := range m.Parameters {
			mc.Parameters = append(mc.Parameters, &config.ParameterConfig{Index: p.Index, Name: p.Name, Checks: p.Checks})
		}
		if len(m.ReturnChecks) > 0 {
			mc.ReturnValue = &config.MemberConfig{Name: m.Name, Checks: m.ReturnChecks}
		}
		tc.Methods = append(tc.Methods, mc)
	}
	return tc
}

func cloneMethods(in map[string]*MethodInfo) map[string]*MethodInfo {
	out := make(map[string]*MethodInfo, len(in))
	for name, m := range in {
		cp := &MethodInfo{Name: m.Name, ReturnChecks: append([]core.Check(nil), m.ReturnChecks...)}
		for _, p := range m.Parameters {
			pc := *p
			pc.Checks = append([]core.Check(nil), p.Checks...)
			cp.Parameters = append(cp.Parameters, &pc)
		}
		out[name] = cp
	}
	return out
}
