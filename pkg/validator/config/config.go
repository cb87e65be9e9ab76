package config

import (
	"reflect"

	"katydid-common-contract/pkg/validator/core"
)

// ============================================================================
// 配置模型
// ============================================================================

// MemberConfig 字段或 getter（无参单返回值方法）的约束配置
type MemberConfig struct {
	Name string
	// Overwrite 为 nil 时沿用 TypeConfig.Overwrite
	Overwrite *bool
	Checks    []core.Check
}

// ParameterConfig 方法或构造函数参数的约束配置
type ParameterConfig struct {
	Index     int
	Name      string
	Overwrite *bool
	Checks    []core.Check
}

// MethodConfig 方法的参数与返回值约束
type MethodConfig struct {
	Name        string
	Parameters  []*ParameterConfig
	ReturnValue *MemberConfig
}

// ConstructorConfig 构造函数参数约束，Name 为构造函数名（如 NewUser）
type ConstructorConfig struct {
	Name       string
	Parameters []*ParameterConfig
}

// TypeConfig 单个类型的完整约束配置
type TypeConfig struct {
	Type reflect.Type
	// Overwrite 成员未显式声明时的默认覆盖策略
	Overwrite bool
	// CheckInvariants 为 nil 表示未声明
	CheckInvariants *bool

	Fields       []*MemberConfig
	Getters      []*MemberConfig
	Methods      []*MethodConfig
	Constructors []*ConstructorConfig
	ObjectChecks []core.Check
}

// ConstraintSetConfig 命名约束集
type ConstraintSetConfig struct {
	ID        string
	Overwrite bool
	Checks    []core.Check
}

// Configurer 约束配置来源
// 职责：为类型提供约束配置，为注册表提供命名约束集
type Configurer interface {
	// TypeConfig 返回类型的约束配置，没有任何配置时返回 nil, nil
	TypeConfig(t reflect.Type) (*TypeConfig, error)
	// ConstraintSets 返回该来源定义的命名约束集
	ConstraintSets() ([]*ConstraintSetConfig, error)
}

// Bool 返回指针，用于 Overwrite 等可选布尔字段
func Bool(b bool) *bool {
	return &b
}

// Field 按名称查找字段配置
func (c *TypeConfig) Field(name string) *MemberConfig {
	return findMember(c.Fields, name)
}

// Getter 按名称查找 getter 配置
func (c *TypeConfig) Getter(name string) *MemberConfig {
	return findMember(c.Getters, name)
}

// Method 按名称查找方法配置
func (c *TypeConfig) Method(name string) *MethodConfig {
	for _, m := range c.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Constructor 按名称查找构造函数配置
func (c *TypeConfig) Constructor(name string) *ConstructorConfig {
	for _, ctor := range c.Constructors {
		if ctor.Name == name {
			return ctor
		}
	}
	return nil
}

// Empty 是否不包含任何约束
func (c *TypeConfig) Empty() bool {
	return c == nil || (len(c.Fields) == 0 && len(c.Getters) == 0 && len(c.Methods) == 0 &&
		len(c.Constructors) == 0 && len(c.ObjectChecks) == 0 && c.CheckInvariants == nil)
}

func findMember(members []*MemberConfig, name string) *MemberConfig {
	for _, m := range members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// ============================================================================
// 合并
// ============================================================================

// Merge 把 src 合并进 dst 并返回 dst
// 规则：成员的 Overwrite 为 true（或未声明且 src.Overwrite 为 true）时替换已有约束，否则追加
// 对象级约束总是追加；CheckInvariants 以后声明者为准；任一方声明 Overwrite 则结果也标记 Overwrite
func Merge(dst, src *TypeConfig) *TypeConfig {
	if src == nil {
		return dst
	}
	if dst == nil {
		dst = &TypeConfig{Type: src.Type}
	}
	dst.Overwrite = dst.Overwrite || src.Overwrite
	if src.CheckInvariants != nil {
		dst.CheckInvariants = Bool(*src.CheckInvariants)
	}
	dst.Fields = mergeMembers(dst.Fields, src.Fields, src.Overwrite)
	dst.Getters = mergeMembers(dst.Getters, src.Getters, src.Overwrite)

	for _, m := range src.Methods {
		target := dst.Method(m.Name)
		if target == nil {
			target = &MethodConfig{Name: m.Name}
			dst.Methods = append(dst.Methods, target)
		}
		target.Parameters = mergeParameters(target.Parameters, m.Parameters, src.Overwrite)
		if m.ReturnValue != nil {
			merged := mergeMembers(memberSlice(target.ReturnValue), []*MemberConfig{m.ReturnValue}, src.Overwrite)
			target.ReturnValue = merged[0]
		}
	}
	for _, c := range src.Constructors {
		target := dst.Constructor(c.Name)
		if target == nil {
			target = &ConstructorConfig{Name: c.Name}
			dst.Constructors = append(dst.Constructors, target)
		}
		target.Parameters = mergeParameters(target.Parameters, c.Parameters, src.Overwrite)
	}
	dst.ObjectChecks = append(dst.ObjectChecks, src.ObjectChecks...)
	return dst
}

func memberSlice(m *MemberConfig) []*MemberConfig {
	if m == nil {
		return nil
	}
	return []*MemberConfig{m}
}

func overwrites(member *bool, typeDefault bool) bool {
	if member != nil {
		return *member
	}
	return typeDefault
}

func mergeMembers(dst, src []*MemberConfig, typeOverwrite bool) []*MemberConfig {
	for _, m := range src {
		existing := findMember(dst, m.Name)
		if existing == nil {
			dst = append(dst, &MemberConfig{
				Name:      m.Name,
				Overwrite: m.Overwrite,
				Checks:    append([]core.Check(nil), m.Checks...),
			})
			continue
		}
		if overwrites(m.Overwrite, typeOverwrite) {
			existing.Checks = append([]core.Check(nil), m.Checks...)
			existing.Overwrite = Bool(true)
		} else {
			existing.Checks = append(existing.Checks, m.Checks...)
		}
	}
	return dst
}

func mergeParameters(dst, src []*ParameterConfig, typeOverwrite bool) []*ParameterConfig {
	for _, p := range src {
		var existing *ParameterConfig
		for _, d := range dst {
			if d.Index == p.Index {
				existing = d
				break
			}
		}
		if existing == nil {
			dst = append(dst, &ParameterConfig{
				Index:     p.Index,
				Name:      p.Name,
				Overwrite: p.Overwrite,
				Checks:    append([]core.Check(nil), p.Checks...),
			})
			continue
		}
		if existing.Name == "" {
			existing.Name = p.Name
		}
		if overwrites(p.Overwrite, typeOverwrite) {
			existing.Checks = append([]core.Check(nil), p.Checks...)
		} else {
			existing.Checks = append(existing.Checks, p.Checks...)
		}
	}
	return dst
}

// ============================================================================
// 配置链
// ============================================================================

// Chain 按顺序组合多个配置器，后者按合并规则覆盖或追加前者
type Chain []Configurer

// TypeConfig 合并所有配置器对类型 t 的配置
func (c Chain) TypeConfig(t reflect.Type) (*TypeConfig, error) {
	var merged *TypeConfig
	for _, configurer := range c {
		tc, err := configurer.TypeConfig(t)
		if err != nil {
			return nil, err
		}
		if tc != nil {
			merged = Merge(merged, tc)
		}
	}
	if merged != nil {
		merged.Type = t
	}
	return merged, nil
}

// ConstraintSets 依次收集所有配置器的约束集
func (c Chain) ConstraintSets() ([]*ConstraintSetConfig, error) {
	var sets []*ConstraintSetConfig
	for _, configurer := range c {
		s, err := configurer.ConstraintSets()
		if err != nil {
			return nil, err
		}
		sets = append(sets, s...)
	}
	return sets, nil
}
