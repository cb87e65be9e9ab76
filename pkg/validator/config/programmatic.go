package config

import (
	"reflect"
	"sync"

	"katydid-common-contract/pkg/validator/core"
)

// ProgrammaticConfigurer 通过代码添加的约束
// 作为配置链的最后一环，总是追加到其它来源之后；ReloadConfiguration 不会清除它
// 线程安全：所有方法可并发调用
type ProgrammaticConfigurer struct {
	mu    sync.RWMutex
	types map[reflect.Type]*TypeConfig
	sets  map[string]*ConstraintSetConfig
	order []string
}

// NewProgrammaticConfigurer 创建空的代码配置器
func NewProgrammaticConfigurer() *ProgrammaticConfigurer {
	return &ProgrammaticConfigurer{
		types: make(map[reflect.Type]*TypeConfig),
		sets:  make(map[string]*ConstraintSetConfig),
	}
}

func (c *ProgrammaticConfigurer) typeConfig(t reflect.Type) *TypeConfig {
	tc, ok := c.types[t]
	if !ok {
		tc = &TypeConfig{Type: t}
		c.types[t] = tc
	}
	return tc
}

// AddFieldChecks 为字段追加约束
func (c *ProgrammaticConfigurer) AddFieldChecks(t reflect.Type, field string, checks ...core.Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tc := c.typeConfig(t)
	tc.Fields = mergeMembers(tc.Fields, []*MemberConfig{{Name: field, Checks: checks}}, false)
}

// AddGetterChecks 为 getter 追加约束
func (c *ProgrammaticConfigurer) AddGetterChecks(t reflect.Type, getter string, checks ...core.Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tc := c.typeConfig(t)
	tc.Getters = mergeMembers(tc.Getters, []*MemberConfig{{Name: getter, Checks: checks}}, false)
}

// AddObjectChecks 追加对象级约束
func (c *ProgrammaticConfigurer) AddObjectChecks(t reflect.Type, checks ...core.Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tc := c.typeConfig(t)
	tc.ObjectChecks = append(tc.ObjectChecks, checks...)
}

// AddParameterChecks 为方法参数追加约束
func (c *ProgrammaticConfigurer) AddParameterChecks(t reflect.Type, method string, index int, checks ...core.Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	Merge(c.typeConfig(t), &TypeConfig{Methods: []*MethodConfig{{
		Name:       method,
		Parameters: []*ParameterConfig{{Index: index, Checks: checks}},
	}}})
}

// AddReturnValueChecks 为方法返回值追加约束
func (c *ProgrammaticConfigurer) AddReturnValueChecks(t reflect.Type, method string, checks ...core.Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	Merge(c.typeConfig(t), &TypeConfig{Methods: []*MethodConfig{{
		Name:        method,
		ReturnValue: &MemberConfig{Name: method, Checks: checks},
	}}})
}

// SetCheckInvariants 设置类型是否在守护调用前后校验不变式
func (c *ProgrammaticConfigurer) SetCheckInvariants(t reflect.Type, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typeConfig(t).CheckInvariants = Bool(enabled)
}

// RemoveFieldChecks 移除字段上通过代码添加的约束（按实例比较），未指定 checks 时全部移除
// 返回实际移除的数量
func (c *ProgrammaticConfigurer) RemoveFieldChecks(t reflect.Type, field string, checks ...core.Check) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	tc, ok := c.types[t]
	if !ok {
		return 0
	}
	m := tc.Field(field)
	if m == nil {
		return 0
	}
	before := len(m.Checks)
	m.Checks = RemoveChecks(m.Checks, checks...)
	return before - len(m.Checks)
}

// RemoveObjectChecks 移除对象级约束
func (c *ProgrammaticConfigurer) RemoveObjectChecks(t reflect.Type, checks ...core.Check) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	tc, ok := c.types[t]
	if !ok {
		return 0
	}
	before := len(tc.ObjectChecks)
	tc.ObjectChecks = RemoveChecks(tc.ObjectChecks, checks...)
	return before - len(tc.ObjectChecks)
}

// AddConstraintSet 添加约束集，Overwrite 为 false 时追加到同名约束集
func (c *ProgrammaticConfigurer) AddConstraintSet(set *ConstraintSetConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.sets[set.ID]
	if !ok {
		c.order = append(c.order, set.ID)
		c.sets[set.ID] = &ConstraintSetConfig{ID: set.ID, Overwrite: set.Overwrite, Checks: append([]core.Check(nil), set.Checks...)}
		return
	}
	if set.Overwrite {
		existing.Overwrite = true
		existing.Checks = append([]core.Check(nil), set.Checks...)
	} else {
		existing.Checks = append(existing.Checks, set.Checks...)
	}
}

// RemoveConstraintSet 删除约束集
func (c *ProgrammaticConfigurer) RemoveConstraintSet(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sets[id]; !ok {
		return false
	}
	delete(c.sets, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

func (c *ProgrammaticConfigurer) TypeConfig(t reflect.Type) (*TypeConfig, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tc, ok := c.types[t]
	if !ok || tc.Empty() {
		return nil, nil
	}
	out := Merge(nil, tc)
	out.Type = t
	return out, nil
}

func (c *ProgrammaticConfigurer) ConstraintSets() ([]*ConstraintSetConfig, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sets := make([]*ConstraintSetConfig, 0, len(c.order))
	for _, id := range c.order {
		sets = append(sets, c.sets[id])
	}
	return sets, nil
}

// RemoveChecks 返回去除指定实例后的新切片，未指定 remove 时返回空
func RemoveChecks(checks []core.Check, remove ...core.Check) []core.Check {
	if len(remove) == 0 {
		return nil
	}
	out := make([]core.Check, 0, len(checks))
	for _, c := range checks {
		keep := true
		for _, r := range remove {
			if c == r {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, c)
		}
	}
	return out
}
