package registry

import (
	"sort"
	"sync"

	"katydid-common-contract/pkg/validator/config"
	"katydid-common-contract/pkg/validator/core"
)

// ConstraintSets 命名约束集注册表
// 线程安全：所有方法可并发调用
type ConstraintSets struct {
	mu   sync.RWMutex
	sets map[string][]core.Check
}

// NewConstraintSets 创建空注册表
func NewConstraintSets() *ConstraintSets {
	return &ConstraintSets{sets: make(map[string][]core.Check)}
}

// Add 注册约束集；overwrite 为 true 时替换同名约束集，否则追加
func (s *ConstraintSets) Add(id string, overwrite bool, checks ...core.Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if overwrite {
		s.sets[id] = append([]core.Check(nil), checks...)
		return
	}
	s.sets[id] = append(s.sets[id], checks...)
}

// Load 按顺序注册配置器提供的约束集
func (s *ConstraintSets) Load(configs []*config.ConstraintSetConfig) {
	for _, c := range configs {
		s.Add(c.ID, c.Overwrite, c.Checks...)
	}
}

// Get 获取约束集
func (s *ConstraintSets) Get(id string) ([]core.Check, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	checks, ok := s.sets[id]
	return checks, ok
}

// Remove 删除约束集
func (s *ConstraintSets) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sets[id]; !ok {
		return false
	}
	delete(s.sets, id)
	return true
}

// IDs 返回所有约束集 id（有序）
func (s *ConstraintSets) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sets))
	for id := range s.sets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear 清空
func (s *ConstraintSets) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = make(map[string][]core.Check)
}
