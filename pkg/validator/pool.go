package validator

import (
	"context"
	"reflect"
	"sync"

	"katydid-common-contract/pkg/validator/core"
)

// ============================================================================
// 对象池优化 - 减少内存分配和 GC 压力
// ============================================================================

// visitKey 已访问实例的标识：类型 + 地址（slice 额外区分长度，避免子切片误判）
type visitKey struct {
	typ reflect.Type
	ptr uintptr
	n   int
}

// state 单次校验调用的遍历状态
// 每次调用独占一个 state，因此无需加锁
type state struct {
	v         *Validator
	ctx       context.Context
	requested []string
	locale    string

	// visited 已访问的指针、map 和 slice，保证每个实例只校验一次、循环引用可以终止
	visited map[visitKey]struct{}
	// active 正在展开的约束集和字段约束引用，防止自引用造成无限递归
	active map[string]struct{}
	// path 从根对象到当前位置的上下文链
	path  []core.Context
	depth int
	// owner 当前正在校验的类型，fieldof 未指定类型时使用
	owner reflect.Type
}

var statePool = sync.Pool{
	New: func() any {
		return &state{
			visited: make(map[visitKey]struct{}, 16),
			active:  make(map[string]struct{}),
			path:    make([]core.Context, 0, 8),
		}
	},
}

// acquireState 从对象池获取 state，使用后必须调用 releaseState 归还
func acquireState(v *Validator, ctx context.Context, profiles []string) *state {
	st := statePool.Get().(*state)
	st.v = v
	st.ctx = core.WithProfiles(ctx, profiles)
	st.requested = profiles
	return st
}

// releaseState 清空引用后归还 state
func releaseState(st *state) {
	if st == nil {
		return
	}
	// 防止内存泄漏：大容量的 map 直接丢弃
	if len(st.visited) > 1024 {
		st.visited = make(map[visitKey]struct{}, 16)
	} else {
		clear(st.visited)
	}
	clear(st.active)
	for i := range st.path {
		st.path[i] = nil
	}
	st.path = st.path[:0]
	st.v, st.ctx, st.requested, st.owner = nil, nil, nil, nil
	st.locale = ""
	st.depth = 0
	statePool.Put(st)
}
