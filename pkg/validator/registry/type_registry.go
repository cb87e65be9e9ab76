package registry

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"katydid-common-contract/pkg/logger"
	"katydid-common-contract/pkg/validator/config"
	"katydid-common-contract/pkg/validator/core"
)

var selfValidatorType = reflect.TypeOf((*core.SelfValidator)(nil)).Elem()

// Stats 类型缓存统计
type Stats struct {
	Cached int
	Hits   int64
	Misses int64
}

// TypeRegistry 解析并缓存类型约束
// 职责：合并接口、嵌入结构体和各配置器的约束，按 reflect.Type 缓存结果
// 解析顺序：已注册且被实现的接口 -> 嵌入结构体（深度优先）-> 类型自身的配置
// 线程安全：所有方法可并发调用
type TypeRegistry struct {
	configurer config.Configurer
	cache      sync.Map // key: reflect.Type, value: *TypeInfo

	mu         sync.RWMutex
	interfaces []reflect.Type

	// writeMu 串行化缓存写入，gen 在每次修改或失效时递增
	// 解析期间发生修改时，解析结果不写入缓存
	writeMu sync.Mutex
	gen     atomic.Uint64

	hits   atomic.Int64
	misses atomic.Int64
	log    *zap.Logger
}

// NewTypeRegistry 创建类型注册表
func NewTypeRegistry(configurer config.Configurer) *TypeRegistry {
	return &TypeRegistry{configurer: configurer, log: logger.For("registry")}
}

// RegisterInterface 登记接口类型，实现该接口的类型继承其约束
func (r *TypeRegistry) RegisterInterface(t reflect.Type) error {
	if t.Kind() != reflect.Interface {
		return core.InvalidConfiguration(t.String(), "not an interface type")
	}
	r.mu.Lock()
	registered := false
	for _, existing := range r.interfaces {
		if existing == t {
			registered = true
			break
		}
	}
	if !registered {
		r.interfaces = append(r.interfaces, t)
	}
	r.mu.Unlock()

	// 已登记的接口可能新增了约束，实现类型同样需要重新解析
	r.Invalidate(t)
	return nil
}

// Resolve 返回类型的约束信息，指针类型会被解引用
func (r *TypeRegistry) Resolve(t reflect.Type) (*TypeInfo, error) {
	return r.resolve(deref(t), make(map[reflect.Type]bool))
}

// Cached 返回已缓存的类型信息，不触发解析
func (r *TypeRegistry) Cached(t reflect.Type) (*TypeInfo, bool) {
	v, ok := r.cache.Load(deref(t))
	if !ok {
		return nil, false
	}
	return v.(*TypeInfo), true
}

func (r *TypeRegistry) resolve(t reflect.Type, inProgress map[reflect.Type]bool) (*TypeInfo, error) {
	if cached, ok := r.cache.Load(t); ok {
		r.hits.Add(1)
		return cached.(*TypeInfo), nil
	}
	r.misses.Add(1)

	gen := r.gen.Load()
	info, err := r.build(t, inProgress)
	if err != nil {
		return nil, err
	}
	r.writeMu.Lock()
	actual := any(info)
	if r.gen.Load() == gen {
		actual, _ = r.cache.LoadOrStore(t, info)
	}
	r.writeMu.Unlock()
	r.log.Debug("type constraints resolved",
		zap.String("type", t.String()), zap.Int("fields", len(info.Fields)), zap.Bool("constrained", info.HasConstraints()))
	return actual.(*TypeInfo), nil
}

func (r *TypeRegistry) build(t reflect.Type, inProgress map[reflect.Type]bool) (*TypeInfo, error) {
	inProgress[t] = true
	defer delete(inProgress, t)

	base := &config.TypeConfig{Type: t}
	var embedded []reflect.Type

	// 1. 接口贡献的约束
	r.mu.RLock()
	interfaces := append([]reflect.Type(nil), r.interfaces...)
	r.mu.RUnlock()
	for _, iface := range interfaces {
		if !t.Implements(iface) && !reflect.PointerTo(t).Implements(iface) {
			continue
		}
		ic, err := r.configurer.TypeConfig(iface)
		if err != nil {
			return nil, err
		}
		base = config.Merge(base, ic)
	}

	// 2. 嵌入结构体的约束
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			et := deref(f.Type)
			if !f.Anonymous || et.Kind() != reflect.Struct || inProgress[et] {
				continue
			}
			ei, err := r.resolve(et, inProgress)
			if err != nil {
				return nil, err
			}
			embedded = append(embedded, et)
			embedded = append(embedded, ei.Embedded...)
			base = config.Merge(base, promoted(t, i, ei.inheritable()))
		}
	}

	// 3. 类型自身的配置
	own, err := r.configurer.TypeConfig(t)
	if err != nil {
		return nil, err
	}
	merged := config.Merge(base, own)
	return r.assemble(t, merged, embedded), nil
}

// promoted 过滤被外层同名字段遮蔽的继承字段
func promoted(t reflect.Type, index int, inherited *config.TypeConfig) *config.TypeConfig {
	var fields []*config.MemberConfig
	for _, m := range inherited.Fields {
		if f, ok := t.FieldByName(m.Name); ok && f.Index[0] == index {
			fields = append(fields, m)
		}
	}
	inherited.Fields = fields
	return inherited
}

func (r *TypeRegistry) assemble(t reflect.Type, tc *config.TypeConfig, embedded []reflect.Type) *TypeInfo {
	info := &TypeInfo{
		Type:            t,
		ObjectChecks:    tc.ObjectChecks,
		Methods:         make(map[string]*MethodInfo, len(tc.Methods)),
		Constructors:    make(map[string]*MethodInfo, len(tc.Constructors)),
		CheckInvariants: tc.CheckInvariants == nil || *tc.CheckInvariants,
		SelfValidator:   t.Implements(selfValidatorType) || reflect.PointerTo(t).Implements(selfValidatorType),
		Embedded:        embedded,
		fieldIndex:      make(map[string]int),
	}

	if t.Kind() == reflect.Struct {
		for _, f := range reflect.VisibleFields(t) {
			if !f.IsExported() {
				continue
			}
			m := tc.Field(f.Name)
			// 嵌入字段本身只有显式声明约束时才作为字段处理，其成员已被提升
			if f.Anonymous && m == nil {
				continue
			}
			fi := &FieldInfo{Name: f.Name, Index: f.Index, Type: f.Type}
			if m != nil {
				fi.Checks = m.Checks
			}
			info.fieldIndex[f.Name] = len(info.Fields)
			info.Fields = append(info.Fields, fi)
		}
	}
	for _, m := range tc.Fields {
		if _, ok := info.fieldIndex[m.Name]; !ok && len(m.Checks) > 0 {
			r.log.Warn("constraints on unknown field ignored",
				zap.String("type", t.String()), zap.String("field", m.Name))
		}
	}

	for _, g := range tc.Getters {
		if !isGetter(t, g.Name) {
			r.log.Warn("constraints on unknown getter ignored",
				zap.String("type", t.String()), zap.String("getter", g.Name))
			continue
		}
		info.Getters = append(info.Getters, &GetterInfo{Name: g.Name, Checks: g.Checks, Promoted: promotionPath(t, g.Name)})
	}

	for _, m := range tc.Methods {
		info.Methods[m.Name] = methodInfo(m.Name, m.Parameters, m.ReturnValue)
	}
	for _, c := range tc.Constructors {
		info.Constructors[c.Name] = methodInfo(c.Name, c.Parameters, nil)
	}
	return info
}

func methodInfo(name string, params []*config.ParameterConfig, ret *config.MemberConfig) *MethodInfo {
	mi := &MethodInfo{Name: name}
	for _, p := range params {
		mi.Parameters = append(mi.Parameters, &ParameterInfo{Index: p.Index, Name: p.Name, Checks: p.Checks})
	}
	if ret != nil {
		mi.ReturnChecks = ret.Checks
	}
	return mi
}

// isGetter 方法存在（值或指针接收者）且无参、单返回值
func isGetter(t reflect.Type, name string) bool {
	m, ok := reflect.PointerTo(t).MethodByName(name)
	if !ok {
		return false
	}
	// 方法表达式的第一个参数是接收者
	return m.Type.NumIn() == 1 && m.Type.NumOut() == 1
}

// promotionPath 返回提供同名方法的最浅嵌入字段
// 外层类型自己声明同名方法时该路径也会返回，调用方据此只做 nil 检查
func promotionPath(t reflect.Type, name string) []int {
	if t.Kind() != reflect.Struct {
		return nil
	}
	var best []int
	for _, f := range reflect.VisibleFields(t) {
		if !f.Anonymous {
			continue
		}
		if _, ok := reflect.PointerTo(deref(f.Type)).MethodByName(name); !ok {
			continue
		}
		if best == nil || len(f.Index) < len(best) {
			best = f.Index
		}
	}
	return best
}

// Update 以写时复制方式修改已缓存的类型信息，并使嵌入或实现它的类型失效
// 类型尚未缓存时只做失效处理，下次解析会读取最新配置
func (r *TypeRegistry) Update(t reflect.Type, fn func(info *TypeInfo)) {
	t = deref(t)
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.gen.Add(1)
	if v, ok := r.cache.Load(t); ok {
		updated := v.(*TypeInfo).clone()
		fn(updated)
		updated.fieldIndex = make(map[string]int, len(updated.Fields))
		for i, f := range updated.Fields {
			updated.fieldIndex[f.Name] = i
		}
		r.cache.Store(t, updated)
	}
	r.invalidateDependents(t)
}

// Invalidate 移除类型及依赖它的类型的缓存
func (r *TypeRegistry) Invalidate(t reflect.Type) {
	t = deref(t)
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.gen.Add(1)
	r.cache.Delete(t)
	r.invalidateDependents(t)
}

func (r *TypeRegistry) invalidateDependents(t reflect.Type) {
	r.cache.Range(func(key, value any) bool {
		kt := key.(reflect.Type)
		info := value.(*TypeInfo)
		switch {
		case t.Kind() == reflect.Interface && kt != t &&
			(kt.Implements(t) || reflect.PointerTo(kt).Implements(t)):
			r.cache.Delete(key)
		case info.embeds(t):
			r.cache.Delete(key)
		}
		return true
	})
}

// Clear 清空缓存（重新加载配置时使用）
func (r *TypeRegistry) Clear() {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.gen.Add(1)
	r.cache.Range(func(key, _ any) bool {
		r.cache.Delete(key)
		return true
	})
	r.log.Debug("type cache cleared")
}

// Stats 返回缓存统计
func (r *TypeRegistry) Stats() Stats {
	s := Stats{Hits: r.hits.Load(), Misses: r.misses.Load()}
	r.cache.Range(func(_, _ any) bool {
		s.Cached++
		return true
	})
	return s
}

func (s Stats) String() string {
	return fmt.Sprintf("cached=%d hits=%d misses=%d", s.Cached, s.Hits, s.Misses)
}

func deref(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
