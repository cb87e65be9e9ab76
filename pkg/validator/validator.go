package validator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"katydid-common-contract/pkg/logger"
	"katydid-common-contract/pkg/validator/check"
	"katydid-common-contract/pkg/validator/config"
	"katydid-common-contract/pkg/validator/core"
	"katydid-common-contract/pkg/validator/message"
	"katydid-common-contract/pkg/validator/registry"
)

// ErrNilObject 校验对象为 nil
var ErrNilObject = errors.New("object to validate is nil")

// Validator 约束校验引擎
// 职责：组织配置器链、缓存解析后的类型约束、遍历对象图并收集违反
// 线程安全：所有方法可并发调用，配置修改与校验可以同时进行
//
// 使用示例：
//
//	type User struct {
//	    Name    string   `check:"notnull; length(3, 20)"`
//	    Email   string   `check:"email"`
//	    Address *Address `check:"notnull; valid"`
//	}
//
//	v := validator.MustNew()
//	violations, err := v.Validate(user)
type Validator struct {
	registry     *check.Registry
	chain        config.Chain
	programmatic *config.ProgrammaticConfigurer
	types        *registry.TypeRegistry
	sets         *registry.ConstraintSets
	resolver     *message.Resolver
	profiles     *profileState

	locale        string
	cascadeNested bool
	maxDepth      int
	implicitValid core.Check

	listenerMu sync.RWMutex
	listeners  []Listener

	log *zap.Logger
}

var (
	defaultValidator     *Validator
	defaultValidatorOnce sync.Once
)

// Default 全局默认验证器（单例，使用默认配置器链）
func Default() *Validator {
	defaultValidatorOnce.Do(func() {
		defaultValidator = MustNew()
	})
	return defaultValidator
}

// Validate 使用默认验证器校验对象
func Validate(obj any, profiles ...string) ([]*core.Violation, error) {
	return Default().Validate(obj, profiles...)
}

// New 创建验证器并加载配置器提供的约束集
func New(opts ...Option) (*Validator, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = check.DefaultRegistry()
	}
	if o.configurers == nil {
		o.configurers = defaultConfigurers(o.registry)
	}
	o.configurers = append(append([]config.Configurer(nil), o.configurers...), o.extra...)
	if o.resolver == nil {
		o.resolver = message.NewResolver(o.locale)
	}
	if o.maxDepth <= 0 {
		o.maxDepth = DefaultMaxDepth
	}
	if o.profiles == nil {
		o.profiles = newProfileState(true)
	}

	programmatic := config.NewProgrammaticConfigurer()
	chain := append(config.Chain{}, o.configurers...)
	chain = append(chain, programmatic)

	v := &Validator{
		registry:      o.registry,
		chain:         chain,
		programmatic:  programmatic,
		types:         registry.NewTypeRegistry(chain),
		sets:          registry.NewConstraintSets(),
		resolver:      o.resolver,
		profiles:      o.profiles,
		locale:        o.locale,
		cascadeNested: o.cascadeNested,
		maxDepth:      o.maxDepth,
		implicitValid: check.NewAssertValid(),
		listeners:     o.listeners,
		log:           logger.For("validator"),
	}
	if err := v.loadConstraintSets(); err != nil {
		return nil, err
	}
	return v, nil
}

// MustNew 与 New 相同，配置错误时 panic
func MustNew(opts ...Option) *Validator {
	v, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return v
}

func (v *Validator) loadConstraintSets() error {
	sets, err := v.chain.ConstraintSets()
	if err != nil {
		return err
	}
	v.sets.Load(sets)
	v.log.Debug("constraint sets loaded", zap.Int("count", len(sets)))
	return nil
}

// ============================================================================
// 校验
// ============================================================================

// Validate 校验对象图，返回全部违反
// 指定 profiles 时只执行属于这些 profile 的校验，否则按全局启用状态过滤
func (v *Validator) Validate(obj any, profiles ...string) ([]*core.Violation, error) {
	return v.ValidateContext(context.Background(), obj, profiles...)
}

// ValidateContext 同 Validate，ctx 会传给校验（CheckWith、SelfValidator 等）
func (v *Validator) ValidateContext(ctx context.Context, obj any, profiles ...string) (violations []*core.Violation, err error) {
	if core.IsNil(obj) {
		return nil, core.NewValidationFailedError(nil, ErrNilObject)
	}

	listeners := v.currentListeners()
	for _, l := range listeners {
		l.BeforeValidate(ctx, obj)
	}
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		for _, l := range listeners {
			l.AfterValidate(ctx, obj, violations, err, elapsed)
		}
	}()

	st := acquireState(v, ctx, profiles)
	defer releaseState(st)
	return st.validateRoot(obj)
}

// AssertValid 校验对象，存在违反时返回 *core.ConstraintsViolatedError
func (v *Validator) AssertValid(obj any, profiles ...string) error {
	return v.AssertValidContext(context.Background(), obj, profiles...)
}

// AssertValidContext 同 AssertValid
func (v *Validator) AssertValidContext(ctx context.Context, obj any, profiles ...string) error {
	violations, err := v.ValidateContext(ctx, obj, profiles...)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return core.NewConstraintsViolatedError(violations)
	}
	return nil
}

// ValidateFieldValue 校验把 value 赋给 obj 的字段 field 之后是否满足约束（不修改 obj）
func (v *Validator) ValidateFieldValue(obj any, field string, value any) ([]*core.Violation, error) {
	t := reflect.TypeOf(obj)
	if t == nil {
		return nil, core.NewValidationFailedError(nil, ErrNilObject)
	}
	info, err := v.types.Resolve(t)
	if err != nil {
		return nil, err
	}
	f := info.Field(field)
	if f == nil {
		return nil, core.InvalidConfiguration(core.TypeName(t), "unknown field %q", field)
	}

	st := acquireState(v, context.Background(), nil)
	defer releaseState(st)
	st.owner = info.Type
	return st.checkValue(obj, value, &core.FieldContext{Type: info.Type, Field: field}, f.Checks)
}

// ValidateValue 对单个值执行指定校验
func (v *Validator) ValidateValue(ctx context.Context, value any, at core.Context, checks ...core.Check) ([]*core.Violation, error) {
	st := acquireState(v, ctx, nil)
	defer releaseState(st)
	return st.checkValue(nil, value, at, checks)
}

// ============================================================================
// 编程式配置
// ============================================================================

// AddChecks 为 sample 类型的字段追加约束
func (v *Validator) AddChecks(sample any, field string, checks ...core.Check) error {
	t, err := structType(sample)
	if err != nil {
		return err
	}
	if _, ok := t.FieldByName(field); !ok {
		return core.InvalidConfiguration(core.TypeName(t), "unknown field %q", field)
	}
	v.programmatic.AddFieldChecks(t, field, checks...)
	v.types.Update(t, func(info *registry.TypeInfo) {
		if f := info.Field(field); f != nil {
			f.Checks = append(f.Checks, checks...)
		}
	})
	return nil
}

// RemoveChecks 移除字段上的约束（按实例比较），未指定 checks 时移除全部
// 标签、文件等声明式约束的移除在 ReloadConfiguration 之前有效
func (v *Validator) RemoveChecks(sample any, field string, checks ...core.Check) error {
	t, err := structType(sample)
	if err != nil {
		return err
	}
	// 先确保类型已解析，移除作用于完整的约束列表
	if _, err := v.types.Resolve(t); err != nil {
		return err
	}
	v.programmatic.RemoveFieldChecks(t, field, checks...)
	v.types.Update(t, func(info *registry.TypeInfo) {
		if f := info.Field(field); f != nil {
			f.Checks = config.RemoveChecks(f.Checks, checks...)
		}
	})
	return nil
}

// FieldChecks 返回字段当前生效的约束
func (v *Validator) FieldChecks(sample any, field string) ([]core.Check, error) {
	t, err := structType(sample)
	if err != nil {
		return nil, err
	}
	info, err := v.types.Resolve(t)
	if err != nil {
		return nil, err
	}
	f := info.Field(field)
	if f == nil {
		return nil, core.InvalidConfiguration(core.TypeName(t), "unknown field %q", field)
	}
	return append([]core.Check(nil), f.Checks...), nil
}

// AddObjectChecks 追加对象级约束，校验值为对象本身
func (v *Validator) AddObjectChecks(sample any, checks ...core.Check) error {
	t := reflect.TypeOf(sample)
	if t == nil {
		return core.InvalidConfiguration("AddObjectChecks", "nil sample")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	v.programmatic.AddObjectChecks(t, checks...)
	v.types.Update(t, func(info *registry.TypeInfo) {
		info.ObjectChecks = append(info.ObjectChecks, checks...)
	})
	return nil
}

// RemoveObjectChecks 移除对象级约束
func (v *Validator) RemoveObjectChecks(sample any, checks ...core.Check) error {
	t := reflect.TypeOf(sample)
	if t == nil {
		return core.InvalidConfiguration("RemoveObjectChecks", "nil sample")
	}
	if _, err := v.types.Resolve(t); err != nil {
		return err
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	v.programmatic.RemoveObjectChecks(t, checks...)
	v.types.Update(t, func(info *registry.TypeInfo) {
		info.ObjectChecks = config.RemoveChecks(info.ObjectChecks, checks...)
	})
	return nil
}

// AddGetterChecks 为 getter（无参单返回值方法）追加不变式约束
func (v *Validator) AddGetterChecks(sample any, getter string, checks ...core.Check) error {
	t := reflect.TypeOf(sample)
	if t == nil {
		return core.InvalidConfiguration("AddGetterChecks", "nil sample")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	v.programmatic.AddGetterChecks(t, getter, checks...)
	v.types.Invalidate(t)
	return nil
}

// AddInterfaceChecks 为接口的 getter 方法追加约束，所有实现该接口的类型继承这些约束
// iface 为接口指针，例如 (*Named)(nil)
func (v *Validator) AddInterfaceChecks(iface any, getter string, checks ...core.Check) error {
	t := reflect.TypeOf(iface)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Interface {
		return core.InvalidConfiguration("AddInterfaceChecks", "expected pointer to interface, got %v", t)
	}
	t = t.Elem()
	if _, ok := t.MethodByName(getter); !ok {
		return core.InvalidConfiguration(t.String(), "unknown method %q", getter)
	}
	v.programmatic.AddGetterChecks(t, getter, checks...)
	return v.types.RegisterInterface(t)
}

// AddParameterChecks 为方法参数追加约束（Guard 使用）
func (v *Validator) AddParameterChecks(sample any, method string, index int, checks ...core.Check) error {
	t := reflect.TypeOf(sample)
	if t == nil {
		return core.InvalidConfiguration("AddParameterChecks", "nil sample")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	v.programmatic.AddParameterChecks(t, method, index, checks...)
	v.types.Invalidate(t)
	return nil
}

// AddReturnValueChecks 为方法返回值追加约束（Guard 使用）
func (v *Validator) AddReturnValueChecks(sample any, method string, checks ...core.Check) error {
	t := reflect.TypeOf(sample)
	if t == nil {
		return core.InvalidConfiguration("AddReturnValueChecks", "nil sample")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	v.programmatic.AddReturnValueChecks(t, method, checks...)
	v.types.Invalidate(t)
	return nil
}

// AddConstraintSet 注册命名约束集；overwrite 为 false 时追加到同名约束集
func (v *Validator) AddConstraintSet(id string, overwrite bool, checks ...core.Check) {
	v.programmatic.AddConstraintSet(&config.ConstraintSetConfig{ID: id, Overwrite: overwrite, Checks: checks})
	v.sets.Add(id, overwrite, checks...)
}

// ConstraintSet 获取命名约束集
func (v *Validator) ConstraintSet(id string) ([]core.Check, bool) {
	return v.sets.Get(id)
}

// RemoveConstraintSet 删除命名约束集
func (v *Validator) RemoveConstraintSet(id string) bool {
	v.programmatic.RemoveConstraintSet(id)
	return v.sets.Remove(id)
}

// ConstraintSetIDs 返回已注册的约束集 id
func (v *Validator) ConstraintSetIDs() []string {
	return v.sets.IDs()
}

// ReloadConfiguration 清空类型缓存并重新加载约束集
// 通过代码添加的约束保留；对声明式约束的移除失效
func (v *Validator) ReloadConfiguration() error {
	v.types.Clear()
	v.sets.Clear()
	if err := v.loadConstraintSets(); err != nil {
		return err
	}
	v.log.Info("constraint configuration reloaded", zap.Strings("constraintSets", v.sets.IDs()))
	return nil
}

// TypeCacheStats 返回类型缓存统计
func (v *Validator) TypeCacheStats() registry.Stats {
	return v.types.Stats()
}

// TypeInfo 返回类型解析后的约束（Guard 使用）
func (v *Validator) TypeInfo(t reflect.Type) (*registry.TypeInfo, error) {
	return v.types.Resolve(t)
}

// CheckRegistry 返回校验注册表
func (v *Validator) CheckRegistry() *check.Registry {
	return v.registry
}

// Resolver 返回消息解析器
func (v *Validator) Resolver() *message.Resolver {
	return v.resolver
}

func structType(sample any) (reflect.Type, error) {
	t := reflect.TypeOf(sample)
	if t == nil {
		return nil, core.InvalidConfiguration("sample", "nil sample")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, core.InvalidConfiguration(t.String(), "not a struct type")
	}
	return t, nil
}

func (v *Validator) String() string {
	return fmt.Sprintf("Validator{configurers=%d, %s}", len(v.chain), v.types.Stats())
}
