package check

import (
	"context"
	"sort"
	"strings"
	"sync"

	"katydid-common-contract/pkg/validator/core"
)

// Factory 由参数构建校验
type Factory func(args Args) (core.Check, error)

// PredicateFunc checkwith 使用的自定义谓词
type PredicateFunc func(ctx context.Context, validatedObject, value any) (bool, error)

// 所有校验通用的命名参数
const (
	ArgProfiles = "profiles"
	ArgMessage  = "message"
	ArgCode     = "code"
	ArgSeverity = "severity"
	ArgApplies  = "applies"
	ArgTarget   = "target"
	ArgWhen     = "when"
)

// Registry 校验工厂注册表
// 职责：按名称构建校验，供标签、规则和文件配置器共享
// 线程安全：所有方法可并发调用
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	funcs     map[string]PredicateFunc
	whens     map[string]core.WhenFunc
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry 全局默认注册表（单例）
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry 创建包含全部内置校验的注册表
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		funcs:     make(map[string]PredicateFunc),
		whens:     make(map[string]core.WhenFunc),
	}
	r.registerBuiltins()
	return r
}

// Register 注册校验工厂，同名覆盖
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = factory
}

// RegisterFunc 注册 checkwith 可引用的谓词
func (r *Registry) RegisterFunc(name string, fn PredicateFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// RegisterWhen 注册 when 参数可引用的激活条件
func (r *Registry) RegisterWhen(name string, fn core.WhenFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.whens[name] = fn
}

// Has 是否注册了指定校验
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.ToLower(name)]
	return ok
}

// Names 返回所有已注册的校验名称（有序）
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) lookupFunc(name string) (PredicateFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Build 按名称和参数构建校验，并应用通用参数
func (r *Registry) Build(name string, args Args) (core.Check, error) {
	r.mu.RLock()
	factory, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, core.InvalidConfiguration(name, "unknown check")
	}

	c, err := factory(args)
	if err != nil {
		return nil, err
	}
	if err := r.applyCommon(name, c.Config(), args); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Registry) applyCommon(name string, s *core.Settings, args Args) error {
	if profiles := args.List(ArgProfiles, -1); len(profiles) > 0 {
		s.Profiles = profiles
	}
	if msg, ok := args.Get(ArgMessage, -1); ok {
		s.Message = msg
	}
	if code, ok := args.Get(ArgCode, -1); ok {
		s.ErrorCode = code
	}
	severity, err := args.Int(name, ArgSeverity, -1, s.Severity)
	if err != nil {
		return err
	}
	s.Severity = severity
	if applies, ok := args.Get(ArgApplies, -1); ok {
		target, err := core.ParseConstraintTarget(applies)
		if err != nil {
			return err
		}
		s.AppliesTo = target
	}
	if target, ok := args.Get(ArgTarget, -1); ok {
		s.Target = target
	}
	if when, ok := args.Get(ArgWhen, -1); ok {
		r.mu.RLock()
		fn, found := r.whens[when]
		r.mu.RUnlock()
		if !found {
			return core.InvalidConfiguration(name, "unknown when condition %q", when)
		}
		s.When = fn
	}
	return nil
}

func (r *Registry) registerBuiltins() {
	r.factories = map[string]Factory{
		NameNotNull:     func(Args) (core.Check, error) { return NewNotNull(), nil },
		NameAssertNull:  func(Args) (core.Check, error) { return NewAssertNull(), nil },
		NameNotEmpty:    func(Args) (core.Check, error) { return NewNotEmpty(), nil },
		NameNotBlank:    func(Args) (core.Check, error) { return NewNotBlank(), nil },
		NameAssertTrue:  func(Args) (core.Check, error) { return NewAssertTrue(), nil },
		NameAssertFalse: func(Args) (core.Check, error) { return NewAssertFalse(), nil },
		NameNotNegative: func(Args) (core.Check, error) { return NewNotNegative(), nil },
		NameEmail:       func(Args) (core.Check, error) { return NewEmail(), nil },
		NameURL:         func(Args) (core.Check, error) { return NewURL(), nil },
		NameFuture:      buildFuture,
		NamePast:        buildPast,
		NameDateRange:   buildDateRange,
		NameLength:      buildLength,
		NameMinLength:   buildMinLength,
		NameMaxLength:   buildMaxLength,
		NameSize:        buildSize,
		NameMinSize:     buildMinSize,
		NameMaxSize:     buildMaxSize,
		NameRange:       buildRange,
		NameMin:         buildMin,
		NameMax:         buildMax,
		NameDigits:      buildDigits,
		NamePattern:     buildPattern,
		NameNotPattern:  buildNotPattern,
		NameHasSubstr:   buildHasSubstring,
		NameMemberOf:    buildMemberOf,
		NameNotMemberOf: buildNotMemberOf,
		NameNotEqual:    buildNotEqual,
		NameEqualField:  buildEqualToField,
		NameNotEqField:  buildNotEqualToField,
		NameWithMethod:  buildValidateWithMethod,
		NameMapKeys:     buildMapKeys,
		NamePlayground:  buildPlayground,
		NameValid:       func(Args) (core.Check, error) { return NewAssertValid(), nil },
		NameSet:         buildAssertConstraintSet,
		NameFieldOf:     buildAssertFieldConstraints,
		NameCheckWith:   r.buildCheckWith,
	}
}
