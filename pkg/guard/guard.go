package guard

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"katydid-common-contract/pkg/logger"
	"katydid-common-contract/pkg/validator"
	"katydid-common-contract/pkg/validator/core"
)

// ErrInvalidTarget 探测模式和对象级监听器要求目标为非 nil 指针
var ErrInvalidTarget = errors.New("guard target must be a non-nil pointer")

// Guard 契约式设计的执行层
// 职责：在被守护的调用前后校验不变式、参数、前置条件、返回值和后置条件
// 执行顺序：不变式 -> 参数 -> 前置条件 -> 调用 -> 返回值 -> 后置条件 -> 不变式
// 任一阶段出现违反即停止，调用未执行时不会产生副作用
// 线程安全：所有方法可并发调用
type Guard struct {
	v *validator.Validator

	active     atomic.Bool
	invariants atomic.Bool
	pre        atomic.Bool
	post       atomic.Bool

	mu              sync.RWMutex
	invariantsByTyp map[reflect.Type]bool
	listeners       []ViolationListener
	targetListeners map[any][]ViolationListener
	probes          map[any]*ProbeModeListener
	translator      ErrorTranslator

	chain *InterceptorChain
	log   *zap.Logger
}

// Option Guard 选项
type Option func(g *Guard)

// WithTranslator 设置错误转换器
func WithTranslator(t ErrorTranslator) Option {
	return func(g *Guard) {
		g.translator = t
	}
}

// WithInterceptors 注册拦截器
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(g *Guard) {
		for _, i := range interceptors {
			g.chain.Add(i)
		}
	}
}

// WithListeners 注册全局违反监听器
func WithListeners(listeners ...ViolationListener) Option {
	return func(g *Guard) {
		g.listeners = append(g.listeners, listeners...)
	}
}

// WithFeatures 初始开关：不变式、前置条件（含参数）、后置条件（含返回值）
func WithFeatures(invariants, pre, post bool) Option {
	return func(g *Guard) {
		g.invariants.Store(invariants)
		g.pre.Store(pre)
		g.post.Store(post)
	}
}

// New 创建 Guard，v 为 nil 时使用 validator.Default()
func New(v *validator.Validator, opts ...Option) *Guard {
	if v == nil {
		v = validator.Default()
	}
	g := &Guard{
		v:               v,
		invariantsByTyp: make(map[reflect.Type]bool),
		targetListeners: make(map[any][]ViolationListener),
		probes:          make(map[any]*ProbeModeListener),
		translator:      DefaultTranslator,
		chain:           NewInterceptorChain(),
		log:             logger.For("guard"),
	}
	g.active.Store(true)
	g.invariants.Store(true)
	g.pre.Store(true)
	g.post.Store(true)
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Validator 返回底层验证器
func (g *Guard) Validator() *validator.Validator {
	return g.v
}

// ============================================================================
// 开关
// ============================================================================

// SetActive 全局开关，关闭后被守护的调用直接执行
func (g *Guard) SetActive(active bool) { g.active.Store(active) }

// IsActive 是否启用
func (g *Guard) IsActive() bool { return g.active.Load() }

// SetInvariantsEnabled 不变式校验开关
func (g *Guard) SetInvariantsEnabled(enabled bool) { g.invariants.Store(enabled) }

// IsInvariantsEnabled 不变式校验是否启用
func (g *Guard) IsInvariantsEnabled() bool { return g.invariants.Load() }

// SetInvariantsEnabledFor 单独控制某个类型的不变式校验
func (g *Guard) SetInvariantsEnabledFor(sample any, enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invariantsByTyp[sampleType(sample)] = enabled
}

// SetPreConditionsEnabled 参数与前置条件校验开关
func (g *Guard) SetPreConditionsEnabled(enabled bool) { g.pre.Store(enabled) }

// IsPreConditionsEnabled 参数与前置条件校验是否启用
func (g *Guard) IsPreConditionsEnabled() bool { return g.pre.Load() }

// SetPostConditionsEnabled 返回值与后置条件校验开关
func (g *Guard) SetPostConditionsEnabled(enabled bool) { g.post.Store(enabled) }

// IsPostConditionsEnabled 返回值与后置条件校验是否启用
func (g *Guard) IsPostConditionsEnabled() bool { return g.post.Load() }

// SetTranslator 替换错误转换器，nil 恢复默认
func (g *Guard) SetTranslator(t ErrorTranslator) {
	if t == nil {
		t = DefaultTranslator
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.translator = t
}

// AddInterceptor 注册拦截器
func (g *Guard) AddInterceptor(i Interceptor) {
	g.chain.Add(i)
}

// ============================================================================
// 监听器与探测模式
// ============================================================================

// AddListener 注册全局违反监听器
func (g *Guard) AddListener(l ViolationListener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, l)
}

// RemoveListener 注销全局违反监听器
func (g *Guard) RemoveListener(l ViolationListener) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	var removed bool
	g.listeners, removed = without(g.listeners, l)
	return removed
}

// AddTargetListener 注册只接收 target 上违反的监听器
func (g *Guard) AddTargetListener(target any, l ViolationListener) error {
	if err := checkTarget(target); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.targetListeners[target] = append(g.targetListeners[target], l)
	return nil
}

// RemoveTargetListener 注销对象级监听器
func (g *Guard) RemoveTargetListener(target any, l ViolationListener) bool {
	if checkTarget(target) != nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	remaining, removed := without(g.targetListeners[target], l)
	if len(remaining) == 0 {
		delete(g.targetListeners, target)
	} else {
		g.targetListeners[target] = remaining
	}
	return removed
}

// EnableProbeMode 开启 target 的探测模式，返回收集违反的监听器
// 已开启时返回现有监听器
func (g *Guard) EnableProbeMode(target any) (*ProbeModeListener, error) {
	if err := checkTarget(target); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.probes[target]; ok {
		return l, nil
	}
	l := newProbeModeListener(target)
	g.probes[target] = l
	g.log.Debug("probe mode enabled", zap.String("target", fmt.Sprintf("%T", target)))
	return l, nil
}

// DisableProbeMode 关闭探测模式，返回探测期间的监听器（未开启时为 nil）
func (g *Guard) DisableProbeMode(target any) *ProbeModeListener {
	if checkTarget(target) != nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	l := g.probes[target]
	delete(g.probes, target)
	return l
}

// IsProbeModeEnabled target 是否处于探测模式
func (g *Guard) IsProbeModeEnabled(target any) bool {
	return g.probeListener(target) != nil
}

func (g *Guard) probeListener(target any) *ProbeModeListener {
	if checkTarget(target) != nil {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.probes[target]
}

func checkTarget(target any) error {
	rv := reflect.ValueOf(target)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ErrInvalidTarget
	}
	return nil
}

func without(listeners []ViolationListener, l ViolationListener) ([]ViolationListener, bool) {
	out := make([]ViolationListener, 0, len(listeners))
	removed := false
	canCompare := reflect.TypeOf(l) != nil && reflect.TypeOf(l).Comparable()
	for _, existing := range listeners {
		// 函数类型的监听器不可比较，无法注销
		if canCompare && reflect.TypeOf(existing) == reflect.TypeOf(l) && existing == l {
			removed = true
			continue
		}
		out = append(out, existing)
	}
	return out, removed
}

// ============================================================================
// 调用
// ============================================================================

// Invoke 在契约保护下执行 fn
// target 为接收者（构造函数为 nil），args 为实参，用于参数约束与条件
// 违反契约时 fn 不会执行（或在执行后报告），错误由 ErrorTranslator 转换
func (g *Guard) Invoke(ctx context.Context, target any, m *Method, args []any, fn func() (any, error)) (any, error) {
	if !g.IsActive() {
		return fn()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	inv := &Invocation{Ctx: ctx, Target: target, Method: m, Args: args}
	err := g.chain.Execute(inv, func() error {
		return g.guard(inv, fn)
	})
	return inv.Result, err
}

// Call 泛型版本的 Invoke
func Call[R any](ctx context.Context, g *Guard, target any, m *Method, args []any, fn func() (R, error)) (R, error) {
	res, err := g.Invoke(ctx, target, m, args, func() (any, error) {
		return fn()
	})
	r, _ := res.(R)
	return r, err
}

// Construct 在构造函数契约保护下创建对象，构造完成后校验新对象的不变式
func Construct[T any](ctx context.Context, g *Guard, m *Method, args []any, fn func() (T, error)) (T, error) {
	res, err := g.Invoke(ctx, nil, m, args, func() (any, error) {
		return fn()
	})
	t, _ := res.(T)
	return t, err
}

func (g *Guard) guard(inv *Invocation, fn func() (any, error)) error {
	m := inv.Method
	vm := g.v

	// 调用前
	if !m.IsConstructor() && inv.Target != nil {
		if err := g.checkInvariants(inv); err != nil {
			return err
		}
	}
	if g.IsPreConditionsEnabled() {
		vs, err := vm.ValidateParameters(inv.Ctx, inv.Target, m.ref, inv.Args, m.params)
		if err := g.phase(inv, vs, err); err != nil {
			return err
		}
		vs, err = vm.ValidateConditions(inv.Ctx, inv.Target, inv, m.entryContext(), m.pre)
		if err := g.phase(inv, vs, err); err != nil {
			return err
		}
	}

	if probe := g.probeListener(inv.Target); probe != nil {
		probe.probe()
		inv.Probed = true
		return nil
	}

	if g.IsPostConditionsEnabled() && m.old != nil {
		inv.Old = m.old(inv)
	}

	result, err := fn()
	inv.Result = result
	if err != nil {
		inv.Err = err
		return err
	}

	// 调用后
	if m.IsConstructor() {
		inv.Target = result
	} else if g.IsPostConditionsEnabled() {
		vs, err := vm.ValidateReturnValue(inv.Ctx, inv.Target, m.ref, result, m.returns)
		if err := g.phase(inv, vs, err); err != nil {
			return err
		}
	}
	if g.IsPostConditionsEnabled() {
		vs, err := vm.ValidateConditions(inv.Ctx, inv.Target, inv, m.exitContext(), m.post)
		if err := g.phase(inv, vs, err); err != nil {
			return err
		}
	}
	if inv.Target != nil {
		return g.checkInvariants(inv)
	}
	return nil
}

// checkInvariants 按全局开关、类型开关和方法设置校验接收者不变式
func (g *Guard) checkInvariants(inv *Invocation) error {
	if !g.IsInvariantsEnabled() || core.IsNil(inv.Target) {
		return nil
	}
	t := sampleType(inv.Target)
	g.mu.RLock()
	enabled, set := g.invariantsByTyp[t]
	g.mu.RUnlock()
	if set && !enabled {
		return nil
	}

	if m := inv.Method; m.invariants != nil {
		if !*m.invariants {
			return nil
		}
	} else {
		info, err := g.v.TypeInfo(t)
		if err != nil {
			return err
		}
		if !info.CheckInvariants {
			return nil
		}
	}

	vs, err := g.v.ValidateInvariants(inv.Ctx, inv.Target)
	return g.phase(inv, vs, err)
}

// phase 处理一个阶段的结果：校验错误直接返回，违反通知监听器后转换
// 探测模式下违反只记录，不拒绝调用
func (g *Guard) phase(inv *Invocation, violations []*core.Violation, err error) error {
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		return nil
	}

	cve := core.NewConstraintsViolatedError(violations)
	g.notify(inv, cve)
	if g.probeListener(inv.Target) != nil {
		return nil
	}

	g.log.Debug("guarded call rejected",
		zap.String("method", inv.Method.String()),
		zap.Int("violations", len(violations)),
		zap.String("first", violations[0].String()))

	g.mu.RLock()
	translator := g.translator
	g.mu.RUnlock()
	return translator.Translate(cve)
}

func (g *Guard) notify(inv *Invocation, err *core.ConstraintsViolatedError) {
	g.mu.RLock()
	listeners := append([]ViolationListener(nil), g.listeners...)
	if checkTarget(inv.Target) == nil {
		listeners = append(listeners, g.targetListeners[inv.Target]...)
		if probe, ok := g.probes[inv.Target]; ok {
			listeners = append(listeners, probe)
		}
	}
	g.mu.RUnlock()

	for _, l := range listeners {
		l.OnViolation(inv, err)
	}
}
