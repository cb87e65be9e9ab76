package metrics

import (
	"context"
	"errors"
	"reflect"
	"time"

	"katydid-common-contract/pkg/guard"
	"katydid-common-contract/pkg/validator"
	"katydid-common-contract/pkg/validator/core"
)

// ============================================================================
// 验证器监听器
// ============================================================================

// ValidationListener 把每次校验的结果写入指标，实现 validator.Listener
type ValidationListener struct {
	registry *Registry
}

var _ validator.Listener = (*ValidationListener)(nil)

// NewValidationListener 创建监听器，r 为 nil 时使用 DefaultRegistry
func NewValidationListener(r *Registry) *ValidationListener {
	if r == nil {
		r = DefaultRegistry()
	}
	return &ValidationListener{registry: r}
}

// BeforeValidate 无操作
func (l *ValidationListener) BeforeValidate(context.Context, any) {}

// AfterValidate 记录结果、耗时和每个违反（含级联违反）的校验名称
func (l *ValidationListener) AfterValidate(_ context.Context, obj any, violations []*core.Violation, err error, elapsed time.Duration) {
	outcome := OutcomeValid
	switch {
	case err != nil:
		outcome = OutcomeError
	case len(violations) > 0:
		outcome = OutcomeInvalid
	}
	l.registry.RecordValidation(typeLabel(obj), outcome, elapsed)
	for _, v := range violations {
		for _, leaf := range v.Flatten() {
			l.registry.RecordViolation(leaf.CheckName)
		}
	}
}

// InstrumentTypeCache 导出验证器类型缓存的大小
func (r *Registry) InstrumentTypeCache(v *validator.Validator) error {
	return r.RegisterGaugeFunc("contract_type_cache_entries", "Number of resolved types in the validator cache", func() float64 {
		return float64(v.TypeCacheStats().Cached)
	})
}

func typeLabel(obj any) string {
	t := reflect.TypeOf(obj)
	if t == nil {
		return "nil"
	}
	return core.TypeName(t)
}

// ============================================================================
// Guard 拦截器
// ============================================================================

// GuardInterceptor 记录被守护调用的结果与耗时
func GuardInterceptor(r *Registry) guard.Interceptor {
	if r == nil {
		r = DefaultRegistry()
	}
	return guard.InterceptorFunc(func(inv *guard.Invocation, next func() error) error {
		start := time.Now()
		err := next()

		outcome := OutcomeOK
		switch {
		case inv.Probed:
			outcome = OutcomeProbed
		case errors.Is(err, core.ErrConstraintsViolated):
			outcome = OutcomeRejected
		case err != nil:
			outcome = OutcomeError
		}
		r.RecordGuardCall(inv.Method.String(), outcome, time.Since(start))
		return err
	})
}
