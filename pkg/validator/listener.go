package validator

import (
	"context"
	"reflect"
	"time"

	"go.uber.org/zap"

	"katydid-common-contract/pkg/logger"
	"katydid-common-contract/pkg/validator/core"
)

// Listener 校验监听器，用于日志、指标等插件
// 只在 Validate/ValidateContext 等顶层调用前后触发，嵌套级联不触发
type Listener interface {
	BeforeValidate(ctx context.Context, obj any)
	AfterValidate(ctx context.Context, obj any, violations []*core.Violation, err error, elapsed time.Duration)
}

// AddListener 注册监听器
func (v *Validator) AddListener(l Listener) {
	v.listenerMu.Lock()
	defer v.listenerMu.Unlock()
	v.listeners = append(v.listeners, l)
}

// RemoveListener 移除监听器
func (v *Validator) RemoveListener(l Listener) bool {
	v.listenerMu.Lock()
	defer v.listenerMu.Unlock()
	for i, existing := range v.listeners {
		if existing == l {
			v.listeners = append(v.listeners[:i:i], v.listeners[i+1:]...)
			return true
		}
	}
	return false
}

func (v *Validator) currentListeners() []Listener {
	v.listenerMu.RLock()
	defer v.listenerMu.RUnlock()
	return v.listeners
}

// LoggingListener 日志插件
// 成功的校验记录为 debug，存在违反记录为 info，校验失败记录为 error
type LoggingListener struct {
	log *zap.Logger
}

// NewLoggingListener 创建日志插件，l 为 nil 时使用 Validator 组件日志器
func NewLoggingListener(l *zap.Logger) *LoggingListener {
	if l == nil {
		l = logger.For("validator")
	}
	return &LoggingListener{log: l}
}

func (p *LoggingListener) BeforeValidate(_ context.Context, obj any) {
	p.log.Debug("validation started", zap.String("type", typeName(obj)))
}

func (p *LoggingListener) AfterValidate(_ context.Context, obj any, violations []*core.Violation, err error, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("type", typeName(obj)),
		zap.Int("violations", len(violations)),
		zap.Duration("elapsed", elapsed),
	}
	switch {
	case err != nil:
		p.log.Error("validation failed", append(fields, zap.Error(err))...)
	case len(violations) > 0:
		p.log.Info("constraints violated", append(fields, zap.String("first", violations[0].String()))...)
	default:
		p.log.Debug("validation passed", fields...)
	}
}

func typeName(obj any) string {
	if obj == nil {
		return "<nil>"
	}
	return core.TypeName(reflect.TypeOf(obj))
}
