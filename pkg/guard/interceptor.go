package guard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"katydid-common-contract/pkg/logger"
)

// Invocation 一次被守护的调用
type Invocation struct {
	Ctx    context.Context
	Target any
	Method *Method
	Args   []any
	// Result 方法返回值，执行前为 nil
	Result any
	// Old 执行前由 Method.Old 保存的快照
	Old any
	// Err 方法本身返回的错误
	Err error
	// Probed 探测模式下调用未被执行
	Probed bool
}

// Arg 返回第 i 个参数，越界时返回 nil
func (inv *Invocation) Arg(i int) any {
	if i < 0 || i >= len(inv.Args) {
		return nil
	}
	return inv.Args[i]
}

func (inv *Invocation) String() string {
	args := make([]string, len(inv.Args))
	for i, a := range inv.Args {
		args[i] = fmt.Sprintf("%v", a)
	}
	return strings.TrimSuffix(inv.Method.String(), "()") + "(" + strings.Join(args, ", ") + ")"
}

// ============================================================================
// 拦截器链
// ============================================================================

// Interceptor 包裹每次被守护的调用（日志、指标等）
type Interceptor interface {
	Intercept(inv *Invocation, next func() error) error
}

// InterceptorFunc 拦截器函数类型
type InterceptorFunc func(inv *Invocation, next func() error) error

// Intercept 实现拦截器接口
func (f InterceptorFunc) Intercept(inv *Invocation, next func() error) error {
	return f(inv, next)
}

// InterceptorChain 拦截器链
// 设计模式：责任链模式
type InterceptorChain struct {
	mu           sync.RWMutex
	interceptors []Interceptor
}

// NewInterceptorChain 创建拦截器链
func NewInterceptorChain(interceptors ...Interceptor) *InterceptorChain {
	return &InterceptorChain{interceptors: append([]Interceptor(nil), interceptors...)}
}

// Add 添加拦截器
func (c *InterceptorChain) Add(interceptor Interceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interceptors = append(c.interceptors, interceptor)
}

// Len 拦截器数量
func (c *InterceptorChain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.interceptors)
}

// Execute 按注册顺序执行拦截器，最内层执行 call
func (c *InterceptorChain) Execute(inv *Invocation, call func() error) error {
	c.mu.RLock()
	interceptors := c.interceptors
	c.mu.RUnlock()
	if len(interceptors) == 0 {
		return call()
	}

	index := 0
	var next func() error
	next = func() error {
		if index >= len(interceptors) {
			return call()
		}
		current := interceptors[index]
		index++
		return current.Intercept(inv, next)
	}
	return next()
}

// Clear 清空拦截器链
func (c *InterceptorChain) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interceptors = nil
}

// ============================================================================
// 预定义拦截器
// ============================================================================

// NewLoggingInterceptor 记录每次被守护调用的结果和耗时，l 为 nil 时使用 guard 组件日志
func NewLoggingInterceptor(l *zap.Logger) Interceptor {
	if l == nil {
		l = logger.For("guard")
	}
	return InterceptorFunc(func(inv *Invocation, next func() error) error {
		start := time.Now()
		err := next()
		fields := []zap.Field{
			zap.String("method", inv.Method.String()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Bool("probed", inv.Probed),
		}
		if err != nil {
			l.Debug("guarded call failed", append(fields, zap.Error(err))...)
		} else {
			l.Debug("guarded call completed", fields...)
		}
		return err
	})
}
