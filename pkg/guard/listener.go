package guard

import (
	"sync"

	"katydid-common-contract/pkg/validator/core"
)

// ViolationListener 在调用因违反契约被拒绝（或在探测模式下被记录）时得到通知
type ViolationListener interface {
	OnViolation(inv *Invocation, err *core.ConstraintsViolatedError)
}

// ViolationListenerFunc 函数形式的监听器
type ViolationListenerFunc func(inv *Invocation, err *core.ConstraintsViolatedError)

// OnViolation 实现 ViolationListener
func (f ViolationListenerFunc) OnViolation(inv *Invocation, err *core.ConstraintsViolatedError) {
	f(inv, err)
}

// ProbeModeListener 收集探测模式下的违反
// 探测模式下被守护的调用不会执行，只做参数和前置条件检查
type ProbeModeListener struct {
	target any

	mu         sync.Mutex
	violations []*core.Violation
	probed     int
}

func newProbeModeListener(target any) *ProbeModeListener {
	return &ProbeModeListener{target: target}
}

// OnViolation 记录违反
func (l *ProbeModeListener) OnViolation(_ *Invocation, err *core.ConstraintsViolatedError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.violations = append(l.violations, err.Violations...)
}

func (l *ProbeModeListener) probe() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.probed++
}

// Target 被探测的对象
func (l *ProbeModeListener) Target() any {
	return l.target
}

// Violations 返回已记录的违反
func (l *ProbeModeListener) Violations() []*core.Violation {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*core.Violation(nil), l.violations...)
}

// Probed 被拦截（未执行）的调用次数
func (l *ProbeModeListener) Probed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.probed
}

// Clear 清空记录
func (l *ProbeModeListener) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.violations = nil
	l.probed = 0
}
