package guard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katydid-common-contract/pkg/validator"
	"katydid-common-contract/pkg/validator/check"
	"katydid-common-contract/pkg/validator/core"
)

// ============================================================================
// 测试模型
// ============================================================================

type account struct {
	Owner   string `check:"notblank"`
	Balance int    `check:"notnegative"`
}

var deposit = NewMethod((*account)(nil), "Deposit", "amount").
	Param(0, check.NewMin(1, true))

var withdraw = NewMethod((*account)(nil), "Withdraw", "amount").
	Param(0, check.NewMin(1, true)).
	Pre("amount <= balance", func(inv *Invocation) bool {
		return inv.Arg(0).(int) <= inv.Target.(*account).Balance
	}).
	Old(func(inv *Invocation) any { return inv.Target.(*account).Balance }).
	Post("balance decreased by amount", func(inv *Invocation) bool {
		return inv.Target.(*account).Balance == inv.Old.(int)-inv.Arg(0).(int)
	})

var describe = NewMethod((*account)(nil), "Describe").
	Returns(check.NewNotBlank())

var newAccount = NewConstructor((*account)(nil), "NewAccount", "owner", "balance").
	Param(0, check.NewNotBlank())

func (a *account) Deposit(g *Guard, amount int) error {
	_, err := g.Invoke(context.Background(), a, deposit, []any{amount}, func() (any, error) {
		a.Balance += amount
		return nil, nil
	})
	return err
}

// Withdraw broken 为 true 时故意不扣减余额，用于验证后置条件
func (a *account) Withdraw(g *Guard, amount int, broken bool) error {
	_, err := g.Invoke(context.Background(), a, withdraw, []any{amount}, func() (any, error) {
		if !broken {
			a.Balance -= amount
		}
		return nil, nil
	})
	return err
}

func (a *account) Describe(g *Guard) (string, error) {
	return Call(context.Background(), g, a, describe, nil, func() (string, error) {
		return a.Owner, nil
	})
}

func NewAccount(g *Guard, owner string, balance int) (*account, error) {
	return Construct(context.Background(), g, newAccount, []any{owner, balance}, func() (*account, error) {
		return &account{Owner: owner, Balance: balance}, nil
	})
}

func newGuard(opts ...Option) *Guard {
	return New(validator.MustNew(), opts...)
}

func violationsOf(t *testing.T, err error) []*core.Violation {
	t.Helper()
	var cve *core.ConstraintsViolatedError
	require.True(t, errors.As(err, &cve), "期望约束违反错误，实际 %v", err)
	return cve.Violations
}

// ============================================================================
// 测试用例
// ============================================================================

func TestParameters(t *testing.T) {
	g := newGuard()
	acc := &account{Owner: "alice", Balance: 10}

	require.NoError(t, acc.Deposit(g, 5))
	assert.Equal(t, 15, acc.Balance)

	err := acc.Deposit(g, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrConstraintsViolated))
	assert.Equal(t, 15, acc.Balance, "违反参数约束时方法不执行")

	vs := violationsOf(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, "min", vs[0].CheckName)
	assert.Equal(t, "account.Deposit() parameter 0 (amount)", vs[0].Context.String())
	assert.Equal(t, "account.Deposit() parameter 0 (amount) must not be less than 1", vs[0].Message)
	assert.Same(t, acc, vs[0].ValidatedObject)
}

func TestConfiguredParameterChecks(t *testing.T) {
	v := validator.MustNew()
	require.NoError(t, v.AddParameterChecks(account{}, "Deposit", 0, check.NewMax(1000, true)))
	g := New(v)
	acc := &account{Owner: "alice"}

	err := acc.Deposit(g, 5000)
	vs := violationsOf(t, err)
	assert.Equal(t, "max", vs[0].CheckName, "配置器声明的参数约束与方法契约合并")
	require.NoError(t, acc.Deposit(g, 500))
}

func TestPreAndPostConditions(t *testing.T) {
	g := newGuard()
	acc := &account{Owner: "alice", Balance: 10}

	t.Run("前置条件不满足", func(t *testing.T) {
		err := acc.Withdraw(g, 50, false)
		vs := violationsOf(t, err)
		require.Len(t, vs, 1)
		assert.Equal(t, NamePre, vs[0].CheckName)
		assert.Equal(t, "account.Withdraw() entry: precondition amount <= balance violated", vs[0].Message)
		assert.Equal(t, "account.Withdraw(50)", vs[0].InvalidValue, "违反中只保留调用的字符串形式")
		assert.Equal(t, "account.Withdraw(50)", vs[0].MessageVariables["invalidValue"])
		assert.Equal(t, 10, acc.Balance)
	})

	t.Run("后置条件使用执行前快照", func(t *testing.T) {
		require.NoError(t, acc.Withdraw(g, 4, false))
		assert.Equal(t, 6, acc.Balance)
	})

	t.Run("后置条件不满足", func(t *testing.T) {
		err := acc.Withdraw(g, 1, true)
		vs := violationsOf(t, err)
		require.Len(t, vs, 1)
		assert.Equal(t, NamePost, vs[0].CheckName)
		assert.Equal(t, "account.Withdraw() exit", vs[0].Context.String())
		assert.Equal(t, "katydid.contract.post", vs[0].ErrorCode)
	})

	t.Run("关闭后置条件", func(t *testing.T) {
		g.SetPostConditionsEnabled(false)
		defer g.SetPostConditionsEnabled(true)
		assert.NoError(t, acc.Withdraw(g, 1, true))
	})
}

func TestConditionOptions(t *testing.T) {
	g := newGuard()
	m := NewMethod((*account)(nil), "Close").
		Pre("balance is zero", func(inv *Invocation) bool {
			return inv.Target.(*account).Balance == 0
		}, WithMessage("{context}: cannot close a funded account"), WithErrorCode("ACCOUNT_FUNDED"), WithSeverity(2))

	_, err := g.Invoke(context.Background(), &account{Owner: "a", Balance: 1}, m, nil, func() (any, error) {
		return nil, nil
	})
	vs := violationsOf(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, "account.Close() entry: cannot close a funded account", vs[0].Message)
	assert.Equal(t, "ACCOUNT_FUNDED", vs[0].ErrorCode)
	assert.Equal(t, 2, vs[0].Severity)
}

func TestReturnValue(t *testing.T) {
	g := newGuard()

	desc, err := (&account{Owner: "alice"}).Describe(g)
	require.NoError(t, err)
	assert.Equal(t, "alice", desc)

	// 空 Owner 先违反不变式，关闭不变式后检查返回值
	g.SetInvariantsEnabled(false)
	desc, err = (&account{}).Describe(g)
	vs := violationsOf(t, err)
	assert.Equal(t, "account.Describe()", vs[0].Context.String())
	assert.Equal(t, "", desc)
}

func TestInvariants(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(g *Guard)
		acc     *account
		amount  int
		wantErr bool
	}{
		{name: "调用前不变式不满足", acc: &account{Balance: 10}, amount: 1, wantErr: true},
		{name: "全局关闭不变式", setup: func(g *Guard) { g.SetInvariantsEnabled(false) }, acc: &account{Balance: 10}, amount: 1},
		{name: "按类型关闭不变式", setup: func(g *Guard) { g.SetInvariantsEnabledFor((*account)(nil), false) }, acc: &account{}, amount: 1},
		{name: "合法调用", acc: &account{Owner: "bob", Balance: 1}, amount: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGuard()
			if tt.setup != nil {
				tt.setup(g)
			}
			err := tt.acc.Deposit(g, tt.amount)
			if tt.wantErr {
				vs := violationsOf(t, err)
				assert.Equal(t, "account.Owner", vs[0].Context.String())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInvariantsAfterCall(t *testing.T) {
	g := newGuard(WithTranslator(StandardTranslator{}))
	drain := NewMethod((*account)(nil), "Drain")
	acc := &account{Owner: "alice", Balance: 1}

	_, err := g.Invoke(context.Background(), acc, drain, nil, func() (any, error) {
		acc.Balance = -5
		return nil, nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIllegalState))
	assert.Equal(t, "notnegative", violationsOf(t, err)[0].CheckName)

	acc.Balance = 1
	_, err = g.Invoke(context.Background(), acc, NewMethod((*account)(nil), "Drain").CheckInvariants(false), nil, func() (any, error) {
		acc.Balance = -5
		return nil, nil
	})
	assert.NoError(t, err, "方法级关闭不变式")
}

func TestConstruct(t *testing.T) {
	g := newGuard(WithTranslator(StandardTranslator{}))

	acc, err := NewAccount(g, "alice", 3)
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Owner)

	acc, err = NewAccount(g, "", 3)
	require.Error(t, err)
	assert.Nil(t, acc)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.Equal(t, "NewAccount() parameter 0 (owner)", violationsOf(t, err)[0].Context.String())

	_, err = NewAccount(g, "bob", -1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIllegalState), "构造完成后校验新对象的不变式")
}

func TestStandardTranslator(t *testing.T) {
	g := newGuard(WithTranslator(StandardTranslator{}))
	err := (&account{Owner: "a"}).Deposit(g, -1)

	var ce *ContractError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrInvalidArgument, ce.Kind)
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.True(t, errors.Is(err, core.ErrConstraintsViolated))
	assert.False(t, errors.Is(err, ErrIllegalState))
	assert.Len(t, violationsOf(t, err), 1)
	assert.True(t, strings.HasPrefix(err.Error(), "invalid argument: constraints violated"))

	g.SetTranslator(nil)
	err = (&account{Owner: "a"}).Deposit(g, -1)
	var cve *core.ConstraintsViolatedError
	assert.True(t, errors.As(err, &cve))
	assert.False(t, errors.Is(err, ErrInvalidArgument))
}

func TestActiveAndFeatureToggles(t *testing.T) {
	g := newGuard()
	acc := &account{Owner: "alice"}

	g.SetActive(false)
	require.NoError(t, acc.Deposit(g, -3))
	assert.Equal(t, -3, acc.Balance, "Guard 关闭时直接执行")

	g.SetActive(true)
	g.SetInvariantsEnabled(false)
	g.SetPreConditionsEnabled(false)
	require.NoError(t, acc.Deposit(g, -3))
	assert.Equal(t, -6, acc.Balance)
	assert.False(t, g.IsPreConditionsEnabled())

	g = newGuard(WithFeatures(false, false, true))
	assert.False(t, g.IsInvariantsEnabled())
	assert.True(t, g.IsPostConditionsEnabled())
}

func TestProbeMode(t *testing.T) {
	g := newGuard()
	acc := &account{Owner: "alice", Balance: 10}

	probe, err := g.EnableProbeMode(acc)
	require.NoError(t, err)
	assert.True(t, g.IsProbeModeEnabled(acc))
	again, _ := g.EnableProbeMode(acc)
	assert.Same(t, probe, again)

	require.NoError(t, acc.Deposit(g, -1), "探测模式下违反只记录")
	require.NoError(t, acc.Withdraw(g, 100, false))
	require.NoError(t, acc.Deposit(g, 5))
	assert.Equal(t, 10, acc.Balance, "探测模式下方法不执行")

	desc, err := acc.Describe(g)
	require.NoError(t, err)
	assert.Equal(t, "", desc, "探测模式返回零值")

	assert.Equal(t, []string{"min", NamePre}, []string{probe.Violations()[0].CheckName, probe.Violations()[1].CheckName})
	assert.Equal(t, 4, probe.Probed())

	other := &account{Owner: "bob"}
	require.NoError(t, other.Deposit(g, 5))
	assert.Equal(t, 5, other.Balance, "探测模式只作用于指定对象")

	assert.Same(t, probe, g.DisableProbeMode(acc))
	assert.False(t, g.IsProbeModeEnabled(acc))
	assert.Error(t, acc.Deposit(g, -1))
	assert.Len(t, probe.Violations(), 2)

	probe.Clear()
	assert.Empty(t, probe.Violations())

	_, err = g.EnableProbeMode(account{})
	assert.ErrorIs(t, err, ErrInvalidTarget)
	assert.Nil(t, g.DisableProbeMode(nil))
}

type countingListener struct {
	mu    sync.Mutex
	count int
	last  string
}

func (l *countingListener) OnViolation(inv *Invocation, err *core.ConstraintsViolatedError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	l.last = inv.Method.Name()
}

func TestViolationListeners(t *testing.T) {
	global := &countingListener{}
	g := newGuard(WithListeners(global))
	acc := &account{Owner: "alice"}
	other := &account{Owner: "bob"}

	perTarget := &countingListener{}
	require.NoError(t, g.AddTargetListener(acc, perTarget))
	assert.ErrorIs(t, g.AddTargetListener(account{}, perTarget), ErrInvalidTarget)

	var funcCalls int
	g.AddListener(ViolationListenerFunc(func(*Invocation, *core.ConstraintsViolatedError) { funcCalls++ }))

	_ = acc.Deposit(g, -1)
	_ = other.Deposit(g, -1)
	_ = other.Deposit(g, 1)

	assert.Equal(t, 2, global.count)
	assert.Equal(t, "Deposit", global.last)
	assert.Equal(t, 1, perTarget.count, "对象级监听器只接收该对象的违反")
	assert.Equal(t, 2, funcCalls)

	assert.True(t, g.RemoveTargetListener(acc, perTarget))
	assert.True(t, g.RemoveListener(global))
	assert.False(t, g.RemoveListener(global))
	_ = acc.Deposit(g, -1)
	assert.Equal(t, 2, global.count)
	assert.Equal(t, 1, perTarget.count)
}

func TestInterceptorChain(t *testing.T) {
	var order []string
	record := func(name string) Interceptor {
		return InterceptorFunc(func(inv *Invocation, next func() error) error {
			order = append(order, name+":before")
			err := next()
			order = append(order, name+":after")
			return err
		})
	}

	g := newGuard(WithInterceptors(record("outer"), record("inner")))
	g.AddInterceptor(NewLoggingInterceptor(nil))

	acc := &account{Owner: "alice"}
	require.NoError(t, acc.Deposit(g, 1))
	assert.Equal(t, []string{"outer:before", "inner:before", "inner:after", "outer:after"}, order)

	order = nil
	err := acc.Deposit(g, -1)
	require.Error(t, err)
	assert.Len(t, order, 4, "违反时拦截器同样执行")

	chain := NewInterceptorChain()
	assert.Equal(t, 0, chain.Len())
	called := false
	require.NoError(t, chain.Execute(&Invocation{Method: deposit}, func() error {
		called = true
		return nil
	}))
	assert.True(t, called)
}

func TestInvocationString(t *testing.T) {
	inv := &Invocation{Method: withdraw, Args: []any{5}}
	assert.Equal(t, "account.Withdraw(5)", inv.String())
	assert.Nil(t, inv.Arg(3))
	assert.Equal(t, "NewAccount()", newAccount.String())
	assert.True(t, newAccount.IsConstructor())
}

func TestMethodErrorPassthrough(t *testing.T) {
	g := newGuard()
	boom := errors.New("boom")
	acc := &account{Owner: "alice", Balance: 5}

	_, err := g.Invoke(context.Background(), acc, withdraw, []any{1}, func() (any, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom, "方法自身的错误原样返回，不检查后置条件")
}
