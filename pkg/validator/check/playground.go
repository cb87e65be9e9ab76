package check

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"katydid-common-contract/pkg/validator/core"
)

const (
	NamePlayground = "playground"
	NameEmail      = "email"
	NameURL        = "url"
)

var (
	// playgroundValidate 共享的 go-playground 验证器实例
	// go-playground/validator 的 Validate 是线程安全的，全局复用即可
	playgroundValidate *validator.Validate
	playgroundOnce     sync.Once
)

// Playground 返回共享的 go-playground 验证器
// 可以通过它注册自定义标签（RegisterValidation），随后在 playground(...) 中使用
func Playground() *validator.Validate {
	playgroundOnce.Do(func() {
		playgroundValidate = validator.New()
	})
	return playgroundValidate
}

// PlaygroundCheck 把 go-playground/validator 的标签表达式作为约束
// 例如 playground('required,min=3') 或 playground('oneof=red green')
type PlaygroundCheck struct {
	core.Settings
	Tag string
}

// NewPlaygroundCheck 创建标签校验，标签中的未知规则在创建时报错
func NewPlaygroundCheck(tag string) (*PlaygroundCheck, error) {
	return newPlaygroundCheck(NamePlayground, tag)
}

func newPlaygroundCheck(name, tag string) (*PlaygroundCheck, error) {
	if tag == "" {
		return nil, core.InvalidConfiguration(name, "empty playground tag")
	}
	if err := probeTag(tag); err != nil {
		return nil, core.InvalidConfiguration(name, "invalid playground tag %q: %v", tag, err)
	}
	return &PlaygroundCheck{Settings: core.NewSettings(name), Tag: tag}, nil
}

func (c *PlaygroundCheck) IsSatisfied(_ context.Context, _, value any, _ core.Context) (ok bool, err error) {
	defer func() {
		// 标签与值类型不匹配时底层验证器会 panic
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("playground tag %q: %v", c.Tag, r)
		}
	}()

	verr := Playground().Var(value, c.Tag)
	if verr == nil {
		return true, nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(verr, &invalid) {
		return false, verr
	}
	var violations validator.ValidationErrors
	if errors.As(verr, &violations) {
		return false, nil
	}
	return false, verr
}

func (c *PlaygroundCheck) MessageVariables() map[string]string {
	return map[string]string{"tag": c.Tag}
}

// probeTag 用空字符串试运行标签，只把未注册规则导致的 panic 视为配置错误
// dive 等依赖值类型的规则对字符串会 panic，这类情况留到真正校验时处理
func probeTag(tag string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if msg := fmt.Sprint(r); strings.Contains(msg, "Undefined validation function") {
				err = errors.New(msg)
			}
		}
	}()
	_ = Playground().Var("", tag)
	return nil
}

func buildPlayground(args Args) (core.Check, error) {
	tag, err := args.Require(NamePlayground, "value", 0)
	if err != nil {
		return nil, err
	}
	return NewPlaygroundCheck(tag)
}

// NewEmail 邮箱格式校验，nil 与空字符串视为满足
func NewEmail() *PlaygroundCheck {
	c, _ := newPlaygroundCheck(NameEmail, "omitempty,email")
	return c
}

// NewURL URL 格式校验，nil 与空字符串视为满足
func NewURL() *PlaygroundCheck {
	c, _ := newPlaygroundCheck(NameURL, "omitempty,url")
	return c
}
