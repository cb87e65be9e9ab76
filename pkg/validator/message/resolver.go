package message

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
)

// 内置变量
const (
	VarContext      = "context"
	VarInvalidValue = "invalidValue"
)

// DefaultLocale 默认语言
const DefaultLocale = "en"

// keyPrefix 默认消息键前缀，未注册的此类键使用通用消息
const keyPrefix = "katydid.contract."

// genericKey 通用违反消息
const genericKey = keyPrefix + "generic.violated"

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z][A-Za-z0-9_]*)\}`)

// Resolver 消息解析器
// 职责：按语言查找消息模板并渲染变量
//
// 模板使用命名变量（如 "{context} must be at least {min}"），
// 注册时转换为 universal-translator 的位置参数（{0}, {1}），渲染时按记录的变量顺序传参
// 线程安全：所有方法可并发调用
type Resolver struct {
	uni           *ut.UniversalTranslator
	defaultLocale string

	mu sync.RWMutex
	// params 语言 -> 消息键 -> 位置参数对应的变量名
	params map[string]map[string][]string
}

// NewResolver 创建包含 en、zh 内置消息的解析器
// defaultLocale 为空或不支持时使用 DefaultLocale
func NewResolver(defaultLocale string, extra ...locales.Translator) *Resolver {
	fallback := en.New()
	supported := append([]locales.Translator{en.New(), zh.New()}, extra...)

	r := &Resolver{
		uni:           ut.New(fallback, supported...),
		defaultLocale: DefaultLocale,
		params:        make(map[string]map[string][]string),
	}
	if _, found := r.uni.GetTranslator(defaultLocale); found && defaultLocale != "" {
		r.defaultLocale = defaultLocale
	}

	for locale, bundle := range builtinBundles {
		for key, template := range bundle {
			// 内置模板在测试中保证合法
			_ = r.Add(locale, key, template)
		}
	}
	return r
}

// DefaultLocale 返回默认语言
func (r *Resolver) DefaultLocale() string {
	return r.defaultLocale
}

// Add 注册（或覆盖）消息模板
func (r *Resolver) Add(locale, key, template string) error {
	trans, found := r.uni.GetTranslator(locale)
	if !found || trans.Locale() != locale {
		return fmt.Errorf("unsupported locale %q", locale)
	}

	text, names := positionalize(template)
	if err := trans.Add(key, text, true); err != nil {
		return fmt.Errorf("message %q: %w", key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.params[locale] == nil {
		r.params[locale] = make(map[string][]string)
	}
	r.params[locale][key] = names
	return nil
}

// Has 是否注册了指定语言的消息键
func (r *Resolver) Has(locale, key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.params[locale][key]
	return ok
}

// Render 渲染消息
// 查找顺序：指定语言 -> 默认语言；都找不到时把 key 当作字面模板渲染
func (r *Resolver) Render(locale, key string, vars map[string]string) string {
	if locale == "" {
		locale = r.defaultLocale
	}
	for _, l := range []string{locale, r.defaultLocale} {
		if msg, ok := r.translate(l, key, vars); ok {
			return msg
		}
	}
	if strings.HasPrefix(key, keyPrefix) {
		if msg, ok := r.translate(locale, genericKey, vars); ok {
			return msg
		}
		if msg, ok := r.translate(r.defaultLocale, genericKey, vars); ok {
			return msg
		}
	}
	return substitute(key, vars)
}

func (r *Resolver) translate(locale, key string, vars map[string]string) (string, bool) {
	r.mu.RLock()
	names, ok := r.params[locale][key]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}
	trans, found := r.uni.GetTranslator(locale)
	if !found {
		return "", false
	}
	values := make([]string, len(names))
	for i, name := range names {
		values[i] = lookup(vars, name)
	}
	msg, err := trans.T(key, values...)
	if err != nil {
		return "", false
	}
	return msg, true
}

// positionalize 把命名占位符按出现顺序替换为 {0}, {1}...
// 同名变量多次出现时各自占用一个位置
func positionalize(template string) (string, []string) {
	var names []string
	text := placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		names = append(names, m[1:len(m)-1])
		return "{" + strconv.Itoa(len(names)-1) + "}"
	})
	return text, names
}

// substitute 直接替换命名占位符，未知变量保持原样
func substitute(template string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

func lookup(vars map[string]string, name string) string {
	if v, ok := vars[name]; ok {
		return v
	}
	return "{" + name + "}"
}
