package validator

import (
	"katydid-common-contract/pkg/validator/check"
	"katydid-common-contract/pkg/validator/config"
	"katydid-common-contract/pkg/validator/message"
)

// 验证器配置常量
const (
	// DefaultMaxDepth 默认最大嵌套校验深度，防止病态嵌套导致栈溢出
	DefaultMaxDepth = 100
)

type options struct {
	registry      *check.Registry
	configurers   []config.Configurer
	extra         []config.Configurer
	resolver      *message.Resolver
	locale        string
	cascadeNested bool
	maxDepth      int
	listeners     []Listener
	profiles      *profileState
}

// Option 验证器选项
type Option func(*options)

// WithCheckRegistry 使用自定义校验注册表（影响默认配置器）
func WithCheckRegistry(r *check.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithConfigurers 替换默认的配置器链（标签、validate 标签、ContractRules）
// 通过 AddChecks 等方法添加的约束总是位于链尾
func WithConfigurers(configurers ...config.Configurer) Option {
	return func(o *options) {
		o.configurers = configurers
	}
}

// AppendConfigurers 在默认配置器链之后追加配置器（如 FileConfigurer）
func AppendConfigurers(configurers ...config.Configurer) Option {
	return func(o *options) {
		o.extra = append(o.extra, configurers...)
	}
}

// WithMessageResolver 使用自定义消息解析器
func WithMessageResolver(r *message.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

// WithLocale 默认消息语言
func WithLocale(locale string) Option {
	return func(o *options) {
		o.locale = locale
	}
}

// WithCascadeNested 嵌套结构体字段在没有 valid 声明时也级联校验
func WithCascadeNested(enabled bool) Option {
	return func(o *options) {
		o.cascadeNested = enabled
	}
}

// WithMaxDepth 最大嵌套深度，小于等于 0 时使用 DefaultMaxDepth
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		o.maxDepth = depth
	}
}

// WithListeners 注册校验监听器
func WithListeners(listeners ...Listener) Option {
	return func(o *options) {
		o.listeners = append(o.listeners, listeners...)
	}
}

// WithProfiles 初始 profile 状态：enabledByDefault 为 false 时只有 enabled 中的 profile 生效
func WithProfiles(enabledByDefault bool, enabled []string, disabled []string) Option {
	return func(o *options) {
		o.profiles = newProfileState(enabledByDefault)
		for _, p := range enabled {
			o.profiles.enable(p)
		}
		for _, p := range disabled {
			o.profiles.disable(p)
		}
	}
}

func defaultConfigurers(registry *check.Registry) []config.Configurer {
	return []config.Configurer{
		config.NewTagConfigurer(registry),
		config.NewPlaygroundTagConfigurer(),
		config.NewRuleConfigurer(registry),
	}
}
