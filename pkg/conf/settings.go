package conf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"katydid-common-contract/pkg/logger"
	"katydid-common-contract/pkg/validator"
)

// EnvPrefix 环境变量前缀，例如 KATYDID_CONTRACT_VALIDATOR_LOCALE
const EnvPrefix = "KATYDID_CONTRACT"

// 错误转换器名称
const (
	TranslatorDefault  = "default"
	TranslatorStandard = "standard"
)

// Settings 校验框架的全部配置
type Settings struct {
	Validator ValidatorSettings `mapstructure:"validator" yaml:"validator"`
	Guard     GuardSettings     `mapstructure:"guard" yaml:"guard"`
	Logging   LoggingSettings   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsSettings   `mapstructure:"metrics" yaml:"metrics"`
}

// ValidatorSettings 验证器配置
type ValidatorSettings struct {
	Locale        string `mapstructure:"locale" yaml:"locale"`
	MaxDepth      int    `mapstructure:"max_depth" yaml:"max_depth"`
	CascadeNested bool   `mapstructure:"cascade_nested" yaml:"cascade_nested"`
	// TagName 约束标签名，默认 check
	TagName string `mapstructure:"tag_name" yaml:"tag_name"`
	// PlaygroundTags 是否读取 validate 标签
	PlaygroundTags bool `mapstructure:"playground_tags" yaml:"playground_tags"`
	// RuleProviders 是否读取 ContractRules 方法
	RuleProviders bool `mapstructure:"rule_providers" yaml:"rule_providers"`
	// ConstraintFiles YAML 约束文件，按顺序加载
	ConstraintFiles []string        `mapstructure:"constraint_files" yaml:"constraint_files"`
	Profiles        ProfileSettings `mapstructure:"profiles" yaml:"profiles"`
}

// ProfileSettings 初始 profile 状态
type ProfileSettings struct {
	EnabledByDefault bool     `mapstructure:"enabled_by_default" yaml:"enabled_by_default"`
	Enabled          []string `mapstructure:"enabled" yaml:"enabled"`
	Disabled         []string `mapstructure:"disabled" yaml:"disabled"`
}

// GuardSettings Guard 配置
type GuardSettings struct {
	Active         bool   `mapstructure:"active" yaml:"active"`
	Invariants     bool   `mapstructure:"invariants" yaml:"invariants"`
	PreConditions  bool   `mapstructure:"pre_conditions" yaml:"pre_conditions"`
	PostConditions bool   `mapstructure:"post_conditions" yaml:"post_conditions"`
	Translator     string `mapstructure:"translator" yaml:"translator"`
	// LogCalls 为每次被守护的调用记录调试日志
	LogCalls bool `mapstructure:"log_calls" yaml:"log_calls"`
}

// LoggingSettings 日志配置
type LoggingSettings struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// MetricsSettings 指标配置
type MetricsSettings struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("validator.locale", "en")
	v.SetDefault("validator.max_depth", validator.DefaultMaxDepth)
	v.SetDefault("validator.cascade_nested", false)
	v.SetDefault("validator.tag_name", "check")
	v.SetDefault("validator.playground_tags", true)
	v.SetDefault("validator.rule_providers", true)
	v.SetDefault("validator.constraint_files", []string{})
	v.SetDefault("validator.profiles.enabled_by_default", true)
	v.SetDefault("validator.profiles.enabled", []string{})
	v.SetDefault("validator.profiles.disabled", []string{})

	v.SetDefault("guard.active", true)
	v.SetDefault("guard.invariants", true)
	v.SetDefault("guard.pre_conditions", true)
	v.SetDefault("guard.post_conditions", true)
	v.SetDefault("guard.translator", TranslatorDefault)
	v.SetDefault("guard.log_calls", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", string(logger.FormatConsole))
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", false)

	v.SetDefault("metrics.enabled", false)
}

// NewViper 创建带默认值和环境变量绑定的 viper 实例
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default 返回默认配置（包含环境变量覆盖）
func Default() *Settings {
	s, err := FromViper(NewViper())
	if err != nil {
		// 默认值本身不会解析失败
		panic(err)
	}
	return s
}

// Load 从配置文件加载，path 为空时只使用默认值和环境变量
func Load(path string) (*Settings, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper 从已有的 viper 实例解析配置
func FromViper(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate 检查配置取值
func (s *Settings) Validate() error {
	var errs []error
	if s.Validator.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("validator.max_depth must not be negative, got %d", s.Validator.MaxDepth))
	}
	switch strings.ToLower(s.Guard.Translator) {
	case "", TranslatorDefault, TranslatorStandard:
	default:
		errs = append(errs, fmt.Errorf("guard.translator: unknown translator %q", s.Guard.Translator))
	}
	switch logger.Format(strings.ToUpper(s.Logging.Format)) {
	case "", logger.FormatConsole, logger.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", s.Logging.Format))
	}
	return errors.Join(errs...)
}

// LoggerOptions 转换为 logger.Options
func (s *Settings) LoggerOptions() logger.Options {
	return logger.Options{
		Level:  s.Logging.Level,
		Format: logger.Format(strings.ToUpper(s.Logging.Format)),
		File: logger.FileOptions{
			Path:       s.Logging.File,
			MaxSizeMB:  s.Logging.MaxSizeMB,
			MaxBackups: s.Logging.MaxBackups,
			MaxAgeDays: s.Logging.MaxAgeDays,
			Compress:   s.Logging.Compress,
		},
	}
}

// ApplyLogging 按配置替换全局日志
func (s *Settings) ApplyLogging() {
	logger.SetLogger(logger.New(s.LoggerOptions()))
}
