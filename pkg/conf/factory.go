package conf

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"katydid-common-contract/pkg/guard"
	"katydid-common-contract/pkg/logger"
	"katydid-common-contract/pkg/metrics"
	"katydid-common-contract/pkg/validator"
	"katydid-common-contract/pkg/validator/check"
	"katydid-common-contract/pkg/validator/config"
)

// Configurers 按配置组装配置器链：标签 -> validate 标签 -> ContractRules -> 约束文件
func (s *Settings) Configurers(registry *check.Registry) ([]config.Configurer, error) {
	if registry == nil {
		registry = check.DefaultRegistry()
	}
	vs := s.Validator

	tag := config.NewTagConfigurer(registry)
	if vs.TagName != "" {
		tag = tag.WithTagName(vs.TagName)
	}
	configurers := []config.Configurer{tag}
	if vs.PlaygroundTags {
		configurers = append(configurers, config.NewPlaygroundTagConfigurer())
	}
	if vs.RuleProviders {
		configurers = append(configurers, config.NewRuleConfigurer(registry))
	}
	if len(vs.ConstraintFiles) > 0 {
		file := config.NewFileConfigurer(registry)
		for _, path := range vs.ConstraintFiles {
			if err := file.LoadFile(path); err != nil {
				return nil, fmt.Errorf("load constraint file: %w", err)
			}
		}
		configurers = append(configurers, file)
	}
	return configurers, nil
}

// NewValidator 按配置创建验证器，extra 在配置生成的选项之后应用
func NewValidator(s *Settings, extra ...validator.Option) (*validator.Validator, error) {
	if s == nil {
		s = Default()
	}
	vs := s.Validator

	registry := check.DefaultRegistry()
	configurers, err := s.Configurers(registry)
	if err != nil {
		return nil, err
	}

	opts := []validator.Option{
		validator.WithCheckRegistry(registry),
		validator.WithConfigurers(configurers...),
		validator.WithLocale(vs.Locale),
		validator.WithMaxDepth(vs.MaxDepth),
		validator.WithCascadeNested(vs.CascadeNested),
		validator.WithProfiles(vs.Profiles.EnabledByDefault, vs.Profiles.Enabled, vs.Profiles.Disabled),
	}
	if s.Metrics.Enabled {
		opts = append(opts, validator.WithListeners(metrics.NewValidationListener(metrics.DefaultRegistry())))
	}
	opts = append(opts, extra...)

	v, err := validator.New(opts...)
	if err != nil {
		return nil, err
	}
	if s.Metrics.Enabled {
		if err := metrics.DefaultRegistry().InstrumentTypeCache(v); err != nil {
			logger.For("conf").Warn("type cache gauge not registered", zap.Error(err))
		}
	}
	logger.For("conf").Debug("validator created",
		zap.String("locale", vs.Locale),
		zap.Int("configurers", len(configurers)),
		zap.Strings("constraintFiles", vs.ConstraintFiles))
	return v, nil
}

// NewGuard 按配置创建 Guard，v 为 nil 时按同一配置创建验证器
func NewGuard(s *Settings, v *validator.Validator) (*guard.Guard, error) {
	if s == nil {
		s = Default()
	}
	if v == nil {
		var err error
		if v, err = NewValidator(s); err != nil {
			return nil, err
		}
	}
	gs := s.Guard

	opts := []guard.Option{guard.WithFeatures(gs.Invariants, gs.PreConditions, gs.PostConditions)}
	if strings.EqualFold(gs.Translator, TranslatorStandard) {
		opts = append(opts, guard.WithTranslator(guard.StandardTranslator{}))
	}
	if gs.LogCalls {
		opts = append(opts, guard.WithInterceptors(guard.NewLoggingInterceptor(nil)))
	}
	if s.Metrics.Enabled {
		opts = append(opts, guard.WithInterceptors(metrics.GuardInterceptor(metrics.DefaultRegistry())))
	}

	g := guard.New(v, opts...)
	g.SetActive(gs.Active)
	return g, nil
}
