// Package gormcontract 在 gorm 写入前执行约束校验
package gormcontract

import (
	"reflect"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"katydid-common-contract/pkg/logger"
	"katydid-common-contract/pkg/validator"
	"katydid-common-contract/pkg/validator/core"
)

const (
	// PluginName 插件名称
	PluginName = "katydid:contract"
	// SkipKey 通过 db.Set(SkipKey, true) 跳过本次写入的校验
	SkipKey = "katydid:contract:skip"
	// ProfilesKey 通过 db.Set(ProfilesKey, []string{...}) 指定本次写入使用的 profile
	ProfilesKey = "katydid:contract:profiles"

	callbackCreate = "katydid:contract:validate_create"
	callbackUpdate = "katydid:contract:validate_update"
)

// Plugin 实现 gorm.Plugin
// Create 和 Update（含 Save）之前校验目标对象，存在违反时中止写入
type Plugin struct {
	v *validator.Validator
	// createProfiles/updateProfiles 未通过 ProfilesKey 指定时使用
	createProfiles []string
	updateProfiles []string
	log            *zap.Logger
}

var _ gorm.Plugin = (*Plugin)(nil)

// Option 插件选项
type Option func(*Plugin)

// WithCreateProfiles 创建时使用的 profile
func WithCreateProfiles(profiles ...string) Option {
	return func(p *Plugin) { p.createProfiles = profiles }
}

// WithUpdateProfiles 更新时使用的 profile
func WithUpdateProfiles(profiles ...string) Option {
	return func(p *Plugin) { p.updateProfiles = profiles }
}

// New 创建插件，v 为 nil 时使用默认验证器
func New(v *validator.Validator, opts ...Option) *Plugin {
	if v == nil {
		v = validator.Default()
	}
	p := &Plugin{v: v, log: logger.For("gorm")}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Plugin) Name() string {
	return PluginName
}

// Initialize 注册回调
func (p *Plugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register(callbackCreate, p.validate(p.createProfiles)); err != nil {
		return err
	}
	return db.Callback().Update().Before("gorm:update").Register(callbackUpdate, p.validate(p.updateProfiles))
}

func (p *Plugin) validate(defaults []string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		if db.Error != nil || db.Statement == nil {
			return
		}
		if skip, ok := db.Get(SkipKey); ok {
			if b, _ := skip.(bool); b {
				return
			}
		}
		dest := db.Statement.Dest
		if !validatable(dest) {
			return
		}
		profiles := defaults
		if v, ok := db.Get(ProfilesKey); ok {
			if list, ok := v.([]string); ok {
				profiles = list
			}
		}

		if err := p.v.AssertValidContext(db.Statement.Context, dest, profiles...); err != nil {
			table := ""
			if db.Statement.Schema != nil {
				table = db.Statement.Schema.Table
			}
			p.log.Debug("write rejected", zap.String("table", table), zap.Error(err))
			_ = db.AddError(err)
		}
	}
}

// validatable map 形式的 Updates 没有结构体可校验
func validatable(dest any) bool {
	if core.IsNil(dest) {
		return false
	}
	t := reflect.TypeOf(dest)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct:
		return true
	case reflect.Slice, reflect.Array:
		e := t.Elem()
		for e.Kind() == reflect.Pointer {
			e = e.Elem()
		}
		return e.Kind() == reflect.Struct
	}
	return false
}
