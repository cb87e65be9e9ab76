package config

import (
	"reflect"
	"strings"

	"go.uber.org/zap"

	"katydid-common-contract/pkg/logger"
	"katydid-common-contract/pkg/validator/check"
	"katydid-common-contract/pkg/validator/core"
)

// 默认结构体标签名
const (
	DefaultTagName           = "check"
	DefaultPlaygroundTagName = "validate"
)

// TagConfigurer 从结构体标签读取约束
//
// 示例：
//
//	type User struct {
//	    Name  string   `check:"notnull; length(3, 20)"`
//	    Email string   `check:"email(profiles=create|update)"`
//	    Tags  []string `check:"maxsize(5); notblank(applies=values)"`
//	}
type TagConfigurer struct {
	registry *check.Registry
	tagName  string
}

// NewTagConfigurer 创建标签配置器，registry 为 nil 时使用默认注册表
func NewTagConfigurer(registry *check.Registry) *TagConfigurer {
	if registry == nil {
		registry = check.DefaultRegistry()
	}
	return &TagConfigurer{registry: registry, tagName: DefaultTagName}
}

// WithTagName 使用自定义标签名
func (c *TagConfigurer) WithTagName(name string) *TagConfigurer {
	c.tagName = name
	return c
}

func (c *TagConfigurer) TypeConfig(t reflect.Type) (*TypeConfig, error) {
	return configFromTags(t, c.tagName, func(source, tag string) ([]core.Check, error) {
		return BuildChecks(c.registry, source, tag)
	})
}

func (c *TagConfigurer) ConstraintSets() ([]*ConstraintSetConfig, error) {
	return nil, nil
}

// PlaygroundTagConfigurer 把已有的 go-playground `validate` 标签转换为 playground 校验
// 同一标签中的规则整体交给 go-playground 执行，dive、omitempty 等语义保持不变
// 跨字段规则（eqfield 等）依赖父结构体，请改用 equaltofield
type PlaygroundTagConfigurer struct {
	tagName string
}

// NewPlaygroundTagConfigurer 创建 validate 标签配置器
func NewPlaygroundTagConfigurer() *PlaygroundTagConfigurer {
	return &PlaygroundTagConfigurer{tagName: DefaultPlaygroundTagName}
}

func (c *PlaygroundTagConfigurer) TypeConfig(t reflect.Type) (*TypeConfig, error) {
	return configFromTags(t, c.tagName, func(source, tag string) ([]core.Check, error) {
		pc, err := check.NewPlaygroundCheck(tag)
		if err != nil {
			return nil, core.InvalidConfiguration(source, "%v", err)
		}
		return []core.Check{pc}, nil
	})
}

func (c *PlaygroundTagConfigurer) ConstraintSets() ([]*ConstraintSetConfig, error) {
	return nil, nil
}

// configFromTags 遍历结构体的直接字段（不展开嵌入结构体，继承由类型注册表处理）
func configFromTags(t reflect.Type, tagName string, build func(source, tag string) ([]core.Check, error)) (*TypeConfig, error) {
	if t.Kind() != reflect.Struct {
		return nil, nil
	}

	var tc *TypeConfig
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, ok := field.Tag.Lookup(tagName)
		if !ok || tag == "" || tag == "-" {
			continue
		}
		source := core.TypeName(t) + "." + field.Name
		if !field.IsExported() {
			logger.For("config").Warn("constraint on unexported field ignored",
				zap.String("field", source), zap.String("tag", tagName))
			continue
		}

		checks, err := build(source, strings.TrimSpace(tag))
		if err != nil {
			return nil, err
		}
		if len(checks) == 0 {
			continue
		}
		if tc == nil {
			tc = &TypeConfig{Type: t}
		}
		tc.Fields = append(tc.Fields, &MemberConfig{Name: field.Name, Checks: checks})
	}
	return tc, nil
}
