package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"katydid-common-contract/pkg/validator/check"
	"katydid-common-contract/pkg/validator/core"
)

// RuleProvider 以代码提供按 profile 划分的约束规则
//
// 返回格式：map[profile][成员]约束表达式
//   - profile 为空字符串表示默认 profile
//   - 成员为字段名；以 () 结尾表示 getter（如 "FullName()"）；"*" 表示对象级约束
//
// 示例：
//
//	func (u *User) ContractRules() map[string]map[string]string {
//	    return map[string]map[string]string{
//	        "":       {"Name": "notnull"},
//	        "create": {"Password": "notblank; minlength(8)"},
//	        "update": {"ID": "min(1)"},
//	    }
//	}
//
// ContractRules 在零值上调用，不能依赖字段值
type RuleProvider interface {
	ContractRules() map[string]map[string]string
}

// ObjectMember RuleProvider 中表示对象级约束的成员名
const ObjectMember = "*"

var ruleProviderType = reflect.TypeOf((*RuleProvider)(nil)).Elem()

// RuleConfigurer 读取实现 RuleProvider 的类型的规则
type RuleConfigurer struct {
	registry *check.Registry
}

// NewRuleConfigurer 创建规则配置器，registry 为 nil 时使用默认注册表
func NewRuleConfigurer(registry *check.Registry) *RuleConfigurer {
	if registry == nil {
		registry = check.DefaultRegistry()
	}
	return &RuleConfigurer{registry: registry}
}

func (c *RuleConfigurer) TypeConfig(t reflect.Type) (tc *TypeConfig, err error) {
	if t.Kind() == reflect.Interface || !reflect.PointerTo(t).Implements(ruleProviderType) {
		return nil, nil
	}

	defer func() {
		if r := recover(); r != nil {
			tc, err = nil, core.InvalidConfiguration(core.TypeName(t), "ContractRules panicked: %v", r)
		}
	}()
	rules := reflect.New(t).Interface().(RuleProvider).ContractRules()
	if len(rules) == 0 {
		return nil, nil
	}

	tc = &TypeConfig{Type: t}
	// 按 profile 排序，保证结果稳定
	profiles := make([]string, 0, len(rules))
	for profile := range rules {
		profiles = append(profiles, profile)
	}
	sort.Strings(profiles)

	for _, profile := range profiles {
		members := rules[profile]
		names := make([]string, 0, len(members))
		for name := range members {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			source := fmt.Sprintf("%s.%s[%s]", core.TypeName(t), name, profile)
			checks, err := BuildChecks(c.registry, source, members[name])
			if err != nil {
				return nil, err
			}
			if profile != "" {
				for _, ch := range checks {
					if s := ch.Config(); len(s.Profiles) == 0 {
						s.Profiles = []string{profile}
					}
				}
			}

			switch {
			case name == ObjectMember:
				tc.ObjectChecks = append(tc.ObjectChecks, checks...)
			case strings.HasSuffix(name, "()"):
				tc.Getters = mergeMembers(tc.Getters, []*MemberConfig{{Name: strings.TrimSuffix(name, "()"), Checks: checks}}, false)
			default:
				tc.Fields = mergeMembers(tc.Fields, []*MemberConfig{{Name: name, Checks: checks}}, false)
			}
		}
	}
	return tc, nil
}

func (c *RuleConfigurer) ConstraintSets() ([]*ConstraintSetConfig, error) {
	return nil, nil
}
