package check

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"katydid-common-contract/pkg/validator/core"
)

const (
	NamePattern     = "pattern"
	NameNotPattern  = "notpattern"
	NameHasSubstr   = "hassubstring"
	NameMemberOf    = "memberof"
	NameNotMemberOf = "notmemberof"
	NameNotEqual    = "notequal"
)

// MatchPattern 字符串必须匹配正则
// MatchAll 为 true 时需匹配全部正则，否则匹配任意一个即可
type MatchPattern struct {
	core.Settings
	Patterns []*regexp.Regexp
	MatchAll bool
}

// NewMatchPattern 编译正则并创建校验
func NewMatchPattern(matchAll bool, patterns ...string) (*MatchPattern, error) {
	compiled, err := compilePatterns(NamePattern, patterns)
	if err != nil {
		return nil, err
	}
	return &MatchPattern{Settings: core.NewSettings(NamePattern), Patterns: compiled, MatchAll: matchAll}, nil
}

func (c *MatchPattern) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	s, ok := core.ToString(value)
	if !ok {
		return core.IsNil(value), nil
	}
	return matchPatterns(c.Patterns, s, c.MatchAll), nil
}

func (c *MatchPattern) MessageVariables() map[string]string {
	return map[string]string{"pattern": joinPatterns(c.Patterns)}
}

// buildPattern 所有位置参数都是正则，matchAll 只能以命名参数给出
func buildPattern(args Args) (core.Check, error) {
	matchAll, err := args.Bool(NamePattern, "matchAll", -1, true)
	if err != nil {
		return nil, err
	}
	return NewMatchPattern(matchAll, patternArgs(args)...)
}

// NotMatchPattern 字符串不能匹配正则
type NotMatchPattern struct {
	core.Settings
	Patterns []*regexp.Regexp
	MatchAll bool
}

func NewNotMatchPattern(matchAll bool, patterns ...string) (*NotMatchPattern, error) {
	compiled, err := compilePatterns(NameNotPattern, patterns)
	if err != nil {
		return nil, err
	}
	return &NotMatchPattern{Settings: core.NewSettings(NameNotPattern), Patterns: compiled, MatchAll: matchAll}, nil
}

func (c *NotMatchPattern) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	s, ok := core.ToString(value)
	if !ok {
		return true, nil
	}
	return !matchPatterns(c.Patterns, s, c.MatchAll), nil
}

func (c *NotMatchPattern) MessageVariables() map[string]string {
	return map[string]string{"pattern": joinPatterns(c.Patterns)}
}

func buildNotPattern(args Args) (core.Check, error) {
	matchAll, err := args.Bool(NameNotPattern, "matchAll", -1, false)
	if err != nil {
		return nil, err
	}
	return NewNotMatchPattern(matchAll, patternArgs(args)...)
}

func patternArgs(args Args) []string {
	patterns := append([]string(nil), args.Positional...)
	if v, ok := args.Named["value"]; ok {
		patterns = append(patterns, v)
	}
	return patterns
}

func compilePatterns(name string, patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, core.InvalidConfiguration(name, "at least one pattern is required")
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		// 整体匹配，与 length 等校验语义一致
		re, err := regexp.Compile("^(?:" + p + ")$")
		if err != nil {
			return nil, core.InvalidConfiguration(name, "invalid pattern %q: %v", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func matchPatterns(patterns []*regexp.Regexp, s string, all bool) bool {
	for _, re := range patterns {
		matched := re.MatchString(s)
		if all && !matched {
			return false
		}
		if !all && matched {
			return true
		}
	}
	return all
}

func joinPatterns(patterns []*regexp.Regexp) string {
	parts := make([]string, len(patterns))
	for i, re := range patterns {
		s := re.String()
		parts[i] = s[len("^(?:") : len(s)-len(")$")]
	}
	return strings.Join(parts, "|")
}

// HasSubstring 字符串必须包含子串
type HasSubstring struct {
	core.Settings
	Substring  string
	IgnoreCase bool
}

func NewHasSubstring(substring string, ignoreCase bool) *HasSubstring {
	return &HasSubstring{Settings: core.NewSettings(NameHasSubstr), Substring: substring, IgnoreCase: ignoreCase}
}

func (c *HasSubstring) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	s, ok := core.ToString(value)
	if !ok {
		return true, nil
	}
	if c.IgnoreCase {
		return strings.Contains(strings.ToLower(s), strings.ToLower(c.Substring)), nil
	}
	return strings.Contains(s, c.Substring), nil
}

func (c *HasSubstring) MessageVariables() map[string]string {
	return map[string]string{"substring": c.Substring, "ignoreCase": fmt.Sprint(c.IgnoreCase)}
}

func buildHasSubstring(args Args) (core.Check, error) {
	substring, err := args.Require(NameHasSubstr, "value", 0)
	if err != nil {
		return nil, err
	}
	ignoreCase, err := args.Bool(NameHasSubstr, "ignoreCase", 1, false)
	if err != nil {
		return nil, err
	}
	return NewHasSubstring(substring, ignoreCase), nil
}

// MemberOf 值的字符串表示必须属于给定集合
type MemberOf struct {
	core.Settings
	Members    []string
	IgnoreCase bool
}

func NewMemberOf(ignoreCase bool, members ...string) (*MemberOf, error) {
	if len(members) == 0 {
		return nil, core.InvalidConfiguration(NameMemberOf, "at least one member is required")
	}
	return &MemberOf{Settings: core.NewSettings(NameMemberOf), Members: members, IgnoreCase: ignoreCase}, nil
}

func (c *MemberOf) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	if core.IsNil(value) {
		return true, nil
	}
	return containsString(c.Members, stringOf(value), c.IgnoreCase), nil
}

func (c *MemberOf) MessageVariables() map[string]string {
	return map[string]string{"members": strings.Join(c.Members, ", ")}
}

func buildMemberOf(args Args) (core.Check, error) {
	ignoreCase, err := args.Bool(NameMemberOf, "ignoreCase", 1, false)
	if err != nil {
		return nil, err
	}
	return NewMemberOf(ignoreCase, args.List("values", 0)...)
}

// NotMemberOf 值的字符串表示不能属于给定集合
type NotMemberOf struct {
	core.Settings
	Members    []string
	IgnoreCase bool
}

func NewNotMemberOf(ignoreCase bool, members ...string) (*NotMemberOf, error) {
	if len(members) == 0 {
		return nil, core.InvalidConfiguration(NameNotMemberOf, "at least one member is required")
	}
	return &NotMemberOf{Settings: core.NewSettings(NameNotMemberOf), Members: members, IgnoreCase: ignoreCase}, nil
}

func (c *NotMemberOf) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	if core.IsNil(value) {
		return true, nil
	}
	return !containsString(c.Members, stringOf(value), c.IgnoreCase), nil
}

func (c *NotMemberOf) MessageVariables() map[string]string {
	return map[string]string{"members": strings.Join(c.Members, ", ")}
}

func buildNotMemberOf(args Args) (core.Check, error) {
	ignoreCase, err := args.Bool(NameNotMemberOf, "ignoreCase", 1, false)
	if err != nil {
		return nil, err
	}
	return NewNotMemberOf(ignoreCase, args.List("values", 0)...)
}

// NotEqual 值的字符串表示不能等于给定值
type NotEqual struct {
	core.Settings
	Value      string
	IgnoreCase bool
}

func NewNotEqual(value string, ignoreCase bool) *NotEqual {
	return &NotEqual{Settings: core.NewSettings(NameNotEqual), Value: value, IgnoreCase: ignoreCase}
}

func (c *NotEqual) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	if core.IsNil(value) {
		return true, nil
	}
	s := stringOf(value)
	if c.IgnoreCase {
		return !strings.EqualFold(s, c.Value), nil
	}
	return s != c.Value, nil
}

func (c *NotEqual) MessageVariables() map[string]string {
	return map[string]string{"value": c.Value}
}

func buildNotEqual(args Args) (core.Check, error) {
	value, err := args.Require(NameNotEqual, "value", 0)
	if err != nil {
		return nil, err
	}
	ignoreCase, err := args.Bool(NameNotEqual, "ignoreCase", 1, false)
	if err != nil {
		return nil, err
	}
	return NewNotEqual(value, ignoreCase), nil
}

func stringOf(value any) string {
	if s, ok := core.ToString(value); ok {
		return s
	}
	rv, _ := core.Indirect(value)
	return fmt.Sprint(core.Interface(rv))
}

func containsString(members []string, s string, ignoreCase bool) bool {
	for _, m := range members {
		if m == s || (ignoreCase && strings.EqualFold(m, s)) {
			return true
		}
	}
	return false
}
