package check

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"katydid-common-contract/pkg/validator/core"
)

// Args 校验参数，支持位置参数和命名参数
// 例如 length(3, max=10) 中 Positional=["3"]，Named={"max":"10"}
type Args struct {
	Positional []string
	Named      map[string]string
}

// NewArgs 由命名参数创建 Args
func NewArgs(named map[string]string) Args {
	return Args{Named: named}
}

// Get 先按名称查找，再按位置查找
func (a Args) Get(key string, pos int) (string, bool) {
	if v, ok := a.Named[key]; ok {
		return v, true
	}
	if pos >= 0 && pos < len(a.Positional) {
		return a.Positional[pos], true
	}
	return "", false
}

// Has 是否提供了参数
func (a Args) Has(key string, pos int) bool {
	_, ok := a.Get(key, pos)
	return ok
}

// String 获取字符串参数
func (a Args) String(key string, pos int, def string) string {
	if v, ok := a.Get(key, pos); ok {
		return v
	}
	return def
}

// Int 获取整数参数
func (a Args) Int(check, key string, pos int, def int) (int, error) {
	v, ok := a.Get(key, pos)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, core.InvalidConfiguration(check, "argument %s=%q is not an integer", key, v)
	}
	return n, nil
}

// Float 获取浮点参数
func (a Args) Float(check, key string, pos int, def float64) (float64, error) {
	v, ok := a.Get(key, pos)
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, core.InvalidConfiguration(check, "argument %s=%q is not a number", key, v)
	}
	return f, nil
}

// Bool 获取布尔参数
func (a Args) Bool(check, key string, pos int, def bool) (bool, error) {
	v, ok := a.Get(key, pos)
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, core.InvalidConfiguration(check, "argument %s=%q is not a boolean", key, v)
	}
	return b, nil
}

// List 获取以 | 分隔的列表参数
func (a Args) List(key string, pos int) []string {
	v, ok := a.Get(key, pos)
	if !ok || v == "" {
		return nil
	}
	parts := strings.Split(v, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Require 获取必填参数
func (a Args) Require(check, key string, pos int) (string, error) {
	v, ok := a.Get(key, pos)
	if !ok {
		return "", core.InvalidConfiguration(check, "missing argument %s", key)
	}
	return v, nil
}

// Format 还原为标签表达式中的参数形式（用于日志与 lint 输出）
func (a Args) Format() string {
	parts := make([]string, 0, len(a.Positional)+len(a.Named))
	parts = append(parts, a.Positional...)
	keys := make([]string, 0, len(a.Named))
	for k := range a.Named {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, a.Named[k]))
	}
	return strings.Join(parts, ", ")
}
