package check

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"katydid-common-contract/pkg/validator/core"
)

const NameMapKeys = "mapkeys"

// maxMapKeyLength 最大键名长度，防止恶意超长键名
const maxMapKeyLength = 256

// MapKeys 动态扩展字段（map[string]V）的键约束
// 用途：
//   - RequiredKeys 必须存在的键
//   - AllowedKeys 允许的键白名单（为空则不限制），防止非法字段注入
//
// 违反时 MessageVariables 中的 missing/unknown 列出具体的键
type MapKeys struct {
	core.Settings
	RequiredKeys []string
	AllowedKeys  []string

	// allowed 内部缓存的允许键集合，O(1) 查找
	allowed map[string]struct{}
}

// NewMapKeys 创建键约束校验
func NewMapKeys(required, allowed []string) (*MapKeys, error) {
	c := &MapKeys{
		Settings:     core.NewSettings(NameMapKeys),
		RequiredKeys: required,
		AllowedKeys:  allowed,
	}
	if len(allowed) > 0 {
		c.allowed = make(map[string]struct{}, len(allowed))
		for _, k := range allowed {
			c.allowed[k] = struct{}{}
		}
		for _, k := range required {
			if _, ok := c.allowed[k]; !ok {
				return nil, core.InvalidConfiguration(NameMapKeys, "required key %q is not allowed", k)
			}
		}
	}
	return c, nil
}

func (c *MapKeys) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	rv, ok := core.Indirect(value)
	if !ok {
		// nil map 只在没有必填键时合法
		return len(c.RequiredKeys) == 0, nil
	}
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return true, nil
	}
	missing, unknown := c.inspect(rv)
	return len(missing) == 0 && len(unknown) == 0, nil
}

// Inspect 返回缺失的必填键和不在白名单中的键（均已排序）
func (c *MapKeys) Inspect(value any) (missing, unknown []string) {
	rv, ok := core.Indirect(value)
	if !ok {
		return append([]string(nil), c.RequiredKeys...), nil
	}
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, nil
	}
	return c.inspect(rv)
}

func (c *MapKeys) inspect(rv reflect.Value) (missing, unknown []string) {
	for _, k := range c.RequiredKeys {
		if !rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).IsValid() {
			missing = append(missing, k)
		}
	}
	iter := rv.MapRange()
	for iter.Next() {
		key := iter.Key().String()
		if len(key) > maxMapKeyLength {
			unknown = append(unknown, key[:maxMapKeyLength]+"...")
			continue
		}
		if c.allowed == nil {
			continue
		}
		if _, ok := c.allowed[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return missing, unknown
}

func (c *MapKeys) MessageVariables() map[string]string {
	return map[string]string{
		"required": strings.Join(c.RequiredKeys, ", "),
		"allowed":  strings.Join(c.AllowedKeys, ", "),
	}
}

func buildMapKeys(args Args) (core.Check, error) {
	required := args.List("required", 0)
	allowed := args.List("allowed", 1)
	if len(required) == 0 && len(allowed) == 0 {
		return nil, core.InvalidConfiguration(NameMapKeys, "required or allowed keys must be given")
	}
	return NewMapKeys(required, allowed)
}

// String 调试输出
func (c *MapKeys) String() string {
	return fmt.Sprintf("mapkeys(required=%v, allowed=%v)", c.RequiredKeys, c.AllowedKeys)
}
