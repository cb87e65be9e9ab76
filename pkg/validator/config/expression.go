package config

import (
	"fmt"
	"regexp"
	"strings"

	"katydid-common-contract/pkg/validator/check"
	"katydid-common-contract/pkg/validator/core"
)

// CheckSpec 解析后的单个校验声明
type CheckSpec struct {
	Name string
	Args check.Args
}

var (
	checkNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	argKeyPattern    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
)

// ParseExpression 解析约束表达式
// 语法：多个校验以 ; 分隔，每个校验为 name 或 name(arg, key=value, key='quoted, value')
//   - 参数以 , 分隔，单引号或双引号内的内容原样保留（可用 \ 转义引号）
//   - 未加引号的参数中括号必须配对，便于直接书写简单正则
//
// 示例：
//
//	notnull; length(3, 20, message='user.name.length'); pattern('^[a-z]+$', profiles=create|update)
func ParseExpression(expr string) ([]CheckSpec, error) {
	items, err := split(expr, ';')
	if err != nil {
		return nil, err
	}
	specs := make([]CheckSpec, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		spec, err := parseItem(item)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", item, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseItem(item string) (CheckSpec, error) {
	open := strings.IndexByte(item, '(')
	if open < 0 {
		if !checkNamePattern.MatchString(item) {
			return CheckSpec{}, fmt.Errorf("invalid check name")
		}
		return CheckSpec{Name: strings.ToLower(item)}, nil
	}
	if !strings.HasSuffix(item, ")") {
		return CheckSpec{}, fmt.Errorf("missing closing parenthesis")
	}
	name := strings.TrimSpace(item[:open])
	if !checkNamePattern.MatchString(name) {
		return CheckSpec{}, fmt.Errorf("invalid check name %q", name)
	}

	rawArgs, err := split(item[open+1:len(item)-1], ',')
	if err != nil {
		return CheckSpec{}, err
	}
	args := check.Args{Named: make(map[string]string)}
	for _, raw := range rawArgs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if key, value, ok := splitNamed(raw); ok {
			if _, dup := args.Named[key]; dup {
				return CheckSpec{}, fmt.Errorf("duplicate argument %q", key)
			}
			args.Named[key] = unquote(value)
			continue
		}
		args.Positional = append(args.Positional, unquote(raw))
	}
	return CheckSpec{Name: strings.ToLower(name), Args: args}, nil
}

// split 在引号和括号之外按 sep 切分
func split(s string, sep byte) ([]string, error) {
	var (
		parts []string
		start int
		depth int
		quote byte
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parenthesis")
			}
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote")
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parenthesis")
	}
	return append(parts, s[start:]), nil
}

// splitNamed 识别 key=value 形式，= 必须出现在任何引号之前
func splitNamed(raw string) (string, string, bool) {
	eq := strings.IndexByte(raw, '=')
	if eq <= 0 {
		return "", "", false
	}
	if q := strings.IndexAny(raw, `'"`); q >= 0 && q < eq {
		return "", "", false
	}
	key := strings.TrimSpace(raw[:eq])
	if !argKeyPattern.MatchString(key) {
		return "", "", false
	}
	return key, strings.TrimSpace(raw[eq+1:]), true
}

func unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	q := s[0]
	if (q != '\'' && q != '"') || s[len(s)-1] != q {
		return s
	}
	body := s[1 : len(s)-1]
	var builder strings.Builder
	builder.Grow(len(body))
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) && (body[i+1] == q || body[i+1] == '\\') {
			i++
		}
		builder.WriteByte(body[i])
	}
	return builder.String()
}

// BuildChecks 解析表达式并通过注册表构建校验
// source 用于错误信息定位（如 "User.Name"）
func BuildChecks(registry *check.Registry, source, expr string) ([]core.Check, error) {
	specs, err := ParseExpression(expr)
	if err != nil {
		return nil, core.InvalidConfiguration(source, "%v", err)
	}
	checks := make([]core.Check, 0, len(specs))
	for _, spec := range specs {
		c, err := registry.Build(spec.Name, spec.Args)
		if err != nil {
			return nil, core.InvalidConfiguration(source, "%v", err)
		}
		checks = append(checks, c)
	}
	return checks, nil
}
