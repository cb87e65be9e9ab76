package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Violation 单个约束违反
// 国际化时可以通过 ErrorCode 和 MessageVariables 查找对应的翻译
type Violation struct {
	// CheckName 违反的校验名称
	CheckName string
	// Message 渲染后的消息
	Message string
	// MessageTemplate 渲染前的消息模板或消息键
	MessageTemplate string
	// MessageVariables 渲染使用的变量
	MessageVariables map[string]string
	// ErrorCode 错误码
	ErrorCode string
	// Severity 严重级别
	Severity int
	// Profiles 校验所属的 profile
	Profiles []string
	// Context 违反发生的位置
	Context Context
	// Path 从根对象到 Context 的完整位置链
	Path []Context
	// InvalidValue 不满足约束的值
	InvalidValue any
	// ValidatedObject 拥有该值的对象（参数校验时为 nil 或被调用对象）
	ValidatedObject any
	// Causes 级联校验产生的嵌套违反
	Causes []*Violation
}

// PathString 以 " > " 连接完整位置链
func (v *Violation) PathString() string {
	if len(v.Path) == 0 {
		return parentString(v.Context)
	}
	parts := make([]string, len(v.Path))
	for i, c := range v.Path {
		parts[i] = c.String()
	}
	return strings.Join(parts, " > ")
}

// String 返回友好的错误信息
func (v *Violation) String() string {
	if v.Message != "" {
		return v.Message
	}
	return fmt.Sprintf("%s: check '%s' violated", parentString(v.Context), v.CheckName)
}

// Error 实现 error 接口
func (v *Violation) Error() string {
	return v.String()
}

// Flatten 展开级联违反，返回自身和所有嵌套违反（深度优先）
func (v *Violation) Flatten() []*Violation {
	out := []*Violation{v}
	for _, cause := range v.Causes {
		out = append(out, cause.Flatten()...)
	}
	return out
}

type violationJSON struct {
	Check     string           `json:"check"`
	Message   string           `json:"message"`
	ErrorCode string           `json:"error_code,omitempty"`
	Severity  int              `json:"severity,omitempty"`
	Context   string           `json:"context"`
	Path      string           `json:"path,omitempty"`
	Value     any              `json:"value,omitempty"`
	Causes    []*violationJSON `json:"causes,omitempty"`
}

func (v *Violation) toJSON() *violationJSON {
	out := &violationJSON{
		Check:     v.CheckName,
		Message:   v.Message,
		ErrorCode: v.ErrorCode,
		Severity:  v.Severity,
		Context:   parentString(v.Context),
		Path:      v.PathString(),
	}
	switch v.InvalidValue.(type) {
	case nil, string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		out.Value = v.InvalidValue
	default:
		out.Value = fmt.Sprintf("%v", v.InvalidValue)
	}
	for _, cause := range v.Causes {
		out.Causes = append(out.Causes, cause.toJSON())
	}
	return out
}

// MarshalJSON 上下文以字符串形式输出，避免暴露反射类型
func (v *Violation) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toJSON())
}

// FilterBySeverity 返回严重级别不低于 min 的违反
func FilterBySeverity(violations []*Violation, min int) []*Violation {
	var out []*Violation
	for _, v := range violations {
		if v.Severity >= min {
			out = append(out, v)
		}
	}
	return out
}

// FilterByCheck 按校验名称过滤
func FilterByCheck(violations []*Violation, name string) []*Violation {
	var out []*Violation
	for _, v := range violations {
		if v.CheckName == name {
			out = append(out, v)
		}
	}
	return out
}
