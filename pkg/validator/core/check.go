package core

import (
	"context"
	"strings"
)

// ProfileDefault 未声明 profile 的校验默认所属的 profile
const ProfileDefault = "default"

// 消息键与错误码的统一前缀
const (
	messageKeyPrefix = "katydid.contract."
	messageKeySuffix = ".violated"
)

// ConstraintTarget 校验作用目标，使用位运算支持组合
// 对于容器类型（slice/array/map）：
//   - TargetContainer 校验容器本身
//   - TargetValues 校验每个元素或 map 的值
//   - TargetKeys 校验 map 的每个键
type ConstraintTarget uint8

const (
	TargetContainer ConstraintTarget = 1 << iota
	TargetKeys
	TargetValues
)

// Has 是否包含指定目标
func (t ConstraintTarget) Has(target ConstraintTarget) bool {
	return t&target != 0
}

// String 字符串表示（用于调试和日志）
func (t ConstraintTarget) String() string {
	parts := make([]string, 0, 3)
	if t.Has(TargetContainer) {
		parts = append(parts, "container")
	}
	if t.Has(TargetKeys) {
		parts = append(parts, "keys")
	}
	if t.Has(TargetValues) {
		parts = append(parts, "values")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseConstraintTarget 解析 "container|keys|values" 形式的目标声明
func ParseConstraintTarget(s string) (ConstraintTarget, error) {
	var t ConstraintTarget
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ' ' }) {
		switch strings.ToLower(part) {
		case "container":
			t |= TargetContainer
		case "keys":
			t |= TargetKeys
		case "values", "elements":
			t |= TargetValues
		default:
			return 0, InvalidConfiguration("applies", "unknown constraint target %q", part)
		}
	}
	if t == 0 {
		return 0, InvalidConfiguration("applies", "empty constraint target")
	}
	return t, nil
}

// WhenFunc 校验激活条件，返回 false 时跳过该校验
type WhenFunc func(validatedObject, value any) bool

// Settings 所有校验共享的配置
// 具体校验通过嵌入 Settings 获得 Config 与默认的 MessageVariables 实现
type Settings struct {
	// Name 校验名称（如 notnull, length）
	Name string
	// Message 消息模板或消息键
	Message string
	// ErrorCode 错误码
	ErrorCode string
	// Severity 严重级别，数值越大越严重
	Severity int
	// Profiles 所属 profile 列表，为空时归属 ProfileDefault
	Profiles []string
	// AppliesTo 作用目标，默认 TargetContainer
	AppliesTo ConstraintTarget
	// Target 点分隔的子路径，非空时先导航到该路径再校验
	Target string
	// When 激活条件
	When WhenFunc
}

// NewSettings 创建带默认消息键和错误码的配置
func NewSettings(name string) Settings {
	return Settings{
		Name:      name,
		Message:   DefaultMessageKey(name),
		ErrorCode: DefaultErrorCode(name),
		AppliesTo: TargetContainer,
	}
}

// Config 返回配置本身，供嵌入者实现 Check 接口
func (s *Settings) Config() *Settings {
	return s
}

// MessageVariables 默认没有额外消息变量
func (s *Settings) MessageVariables() map[string]string {
	return nil
}

// EffectiveProfiles 返回生效的 profile 列表
func (s *Settings) EffectiveProfiles() []string {
	if len(s.Profiles) == 0 {
		return []string{ProfileDefault}
	}
	return s.Profiles
}

// DefaultMessageKey 校验的默认消息键
func DefaultMessageKey(name string) string {
	return messageKeyPrefix + name + messageKeySuffix
}

// DefaultErrorCode 校验的默认错误码
func DefaultErrorCode(name string) string {
	return messageKeyPrefix + name
}

// Check 约束谓词
// 职责：给定被校验值、所属对象和位置上下文，判断约束是否满足
// 设计原则：纯函数，不持有校验过程状态
type Check interface {
	// Config 返回共享配置
	Config() *Settings

	// IsSatisfied 判断约束是否满足
	// 返回 error 表示校验本身无法执行（配置错误、方法调用失败等）
	IsSatisfied(ctx context.Context, validatedObject, value any, at Context) (bool, error)

	// MessageVariables 返回渲染消息时使用的变量（如 min, max）
	MessageVariables() map[string]string
}
