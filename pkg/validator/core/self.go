package core

import "context"

// ReportFunc 自定义校验的错误报告函数
//   - field：字段名，为空表示对象级违反
//   - checkName：规则名称，用于错误码与过滤
//   - message：消息模板或消息键，为空时使用 checkName 的默认消息
type ReportFunc func(field, checkName, message string)

// SelfValidator 自校验接口，用于跨字段和业务规则
// 在字段、getter 和对象级校验之后执行
//
// 示例：
//
//	func (u *User) ValidateSelf(ctx context.Context, report core.ReportFunc) {
//	    if u.Password != u.ConfirmPassword {
//	        report("ConfirmPassword", "password_mismatch", "{context} must match Password")
//	    }
//	    if core.ProfileActive(ctx, "create") && u.Age < 18 {
//	        report("Age", "min_age", "")
//	    }
//	}
type SelfValidator interface {
	ValidateSelf(ctx context.Context, report ReportFunc)
}

type profilesKey struct{}

// WithProfiles 在 ctx 中记录本次校验请求的 profile
func WithProfiles(ctx context.Context, profiles []string) context.Context {
	return context.WithValue(ctx, profilesKey{}, profiles)
}

// Profiles 返回本次校验请求的 profile，未指定时为 nil
func Profiles(ctx context.Context) []string {
	profiles, _ := ctx.Value(profilesKey{}).([]string)
	return profiles
}

// ProfileActive 本次校验是否请求了指定 profile
// 未显式指定 profile 时只有 ProfileDefault 视为激活
func ProfileActive(ctx context.Context, profile string) bool {
	profiles := Profiles(ctx)
	if len(profiles) == 0 {
		return profile == ProfileDefault
	}
	for _, p := range profiles {
		if p == profile {
			return true
		}
	}
	return false
}
