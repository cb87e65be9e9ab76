package message

// Key 返回校验名称对应的默认消息键
func Key(name string) string {
	return keyPrefix + name + ".violated"
}

// builtinBundles 内置消息，语言 -> 消息键 -> 模板
var builtinBundles = map[string]map[string]string{
	"en": bundle(map[string]string{
		"generic":            "{context} is invalid",
		"notnull":            "{context} cannot be null",
		"assertnull":         "{context} must be null",
		"notempty":           "{context} cannot be empty",
		"notblank":           "{context} cannot be blank",
		"asserttrue":         "{context} must be true",
		"assertfalse":        "{context} must be false",
		"length":             "{context} must be between {min} and {max} characters long",
		"minlength":          "{context} must be at least {min} characters long",
		"maxlength":          "{context} must not be longer than {max} characters",
		"size":               "{context} must contain between {min} and {max} elements",
		"minsize":            "{context} must contain at least {min} elements",
		"maxsize":            "{context} must not contain more than {max} elements",
		"range":              "{context} is not in the range {min} to {max}",
		"min":                "{context} must not be less than {min}",
		"max":                "{context} must not be greater than {max}",
		"notnegative":        "{context} must not be negative",
		"digits":             "{context} does not match the digit constraints",
		"pattern":            "{context} does not match the pattern {pattern}",
		"notpattern":         "{context} must not match the pattern {pattern}",
		"hassubstring":       "{context} must contain {substring}",
		"memberof":           "{context} must be one of [{members}]",
		"notmemberof":        "{context} must not be one of [{members}]",
		"notequal":           "{context} must not be equal to {value}",
		"email":              "{context} is not a valid email address",
		"url":                "{context} is not a valid URL",
		"equaltofield":       "{context} must be equal to {fieldName}",
		"notequaltofield":    "{context} must not be equal to {fieldName}",
		"validatewithmethod": "{context} is not valid according to {method}",
		"checkwith":          "{context} is not valid according to {func}",
		"future":             "{context} must be in the future",
		"past":               "{context} must be in the past",
		"daterange":          "{context} is not between {min} and {max}",
		"mapkeys":            "{context} has missing or unsupported keys",
		"playground":         "{context} does not satisfy {tag}",
		"valid":              "{context} is invalid",
		"pre":                "{context}: precondition {condition} violated",
		"post":               "{context}: postcondition {condition} violated",
	}),
	"zh": bundle(map[string]string{
		"generic":            "{context} 不合法",
		"notnull":            "{context} 不能为空",
		"assertnull":         "{context} 必须为空",
		"notempty":           "{context} 不能为空值",
		"notblank":           "{context} 不能为空白",
		"asserttrue":         "{context} 必须为 true",
		"assertfalse":        "{context} 必须为 false",
		"length":             "{context} 长度必须在 {min} 到 {max} 个字符之间",
		"minlength":          "{context} 长度不能少于 {min} 个字符",
		"maxlength":          "{context} 长度不能超过 {max} 个字符",
		"size":               "{context} 元素数量必须在 {min} 到 {max} 之间",
		"minsize":            "{context} 元素数量不能少于 {min}",
		"maxsize":            "{context} 元素数量不能超过 {max}",
		"range":              "{context} 必须在 {min} 到 {max} 之间",
		"min":                "{context} 不能小于 {min}",
		"max":                "{context} 不能大于 {max}",
		"notnegative":        "{context} 不能为负数",
		"digits":             "{context} 位数不符合要求",
		"pattern":            "{context} 格式不匹配 {pattern}",
		"notpattern":         "{context} 不能匹配 {pattern}",
		"hassubstring":       "{context} 必须包含 {substring}",
		"memberof":           "{context} 必须是 [{members}] 之一",
		"notmemberof":        "{context} 不能是 [{members}] 之一",
		"notequal":           "{context} 不能等于 {value}",
		"email":              "{context} 不是有效的邮箱地址",
		"url":                "{context} 不是有效的 URL",
		"equaltofield":       "{context} 必须与 {fieldName} 相同",
		"notequaltofield":    "{context} 不能与 {fieldName} 相同",
		"validatewithmethod": "{context} 未通过 {method} 校验",
		"checkwith":          "{context} 未通过 {func} 校验",
		"future":             "{context} 必须是将来的时间",
		"past":               "{context} 必须是过去的时间",
		"daterange":          "{context} 必须在 {min} 与 {max} 之间",
		"mapkeys":            "{context} 缺少必填键或包含不支持的键",
		"playground":         "{context} 不满足 {tag}",
		"valid":              "{context} 校验未通过",
		"pre":                "{context}: 前置条件 {condition} 未满足",
		"post":               "{context}: 后置条件 {condition} 未满足",
	}),
}

func bundle(byName map[string]string) map[string]string {
	out := make(map[string]string, len(byName))
	for name, template := range byName {
		out[Key(name)] = template
	}
	return out
}
