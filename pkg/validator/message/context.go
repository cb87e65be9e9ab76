package message

import "context"

type localeKey struct{}

// WithLocale 在 ctx 中指定渲染消息使用的语言
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// LocaleFrom 读取 ctx 中的语言，未指定时返回空字符串
func LocaleFrom(ctx context.Context) string {
	locale, _ := ctx.Value(localeKey{}).(string)
	return locale
}
