package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinBundlesAreValid(t *testing.T) {
	r := NewResolver("")
	for locale, b := range builtinBundles {
		for key := range b {
			assert.True(t, r.Has(locale, key), "%s/%s 未注册", locale, key)
		}
	}
	assert.Equal(t, len(builtinBundles["en"]), len(builtinBundles["zh"]), "中英文消息数量一致")
}

func TestRender(t *testing.T) {
	r := NewResolver("en")
	vars := map[string]string{VarContext: "User.name", "min": "3", "max": "10"}

	assert.Equal(t, "User.name must be between 3 and 10 characters long", r.Render("", Key("length"), vars))
	assert.Equal(t, "User.name 长度必须在 3 到 10 个字符之间", r.Render("zh", Key("length"), vars))
	assert.Equal(t, "User.name must be between 3 and 10 characters long", r.Render("fr", Key("length"), vars), "不支持的语言回退到默认语言")
}

func TestRenderFallbacks(t *testing.T) {
	r := NewResolver("zh")
	vars := map[string]string{VarContext: "Order.total"}

	assert.Equal(t, "Order.total 不合法", r.Render("", Key("unknown"), vars), "未注册的默认键使用通用消息")
	assert.Equal(t, "total of Order.total is wrong", r.Render("", "total of {context} is wrong", vars), "字面模板直接替换")
	assert.Equal(t, "{missing} stays", r.Render("", "{missing} stays", vars))
}

func TestAddCustomMessage(t *testing.T) {
	r := NewResolver("")
	require.NoError(t, r.Add("en", "user.name.taken", "{context} {value} is taken, {context} must be unique"))

	msg := r.Render("en", "user.name.taken", map[string]string{VarContext: "name", "value": "bob"})
	assert.Equal(t, "name bob is taken, name must be unique", msg)

	assert.Error(t, r.Add("xx", "k", "v"))
}
