package config

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katydid-common-contract/pkg/validator/check"
	"katydid-common-contract/pkg/validator/core"
)

type taggedUser struct {
	Name    string   `check:"notnull; length(3, 20, message='user.name.length')"`
	Email   string   `check:"email(profiles=create|update)" validate:"required,email"`
	Tags    []string `check:"maxsize(5); notblank(applies=values)"`
	Skipped string   `check:"-"`
	secret  string   `check:"notnull"`
}

type ruledUser struct {
	Name     string
	Password string
}

func (u *ruledUser) ContractRules() map[string]map[string]string {
	return map[string]map[string]string{
		"":       {"Name": "notnull", "DisplayName()": "notblank", ObjectMember: "notnull"},
		"create": {"Password": "minlength(8); notblank(profiles=strict)"},
	}
}

func (u *ruledUser) DisplayName() string { return u.Name }

func TestParseExpression(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		want    []CheckSpec
		wantErr bool
	}{
		{
			name: "单个无参校验",
			expr: "notnull",
			want: []CheckSpec{{Name: "notnull"}},
		},
		{
			name: "位置参数和命名参数",
			expr: "length(3, max=10); NotBlank",
			want: []CheckSpec{
				{Name: "length", Args: check.Args{Positional: []string{"3"}, Named: map[string]string{"max": "10"}}},
				{Name: "notblank"},
			},
		},
		{
			name: "引号内的分隔符原样保留",
			expr: `pattern('^[a-z]{2,3}(;|,)$', message="a, b; c")`,
			want: []CheckSpec{{Name: "pattern", Args: check.Args{
				Positional: []string{`^[a-z]{2,3}(;|,)$`},
				Named:      map[string]string{"message": "a, b; c"},
			}}},
		},
		{
			name: "引号内的等号不视为命名参数",
			expr: `notequal('a=b')`,
			want: []CheckSpec{{Name: "notequal", Args: check.Args{Positional: []string{"a=b"}, Named: map[string]string{}}}},
		},
		{
			name: "转义引号",
			expr: `hassubstring('it\'s')`,
			want: []CheckSpec{{Name: "hassubstring", Args: check.Args{Positional: []string{"it's"}, Named: map[string]string{}}}},
		},
		{
			name: "未加引号的配对括号",
			expr: "pattern(^(a|b)$)",
			want: []CheckSpec{{Name: "pattern", Args: check.Args{Positional: []string{"^(a|b)$"}, Named: map[string]string{}}}},
		},
		{name: "空表达式", expr: " ; ", want: []CheckSpec{}},
		{name: "未闭合引号", expr: "pattern('abc)", wantErr: true},
		{name: "括号不配对", expr: "length(3, 4", wantErr: true},
		{name: "非法名称", expr: "9lives", wantErr: true},
		{name: "重复参数", expr: "length(min=1, min=2)", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExpression(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildChecksInvalid(t *testing.T) {
	_, err := BuildChecks(check.DefaultRegistry(), "User.Name", "length(10, 3)")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrInvalidConfiguration))
	assert.Contains(t, err.Error(), "User.Name")

	_, err = BuildChecks(check.DefaultRegistry(), "User.Name", "nosuchcheck")
	assert.True(t, errors.Is(err, core.ErrInvalidConfiguration))
}

func TestTagConfigurer(t *testing.T) {
	tc, err := NewTagConfigurer(nil).TypeConfig(reflect.TypeOf(taggedUser{}))
	require.NoError(t, err)
	require.NotNil(t, tc)
	require.Len(t, tc.Fields, 3, "忽略 - 和未导出字段")

	name := tc.Field("Name")
	require.Len(t, name.Checks, 2)
	assert.Equal(t, check.NameNotNull, name.Checks[0].Config().Name)
	assert.Equal(t, "user.name.length", name.Checks[1].Config().Message)

	assert.Equal(t, []string{"create", "update"}, tc.Field("Email").Checks[0].Config().Profiles)
	assert.Equal(t, core.TargetValues, tc.Field("Tags").Checks[1].Config().AppliesTo)

	none, err := NewTagConfigurer(nil).TypeConfig(reflect.TypeOf(0))
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestPlaygroundTagConfigurer(t *testing.T) {
	tc, err := NewPlaygroundTagConfigurer().TypeConfig(reflect.TypeOf(taggedUser{}))
	require.NoError(t, err)
	require.Len(t, tc.Fields, 1)

	pc, ok := tc.Field("Email").Checks[0].(*check.PlaygroundCheck)
	require.True(t, ok)
	assert.Equal(t, "required,email", pc.Tag)
}

func TestRuleConfigurer(t *testing.T) {
	tc, err := NewRuleConfigurer(nil).TypeConfig(reflect.TypeOf(ruledUser{}))
	require.NoError(t, err)
	require.NotNil(t, tc)

	assert.Empty(t, tc.Field("Name").Checks[0].Config().Profiles, "默认 profile 不设置 Profiles")
	assert.Len(t, tc.Getter("DisplayName").Checks, 1)
	assert.Len(t, tc.ObjectChecks, 1)

	password := tc.Field("Password").Checks
	require.Len(t, password, 2)
	assert.Equal(t, []string{"create"}, password[0].Config().Profiles)
	assert.Equal(t, []string{"strict"}, password[1].Config().Profiles, "显式声明的 profile 优先")

	none, err := NewRuleConfigurer(nil).TypeConfig(reflect.TypeOf(taggedUser{}))
	assert.NoError(t, err)
	assert.Nil(t, none)
}

const userConstraints = `
constraintSets:
  - id: username
    checks: ["notnull", "length(3, 20)"]
types:
  - type: config.taggedUser
    overwrite: true
    checkInvariants: true
    object: ["notnull"]
    fields:
      - name: Name
        checks: ["set(username)"]
      - name: Tags
        overwrite: false
        checks: ["minsize(1)"]
    getters:
      - name: DisplayName
        checks: ["notblank"]
    methods:
      - name: Rename
        parameters:
          - index: 0
            name: newName
            checks: ["set(username)"]
        returnValue:
          checks: ["notnull"]
    constructors:
      - name: NewTaggedUser
        parameters:
          - index: 1
            checks: ["email"]
`

func TestFileConfigurer(t *testing.T) {
	fc := NewFileConfigurer(nil)
	require.NoError(t, fc.Load([]byte(userConstraints), "users.yaml"))
	assert.Equal(t, []string{"users.yaml"}, fc.Sources())

	sets, err := fc.ConstraintSets()
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "username", sets[0].ID)
	assert.Len(t, sets[0].Checks, 2)

	tc, err := fc.TypeConfig(reflect.TypeOf(taggedUser{}))
	require.NoError(t, err)
	require.NotNil(t, tc)
	assert.True(t, tc.Overwrite)
	assert.True(t, *tc.CheckInvariants)
	assert.Len(t, tc.ObjectChecks, 1)
	assert.IsType(t, &check.AssertConstraintSet{}, tc.Field("Name").Checks[0])
	assert.Len(t, tc.Getter("DisplayName").Checks, 1)

	rename := tc.Method("Rename")
	require.NotNil(t, rename)
	assert.Equal(t, "newName", rename.Parameters[0].Name)
	assert.Len(t, rename.ReturnValue.Checks, 1)
	assert.Equal(t, 1, tc.Constructor("NewTaggedUser").Parameters[0].Index)

	other, err := fc.TypeConfig(reflect.TypeOf(ruledUser{}))
	assert.NoError(t, err)
	assert.Nil(t, other)
}

func TestFileConfigurerErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"未知键", "types:\n  - type: a.B\n    feilds: []\n"},
		{"未知校验", "types:\n  - type: a.B\n    fields:\n      - name: X\n        checks: [\"nope\"]\n"},
		{"约束集缺少 id", "constraintSets:\n  - checks: [\"notnull\"]\n"},
		{"缺少类型名", "types:\n  - fields: []\n"},
		{"负数参数下标", "types:\n  - type: a.B\n    methods:\n      - name: M\n        parameters:\n          - index: -1\n"},
		{"非法 YAML", "types: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewFileConfigurer(nil).Load([]byte(tt.yaml), "bad.yaml")
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrInvalidConfiguration))
		})
	}
}

func TestMerge(t *testing.T) {
	a, b, c := check.NewNotNull(), check.NewNotBlank(), check.NewNotEmpty()

	t.Run("默认追加", func(t *testing.T) {
		dst := &TypeConfig{Fields: []*MemberConfig{{Name: "Name", Checks: []core.Check{a}}}}
		Merge(dst, &TypeConfig{Fields: []*MemberConfig{{Name: "Name", Checks: []core.Check{b}}}})
		assert.Equal(t, []core.Check{a, b}, dst.Field("Name").Checks)
	})

	t.Run("成员声明覆盖", func(t *testing.T) {
		dst := &TypeConfig{Fields: []*MemberConfig{{Name: "Name", Checks: []core.Check{a}}}}
		Merge(dst, &TypeConfig{Fields: []*MemberConfig{{Name: "Name", Overwrite: Bool(true), Checks: []core.Check{b}}}})
		assert.Equal(t, []core.Check{b}, dst.Field("Name").Checks)
	})

	t.Run("类型默认覆盖，成员可显式追加", func(t *testing.T) {
		dst := &TypeConfig{Fields: []*MemberConfig{
			{Name: "Name", Checks: []core.Check{a}},
			{Name: "Email", Checks: []core.Check{a}},
		}}
		Merge(dst, &TypeConfig{Overwrite: true, Fields: []*MemberConfig{
			{Name: "Name", Checks: []core.Check{b}},
			{Name: "Email", Overwrite: Bool(false), Checks: []core.Check{c}},
		}})
		assert.Equal(t, []core.Check{b}, dst.Field("Name").Checks)
		assert.Equal(t, []core.Check{a, c}, dst.Field("Email").Checks)
		assert.True(t, dst.Overwrite)
	})

	t.Run("参数与返回值", func(t *testing.T) {
		dst := &TypeConfig{Methods: []*MethodConfig{{Name: "Rename", Parameters: []*ParameterConfig{{Index: 0, Checks: []core.Check{a}}}}}}
		Merge(dst, &TypeConfig{Methods: []*MethodConfig{{
			Name:        "Rename",
			Parameters:  []*ParameterConfig{{Index: 0, Name: "name", Checks: []core.Check{b}}, {Index: 1, Checks: []core.Check{c}}},
			ReturnValue: &MemberConfig{Checks: []core.Check{a}},
		}}})
		m := dst.Method("Rename")
		require.Len(t, m.Parameters, 2)
		assert.Equal(t, "name", m.Parameters[0].Name)
		assert.Equal(t, []core.Check{a, b}, m.Parameters[0].Checks)
		assert.Equal(t, []core.Check{a}, m.ReturnValue.Checks)
	})

	t.Run("合并不修改来源", func(t *testing.T) {
		src := &TypeConfig{Fields: []*MemberConfig{{Name: "Name", Checks: []core.Check{a}}}}
		out := Merge(nil, src)
		Merge(out, &TypeConfig{Fields: []*MemberConfig{{Name: "Name", Checks: []core.Check{b}}}})
		assert.Equal(t, []core.Check{a}, src.Field("Name").Checks)
	})
}

func TestChainAndProgrammatic(t *testing.T) {
	typ := reflect.TypeOf(taggedUser{})
	extra := check.NewNotEmpty()

	programmatic := NewProgrammaticConfigurer()
	programmatic.AddFieldChecks(typ, "Name", extra)
	programmatic.AddParameterChecks(typ, "Rename", 0, check.NewNotNull())
	programmatic.AddReturnValueChecks(typ, "Rename", check.NewNotNull())
	programmatic.AddConstraintSet(&ConstraintSetConfig{ID: "ids", Checks: []core.Check{check.NewNotNull()}})

	chain := Chain{NewTagConfigurer(nil), programmatic}
	tc, err := chain.TypeConfig(typ)
	require.NoError(t, err)
	name := tc.Field("Name").Checks
	require.Len(t, name, 3)
	assert.Same(t, extra, name[2])
	assert.NotNil(t, tc.Method("Rename").ReturnValue)

	sets, err := chain.ConstraintSets()
	require.NoError(t, err)
	require.Len(t, sets, 1)

	assert.Equal(t, 1, programmatic.RemoveFieldChecks(typ, "Name", extra))
	assert.Equal(t, 0, programmatic.RemoveFieldChecks(typ, "Name", extra))
	assert.True(t, programmatic.RemoveConstraintSet("ids"))
	assert.False(t, programmatic.RemoveConstraintSet("ids"))

	tc, err = chain.TypeConfig(typ)
	require.NoError(t, err)
	assert.Len(t, tc.Field("Name").Checks, 2)
}
