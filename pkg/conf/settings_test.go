package conf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"katydid-common-contract/pkg/guard"
	"katydid-common-contract/pkg/logger"
	"katydid-common-contract/pkg/validator/check"
	"katydid-common-contract/pkg/validator/core"
)

type member struct {
	Nick  string
	Email string `validate:"omitempty,email"`
	Level int
}

const memberConstraints = `
constraintSets:
  - id: nick
    checks: ["notblank", "length(2, 12)"]
types:
  - type: conf.member
    fields:
      - name: Nick
        checks: ["set(nick)"]
      - name: Level
        checks: ["range(1, 9, profiles=strict)"]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "en", s.Validator.Locale)
	assert.Equal(t, 100, s.Validator.MaxDepth)
	assert.Equal(t, "check", s.Validator.TagName)
	assert.True(t, s.Validator.PlaygroundTags)
	assert.True(t, s.Validator.Profiles.EnabledByDefault)
	assert.True(t, s.Guard.Active)
	assert.Equal(t, TranslatorDefault, s.Guard.Translator)
	assert.False(t, s.Metrics.Enabled)
	assert.Equal(t, "info", s.Logging.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KATYDID_CONTRACT_VALIDATOR_MAX_DEPTH", "7")
	t.Setenv("KATYDID_CONTRACT_GUARD_ACTIVE", "false")
	t.Setenv("KATYDID_CONTRACT_VALIDATOR_LOCALE", "zh")

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, s.Validator.MaxDepth)
	assert.False(t, s.Guard.Active)
	assert.Equal(t, "zh", s.Validator.Locale)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"文件不存在", filepath.Join(dir, "missing.yaml")},
		{"未知转换器", writeFile(t, dir, "translator.yaml", "guard:\n  translator: bogus\n")},
		{"负数深度", writeFile(t, dir, "depth.yaml", "validator:\n  max_depth: -1\n")},
		{"未知日志格式", writeFile(t, dir, "format.yaml", "logging:\n  format: xml\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			assert.Error(t, err)
		})
	}
}

func TestNewValidatorFromFile(t *testing.T) {
	dir := t.TempDir()
	constraints := writeFile(t, dir, "member.yaml", memberConstraints)
	settings := writeFile(t, dir, "contract.yaml", `
validator:
  locale: zh
  constraint_files:
    - `+constraints+`
  profiles:
    enabled_by_default: false
    enabled: [default]
`)

	s, err := Load(settings)
	require.NoError(t, err)
	v, err := NewValidator(s)
	require.NoError(t, err)

	violations, err := v.Validate(&member{Nick: "x", Email: "bad", Level: 0})
	require.NoError(t, err)
	require.Len(t, violations, 2, "strict profile 未启用")
	assert.Equal(t, "length", violations[0].CheckName)
	assert.Equal(t, "member.Nick 长度必须在 2 到 12 个字符之间", violations[0].Message)
	assert.Equal(t, "playground", violations[1].CheckName)

	v.EnableProfile("strict")
	violations, err = v.Validate(&member{Nick: "xy", Level: 0})
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "range", violations[0].CheckName)

	assert.Contains(t, v.ConstraintSetIDs(), "nick")
}

func TestNewValidatorWithoutPlaygroundTags(t *testing.T) {
	s := Default()
	s.Validator.PlaygroundTags = false
	v, err := NewValidator(s)
	require.NoError(t, err)

	violations, err := v.Validate(member{Email: "bad"})
	require.NoError(t, err)
	assert.Empty(t, violations)

	s.Validator.ConstraintFiles = []string{filepath.Join(t.TempDir(), "missing.yaml")}
	_, err = NewValidator(s)
	assert.Error(t, err)
}

func TestConfigurers(t *testing.T) {
	s := Default()
	s.Validator.RuleProviders = false
	s.Validator.TagName = "rule"
	configurers, err := s.Configurers(check.NewRegistry())
	require.NoError(t, err)
	assert.Len(t, configurers, 2)
}

type vault struct {
	Secret string `check:"notblank"`
}

func TestNewGuard(t *testing.T) {
	s := Default()
	s.Guard.Translator = TranslatorStandard
	s.Guard.LogCalls = true
	s.Metrics.Enabled = true

	g, err := NewGuard(s, nil)
	require.NoError(t, err)
	assert.True(t, g.IsActive())

	open := guard.NewMethod((*vault)(nil), "Open", "key").Param(0, check.NewNotBlank())
	_, err = g.Invoke(context.Background(), &vault{Secret: "s"}, open, []any{""}, func() (any, error) {
		return nil, nil
	})
	assert.True(t, errors.Is(err, guard.ErrInvalidArgument))
	assert.True(t, errors.Is(err, core.ErrConstraintsViolated))

	s.Guard.Active = false
	s.Guard.PostConditions = false
	g, err = NewGuard(s, nil)
	require.NoError(t, err)
	assert.False(t, g.IsActive())
	assert.False(t, g.IsPostConditionsEnabled())
}

func TestLoggerOptions(t *testing.T) {
	s := Default()
	s.Logging.Format = "json"
	s.Logging.File = filepath.Join(t.TempDir(), "contract.log")
	s.Logging.MaxBackups = 5

	opts := s.LoggerOptions()
	assert.Equal(t, logger.FormatJSON, opts.Format)
	assert.Equal(t, 5, opts.File.MaxBackups)
	assert.Equal(t, s.Logging.File, opts.File.Path)

	s.ApplyLogging()
	t.Cleanup(func() { logger.SetLogger(nil) })
	assert.NotNil(t, logger.GetLogger())
}
