package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const goodConstraints = `
constraintSets:
  - id: username
    checks: ["notblank", "length(3, 20)"]
types:
  - type: model.User
    fields:
      - name: Name
        checks: ["set(username)"]
`

func TestLint(t *testing.T) {
	good := writeFile(t, "good.yaml", goodConstraints)
	unknownCheck := writeFile(t, "unknown.yaml", "types:\n  - type: model.User\n    fields:\n      - name: Name\n        checks: [\"nosuchcheck\"]\n")
	unknownKey := writeFile(t, "key.yaml", "typos:\n  - type: model.User\n")

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		output  []string
	}{
		{"合法文件", []string{"lint", good}, false, []string{"ok   " + good, "1 types, 1 constraint sets", "- model.User"}},
		{"未知校验", []string{"lint", good, unknownCheck}, true, []string{"FAIL " + unknownCheck, "nosuchcheck"}},
		{"未知字段", []string{"lint", unknownKey}, true, []string{"FAIL " + unknownKey}},
		{"没有文件", []string{"lint"}, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			for _, s := range tt.output {
				assert.Contains(t, out, s)
			}
		})
	}
}

func TestLintFailureIsTyped(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	_, err := run(t, "lint", missing)
	assert.True(t, errors.Is(err, errLintFailed))
}

func TestLintFromConfig(t *testing.T) {
	constraints := writeFile(t, "good.yaml", goodConstraints)
	settings := writeFile(t, "contract.yaml", "validator:\n  constraint_files:\n    - "+constraints+"\n")

	out, err := run(t, "lint", "--from-config", "--config", settings)
	require.NoError(t, err)
	assert.Contains(t, out, "ok   "+constraints)
}

func TestParse(t *testing.T) {
	out, err := run(t, "parse", "notblank; length(3, 20, profiles=create)")
	require.NoError(t, err)
	assert.Contains(t, out, "notblank()")
	assert.Contains(t, out, "length(3, 20, profiles=create)")
	assert.Contains(t, out, "code: katydid.contract.length")
	assert.Contains(t, out, "profiles: [create]")

	_, err = run(t, "parse", "length(3")
	assert.Error(t, err)
	_, err = run(t, "parse", "nosuchcheck")
	assert.Error(t, err)
}

func TestChecks(t *testing.T) {
	out, err := run(t, "checks")
	require.NoError(t, err)
	for _, name := range []string{"notnull", "notblank", "length", "valid", "set", "playground"} {
		assert.Contains(t, out, name+"\n")
	}
}

func TestConfig(t *testing.T) {
	t.Setenv("KATYDID_CONTRACT_VALIDATOR_LOCALE", "zh")
	out, err := run(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "locale: zh")
	assert.Contains(t, out, "max_depth: 100")
	assert.Contains(t, out, "translator: default")
}
