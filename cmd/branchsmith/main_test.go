package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vilaca/branchsmith/internal/branch"
	"github.com/vilaca/branchsmith/internal/config"
)

// run executes the CLI in an isolated home and working directory.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, key := range []string{"GITHUB_TOKEN", "GITHUB_OWNER", "PORT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), err
}

// TestGenerate_Text tests the default output of a single-service generate.
// Follows AAA (Arrange, Act, Assert) pattern.
func TestGenerate_Text(t *testing.T) {
	// Arrange
	args := []string{"generate", "用户登录功能", "--service", "auth-service", "--id", "PROJ-123456"}

	// Act
	out, err := run(t, args...)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "✓ feature/auth-service-user-login-feature-123456 (feature)\n", out)
}

func TestGenerate_MultiJSON(t *testing.T) {
	out, err := run(t, "generate", "fix", "login", "bug", "-s", "svc-a", "-s", "svc-b", "--id", "T-000042", "-o", "json")

	require.NoError(t, err)
	var results []branch.ServiceResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "bugfix/svc-a-fix-login-bug-000042", results[0].BranchName)
	assert.Equal(t, "svc-b", results[1].ServiceName)
}

func TestGenerate_YAML(t *testing.T) {
	out, err := run(t, "generate", "update readme", "-s", "docs-site", "-o", "yaml")

	require.NoError(t, err)
	var result map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &result))
	assert.Equal(t, "docs/docs-site-update-readme", result["branchName"])
	assert.Equal(t, "docs", result["taskType"])
}

func TestGenerate_Errors(t *testing.T) {
	_, err := run(t, "generate", "x")
	assert.Error(t, err, "--service is required")

	_, err = run(t, "generate", "x", "-s", "svc", "--priority", "urgent")
	assert.Error(t, err)

	_, err = run(t, "generate", "x", "-s", "svc", "-o", "xml")
	assert.Error(t, err)
}

// TestValidate tests output and the failure sentinel for invalid names.
func TestValidate(t *testing.T) {
	out, err := run(t, "validate", "feature/ok-name", "bad name")

	assert.True(t, errors.Is(err, errValidationFailed))
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "✓ feature/ok-name", lines[0])
	assert.Equal(t, "✗ bad name: "+branch.MsgInvalidCharacters, lines[1])

	_, err = run(t, "validate", "feature/ok-name")
	assert.NoError(t, err)
}

func TestClassify(t *testing.T) {
	out, err := run(t, "classify", "重构", "支付模块")

	require.NoError(t, err)
	assert.Equal(t, "refactor\n", out)
}

func TestTemplates(t *testing.T) {
	out, err := run(t, "templates")

	require.NoError(t, err)
	assert.Contains(t, out, "{prefix}/{service}-{title}-{id}")
	assert.Equal(t, 5, strings.Count(out, "\n"))
}

func TestCheckout(t *testing.T) {
	out, err := run(t, "checkout", "feature/x-y", "--base", "develop")

	require.NoError(t, err)
	assert.Equal(t, branch.CheckoutCommand("feature/x-y", "develop")+"\n", out)

	_, err = run(t, "checkout", "-bad")
	assert.Error(t, err)
}

// TestConfigInit tests that the starter config is written once and loads.
func TestConfigInit(t *testing.T) {
	// Arrange
	path := filepath.Join(t.TempDir(), "conf", "branchsmith.yaml")

	// Act
	out, err := run(t, "config", "init", "--config", path)
	require.NoError(t, err)
	_, again := run(t, "config", "init", "--config", path)

	// Assert
	assert.Contains(t, out, path)
	assert.Error(t, again)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.GitHub.Configs, 1)
	assert.Equal(t, "your-org", cfg.GitHub.Configs[0].Owner)
	assert.Equal(t, "example-service", cfg.Services[0].Name)
}

func TestPRStatus_NoCredentials(t *testing.T) {
	_, err := run(t, "pr", "status", "https://github.com/acme/svc/pull/1", "-s", "svc")

	assert.ErrorContains(t, err, "github configuration not found")
}
