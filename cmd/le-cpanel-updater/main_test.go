package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kukawski/le-cpanel-updater/internal/core"
	"github.com/kukawski/le-cpanel-updater/internal/provider"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitError, exitCode(errors.New("boom")))
	assert.Equal(t, exitRenewalDue, exitCode(errRenewalDue))
	assert.Equal(t, exitOrder, exitCode(fmt.Errorf("wrapped: %w", &core.OrderError{Stage: core.StageFinalize, Err: errors.New("x")})))
	assert.Equal(t, exitInstall, exitCode(&provider.InstallError{Reason: provider.ReasonTransport}))
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
account:
  contacts: [admin@example.com]
domains: [example.com]
cert_dir: %s
webroot: %s
cpanel:
  host: https://panel.example.com:2083
  username: user
  password: secret
`, filepath.Join(dir, "certs"), filepath.Join(dir, "www"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCheckCommandReportsDue(t *testing.T) {
	path := writeConfig(t)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"check", "--config", path, "--env-file", ""})

	err := root.Execute()
	assert.ErrorIs(t, err, errRenewalDue)
	assert.Equal(t, exitRenewalDue, exitCode(err))
	assert.Contains(t, out.String(), "certificate: none")
	assert.Contains(t, out.String(), "renewal:     due")
}

func TestMissingConfig(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"check", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "--env-file", ""})

	err := root.Execute()
	require.Error(t, err)
	assert.Equal(t, exitError, exitCode(err))
}

func TestMissingExplicitEnvFile(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"check", "--config", writeConfig(t), "--env-file", filepath.Join(t.TempDir(), "missing.env")})

	assert.Error(t, root.Execute())
}
