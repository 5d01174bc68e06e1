package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
account:
  contacts: ["admin@example.com"]
domains:
  - Example.com
  - www.example.com
cert_dir: /var/lib/certs
webroot: /var/www/html
cpanel:
  host: https://panel.example.com:2083
  username: user
  password: secret
  basic_auth: true
`

// unsetEnv 清除会覆盖测试 YAML 的环境变量
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func clearOverrides(t *testing.T) {
	unsetEnv(t, "LE_DOMAINS", "LE_CERT_DIR", "DOCUMENT_ROOT", "CPANEL_HOST", "CPANEL_USERNAME",
		"CPANEL_PASSWORD", "LE_ACCOUNT_CONTACTS", "LE_DIRECTORY_URL", "LE_RENEW_BEFORE",
		"LE_LOG_LEVEL", "LE_WEBHOOK_URL")
}

func TestDecodeValid(t *testing.T) {
	clearOverrides(t)

	cfg, err := Decode(strings.NewReader(validYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"example.com", "www.example.com"}, cfg.Domains)
	assert.Equal(t, "example.com", cfg.PrimaryDomain())
	assert.Equal(t, DefaultRenewBefore, cfg.RenewBefore)
	assert.Equal(t, 2592000*time.Second, cfg.RenewBefore)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, DefaultAuthorizationTimeout, cfg.AuthorizationTimeout)
	assert.Equal(t, DefaultKeyType, cfg.Account.KeyType)
	assert.True(t, cfg.CPanel.BasicAuth)
	assert.True(t, cfg.CPanel.SkipTLSVerify())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Webhook.Retries)
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	clearOverrides(t)

	_, err := Decode(strings.NewReader(validYAML + "cpanel_host: https://typo.example.com\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cpanel_host")
}

func TestDecodeDurationsAndTLSFlag(t *testing.T) {
	clearOverrides(t)

	cfg, err := Decode(strings.NewReader(validYAML + `
renew_before: 168h
authorization_timeout: 45s
`))
	require.NoError(t, err)
	assert.Equal(t, 168*time.Hour, cfg.RenewBefore)
	assert.Equal(t, 45*time.Second, cfg.AuthorizationTimeout)

	strict := strings.Replace(validYAML, "basic_auth: true", "basic_auth: true\n  insecure_skip_verify: false", 1)
	cfg, err = Decode(strings.NewReader(strict))
	require.NoError(t, err)
	assert.False(t, cfg.CPanel.SkipTLSVerify())
}

func TestEnvironmentOverrides(t *testing.T) {
	clearOverrides(t)
	t.Setenv("CPANEL_PASSWORD", "from-env")
	t.Setenv("DOCUMENT_ROOT", "/srv/public_html")

	cfg, err := Decode(strings.NewReader(validYAML))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.CPanel.Password)
	assert.Equal(t, "/srv/public_html", cfg.Webroot)
}

func TestDecodeValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{"no domains", strings.Replace(validYAML, "  - Example.com\n  - www.example.com\n", "", 1), ErrNoDomains},
		{"no contacts", strings.Replace(validYAML, `contacts: ["admin@example.com"]`, "contacts: []", 1), ErrNoContacts},
		{"no cert dir", strings.Replace(validYAML, "cert_dir: /var/lib/certs", "", 1), ErrNoCertDir},
		{"no webroot", strings.Replace(validYAML, "webroot: /var/www/html", "", 1), ErrNoWebroot},
		{"no password", strings.Replace(validYAML, "password: secret", "", 1), ErrCPanelIncomplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearOverrides(t)
			_, err := Decode(strings.NewReader(tt.yaml))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecodeRejectsBadValues(t *testing.T) {
	clearOverrides(t)

	_, err := Decode(strings.NewReader(strings.Replace(validYAML, "https://panel.example.com:2083", "panel.example.com", 1)))
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(validYAML + "account_extra: 1\n"))
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(strings.Replace(validYAML, "  - www.example.com", "  - \"*.example.com\"", 1)))
	assert.Error(t, err)
}

func TestLoadAndEnvFile(t *testing.T) {
	clearOverrides(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(validYAML, "password: secret", "", 1)), 0o600))

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("CPANEL_PASSWORD=dotenv-secret\n"), 0o600))
	require.NoError(t, LoadEnvFile(envPath, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-secret", cfg.CPanel.Password)

	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env"), false))
	assert.Error(t, LoadEnvFile(filepath.Join(dir, "missing.env"), true))

	_, err = Load(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}
