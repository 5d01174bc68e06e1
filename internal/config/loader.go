package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kukawski/le-cpanel-updater/internal/domain"
)

const (
	DefaultRenewBefore          = 30 * 24 * time.Hour
	DefaultRequestTimeout       = 30 * time.Second
	DefaultAuthorizationTimeout = 2 * time.Minute
	DefaultCPanelTimeout        = 30 * time.Second
	DefaultKeyType              = "2048"
)

var (
	ErrNoDomains        = errors.New("no domains configured")
	ErrNoContacts       = errors.New("no account contact configured")
	ErrNoCertDir        = errors.New("cert_dir is required")
	ErrNoWebroot        = errors.New("webroot is required (set webroot or DOCUMENT_ROOT)")
	ErrCPanelIncomplete = errors.New("cpanel host, username and password are required")
)

var keyTypes = map[string]bool{"P256": true, "P384": true, "2048": true, "3072": true, "4096": true, "8192": true}

// Load 读取配置文件
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode 解析 YAML，应用环境变量和默认值并校验，未知字段报错
func Decode(r io.Reader) (*Config, error) {
	var config Config

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadEnvFile 加载 dotenv 文件，不覆盖已有变量；required 为 false 时文件可缺失
func LoadEnvFile(path string, required bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func applyDefaults(config *Config) {
	if config.RenewBefore == 0 {
		config.RenewBefore = DefaultRenewBefore
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}
	if config.AuthorizationTimeout == 0 {
		config.AuthorizationTimeout = DefaultAuthorizationTimeout
	}
	if config.CPanel.Timeout == 0 {
		config.CPanel.Timeout = DefaultCPanelTimeout
	}
	if config.Account.KeyType == "" {
		config.Account.KeyType = DefaultKeyType
	}
	if config.CPanel.InsecureSkipVerify == nil {
		skip := true
		config.CPanel.InsecureSkipVerify = &skip
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "console"
	}
	if config.Webhook.Timeout <= 0 {
		config.Webhook.Timeout = 30
	}
	if config.Webhook.Retries <= 0 {
		config.Webhook.Retries = 3
	}

	config.Domains = domain.NormalizeList(config.Domains)
}

func validate(config *Config) error {
	if len(config.Domains) == 0 {
		return ErrNoDomains
	}
	for _, name := range config.Domains {
		if err := domain.Validate(name); err != nil {
			return fmt.Errorf("domain %q: %w", name, err)
		}
	}

	if len(config.Account.Contacts) == 0 {
		return ErrNoContacts
	}
	if !keyTypes[config.Account.KeyType] {
		return fmt.Errorf("unsupported account.key_type %q", config.Account.KeyType)
	}

	if config.CertDir == "" {
		return ErrNoCertDir
	}
	if config.Webroot == "" {
		return ErrNoWebroot
	}

	if config.CPanel.Host == "" || config.CPanel.Username == "" || config.CPanel.Password == "" {
		return ErrCPanelIncomplete
	}
	u, err := url.Parse(config.CPanel.Host)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return fmt.Errorf("invalid cpanel.host %q", config.CPanel.Host)
	}

	if config.RenewBefore < 0 {
		return fmt.Errorf("renew_before must not be negative")
	}

	if config.Webhook.Enabled && config.Webhook.URL == "" {
		return fmt.Errorf("webhook.url is required when webhook is enabled")
	}

	switch config.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unsupported log.format %q", config.Log.Format)
	}

	return nil
}
