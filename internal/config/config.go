package config

import "time"

// Config 配置
type Config struct {
	// ACME 账户
	Account AccountConfig `yaml:"account"`

	// 证书域名，第一个为主域名（CN）
	Domains []string `yaml:"domains" env:"LE_DOMAINS" envSeparator:","`

	// 存放 certificate.crt、private.pem、fullchain.crt 的目录
	CertDir string `yaml:"cert_dir" env:"LE_CERT_DIR"`

	// 通过 HTTP 对外提供的文档根目录，挑战文件发布于此
	Webroot string `yaml:"webroot" env:"DOCUMENT_ROOT"`

	// 控制面板
	CPanel CPanelConfig `yaml:"cpanel"`

	RenewBefore          time.Duration `yaml:"renew_before" env:"LE_RENEW_BEFORE"` // 续期阈值，默认 720h
	RenewOnDomainChange  bool          `yaml:"renew_on_domain_change"`            // 证书缺少配置的域名时续期
	RequestTimeout       time.Duration `yaml:"request_timeout"`                   // 单个 ACME 请求超时，默认 30s
	AuthorizationTimeout time.Duration `yaml:"authorization_timeout"`             // ACME 轮询等待上限，默认 2m
	PostCommand          string        `yaml:"post_command"`                      // 安装成功后执行

	Log     LogConfig     `yaml:"log"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// AccountConfig ACME 账户配置
type AccountConfig struct {
	Contacts     []string `yaml:"contacts" env:"LE_ACCOUNT_CONTACTS" envSeparator:","`
	DirectoryURL string   `yaml:"directory_url" env:"LE_DIRECTORY_URL"`
	Staging      bool     `yaml:"staging"`
	KeyType      string   `yaml:"key_type"` // 证书密钥类型：P256, P384, 2048, 3072, 4096, 8192
}

// CPanelConfig 控制面板配置
type CPanelConfig struct {
	Host      string `yaml:"host" env:"CPANEL_HOST"`
	Username  string `yaml:"username" env:"CPANEL_USERNAME"`
	Password  string `yaml:"password" env:"CPANEL_PASSWORD"`
	BasicAuth bool   `yaml:"basic_auth"`

	// 面板常用自签名证书或 IP 访问，未显式设为 false 时不校验证书
	InsecureSkipVerify *bool         `yaml:"insecure_skip_verify"`
	Timeout            time.Duration `yaml:"timeout"`
}

// SkipTLSVerify 是否跳过面板 TLS 校验
func (c CPanelConfig) SkipTLSVerify() bool {
	return c.InsecureSkipVerify == nil || *c.InsecureSkipVerify
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level" env:"LE_LOG_LEVEL"` // debug, info, warn, error
	Format string `yaml:"format"`                   // console, json
	File   string `yaml:"file"`                     // 可选日志文件，与 stderr 同时输出
}

// WebhookConfig Webhook 通知配置
type WebhookConfig struct {
	Enabled      bool              `yaml:"enabled"`
	URL          string            `yaml:"url" env:"LE_WEBHOOK_URL"`
	Headers      map[string]string `yaml:"headers,omitempty"`
	Events       []string          `yaml:"events,omitempty"`        // 订阅的事件，为空表示全部
	Timeout      int               `yaml:"timeout,omitempty"`       // 秒，默认 30
	Retries      int               `yaml:"retries,omitempty"`       // 尝试次数，默认 3
	BodyTemplate string            `yaml:"body_template,omitempty"` // 请求体模板（text/template）
}

// PrimaryDomain 返回主域名
func (c *Config) PrimaryDomain() string {
	if len(c.Domains) == 0 {
		return ""
	}
	return c.Domains[0]
}
