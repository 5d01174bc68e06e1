// Package cpanel 通过 cPanel UAPI 安装证书
package cpanel

import (
	"context"
	"crypto/tls"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kukawski/le-cpanel-updater/internal/provider"
	"github.com/kukawski/le-cpanel-updater/internal/storage"
)

// InstallPath 安装证书的 UAPI 接口
const InstallPath = "/execute/SSL/install_ssl"

var certBlock = regexp.MustCompile(`(?i)-----BEGIN\sCERTIFICATE-----[\s\S]+?-----END\sCERTIFICATE-----`)

// Config cPanel 安装器配置
type Config struct {
	Host     string
	Username string
	Password string
	Domain   string // 安装证书的主域名

	// BasicAuth 使用 HTTP Basic 认证，否则发送 "Authorization: cpanel user:pass"
	BasicAuth bool

	// InsecureSkipVerify 跳过面板证书校验
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// Payload 安装请求表单
type Payload struct {
	Domain   string
	Cert     string
	Key      string
	CABundle string
}

func (p Payload) formData() map[string]string {
	return map[string]string{
		"domain":   p.Domain,
		"cert":     p.Cert,
		"key":      p.Key,
		"cabundle": p.CABundle,
	}
}

// Installer cPanel 证书安装器
type Installer struct {
	cfg     Config
	storage *storage.FileStorage
	client  *resty.Client
	logger  *zap.Logger
}

// NewInstaller 创建 cPanel 安装器
func NewInstaller(cfg Config, st *storage.FileStorage, logger *zap.Logger) *Installer {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.Host, "/")).
		SetTLSClientConfig(&tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // 面板常用自签名证书
		})
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &Installer{
		cfg:     cfg,
		storage: st,
		client:  client,
		logger:  logger.Named("cpanel"),
	}
}

// Name 返回安装器名称
func (i *Installer) Name() string {
	return "cpanel"
}

// Install 上传证书、私钥和 CA 证书链，面板响应只记录不解析
func (i *Installer) Install(ctx context.Context) error {
	if missing := i.storage.Missing(); len(missing) > 0 {
		err := &provider.InstallError{
			Reason: provider.ReasonMissingBundle,
			Err:    fmt.Errorf("missing %s in %s", strings.Join(missing, ", "), i.storage.GetCertDir()),
		}
		i.logger.Error("certificate bundle incomplete", zap.Error(err))
		return err
	}

	bundle, err := i.storage.LoadCertificate()
	if err != nil {
		err = &provider.InstallError{Reason: provider.ReasonMissingBundle, Err: err}
		i.logger.Error("failed to read certificate bundle", zap.Error(err))
		return err
	}

	caBundle, blocks := ExtractCABundle(string(bundle.Fullchain))
	if caBundle == "" {
		i.logger.Warn("full chain has no intermediate certificates, installing without CA bundle",
			zap.String("path", i.storage.GetFullchainPath()),
			zap.Int("blocks", blocks))
	}

	payload := Payload{
		Domain:   i.cfg.Domain,
		Cert:     string(bundle.Certificate),
		Key:      string(bundle.PrivateKey),
		CABundle: caBundle,
	}

	req := i.client.R().
		SetContext(ctx).
		SetFormData(payload.formData())
	if i.cfg.BasicAuth {
		req.SetBasicAuth(i.cfg.Username, i.cfg.Password)
	} else {
		req.SetHeader("Authorization", fmt.Sprintf("cpanel %s:%s", i.cfg.Username, i.cfg.Password))
	}

	i.logger.Info("installing certificate", zap.String("domain", payload.Domain), zap.String("host", i.cfg.Host))

	resp, err := req.Post(InstallPath)
	if err != nil {
		err = &provider.InstallError{Reason: provider.ReasonTransport, Err: err}
		i.logger.Error("install request failed", zap.Error(err))
		return err
	}

	// TODO: install_ssl 的失败约定确定后解析 UAPI status 字段
	i.logger.Debug("control panel response",
		zap.Int("status", resp.StatusCode()),
		zap.String("body", resp.String()))
	return nil
}

// ExtractCABundle 返回第一个之后的全部证书块（换行连接）及证书块总数
func ExtractCABundle(fullchain string) (string, int) {
	blocks := certBlock.FindAllString(fullchain, -1)
	if len(blocks) < 2 {
		return "", len(blocks)
	}
	return strings.Join(blocks[1:], "\n"), len(blocks)
}
