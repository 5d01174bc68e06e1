package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/lego"
	"go.uber.org/zap"

	"github.com/kukawski/le-cpanel-updater/internal/config"
	"github.com/kukawski/le-cpanel-updater/internal/notification"
	"github.com/kukawski/le-cpanel-updater/internal/provider"
	acmeprovider "github.com/kukawski/le-cpanel-updater/internal/provider/acme"
	"github.com/kukawski/le-cpanel-updater/internal/provider/cpanel"
	"github.com/kukawski/le-cpanel-updater/internal/storage"
)

// Factory 创建并缓存运行所需组件
type Factory struct {
	config  *config.Config
	storage *storage.FileStorage
	logger  *zap.Logger

	store     *acmeprovider.Store
	orders    provider.OrderProvider
	installer provider.Installer
}

// NewFactory 创建工厂
func NewFactory(cfg *config.Config, st *storage.FileStorage, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		config:  cfg,
		storage: st,
		logger:  logger,
	}
}

// DirectoryURL 返回配置的 ACME 目录，默认 Let's Encrypt
func DirectoryURL(cfg *config.Config) string {
	switch {
	case cfg.Account.DirectoryURL != "":
		return cfg.Account.DirectoryURL
	case cfg.Account.Staging:
		return lego.LEDirectoryStaging
	default:
		return lego.LEDirectoryProduction
	}
}

// GetOrderProvider 获取 ACME 提供者，首次使用时打开状态数据库
func (f *Factory) GetOrderProvider() (provider.OrderProvider, error) {
	if f.orders != nil {
		return f.orders, nil
	}

	if err := os.MkdirAll(f.config.CertDir, 0o755); err != nil {
		return nil, fmt.Errorf("create certificate directory: %w", err)
	}
	directoryURL := DirectoryURL(f.config)
	store, err := acmeprovider.OpenStore(filepath.Join(f.config.CertDir, acmeprovider.StoreFile), directoryURL)
	if err != nil {
		return nil, fmt.Errorf("open acme state: %w", err)
	}
	f.store = store

	f.orders = acmeprovider.NewProvider(acmeprovider.Config{
		DirectoryURL:         directoryURL,
		Contacts:             f.config.Account.Contacts,
		KeyType:              certcrypto.KeyType(f.config.Account.KeyType),
		RequestTimeout:       f.config.RequestTimeout,
		AuthorizationTimeout: f.config.AuthorizationTimeout,
	}, store, f.storage, f.logger)
	return f.orders, nil
}

// GetInstaller 获取 cPanel 安装器
func (f *Factory) GetInstaller() provider.Installer {
	if f.installer != nil {
		return f.installer
	}
	f.installer = cpanel.NewInstaller(cpanel.Config{
		Host:               f.config.CPanel.Host,
		Username:           f.config.CPanel.Username,
		Password:           f.config.CPanel.Password,
		Domain:             f.config.PrimaryDomain(),
		BasicAuth:          f.config.CPanel.BasicAuth,
		InsecureSkipVerify: f.config.CPanel.SkipTLSVerify(),
		Timeout:            f.config.CPanel.Timeout,
	}, f.storage, f.logger)
	return f.installer
}

// GetNotifier 获取 Webhook 通知器，未启用时为 nil
func (f *Factory) GetNotifier() *notification.WebhookNotifier {
	return notification.NewWebhookNotifier(&f.config.Webhook, f.logger)
}

// Close 关闭 ACME 状态数据库
func (f *Factory) Close() error {
	if f.store == nil {
		return nil
	}
	err := f.store.Close()
	f.store = nil
	return err
}
