package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kukawski/le-cpanel-updater/internal/config"
	"github.com/kukawski/le-cpanel-updater/internal/logging"
	"github.com/kukawski/le-cpanel-updater/internal/notification"
	"github.com/kukawski/le-cpanel-updater/internal/provider"
	"github.com/kukawski/le-cpanel-updater/internal/storage"
)

// Manager 证书续期管理器
type Manager struct {
	config    *config.Config
	factory   *Factory
	storage   *storage.FileStorage
	validator *Validator
	responder *Responder
	executor  *Executor
	logger    *zap.Logger

	orders    provider.OrderProvider
	installer provider.Installer
	notifier  *notification.WebhookNotifier
}

// Option 管理器选项
type Option func(*Manager)

// WithOrderProvider 替换 ACME 提供者
func WithOrderProvider(p provider.OrderProvider) Option {
	return func(m *Manager) { m.orders = p }
}

// WithInstaller 替换面板安装器
func WithInstaller(i provider.Installer) Option {
	return func(m *Manager) { m.installer = i }
}

// WithNotifier 替换 Webhook 通知器
func WithNotifier(n *notification.WebhookNotifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// NewManager 创建管理器
func NewManager(cfg *config.Config, logger *zap.Logger, opts ...Option) *Manager {
	logger = logging.OrNop(logger)
	st := storage.NewFileStorage(cfg.CertDir)
	m := &Manager{
		config:    cfg,
		factory:   NewFactory(cfg, st, logger),
		storage:   st,
		validator: NewValidator(st, logger),
		responder: NewResponder(cfg.Webroot, logger),
		executor:  NewExecutor(logger),
		logger:    logger,
	}
	m.notifier = m.factory.GetNotifier()
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Status 检查结果
type Status struct {
	Due     bool
	Reason  string
	Info    *provider.CertificateInfo // 无可读证书时为 nil
	Missing []string                  // 缺失的证书文件
}

// Check 检查本地证书，不发起网络请求
func (m *Manager) Check() Status {
	s := Status{Missing: m.storage.Missing()}
	if info, err := m.validator.Info(); err == nil {
		s.Info = info
	}

	switch {
	case m.validator.ExpiresWithin(m.config.RenewBefore):
		s.Due = true
		if s.Info == nil {
			s.Reason = "no readable certificate"
		} else {
			s.Reason = fmt.Sprintf("expires within %s", m.config.RenewBefore)
		}
	case m.config.RenewOnDomainChange && !m.validator.Covers(m.config.Domains):
		s.Due = true
		s.Reason = "configured domains not covered"
	}
	return s
}

// Run 到期或 force 时续期并安装证书，未续期则不安装
func (m *Manager) Run(ctx context.Context, force bool) error {
	domain := m.config.PrimaryDomain()
	m.logger.Info("checking certificate", zap.String("domain", domain), zap.String("dir", m.config.CertDir))

	status := m.Check()
	if !status.Due && !force {
		fields := []zap.Field{}
		if status.Info != nil {
			fields = append(fields, zap.Time("not_after", status.Info.NotAfter))
		}
		m.logger.Info("certificate is valid, nothing to do", fields...)
		return nil
	}

	if status.Due {
		m.logger.Info("certificate renewal due", zap.String("reason", status.Reason))
		if status.Info != nil {
			m.notify(m.notifier.NotifyCertExpiring(ctx, domain, status.Info.NotAfter))
		}
	} else {
		m.logger.Info("forcing renewal")
	}

	if err := m.Issue(ctx); err != nil {
		return err
	}

	return m.Install(ctx)
}

// Issue 申请证书
func (m *Manager) Issue(ctx context.Context) error {
	domain := m.config.PrimaryDomain()

	orders, err := m.orderProvider()
	if err != nil {
		oe := &OrderError{Stage: StageOrder, Err: err}
		m.logger.Error("certificate order failed", zap.String("stage", string(oe.Stage)), zap.Error(err))
		m.notify(m.notifier.NotifyCertFailed(ctx, domain, string(oe.Stage), err))
		return oe
	}

	orch := NewOrchestrator(orders, m.responder, m.config.Domains, m.logger)
	if err := orch.IssueCertificate(ctx); err != nil {
		stage := ""
		var oe *OrderError
		if errors.As(err, &oe) {
			stage = string(oe.Stage)
		}
		m.notify(m.notifier.NotifyCertFailed(ctx, domain, stage, err))
		return err
	}

	var notAfter time.Time
	if info, err := m.validator.Info(); err == nil {
		notAfter = info.NotAfter
	}
	m.notify(m.notifier.NotifyCertRenewed(ctx, domain, notAfter))
	return nil
}

// Install 提交证书到面板并执行后置命令
func (m *Manager) Install(ctx context.Context) error {
	domain := m.config.PrimaryDomain()

	if err := m.getInstaller().Install(ctx); err != nil {
		reason := ""
		var ie *provider.InstallError
		if errors.As(err, &ie) {
			reason = string(ie.Reason)
		}
		m.notify(m.notifier.NotifyInstallFailed(ctx, domain, reason, err))
		return err
	}
	m.notify(m.notifier.NotifyCertInstalled(ctx, domain, m.config.CPanel.Host))

	if m.config.PostCommand != "" {
		vars := m.executor.BuildVars(
			domain,
			m.storage.GetCertDir(),
			m.storage.GetCertPath(),
			m.storage.GetKeyPath(),
			m.storage.GetFullchainPath(),
		)
		if err := m.executor.RunPostCommand(ctx, m.config.PostCommand, vars); err != nil {
			m.logger.Error("post command failed", zap.Error(err))
		}
	}

	m.logger.Info("certificate installed", zap.String("domain", domain))
	return nil
}

// Close 释放资源
func (m *Manager) Close() error {
	return m.factory.Close()
}

func (m *Manager) orderProvider() (provider.OrderProvider, error) {
	if m.orders != nil {
		return m.orders, nil
	}
	return m.factory.GetOrderProvider()
}

func (m *Manager) getInstaller() provider.Installer {
	if m.installer != nil {
		return m.installer
	}
	return m.factory.GetInstaller()
}

// notify 通知失败只记录日志，不影响运行结果
func (m *Manager) notify(err error) {
	if err != nil {
		m.logger.Warn("notification failed", zap.Error(err))
	}
}
