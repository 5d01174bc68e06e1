// Package acme 基于 RFC 8555 目录实现证书订单
package acme

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme"

	"github.com/kukawski/le-cpanel-updater/internal/provider"
	"github.com/kukawski/le-cpanel-updater/internal/storage"
)

// DefaultUserAgent ACME 请求的 User-Agent
const DefaultUserAgent = "le-cpanel-updater/1.0"

// Config ACME 配置
type Config struct {
	DirectoryURL         string
	Contacts             []string
	KeyType              certcrypto.KeyType // 证书密钥类型，账户密钥固定 EC256
	RequestTimeout       time.Duration
	AuthorizationTimeout time.Duration
	UserAgent            string
}

// Provider ACME 证书订单提供者
type Provider struct {
	cfg     Config
	store   *Store
	storage *storage.FileStorage
	logger  *zap.Logger

	client *acme.Client // 账户就绪前为 nil
}

// NewProvider 创建 ACME 提供者
func NewProvider(cfg Config, store *Store, st *storage.FileStorage, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.KeyType == "" {
		cfg.KeyType = certcrypto.RSA2048
	}
	return &Provider{
		cfg:     cfg,
		store:   store,
		storage: st,
		logger:  logger.Named("acme"),
	}
}

// Name 返回提供者名称
func (p *Provider) Name() string {
	return "acme"
}

// GetOrCreateOrder 复用同一域名集合仍可用的订单，否则新建
func (p *Provider) GetOrCreateOrder(ctx context.Context, primaryDomain string, domains []string) (provider.Order, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, err
	}

	names := orderDomains(primaryDomain, domains)

	if url, err := p.store.OrderURL(names); err != nil {
		return nil, fmt.Errorf("read stored order: %w", err)
	} else if url != "" {
		existing, err := client.GetOrder(ctx, url)
		if err != nil {
			p.logger.Debug("stored order is not retrievable, creating a new one",
				zap.String("order", url), zap.Error(err))
		} else {
			key, err := p.store.CertificateKey(url)
			if err != nil {
				return nil, fmt.Errorf("read certificate key: %w", err)
			}
			if reusable(existing, names, key != nil, time.Now()) {
				p.logger.Info("reusing existing order",
					zap.String("order", url), zap.String("status", existing.Status))
				return p.newOrder(client, url, names), nil
			}
			p.logger.Debug("stored order is not reusable",
				zap.String("order", url), zap.String("status", existing.Status))
		}
	}

	created, err := client.AuthorizeOrder(ctx, acme.DomainIDs(names...))
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if err := p.store.SaveOrderURL(names, created.URI); err != nil {
		return nil, fmt.Errorf("remember order: %w", err)
	}
	p.logger.Info("created order",
		zap.String("order", created.URI), zap.Strings("domains", names))

	return p.newOrder(client, created.URI, names), nil
}

func (p *Provider) newOrder(client *acme.Client, url string, names []string) *order {
	return &order{
		p:       p,
		client:  client,
		url:     url,
		domains: names,
		pending: make(map[string]pendingAuthz),
	}
}

// getClient 加载或生成账户密钥并确保账户已注册
func (p *Provider) getClient(ctx context.Context) (*acme.Client, error) {
	if p.client != nil {
		return p.client, nil
	}

	key, err := p.accountKey()
	if err != nil {
		return nil, err
	}

	client := &acme.Client{
		Key:          key,
		DirectoryURL: p.cfg.DirectoryURL,
		HTTPClient:   &http.Client{Timeout: p.cfg.RequestTimeout},
		UserAgent:    p.cfg.UserAgent,
	}

	if err := p.ensureAccount(ctx, client); err != nil {
		return nil, err
	}

	p.client = client
	return client, nil
}

func (p *Provider) accountKey() (crypto.Signer, error) {
	data, err := p.store.AccountKey()
	if err != nil {
		return nil, fmt.Errorf("read account key: %w", err)
	}
	if data != nil {
		key, err := certcrypto.ParsePEMPrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("parse account key: %w", err)
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("account key of type %T cannot sign", key)
		}
		return signer, nil
	}

	p.logger.Info("generating new account key")
	key, err := certcrypto.GeneratePrivateKey(certcrypto.EC256)
	if err != nil {
		return nil, fmt.Errorf("generate account key: %w", err)
	}
	if err := p.store.SaveAccountKey(certcrypto.PEMEncode(key)); err != nil {
		return nil, fmt.Errorf("save account key: %w", err)
	}
	return key.(crypto.Signer), nil
}

func (p *Provider) ensureAccount(ctx context.Context, client *acme.Client) error {
	url, err := p.store.AccountURL()
	if err != nil {
		return fmt.Errorf("read account url: %w", err)
	}
	if url != "" {
		client.KID = acme.KeyID(url)
		p.logger.Debug("using stored account", zap.String("account", url))
		return nil
	}

	acct, err := client.Register(ctx, &acme.Account{Contact: contactURIs(p.cfg.Contacts)}, acme.AcceptTOS)
	if errors.Is(err, acme.ErrAccountAlreadyExists) {
		acct, err = client.GetReg(ctx, "")
	}
	if err != nil {
		return fmt.Errorf("register account: %w", err)
	}
	if acct.Status != acme.StatusValid {
		return fmt.Errorf("unexpected account status %q", acct.Status)
	}

	if err := p.store.SaveAccountURL(acct.URI); err != nil {
		return fmt.Errorf("save account url: %w", err)
	}
	p.logger.Info("registered account", zap.String("account", acct.URI))
	return nil
}

// reusable 判断已保存的订单能否继续，已 finalize 的订单需要证书密钥
func reusable(o *acme.Order, domains []string, haveKey bool, now time.Time) bool {
	switch o.Status {
	case acme.StatusInvalid:
		return false
	case acme.StatusProcessing, acme.StatusValid:
		if !haveKey {
			return false
		}
	}
	if !o.Expires.IsZero() && !o.Expires.After(now) {
		return false
	}

	values := make([]string, 0, len(o.Identifiers))
	for _, id := range o.Identifiers {
		values = append(values, id.Value)
	}
	return domainSetKey(values) == domainSetKey(domains)
}

// orderDomains 主域名放在首位且不重复
func orderDomains(primary string, domains []string) []string {
	out := make([]string, 0, len(domains)+1)
	if primary != "" {
		out = append(out, primary)
	}
	for _, d := range domains {
		if !strings.EqualFold(d, primary) {
			out = append(out, d)
		}
	}
	return out
}

func contactURIs(contacts []string) []string {
	out := make([]string, 0, len(contacts))
	for _, c := range contacts {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if !strings.Contains(c, ":") {
			c = "mailto:" + c
		}
		out = append(out, c)
	}
	return out
}
