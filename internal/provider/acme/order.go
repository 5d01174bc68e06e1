package acme

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-acme/lego/v4/certcrypto"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme"

	"github.com/kukawski/le-cpanel-updater/internal/provider"
)

type pendingAuthz struct {
	authzURL  string
	challenge *acme.Challenge
}

// order 单个 ACME 订单
type order struct {
	p       *Provider
	client  *acme.Client
	url     string
	domains []string

	pending map[string]pendingAuthz // 按标识索引
	chain   [][]byte                // finalize 返回的 DER 证书链
}

func (o *order) refresh(ctx context.Context) (*acme.Order, error) {
	ord, err := o.client.GetOrder(ctx, o.url)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return ord, nil
}

func (o *order) AllAuthorizationsValid(ctx context.Context) (bool, error) {
	ord, err := o.refresh(ctx)
	if err != nil {
		return false, err
	}
	switch ord.Status {
	case acme.StatusReady, acme.StatusProcessing, acme.StatusValid:
		return true, nil
	}

	for _, u := range ord.AuthzURLs {
		az, err := o.client.GetAuthorization(ctx, u)
		if err != nil {
			return false, fmt.Errorf("get authorization: %w", err)
		}
		if az.Status != acme.StatusValid {
			o.p.logger.Debug("authorization not valid",
				zap.String("identifier", az.Identifier.Value), zap.String("status", az.Status))
			return false, nil
		}
	}
	return true, nil
}

func (o *order) PendingAuthorizations(ctx context.Context, typ provider.ChallengeType) ([]provider.PendingChallenge, error) {
	if typ != provider.ChallengeHTTP01 {
		return nil, fmt.Errorf("unsupported challenge type %q", typ)
	}

	ord, err := o.refresh(ctx)
	if err != nil {
		return nil, err
	}

	var out []provider.PendingChallenge
	for _, u := range ord.AuthzURLs {
		az, err := o.client.GetAuthorization(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("get authorization: %w", err)
		}
		if az.Status != acme.StatusPending {
			continue
		}

		var ch *acme.Challenge
		for _, c := range az.Challenges {
			if c.Type == string(typ) {
				ch = c
				break
			}
		}
		if ch == nil {
			return nil, fmt.Errorf("no %s challenge offered for %s", typ, az.Identifier.Value)
		}

		content, err := o.client.HTTP01ChallengeResponse(ch.Token)
		if err != nil {
			return nil, fmt.Errorf("key authorization for %s: %w", az.Identifier.Value, err)
		}

		o.pending[az.Identifier.Value] = pendingAuthz{authzURL: u, challenge: ch}
		out = append(out, provider.PendingChallenge{
			Identifier: az.Identifier.Value,
			Filename:   ch.Token,
			Content:    content,
		})
	}
	return out, nil
}

func (o *order) VerifyPendingAuthorization(ctx context.Context, identifier string, typ provider.ChallengeType) error {
	pa, ok := o.pending[identifier]
	if !ok {
		if _, err := o.PendingAuthorizations(ctx, typ); err != nil {
			return err
		}
		if pa, ok = o.pending[identifier]; !ok {
			return fmt.Errorf("no pending authorization for %s", identifier)
		}
	}

	if _, err := o.client.Accept(ctx, pa.challenge); err != nil {
		return fmt.Errorf("accept challenge for %s: %w", identifier, err)
	}

	wctx, cancel := o.p.waitContext(ctx)
	defer cancel()
	if _, err := o.client.WaitAuthorization(wctx, pa.authzURL); err != nil {
		return fmt.Errorf("wait authorization for %s: %w", identifier, err)
	}

	delete(o.pending, identifier)
	o.p.logger.Info("authorization valid", zap.String("identifier", identifier))
	return nil
}

func (o *order) IsFinalized(ctx context.Context) (bool, error) {
	if o.chain != nil {
		return true, nil
	}
	ord, err := o.refresh(ctx)
	if err != nil {
		return false, err
	}
	return ord.Status == acme.StatusProcessing || ord.Status == acme.StatusValid, nil
}

// Finalize 发送 CSR 前先保存证书密钥，下次运行仍可取回证书
func (o *order) Finalize(ctx context.Context) error {
	ord, err := o.refresh(ctx)
	if err != nil {
		return err
	}
	if ord.Status != acme.StatusReady {
		return fmt.Errorf("order status %q, want %q", ord.Status, acme.StatusReady)
	}

	keyPEM, err := o.p.store.CertificateKey(o.url)
	if err != nil {
		return fmt.Errorf("read certificate key: %w", err)
	}
	if keyPEM == nil {
		key, err := certcrypto.GeneratePrivateKey(o.p.cfg.KeyType)
		if err != nil {
			return fmt.Errorf("generate certificate key: %w", err)
		}
		keyPEM = certcrypto.PEMEncode(key)
		if err := o.p.store.SaveCertificateKey(o.url, keyPEM); err != nil {
			return fmt.Errorf("save certificate key: %w", err)
		}
	}

	key, err := certcrypto.ParsePEMPrivateKey(keyPEM)
	if err != nil {
		return fmt.Errorf("parse certificate key: %w", err)
	}
	csr, err := certcrypto.GenerateCSR(key, o.domains[0], o.domains, false)
	if err != nil {
		return fmt.Errorf("create csr: %w", err)
	}

	wctx, cancel := o.p.waitContext(ctx)
	defer cancel()
	der, _, err := o.client.CreateOrderCert(wctx, ord.FinalizeURL, csr, true)
	if err != nil {
		return fmt.Errorf("finalize order: %w", err)
	}

	o.chain = der
	o.p.logger.Info("order finalized", zap.String("order", o.url))
	return nil
}

func (o *order) Certificate(ctx context.Context) error {
	chain := o.chain
	if chain == nil {
		ord, err := o.refresh(ctx)
		if err != nil {
			return err
		}
		if ord.Status == acme.StatusProcessing {
			wctx, cancel := o.p.waitContext(ctx)
			ord, err = o.client.WaitOrder(wctx, o.url)
			cancel()
			if err != nil {
				return fmt.Errorf("wait order: %w", err)
			}
		}
		if ord.Status != acme.StatusValid || ord.CertURL == "" {
			return fmt.Errorf("order status %q, no certificate available", ord.Status)
		}
		chain, err = o.client.FetchCert(ctx, ord.CertURL, true)
		if err != nil {
			return fmt.Errorf("fetch certificate: %w", err)
		}
	}

	keyPEM, err := o.p.store.CertificateKey(o.url)
	if err != nil {
		return fmt.Errorf("read certificate key: %w", err)
	}
	if keyPEM == nil {
		return errors.New("certificate key for order is unknown")
	}

	bundle, err := buildBundle(chain, keyPEM)
	if err != nil {
		return err
	}
	if err := o.p.storage.SaveCertificate(bundle); err != nil {
		return fmt.Errorf("save certificate: %w", err)
	}
	o.p.logger.Info("certificate saved", zap.String("dir", o.p.storage.GetCertDir()))

	if err := o.p.store.ForgetOrder(o.domains, o.url); err != nil {
		o.p.logger.Warn("failed to forget completed order", zap.Error(err))
	}
	return nil
}

// buildBundle 将 DER 证书链（叶子在前）转为 PEM
func buildBundle(chain [][]byte, keyPEM []byte) (*provider.Certificate, error) {
	if len(chain) == 0 {
		return nil, errors.New("empty certificate chain")
	}

	var fullchain []byte
	for _, der := range chain {
		fullchain = append(fullchain, certcrypto.PEMEncode(certcrypto.DERCertificateBytes(der))...)
	}

	return &provider.Certificate{
		Certificate: certcrypto.PEMEncode(certcrypto.DERCertificateBytes(chain[0])),
		PrivateKey:  keyPEM,
		Fullchain:   fullchain,
	}, nil
}

func (p *Provider) waitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.AuthorizationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.cfg.AuthorizationTimeout)
}
