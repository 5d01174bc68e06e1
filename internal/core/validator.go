package core

import (
	"errors"
	"math"
	"os"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"go.uber.org/zap"

	domainpkg "github.com/kukawski/le-cpanel-updater/internal/domain"
	"github.com/kukawski/le-cpanel-updater/internal/provider"
	"github.com/kukawski/le-cpanel-updater/internal/storage"
)

// Validator 证书验证器
type Validator struct {
	storage *storage.FileStorage
	logger  *zap.Logger
	now     func() time.Time
}

// NewValidator 创建验证器
func NewValidator(st *storage.FileStorage, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		storage: st,
		logger:  logger,
		now:     time.Now,
	}
}

// CertificateExpiresWithinSeconds 以秒为单位的 ExpiresWithin
func (v *Validator) CertificateExpiresWithinSeconds(seconds int64) bool {
	if seconds < 0 {
		seconds = 0
	}
	// 超出 time.Duration 范围的阈值按最大值处理
	if seconds > int64(math.MaxInt64/time.Second) {
		return v.ExpiresWithin(time.Duration(math.MaxInt64))
	}
	return v.ExpiresWithin(time.Duration(seconds) * time.Second)
}

// ExpiresWithin 是否需要续期，证书缺失或无法解析视为需要
func (v *Validator) ExpiresWithin(threshold time.Duration) bool {
	info, err := v.Info()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			v.logger.Debug("certificate file does not exist, assuming first run",
				zap.String("path", v.storage.GetCertPath()))
		} else {
			v.logger.Debug("stored certificate is unreadable, renewal needed", zap.Error(err))
		}
		return true
	}

	if info.NotAfter.IsZero() {
		v.logger.Debug("certificate has no valid-to timestamp, renewal needed")
		return true
	}

	remaining := info.NotAfter.Sub(v.now())
	if remaining <= threshold {
		v.logger.Debug("certificate is about to expire",
			zap.Time("not_after", info.NotAfter),
			zap.Duration("remaining", remaining))
		return true
	}

	v.logger.Debug("certificate is still valid",
		zap.Time("not_after", info.NotAfter),
		zap.Duration("remaining", remaining))
	return false
}

// Covers 证书是否包含全部域名，无法解析时返回 false
func (v *Validator) Covers(domains []string) bool {
	info, err := v.Info()
	if err != nil {
		return false
	}
	if !domainpkg.Covers(info.Names(), domains) {
		v.logger.Debug("stored certificate does not cover configured domains",
			zap.Strings("certificate", info.Names()),
			zap.Strings("configured", domains))
		return false
	}
	return true
}

// Info 解析本地证书
func (v *Validator) Info() (*provider.CertificateInfo, error) {
	data, err := v.storage.ReadCertificate()
	if err != nil {
		return nil, err
	}

	cert, err := certcrypto.ParsePEMCertificate(data)
	if err != nil {
		return nil, err
	}

	return &provider.CertificateInfo{
		Domain:    cert.Subject.CommonName,
		Sans:      cert.DNSNames,
		Issuer:    cert.Issuer.CommonName,
		NotBefore: cert.NotBefore,
		NotAfter:  cert.NotAfter,
	}, nil
}
