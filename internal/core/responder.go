package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-acme/lego/v4/challenge/http01"
	"github.com/go-acme/lego/v4/providers/http/webroot"
	"go.uber.org/zap"

	"github.com/kukawski/le-cpanel-updater/internal/provider"
)

// Responder 发布 HTTP-01 挑战文件并请求 CA 验证
type Responder struct {
	webroot string
	logger  *zap.Logger
}

// NewResponder 创建挑战响应器
func NewResponder(webroot string, logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{
		webroot: webroot,
		logger:  logger,
	}
}

// ChallengeDir 返回 {webroot}/.well-known/acme-challenge
func (r *Responder) ChallengeDir() string {
	return filepath.Dir(r.challengeFile("token"))
}

func (r *Responder) challengeFile(name string) string {
	return filepath.Join(r.webroot, filepath.FromSlash(http01.ChallengePath(name)))
}

// Respond 逐个写入挑战文件后请求验证，验证失败只记录日志，由调用方重新检查订单
func (r *Responder) Respond(ctx context.Context, order provider.Order, pending []provider.PendingChallenge) error {
	if len(pending) == 0 {
		return nil
	}

	// webroot.NewHTTPProvider 要求文档根目录已存在
	if err := os.MkdirAll(r.webroot, 0o755); err != nil {
		return fmt.Errorf("create webroot: %w", err)
	}
	publisher, err := webroot.NewHTTPProvider(r.webroot)
	if err != nil {
		return fmt.Errorf("challenge webroot: %w", err)
	}

	for _, ch := range pending {
		if ch.Filename == "" || strings.ContainsAny(ch.Filename, `/\`) || ch.Filename == ".." {
			return fmt.Errorf("invalid challenge file name %q for %s", ch.Filename, ch.Identifier)
		}

		// 只调用 Present，发布的文件不清理
		if err := publisher.Present(ch.Identifier, ch.Filename, ch.Content); err != nil {
			return fmt.Errorf("write challenge for %s: %w", ch.Identifier, err)
		}
		path := r.challengeFile(ch.Filename)
		r.logger.Debug("challenge published",
			zap.String("identifier", ch.Identifier), zap.String("path", path))

		if err := order.VerifyPendingAuthorization(ctx, ch.Identifier, provider.ChallengeHTTP01); err != nil {
			r.logger.Error("authorization verification failed",
				zap.String("identifier", ch.Identifier), zap.Error(err))
			continue
		}
		r.logger.Debug("authorization verification requested", zap.String("identifier", ch.Identifier))
	}
	return nil
}
