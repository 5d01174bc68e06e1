package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/kukawski/le-cpanel-updater/internal/config"
)

// EventType Webhook 事件类型
type EventType string

const (
	EventCertExpiring  EventType = "cert_expiring"  // 证书即将过期
	EventCertRenewed   EventType = "cert_renewed"   // 证书续期成功
	EventCertFailed    EventType = "cert_failed"    // 证书申请失败
	EventCertInstalled EventType = "cert_installed" // 证书已提交面板
	EventInstallFailed EventType = "install_failed" // 证书安装失败
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 3
)

// EventData 事件数据
type EventData struct {
	Event     string                 `json:"event"`
	Domain    string                 `json:"domain"`
	Timestamp string                 `json:"timestamp"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// WebhookNotifier Webhook 通知器，nil 时不发送
type WebhookNotifier struct {
	config *config.WebhookConfig
	client *resty.Client
	logger *zap.Logger

	initialInterval time.Duration
}

// NewWebhookNotifier 创建 Webhook 通知器，未启用时返回 nil
func NewWebhookNotifier(cfg *config.WebhookConfig, logger *zap.Logger) *WebhookNotifier {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeaders(cfg.Headers)

	return &WebhookNotifier{
		config:          cfg,
		client:          client,
		logger:          logger.Named("webhook"),
		initialInterval: time.Second,
	}
}

// ShouldNotify 是否订阅该事件
func (w *WebhookNotifier) ShouldNotify(eventType EventType) bool {
	if !w.IsEnabled() {
		return false
	}

	// 未配置事件列表则全部通知
	if len(w.config.Events) == 0 {
		return true
	}

	for _, e := range w.config.Events {
		if e == string(eventType) {
			return true
		}
	}
	return false
}

// Notify 发送事件，传输错误和 5xx 按指数退避重试
func (w *WebhookNotifier) Notify(ctx context.Context, eventType EventType, domain, message string, data map[string]interface{}) error {
	if !w.ShouldNotify(eventType) {
		return nil
	}

	eventData := EventData{
		Event:     string(eventType),
		Domain:    domain,
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   message,
		Data:      data,
	}

	body, err := w.body(eventData)
	if err != nil {
		return err
	}

	retries := w.config.Retries
	if retries <= 0 {
		retries = defaultRetries
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.initialInterval
	b.MaxElapsedTime = 0

	operation := func() error {
		resp, err := w.client.R().
			SetContext(ctx).
			SetBody(body).
			Post(w.config.URL)
		if err != nil {
			return fmt.Errorf("send request: %w", err)
		}
		switch {
		case resp.IsSuccess():
			return nil
		case resp.StatusCode() >= 500:
			return fmt.Errorf("webhook returned status %d", resp.StatusCode())
		default:
			return backoff.Permanent(fmt.Errorf("webhook returned status %d", resp.StatusCode()))
		}
	}

	notify := func(err error, next time.Duration) {
		w.logger.Warn("webhook notification failed, retrying",
			zap.Error(err), zap.Duration("backoff", next))
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries-1)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		w.logger.Error("webhook notification failed",
			zap.String("event", string(eventType)), zap.Int("attempts", retries), zap.Error(err))
		return err
	}

	w.logger.Info("webhook notification sent",
		zap.String("event", string(eventType)), zap.String("domain", domain))
	return nil
}

// body 渲染模板，失败时退回 JSON
func (w *WebhookNotifier) body(data EventData) ([]byte, error) {
	if w.config.BodyTemplate != "" {
		body, err := renderTemplate(w.config.BodyTemplate, data)
		if err == nil {
			return body, nil
		}
		w.logger.Warn("failed to render webhook body template, sending JSON", zap.Error(err))
	}

	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return body, nil
}

func renderTemplate(tmplStr string, data EventData) ([]byte, error) {
	tmplData := map[string]interface{}{
		"Event":     data.Event,
		"Domain":    data.Domain,
		"Timestamp": data.Timestamp,
		"Message":   data.Message,
		"Data":      data.Data,
	}

	funcMap := template.FuncMap{
		"toJson": func(v interface{}) string {
			b, err := json.Marshal(v)
			if err != nil {
				return "null"
			}
			return string(b)
		},
	}

	tmpl, err := template.New("webhook").Funcs(funcMap).Parse(tmplStr)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, tmplData); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return buf.Bytes(), nil
}

// NotifyCertExpiring 证书即将过期通知
func (w *WebhookNotifier) NotifyCertExpiring(ctx context.Context, domain string, notAfter time.Time) error {
	data := map[string]interface{}{}
	message := fmt.Sprintf("certificate for %s is due for renewal", domain)
	if !notAfter.IsZero() {
		days := int(time.Until(notAfter).Hours() / 24)
		data["not_after"] = notAfter.Format(time.RFC3339)
		data["days_remaining"] = days
		message = fmt.Sprintf("certificate for %s expires in %d days", domain, days)
	}
	return w.Notify(ctx, EventCertExpiring, domain, message, data)
}

// NotifyCertRenewed 证书续期成功通知
func (w *WebhookNotifier) NotifyCertRenewed(ctx context.Context, domain string, notAfter time.Time) error {
	return w.Notify(ctx, EventCertRenewed, domain, fmt.Sprintf("certificate renewed for %s", domain),
		map[string]interface{}{"not_after": notAfter.Format(time.RFC3339)})
}

// NotifyCertFailed 证书申请失败通知
func (w *WebhookNotifier) NotifyCertFailed(ctx context.Context, domain, stage string, cause error) error {
	return w.Notify(ctx, EventCertFailed, domain, fmt.Sprintf("certificate order failed for %s", domain),
		map[string]interface{}{"stage": stage, "reason": cause.Error()})
}

// NotifyCertInstalled 证书安装通知
func (w *WebhookNotifier) NotifyCertInstalled(ctx context.Context, domain, host string) error {
	return w.Notify(ctx, EventCertInstalled, domain, fmt.Sprintf("certificate submitted to %s", host),
		map[string]interface{}{"host": host})
}

// NotifyInstallFailed 证书安装失败通知
func (w *WebhookNotifier) NotifyInstallFailed(ctx context.Context, domain, reason string, cause error) error {
	return w.Notify(ctx, EventInstallFailed, domain, fmt.Sprintf("certificate installation failed for %s", domain),
		map[string]interface{}{"reason": reason, "error": cause.Error()})
}

// IsEnabled 是否启用
func (w *WebhookNotifier) IsEnabled() bool {
	return w != nil && w.config != nil && w.config.Enabled
}
