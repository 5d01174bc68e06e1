package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kukawski/le-cpanel-updater/internal/config"
)

func newTestNotifier(cfg *config.WebhookConfig) *WebhookNotifier {
	w := NewWebhookNotifier(cfg, nil)
	if w != nil {
		w.initialInterval = time.Millisecond
	}
	return w
}

func TestDisabledNotifierIsNoop(t *testing.T) {
	w := newTestNotifier(&config.WebhookConfig{Enabled: false, URL: "http://127.0.0.1:1"})
	assert.Nil(t, w)
	assert.False(t, w.IsEnabled())
	assert.False(t, w.ShouldNotify(EventCertFailed))
	assert.NoError(t, w.NotifyCertFailed(context.Background(), "example.com", "finalize", errors.New("boom")))
}

func TestShouldNotifyFiltersEvents(t *testing.T) {
	w := newTestNotifier(&config.WebhookConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1",
		Events:  []string{string(EventCertFailed), string(EventInstallFailed)},
	})
	assert.True(t, w.ShouldNotify(EventCertFailed))
	assert.True(t, w.ShouldNotify(EventInstallFailed))
	assert.False(t, w.ShouldNotify(EventCertRenewed))
}

func TestNotifySendsJSON(t *testing.T) {
	var got EventData
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get("X-Token")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := newTestNotifier(&config.WebhookConfig{
		Enabled: true,
		URL:     srv.URL,
		Headers: map[string]string{"X-Token": "abc"},
	})
	require.NoError(t, w.NotifyCertInstalled(context.Background(), "example.com", "https://panel:2083"))

	assert.Equal(t, "abc", header)
	assert.Equal(t, string(EventCertInstalled), got.Event)
	assert.Equal(t, "example.com", got.Domain)
	assert.Equal(t, "https://panel:2083", got.Data["host"])
}

func TestNotifyRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := newTestNotifier(&config.WebhookConfig{Enabled: true, URL: srv.URL, Retries: 3})
	require.NoError(t, w.Notify(context.Background(), EventCertRenewed, "example.com", "ok", nil))
	assert.EqualValues(t, 3, calls.Load())
}

func TestNotifyGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	w := newTestNotifier(&config.WebhookConfig{Enabled: true, URL: srv.URL, Retries: 2})
	assert.Error(t, w.Notify(context.Background(), EventCertRenewed, "example.com", "ok", nil))
	assert.EqualValues(t, 2, calls.Load())
}

func TestNotifyDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	w := newTestNotifier(&config.WebhookConfig{Enabled: true, URL: srv.URL, Retries: 5})
	assert.Error(t, w.Notify(context.Background(), EventCertRenewed, "example.com", "ok", nil))
	assert.EqualValues(t, 1, calls.Load())
}

func TestNotifyBodyTemplate(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
	}))
	defer srv.Close()

	w := newTestNotifier(&config.WebhookConfig{
		Enabled:      true,
		URL:          srv.URL,
		BodyTemplate: `{"text":"{{.Event}} {{.Domain}}","stage":{{toJson .Data.stage}}}`,
	})
	require.NoError(t, w.NotifyCertFailed(context.Background(), "example.com", "authorization", errors.New("invalid")))
	assert.JSONEq(t, `{"text":"cert_failed example.com","stage":"authorization"}`, body)
}

func TestNotifyBadTemplateFallsBackToJSON(t *testing.T) {
	var got EventData
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	w := newTestNotifier(&config.WebhookConfig{Enabled: true, URL: srv.URL, BodyTemplate: "{{.Broken"})
	require.NoError(t, w.Notify(context.Background(), EventCertExpiring, "example.com", "due", nil))
	assert.Equal(t, "cert_expiring", got.Event)
}
