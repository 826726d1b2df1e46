package host

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/leminhvu/packtrace-backend/pkg/logger"
)

// Channel is the outbound side of the embedding-host message bridge. Both
// messages are fire and forget: no acknowledgement, failures logged and
// dropped.
type Channel interface {
	// RequestLicenseSync asks the host to push its license data back through
	// the inbound license-push endpoint.
	RequestLicenseSync(ctx context.Context)
	// RequestUpgrade asks the host to present its upgrade flow.
	RequestUpgrade(ctx context.Context, reason string)
}

// Noop is the channel used when no host is configured.
type Noop struct{}

func (Noop) RequestLicenseSync(context.Context) {}

func (Noop) RequestUpgrade(context.Context, string) {}

type message struct {
	Type      string `json:"type"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Webhook posts host messages to a configured push URL.
type Webhook struct {
	client  *http.Client
	pushURL string
	logg    *logger.Logger
}

// NewWebhook builds a webhook channel. Timeout bounds each delivery attempt.
func NewWebhook(pushURL string, timeout time.Duration, logg *logger.Logger) *Webhook {
	return &Webhook{
		client:  &http.Client{Timeout: timeout},
		pushURL: pushURL,
		logg:    logg,
	}
}

func (w *Webhook) RequestLicenseSync(ctx context.Context) {
	w.post(ctx, message{Type: "license_sync_request"})
}

func (w *Webhook) RequestUpgrade(ctx context.Context, reason string) {
	w.post(ctx, message{Type: "upgrade_request", Reason: reason})
}

func (w *Webhook) post(ctx context.Context, msg message) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	body, err := json.Marshal(msg)
	if err != nil {
		w.warn(ctx, msg.Type, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.pushURL, bytes.NewReader(body))
	if err != nil {
		w.warn(ctx, msg.Type, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		w.warn(ctx, msg.Type, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && w.logg != nil {
		w.logg.Warn(w.logg.WithFields(ctx, map[string]any{
			"message_type": msg.Type,
			"status":       resp.StatusCode,
		}), "host rejected message")
	}
}

func (w *Webhook) warn(ctx context.Context, msgType string, err error) {
	if w.logg == nil {
		return
	}
	w.logg.Warn(w.logg.WithFields(ctx, map[string]any{
		"message_type": msgType,
		"error":        err.Error(),
	}), "host message dropped")
}
