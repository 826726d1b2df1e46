package host

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhookPostsUpgradeRequest(t *testing.T) {
	var got message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode message: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ch := NewWebhook(srv.URL, time.Second, nil)
	ch.RequestUpgrade(context.Background(), "daily_limit_reached")

	if got.Type != "upgrade_request" || got.Reason != "daily_limit_reached" {
		t.Fatalf("unexpected message %+v", got)
	}
	if got.Timestamp == "" {
		t.Fatalf("expected timestamp on message")
	}
}

func TestWebhookSwallowsDeliveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	srv.Close() // refuse connections outright

	ch := NewWebhook(srv.URL, time.Second, nil)
	// Must not panic or block beyond the timeout.
	ch.RequestLicenseSync(context.Background())
}
