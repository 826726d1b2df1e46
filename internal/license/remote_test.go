package license

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkgerrors "github.com/leminhvu/packtrace-backend/pkg/errors"
)

func newActivatorForTests(t *testing.T, handler http.HandlerFunc) *HTTPActivator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	activator, err := NewHTTPActivator(server.URL, 5*time.Second, Identity{
		VisitorID:         "visitor-1",
		DeviceFingerprint: "fp-1",
		ScreenDescriptor:  "headless",
		Timezone:          "Asia/Ho_Chi_Minh",
	})
	if err != nil {
		t.Fatalf("NewHTTPActivator: %v", err)
	}
	return activator
}

func TestActivateSendsIdentityAndParsesSuccess(t *testing.T) {
	expires := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var got ActivationRequest
	activator := newActivatorForTests(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ActivationResponse{
			LicenseKey:    "PT-GOLD",
			ExpiresAt:     expires,
			DaysRemaining: 90,
		})
	})

	resp, err := activator.Activate(context.Background(), "PT-GOLD")
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if resp.LicenseKey != "PT-GOLD" || !resp.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got.VisitorID != "visitor-1" || got.DeviceFingerprint != "fp-1" || got.Timezone != "Asia/Ho_Chi_Minh" {
		t.Fatalf("identity not carried on the wire: %+v", got)
	}
}

func TestActivateMapsDeviceMismatch(t *testing.T) {
	activator := newActivatorForTests(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error":     "key already bound to another device",
			"errorCode": "DEVICE_MISMATCH",
		})
	})

	_, err := activator.Activate(context.Background(), "PT-GOLD")
	if !pkgerrors.HasCode(err, pkgerrors.CodeDeviceMismatch) {
		t.Fatalf("expected DEVICE_MISMATCH, got %v", err)
	}
}

func TestActivateMapsGenericRejection(t *testing.T) {
	activator := newActivatorForTests(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": "unknown key"})
	})

	_, err := activator.Activate(context.Background(), "PT-BAD")
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidLicense) {
		t.Fatalf("expected INVALID_LICENSE, got %v", err)
	}
}

func TestActivateMapsTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	activator, err := NewHTTPActivator(server.URL, time.Second, Identity{})
	if err != nil {
		t.Fatalf("NewHTTPActivator: %v", err)
	}
	server.Close() // connection refused from here on

	_, err = activator.Activate(context.Background(), "PT-GOLD")
	if !pkgerrors.HasCode(err, pkgerrors.CodeConnection) {
		t.Fatalf("expected CONNECTION_ERROR, got %v", err)
	}
}

func TestActivateRejectsEmptySuccessPayload(t *testing.T) {
	activator := newActivatorForTests(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := activator.Activate(context.Background(), "PT-GOLD")
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidLicense) {
		t.Fatalf("expected INVALID_LICENSE for empty payload, got %v", err)
	}
}
