package license

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	pkgerrors "github.com/leminhvu/packtrace-backend/pkg/errors"
)

const errorCodeDeviceMismatch = "DEVICE_MISMATCH"

// ActivationRequest is the wire payload sent to the activation endpoint.
type ActivationRequest struct {
	LicenseKey        string `json:"licenseKey"`
	VisitorID         string `json:"visitorId"`
	DeviceFingerprint string `json:"deviceFingerprint"`
	ScreenDescriptor  string `json:"screenDescriptor"`
	Timezone          string `json:"timezone"`
}

// ActivationResponse is the success payload from the activation endpoint.
type ActivationResponse struct {
	LicenseKey    string    `json:"licenseKey"`
	ExpiresAt     time.Time `json:"expiresAt"`
	DaysRemaining int       `json:"daysRemaining"`
}

type activationFailure struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// HTTPActivator talks to the remote activation endpoint.
type HTTPActivator struct {
	endpoint string
	client   *http.Client
	identity Identity
}

// NewHTTPActivator builds the remote activation client.
func NewHTTPActivator(endpoint string, timeout time.Duration, identity Identity) (*HTTPActivator, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("activation endpoint required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPActivator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		identity: identity,
	}, nil
}

// Activate posts the key plus the device identity. Failures are never
// retried here; callers surface them to the user.
func (a *HTTPActivator) Activate(ctx context.Context, key string) (*ActivationResponse, error) {
	payload := ActivationRequest{
		LicenseKey:        key,
		VisitorID:         a.identity.VisitorID,
		DeviceFingerprint: a.identity.DeviceFingerprint,
		ScreenDescriptor:  a.identity.ScreenDescriptor,
		Timezone:          a.identity.Timezone,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode activation request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build activation request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConnection, err, "activation request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var success ActivationResponse
		if err := json.NewDecoder(resp.Body).Decode(&success); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConnection, err, "decode activation response")
		}
		if success.LicenseKey == "" || success.ExpiresAt.IsZero() {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidLicense, "activation response missing license data")
		}
		return &success, nil
	}

	var failure activationFailure
	if err := json.NewDecoder(resp.Body).Decode(&failure); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidLicense,
			fmt.Sprintf("activation rejected with status %d", resp.StatusCode))
	}
	if failure.ErrorCode == errorCodeDeviceMismatch {
		return nil, pkgerrors.New(pkgerrors.CodeDeviceMismatch, failure.Error)
	}
	msg := failure.Error
	if msg == "" {
		msg = "license key rejected"
	}
	return nil, pkgerrors.New(pkgerrors.CodeInvalidLicense, msg)
}
