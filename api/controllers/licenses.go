package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/leminhvu/packtrace-backend/api/responses"
	"github.com/leminhvu/packtrace-backend/api/validators"
	"github.com/leminhvu/packtrace-backend/internal/license"
	pkgerrors "github.com/leminhvu/packtrace-backend/pkg/errors"
	"github.com/leminhvu/packtrace-backend/pkg/logger"
)

type licenseService interface {
	Evaluate(ctx context.Context) license.State
	Activate(ctx context.Context, key string, expiresAt time.Time) (license.State, error)
	ActivateRemote(ctx context.Context, key string) (license.State, error)
	CheckDailyQuota(ctx context.Context)
	State() license.State
}

// LicenseState re-evaluates and returns the current license state.
func LicenseState(svc licenseService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}
		responses.WriteSuccess(w, svc.Evaluate(r.Context()))
	}
}

type licenseActivateRequest struct {
	LicenseKey string     `json:"license_key" validate:"required,min=4"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

// LicenseActivate stores a license locally. Used both by the station UI and
// by the embedding host's license push.
func LicenseActivate(svc licenseService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		var req licenseActivateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		expiresAt := time.Now().Add(365 * 24 * time.Hour)
		if req.ExpiresAt != nil {
			expiresAt = *req.ExpiresAt
		}

		state, err := svc.Activate(r.Context(), strings.TrimSpace(req.LicenseKey), expiresAt)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

type licenseActivateRemoteRequest struct {
	LicenseKey string `json:"license_key" validate:"required,min=4"`
}

// LicenseActivateRemote validates a key against the activation service.
func LicenseActivateRemote(svc licenseService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		var req licenseActivateRemoteRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		state, err := svc.ActivateRemote(r.Context(), strings.TrimSpace(req.LicenseKey))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, state)
	}
}

// LicenseQuota rolls the daily counter if the date changed and returns usage.
func LicenseQuota(svc licenseService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		svc.CheckDailyQuota(r.Context())
		state := svc.State()
		responses.WriteSuccess(w, map[string]any{
			"date":       state.TodayDate,
			"used":       state.TodayUsed,
			"limit":      state.DailyLimit,
			"is_premium": state.IsPremium,
		})
	}
}
