package controllers

import (
	"context"
	"net/http"

	"github.com/leminhvu/packtrace-backend/api/responses"
	"github.com/leminhvu/packtrace-backend/api/validators"
	"github.com/leminhvu/packtrace-backend/internal/session"
	pkgerrors "github.com/leminhvu/packtrace-backend/pkg/errors"
	"github.com/leminhvu/packtrace-backend/pkg/logger"
)

type sessionOrchestrator interface {
	StartCamera(ctx context.Context, deviceID string) error
	StopCamera(ctx context.Context) error
	Phase() session.Phase
}

type scanReader interface {
	DistinctCount() int
	Codes() []string
}

type cameraStartRequest struct {
	DeviceID string `json:"device_id"`
}

// SessionCameraStart turns the camera on and arms the scanner.
func SessionCameraStart(orch sessionOrchestrator, defaultDevice string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if orch == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orchestrator unavailable"))
			return
		}

		var req cameraStartRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		device := req.DeviceID
		if device == "" {
			device = defaultDevice
		}

		if err := orch.StartCamera(r.Context(), device); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"phase": orch.Phase()})
	}
}

// SessionCameraStop tears the session down.
func SessionCameraStop(orch sessionOrchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if orch == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orchestrator unavailable"))
			return
		}
		if err := orch.StopCamera(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"phase": orch.Phase()})
	}
}

// SessionState reports the orchestrator phase and the live distinct-code set.
func SessionState(orch sessionOrchestrator, scanner scanReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if orch == nil || scanner == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orchestrator unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"phase":          orch.Phase(),
			"distinct_count": scanner.DistinctCount(),
			"codes":          scanner.Codes(),
		})
	}
}
