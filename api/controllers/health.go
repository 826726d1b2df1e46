package controllers

import (
	"context"
	"net/http"

	"github.com/leminhvu/packtrace-backend/api/responses"
	"github.com/leminhvu/packtrace-backend/pkg/config"
	"github.com/leminhvu/packtrace-backend/pkg/logger"
)

// Pinger is any backend that can answer a health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Healthz reports process liveness plus the reachability of optional
// backends. A failing backend degrades the payload but not the status code;
// the station keeps working fail-open.
func Healthz(cfg *config.Config, logg *logger.Logger, backends map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-PackTrace-Env", cfg.App.Env)

		checks := map[string]string{}
		for name, backend := range backends {
			if backend == nil {
				checks[name] = "disabled"
				continue
			}
			if err := backend.Ping(r.Context()); err != nil {
				checks[name] = "unreachable"
				if logg != nil {
					logg.Warn(logg.WithField(r.Context(), "backend", name), "health ping failed")
				}
				continue
			}
			checks[name] = "ok"
		}

		responses.WriteSuccess(w, map[string]any{
			"status":   "ok",
			"backends": checks,
		})
	}
}
