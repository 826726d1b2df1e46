package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leminhvu/packtrace-backend/api/controllers"
	"github.com/leminhvu/packtrace-backend/api/middleware"
	"github.com/leminhvu/packtrace-backend/internal/license"
	"github.com/leminhvu/packtrace-backend/internal/orders"
	"github.com/leminhvu/packtrace-backend/internal/scan"
	"github.com/leminhvu/packtrace-backend/internal/session"
	"github.com/leminhvu/packtrace-backend/pkg/config"
	"github.com/leminhvu/packtrace-backend/pkg/logger"
	"github.com/leminhvu/packtrace-backend/pkg/redis"
)

// RouterParams carry everything the HTTP surface needs.
type RouterParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	Redis        *redis.Client
	License      *license.Service
	Orders       *orders.Store
	Scanner      *scan.Engine
	Orchestrator *session.Orchestrator
	Registry     *prometheus.Registry
}

// NewRouter wires the station API.
func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	backends := map[string]controllers.Pinger{"redis": nil}
	if params.Redis != nil {
		backends["redis"] = params.Redis
	}

	r.Get("/healthz", controllers.Healthz(cfg, logg, backends))

	if params.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/license", func(r chi.Router) {
			r.Get("/", controllers.LicenseState(params.License, logg))
			r.Get("/quota", controllers.LicenseQuota(params.License, logg))
			r.Post("/activate", controllers.LicenseActivate(params.License, logg))
			r.Post("/activate/remote", controllers.LicenseActivateRemote(params.License, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrderList(params.Orders, logg))
			r.Get("/stats", controllers.OrderStats(params.Orders, logg))
			r.Get("/export", controllers.OrderExport(params.Orders, logg))
			r.Delete("/{orderId}", controllers.OrderDelete(params.Orders, logg))
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/", controllers.SessionState(params.Orchestrator, params.Scanner, logg))
			r.Post("/camera/start", controllers.SessionCameraStart(params.Orchestrator, cfg.Recording.DeviceID, logg))
			r.Post("/camera/stop", controllers.SessionCameraStop(params.Orchestrator, logg))
		})
	})

	return r
}
