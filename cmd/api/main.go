package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/leminhvu/packtrace-backend/api/routes"
	"github.com/leminhvu/packtrace-backend/internal/cron"
	"github.com/leminhvu/packtrace-backend/internal/host"
	"github.com/leminhvu/packtrace-backend/internal/license"
	"github.com/leminhvu/packtrace-backend/internal/orders"
	"github.com/leminhvu/packtrace-backend/internal/recording"
	"github.com/leminhvu/packtrace-backend/internal/scan"
	"github.com/leminhvu/packtrace-backend/internal/session"
	"github.com/leminhvu/packtrace-backend/pkg/clock"
	"github.com/leminhvu/packtrace-backend/pkg/config"
	"github.com/leminhvu/packtrace-backend/pkg/db"
	"github.com/leminhvu/packtrace-backend/pkg/kv"
	"github.com/leminhvu/packtrace-backend/pkg/logger"
	"github.com/leminhvu/packtrace-backend/pkg/metrics"
	"github.com/leminhvu/packtrace-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	durable, err := kv.NewDurable(dbClient.DB(), cfg.License.BackupTTL)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap backup store", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	var primary kv.Gateway = kv.NewMemory()
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(ctx, cfg.Redis)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(ctx, "error closing redis", err)
			}
		}()
		primary, err = kv.NewRedis(redisClient)
		if err != nil {
			logg.Error(ctx, "failed to wrap redis gateway", err)
			os.Exit(1)
		}
	}

	// The license record survives primary-store loss via the durable backup.
	gateway := kv.NewBacked(primary, durable, kv.KeyLicenseRecord)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sessionMetrics := metrics.NewSessionMetrics(registry)
	cronMetrics := metrics.NewCronJobMetrics(registry)

	clk := clock.System()

	orderStore, err := orders.NewStore(ctx, gateway, clk, logg, cfg.Orders.Max)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap order store", err)
		os.Exit(1)
	}

	var remote license.Activator
	if cfg.Activation.Endpoint != "" {
		identity := license.LoadIdentity(ctx, gateway)
		remote, err = license.NewHTTPActivator(cfg.Activation.Endpoint, cfg.Activation.Timeout, identity)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap activator", err)
			os.Exit(1)
		}
	}

	licenseService, err := license.NewService(license.ServiceParams{
		Gateway:            gateway,
		Purger:             orderStore,
		Clock:              clk,
		Logger:             logg,
		Remote:             remote,
		DailyFreeLimit:     cfg.License.DailyFreeLimit,
		RenewalWarningDays: cfg.License.RenewalWarningDays,
		GracePeriod:        cfg.License.GracePeriod,
	})
	if err != nil {
		logg.Error(ctx, "failed to bootstrap license service", err)
		os.Exit(1)
	}

	var hostChannel host.Channel = host.Noop{}
	if cfg.Host.Enabled && cfg.Host.PushURL != "" {
		hostChannel = host.NewWebhook(cfg.Host.PushURL, cfg.Host.Timeout, logg)
	}
	licenseService.Subscribe(func(ev license.Event) {
		switch ev.(type) {
		case license.LimitReachedEvent:
			hostChannel.RequestUpgrade(ctx, "daily_limit_reached")
		case license.GraceExpiredEvent:
			hostChannel.RequestLicenseSync(ctx)
		}
	})

	recorder, err := recording.NewFileRecorder(clk, cfg.Recording.OutputDir, cfg.Recording.BitrateMbps)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap recorder", err)
		os.Exit(1)
	}

	scanner, err := scan.New(scan.Params{
		Clock:          clk,
		Decoder:        scan.PassthroughDecoder{},
		Metrics:        sessionMetrics,
		LockDuration:   cfg.Scan.LockDuration,
		SampleInterval: cfg.Scan.SampleInterval(),
	})
	if err != nil {
		logg.Error(ctx, "failed to bootstrap scan engine", err)
		os.Exit(1)
	}

	orchestrator, err := session.New(session.Params{
		Clock:      clk,
		Logger:     logg,
		Metrics:    sessionMetrics,
		License:    licenseService,
		Scanner:    scanner,
		Recorder:   recorder,
		Orders:     orderStore,
		PostBuffer: cfg.Session.PostBuffer,
	})
	if err != nil {
		logg.Error(ctx, "failed to bootstrap orchestrator", err)
		os.Exit(1)
	}
	orchestrator.Subscribe(func(ev session.Event) {
		if _, ok := ev.(session.QuotaDeniedEvent); ok {
			hostChannel.RequestUpgrade(ctx, "daily_limit_reached")
		}
	})

	maintenance, err := buildMaintenance(cfg, logg, cronMetrics, redisClient, orderStore, licenseService, durable)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap maintenance scheduler", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := maintenance.Run(runCtx); err != nil && runCtx.Err() == nil {
			logg.Error(ctx, "maintenance scheduler stopped unexpectedly", err)
		}
	}()

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:       cfg,
			Logger:       logg,
			Redis:        redisClient,
			License:      licenseService,
			Orders:       orderStore,
			Scanner:      scanner,
			Orchestrator: orchestrator,
			Registry:     registry,
		}),
	}

	go func() {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := orchestrator.StopCamera(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "camera teardown on shutdown failed", err)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "server shutdown failed", err)
		}
	}()

	startCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(startCtx, "starting api server")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(startCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildMaintenance(
	cfg *config.Config,
	logg *logger.Logger,
	cronMetrics *metrics.CronJobMetrics,
	redisClient *redis.Client,
	orderStore *orders.Store,
	licenseService *license.Service,
	durable *kv.Durable,
) (*cron.Service, error) {
	retention, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Logger:        logg,
		Orders:        orderStore,
		RetentionDays: cfg.Orders.RetentionDays,
	})
	if err != nil {
		return nil, err
	}
	licenseJob, err := cron.NewLicenseJob(cron.LicenseJobParams{
		Logger:  logg,
		License: licenseService,
	})
	if err != nil {
		return nil, err
	}
	backupJob, err := cron.NewBackupJob(cron.BackupJobParams{
		Logger:  logg,
		Backups: durable,
	})
	if err != nil {
		return nil, err
	}

	var lock cron.Lock = cron.LocalLock{}
	if redisClient != nil {
		lock, err = cron.NewRedisLock(redisClient, redisClient.LockKey("maintenance"), 0)
		if err != nil {
			return nil, err
		}
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(licenseJob, retention, backupJob),
		Lock:     lock,
		Metrics:  cronMetrics,
	})
}
