package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/leminhvu/packtrace-backend/internal/cron"
	"github.com/leminhvu/packtrace-backend/internal/license"
	"github.com/leminhvu/packtrace-backend/internal/orders"
	"github.com/leminhvu/packtrace-backend/internal/recording"
	"github.com/leminhvu/packtrace-backend/internal/scan"
	"github.com/leminhvu/packtrace-backend/internal/session"
	"github.com/leminhvu/packtrace-backend/pkg/clock"
	"github.com/leminhvu/packtrace-backend/pkg/config"
	"github.com/leminhvu/packtrace-backend/pkg/db"
	"github.com/leminhvu/packtrace-backend/pkg/env"
	"github.com/leminhvu/packtrace-backend/pkg/kv"
	"github.com/leminhvu/packtrace-backend/pkg/logger"
)

// The station binary runs the scan loop headless: frames land in a spool
// directory, the orchestrator turns them into recordings and orders. No HTTP
// surface.
func main() {
	logg := logger.New(logger.Options{ServiceName: "station"})
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
		ServiceName: "station",
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
	gateway := kv.NewBacked(kv.NewMemory(), durable, kv.KeyLicenseRecord)

	clk := clock.System()

	orderStore, err := orders.NewStore(ctx, gateway, clk, logg, cfg.Orders.Max)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap order store", err)
		os.Exit(1)
	}

	licenseService, err := license.NewService(license.ServiceParams{
		Gateway:            gateway,
		Purger:             orderStore,
		Clock:              clk,
		Logger:             logg,
		DailyFreeLimit:     cfg.License.DailyFreeLimit,
		RenewalWarningDays: cfg.License.RenewalWarningDays,
		GracePeriod:        cfg.License.GracePeriod,
	})
	if err != nil {
		logg.Error(ctx, "failed to bootstrap license service", err)
		os.Exit(1)
	}

	recorder, err := recording.NewFileRecorder(clk, cfg.Recording.OutputDir, cfg.Recording.BitrateMbps)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap recorder", err)
		os.Exit(1)
	}

	scanner, err := scan.New(scan.Params{
		Clock:          clk,
		Decoder:        scan.PassthroughDecoder{},
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

	spoolDir := env.Get("PACKTRACE_STATION_SPOOL_DIR", "frames")
	source, err := recording.NewSpoolSource(spoolDir)
	if err != nil {
		logg.Error(ctx, "failed to open frame spool", err)
		os.Exit(1)
	}

	// Startup maintenance pass: quota rollover, license evaluation, retention.
	if err := startupMaintenance(ctx, cfg, logg, orderStore, licenseService, durable); err != nil {
		logg.Error(ctx, "startup maintenance failed", err)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := orchestrator.StartCamera(runCtx, cfg.Recording.DeviceID); err != nil {
		logg.Error(ctx, "camera start failed", err)
		os.Exit(1)
	}

	logg.Info(logg.WithField(ctx, "spool", spoolDir), "station scan loop running")
	runLoop(runCtx, logg, orchestrator, source, cfg.Scan.SampleInterval())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := orchestrator.StopCamera(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "camera teardown failed", err)
	}
	logg.Info(ctx, "station shutting down gracefully")
}

func runLoop(ctx context.Context, logg *logger.Logger, orch *session.Orchestrator, source recording.FrameSource, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, ok, err := source.NextFrame(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "frame read failed")
				continue
			}
			if !ok {
				continue
			}
			orch.HandleFrame(ctx, frame)
		}
	}
}

func startupMaintenance(
	ctx context.Context,
	cfg *config.Config,
	logg *logger.Logger,
	orderStore *orders.Store,
	licenseService *license.Service,
	durable *kv.Durable,
) error {
	retention, err := cron.NewRetentionJob(cron.RetentionJobParams{
		Logger:        logg,
		Orders:        orderStore,
		RetentionDays: cfg.Orders.RetentionDays,
	})
	if err != nil {
		return err
	}
	licenseJob, err := cron.NewLicenseJob(cron.LicenseJobParams{
		Logger:  logg,
		License: licenseService,
	})
	if err != nil {
		return err
	}
	backupJob, err := cron.NewBackupJob(cron.BackupJobParams{
		Logger:  logg,
		Backups: durable,
	})
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(licenseJob, retention, backupJob),
		Lock:     cron.LocalLock{},
	})
	if err != nil {
		return err
	}
	return service.RunCycle(ctx)
}
