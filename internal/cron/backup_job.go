package cron

import (
	"context"
	"fmt"

	"github.com/leminhvu/packtrace-backend/pkg/logger"
)

type backupCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// BackupJobParams configure the backup TTL sweep.
type BackupJobParams struct {
	Logger  *logger.Logger
	Backups backupCleaner
}

// NewBackupJob builds the job that deletes expired rows from the durable
// backup store.
func NewBackupJob(params BackupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Backups == nil {
		return nil, fmt.Errorf("backup store required")
	}
	return &backupJob{logg: params.Logger, backups: params.Backups}, nil
}

type backupJob struct {
	logg    *logger.Logger
	backups backupCleaner
}

func (j *backupJob) Name() string { return "backup-ttl" }

func (j *backupJob) Run(ctx context.Context) error {
	removed, err := j.backups.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("cleanup expired backups: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "removed", removed), "backup sweep complete")
	return nil
}
