package cron

import (
	"context"
	"fmt"

	"github.com/leminhvu/packtrace-backend/pkg/logger"
)

type staleOrderCleaner interface {
	CleanupStale(ctx context.Context, retentionDays int) int
}

// RetentionJobParams configure the order retention job.
type RetentionJobParams struct {
	Logger        *logger.Logger
	Orders        staleOrderCleaner
	RetentionDays int
}

// NewRetentionJob builds the job that drops orders older than the retention
// window.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.RetentionDays <= 0 {
		return nil, fmt.Errorf("retention days must be positive")
	}
	return &retentionJob{
		logg:          params.Logger,
		orders:        params.Orders,
		retentionDays: params.RetentionDays,
	}, nil
}

type retentionJob struct {
	logg          *logger.Logger
	orders        staleOrderCleaner
	retentionDays int
}

func (j *retentionJob) Name() string { return "order-retention" }

func (j *retentionJob) Run(ctx context.Context) error {
	removed := j.orders.CleanupStale(ctx, j.retentionDays)
	j.logg.Info(j.logg.WithField(ctx, "removed", removed), "order retention sweep complete")
	return nil
}
