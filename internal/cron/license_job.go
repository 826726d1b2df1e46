package cron

import (
	"context"
	"fmt"

	"github.com/leminhvu/packtrace-backend/internal/license"
	"github.com/leminhvu/packtrace-backend/pkg/logger"
)

type licenseEvaluator interface {
	Evaluate(ctx context.Context) license.State
	CheckDailyQuota(ctx context.Context)
}

// LicenseJobParams configure the license re-evaluation job.
type LicenseJobParams struct {
	Logger  *logger.Logger
	License licenseEvaluator
}

// NewLicenseJob builds the job that re-evaluates license state and rolls the
// daily quota. Running it daily catches expiry and grace transitions on
// stations that stay up for weeks.
func NewLicenseJob(params LicenseJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.License == nil {
		return nil, fmt.Errorf("license service required")
	}
	return &licenseJob{logg: params.Logger, license: params.License}, nil
}

type licenseJob struct {
	logg    *logger.Logger
	license licenseEvaluator
}

func (j *licenseJob) Name() string { return "license-refresh" }

func (j *licenseJob) Run(ctx context.Context) error {
	// Evaluate before the rollover so the quota check sees current premium
	// standing rather than whatever the cache held at process start.
	state := j.license.Evaluate(ctx)
	j.license.CheckDailyQuota(ctx)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"phase":   string(state.Phase),
		"premium": state.IsPremium,
	}), "license state refreshed")
	return nil
}
