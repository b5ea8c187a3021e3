package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/amendezcabrera/villagelink-backend/pkg/logger"
)

type alertPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// AlertPurgeJobParams configure the expired-alert purge job.
type AlertPurgeJobParams struct {
	Logger *logger.Logger
	Alerts alertPurger
}

// NewAlertPurgeJob removes alerts whose expiry has lapsed. Their
// notifications follow via the FK cascade.
func NewAlertPurgeJob(params AlertPurgeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Alerts == nil {
		return nil, fmt.Errorf("alerts service required")
	}
	return &alertPurgeJob{
		logg:   params.Logger,
		alerts: params.Alerts,
		now:    time.Now,
	}, nil
}

type alertPurgeJob struct {
	logg   *logger.Logger
	alerts alertPurger
	now    func() time.Time
}

func (j *alertPurgeJob) Name() string { return "alert-purge" }

func (j *alertPurgeJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	purged, err := j.alerts.PurgeExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("alert purge: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"as_of":        now,
		"rows_deleted": purged,
	})
	j.logg.Info(logCtx, "expired alert purge complete")
	return nil
}
