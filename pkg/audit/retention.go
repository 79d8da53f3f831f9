package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/rolegate/pkg/observability"
)

// Cleaner removes audit events older than a cutoff
type Cleaner interface {
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

// RetentionJob prunes old audit events on a cron schedule
type RetentionJob struct {
	cleaner   Cleaner
	retention time.Duration
	logger    *logrus.Logger
	cron      *cron.Cron
	now       func() time.Time
}

// NewRetentionJob schedules cleanup of events older than retention.
// schedule is a standard cron expression or descriptor such as "@daily".
func NewRetentionJob(cleaner Cleaner, retention time.Duration, schedule string, logger *logrus.Logger) (*RetentionJob, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive")
	}

	job := &RetentionJob{
		cleaner:   cleaner,
		retention: retention,
		logger:    logger,
		cron:      cron.New(cron.WithLocation(time.UTC)),
		now:       time.Now,
	}

	if _, err := job.cron.AddFunc(schedule, func() {
		defer observability.RecoverPanic(logger, "audit-retention")
		job.RunOnce(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule audit cleanup: %w", err)
	}

	return job, nil
}

// RunOnce deletes expired events immediately
func (j *RetentionJob) RunOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.retention)
	removed, err := j.cleaner.Cleanup(ctx, cutoff)
	if err != nil {
		j.logger.WithError(err).Error("Audit cleanup failed")
		return 0, err
	}
	j.logger.WithFields(logrus.Fields{
		"removed": removed,
		"cutoff":  cutoff.Format(time.RFC3339),
	}).Info("Audit cleanup completed")
	return removed, nil
}

// Start starts the scheduler
func (j *RetentionJob) Start() {
	j.cron.Start()
}

// Stop stops the scheduler and waits for a running cleanup to finish or ctx to end
func (j *RetentionJob) Stop(ctx context.Context) error {
	done := j.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
