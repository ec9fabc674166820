package audit

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lucirr/dip-console/pkg/observability"
)

// RetentionJob prunes expired audit events on a cron schedule.
type RetentionJob struct {
	recorder  *Recorder
	retention time.Duration
	schedule  string
	logger    *observability.Logger
	cron      *cron.Cron
}

// NewRetentionJob creates the pruning job. The schedule uses standard cron
// syntax; "0 3 * * *" runs nightly at 03:00.
func NewRetentionJob(recorder *Recorder, retention time.Duration, schedule string, logger *observability.Logger) *RetentionJob {
	return &RetentionJob{
		recorder:  recorder,
		retention: retention,
		schedule:  schedule,
		logger:    logger,
		cron:      cron.New(),
	}
}

// Start schedules the job and begins the cron loop.
func (j *RetentionJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.run); err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for a running prune to finish.
func (j *RetentionJob) Stop() {
	<-j.cron.Stop().Done()
}

func (j *RetentionJob) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := j.recorder.DeleteOlderThan(ctx, j.retention)
	if err != nil {
		j.logger.WithError(err).Error("Audit retention prune failed")
		return
	}
	j.logger.WithField("deleted", deleted).Info("Audit retention prune complete")
}
