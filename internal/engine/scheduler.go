package engine

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
	"github.com/jon4hz/vaxboard/internal/scheduler"
)

const refreshJobID = "refresh_dataset"

// setupJobs configures all scheduled jobs.
func (e *Engine) setupJobs() error {
	// a populated cache costs one COUNT(*) per run, an empty one is fetched again
	refreshJobDef := gocron.CronJob(e.cfg.Dataset.RetrySchedule, false)
	if err := e.scheduler.AddSingletonJob(
		refreshJobID,
		"Dataset Refresh",
		"Loads the remote dataset while the local cache is empty",
		e.cfg.Dataset.RetrySchedule,
		refreshJobDef,
		e.runRefreshJob,
		false,
	); err != nil {
		return fmt.Errorf("failed to add refresh job: %w", err)
	}

	log.Info("Scheduled jobs configured successfully")
	return nil
}

func (e *Engine) runRefreshJob(ctx context.Context) error {
	n, err := e.RefreshDataset(ctx)
	if err != nil {
		return err
	}
	log.Debug("Dataset refresh job finished", "rows", n)
	return nil
}

// RefreshJob returns the state of the dataset refresh job.
func (e *Engine) RefreshJob() (scheduler.JobInfo, bool) {
	return e.scheduler.GetJob(refreshJobID)
}
