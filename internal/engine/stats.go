package engine

import (
	"context"
	"fmt"

	"github.com/jon4hz/vaxboard/internal/dataset"
	"github.com/jon4hz/vaxboard/internal/scheduler"
)

// Stats summarizes the state of the local stores.
type Stats struct {
	Users   int64                  `json:"users"`
	Dataset *dataset.Status        `json:"dataset"`
	Sources []dataset.SourceStatus `json:"sources"`
	Jobs    []scheduler.JobInfo    `json:"jobs"`
}

// GetStats collects user and dataset statistics.
func (e *Engine) GetStats(ctx context.Context) (*Stats, error) {
	users, err := e.db.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	status, err := e.dataset.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset status: %w", err)
	}
	return &Stats{
		Users:   users,
		Dataset: status,
		Sources: e.sources.Status(),
		Jobs:    e.scheduler.GetJobs(),
	}, nil
}
