package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_InstantAfterStart(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	var runs atomic.Int32
	require.NoError(t, s.AddSingletonJob(
		"refresh", "Refresh", "test job", "every hour",
		gocron.DurationJob(time.Hour),
		func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
		true,
	))

	s.Start()
	defer s.Stop() //nolint: errcheck

	assert.Eventually(t, func() bool {
		job, ok := s.GetJob("refresh")
		return ok && job.Status == JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	job, ok := s.GetJob("refresh")
	require.True(t, ok)
	assert.Equal(t, 1, job.RunCount)
	assert.Equal(t, int32(1), runs.Load())
	assert.True(t, job.Singleton)
	assert.False(t, job.NextRun.IsZero())
}

func TestScheduler_FailedJob(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	require.NoError(t, s.AddSingletonJob(
		"broken", "Broken", "always fails", "every hour",
		gocron.DurationJob(time.Hour),
		func(ctx context.Context) error {
			return errors.New("upstream unavailable")
		},
		false,
	))

	s.Start()
	defer s.Stop() //nolint: errcheck

	job, _ := s.GetJob("broken")
	assert.Equal(t, JobStatusScheduled, job.Status)

	require.NoError(t, s.RunJobNow("broken"))
	assert.Eventually(t, func() bool {
		job, _ := s.GetJob("broken")
		return job.Status == JobStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	job, _ = s.GetJob("broken")
	assert.Equal(t, 1, job.ErrorCount)
	assert.Equal(t, "upstream unavailable", job.LastError)
	assert.Len(t, s.GetJobs(), 1)
}

func TestScheduler_UnknownJob(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	s.Start()
	defer s.Stop() //nolint: errcheck

	assert.Error(t, s.RunJobNow("missing"))
	_, ok := s.GetJob("missing")
	assert.False(t, ok)
}

func TestScheduler_StopCancelsContext(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	started := make(chan struct{})
	done := make(chan struct{})
	require.NoError(t, s.AddSingletonJob(
		"long", "Long", "waits for cancellation", "every hour",
		gocron.DurationJob(time.Hour),
		func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			close(done)
			return ctx.Err()
		},
		true,
	))

	s.Start()
	<-started
	require.NoError(t, s.Stop())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not cancelled")
	}
}
