package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookwell/penalty-service/internal/config"
)

func noop(context.Context) error { return nil }

func TestSchedulerStartIsIdempotent(t *testing.T) {
	s := NewScheduler(zap.NewNop(), time.Second,
		Job{Name: "a", Spec: "*/5 * * * *", Run: noop},
		Job{Name: "b", Spec: "0 3 * * *", Run: noop},
	)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)

	assert.True(t, s.Running())
	assert.Len(t, s.cron.Entries(), 2)
	assert.Len(t, s.entryIDs, 2)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(nil, 0,
		Job{Name: "good", Spec: "0 3 * * *", Run: noop},
		Job{Name: "bad", Spec: "every tuesday", Run: noop},
	)
	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.False(t, s.Running())
	assert.Empty(t, s.cron.Entries())

	s = NewScheduler(nil, 0, Job{Name: "empty", Run: noop})
	assert.Error(t, s.Start(context.Background()))
}

func TestSchedulerStop(t *testing.T) {
	s := NewScheduler(nil, 0, Job{Name: "a", Spec: "0 0 1 * *", Run: noop})
	s.Stop()
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	assert.False(t, s.Running())
	s.Stop()
}

func TestExecuteAppliesTimeout(t *testing.T) {
	var deadline bool
	s := NewScheduler(nil, time.Minute)
	s.baseCtx = context.Background()
	s.execute(Job{Name: "deadline-check", Run: func(ctx context.Context) error {
		_, deadline = ctx.Deadline()
		return errors.New("logged, not returned")
	}})
	assert.True(t, deadline)
}

func TestPenaltyJobsUseConfiguredSchedules(t *testing.T) {
	cfg := config.SchedulerConfig{
		QuarterlyResetSpec:   "0 0 1 1,4,7,10 *",
		CertificateSweepSpec: "0 3 * * *",
		SuspensionSweepSpec:  "*/15 * * * *",
	}
	jobs := PenaltyJobs(cfg, nil, nil, nil, zap.NewNop())
	require.Len(t, jobs, 3)
	names := map[string]string{}
	for _, job := range jobs {
		names[job.Name] = job.Spec
		assert.NotNil(t, job.Run)
	}
	assert.Equal(t, cfg.QuarterlyResetSpec, names["quarterly-reset"])
	assert.Equal(t, cfg.CertificateSweepSpec, names["certificate-sweep"])
	assert.Equal(t, cfg.SuspensionSweepSpec, names["suspension-expiry"])

	s := NewScheduler(nil, 0, jobs...)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Len(t, s.cron.Entries(), 3)
}
