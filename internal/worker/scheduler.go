package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bookwell/penalty-service/internal/config"
	"github.com/bookwell/penalty-service/internal/service"
)

// Job is one periodic task.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler runs the periodic penalty jobs in-process. Nothing is scheduled
// until Start is called.
type Scheduler struct {
	cron    *cron.Cron
	jobs    []Job
	logger  *zap.Logger
	timeout time.Duration

	mu       sync.Mutex
	started  bool
	entryIDs map[string]cron.EntryID
	baseCtx  context.Context
}

// NewScheduler builds a scheduler for the given jobs. A zero timeout lets
// each run last as long as it needs.
func NewScheduler(logger *zap.Logger, timeout time.Duration, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger.Sugar()}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs:     jobs,
		logger:   logger,
		timeout:  timeout,
		entryIDs: make(map[string]cron.EntryID),
	}
}

// PenaltyJobs returns the quarterly reset, certificate sweep and suspension
// expiry jobs with the schedules from cfg.
func PenaltyJobs(cfg config.SchedulerConfig, resets *service.ResetService, certificates *service.CertificateService, penalty *service.PenaltyService, logger *zap.Logger) []Job {
	return []Job{
		{
			Name: "quarterly-reset",
			Spec: cfg.QuarterlyResetSpec,
			Run: func(ctx context.Context) error {
				report, err := resets.ResetAll(ctx)
				logger.Info("quarterly reset finished",
					zap.Int("customers", report.Customers),
					zap.Int("providers", report.Providers),
					zap.Int("skipped", report.Skipped),
					zap.Int("failed", report.Failed),
					zap.Time("next_run", service.NextQuarterStart(time.Now().UTC())),
				)
				return err
			},
		},
		{
			Name: "certificate-sweep",
			Spec: cfg.CertificateSweepSpec,
			Run: func(ctx context.Context) error {
				report, err := certificates.Sweep(ctx)
				logger.Info("certificate sweep finished",
					zap.Int("reminders", report.Reminders),
					zap.Int("expired", report.Expired),
					zap.Int("failed", report.Failed),
				)
				return err
			},
		},
		{
			Name: "suspension-expiry",
			Spec: cfg.SuspensionSweepSpec,
			Run: func(ctx context.Context) error {
				lifted, err := penalty.LiftExpiredSuspensions(ctx)
				if lifted > 0 {
					logger.Info("expired suspensions lifted", zap.Int("count", lifted))
				}
				return err
			},
		},
	}
}

// Start registers every job and starts the cron loop. Calling it again on a
// running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.logger.Debug("scheduler already started")
		return nil
	}

	s.baseCtx = ctx
	for _, job := range s.jobs {
		if err := s.register(job); err != nil {
			for _, id := range s.entryIDs {
				s.cron.Remove(id)
			}
			s.entryIDs = make(map[string]cron.EntryID)
			return err
		}
	}

	s.cron.Start()
	s.started = true
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.entryIDs)))
	return nil
}

// Stop halts the cron loop and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Running reports whether Start has been called without a matching Stop.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// register must be called with s.mu held.
func (s *Scheduler) register(job Job) error {
	if _, ok := s.entryIDs[job.Name]; ok {
		return nil
	}
	if job.Spec == "" {
		return fmt.Errorf("job %q has no schedule", job.Name)
	}
	j := job
	id, err := s.cron.AddFunc(j.Spec, func() { s.execute(j) })
	if err != nil {
		return fmt.Errorf("invalid cron expression for %q: %w", j.Name, err)
	}
	s.entryIDs[j.Name] = id
	s.logger.Info("job registered", zap.String("job", j.Name), zap.String("schedule", j.Spec))
	return nil
}

func (s *Scheduler) execute(job Job) {
	ctx := s.baseCtx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("job failed", zap.String("job", job.Name), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return
	}
	s.logger.Debug("job finished", zap.String("job", job.Name), zap.Duration("elapsed", time.Since(start)))
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
