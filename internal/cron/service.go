package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/khatabook-backend/pkg/logger"
	"github.com/angelmondragon/khatabook-backend/pkg/metrics"
)

const (
	defaultTick       = 15 * time.Minute
	defaultJobTimeout = 10 * time.Minute
)

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	// Interval is the tick. Jobs with a longer cadence skip ticks until due.
	Interval time.Duration
	// JobTimeout bounds a single job run. Keep it under the lock TTL.
	JobTimeout time.Duration
}

// Service is the cron worker loop. A cycle runs only on the instance holding
// the lock, and each job at most once per its cadence.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	tick       time.Duration
	jobTimeout time.Duration

	lastOK map[string]time.Time
	now    func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.Logger == nil:
		return nil, errors.New("cron: logger required")
	case p.Lock == nil:
		return nil, errors.New("cron: lock required")
	}
	s := &Service{
		logg:       p.Logger,
		registry:   p.Registry,
		lock:       p.Lock,
		metrics:    p.Metrics,
		tick:       p.Interval,
		jobTimeout: p.JobTimeout,
		lastOK:     map[string]time.Time{},
		now:        time.Now,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.tick <= 0 {
		s.tick = defaultTick
	}
	if s.jobTimeout <= 0 {
		s.jobTimeout = defaultJobTimeout
	}
	return s, nil
}

// Run starts with an immediate cycle, then one per tick, until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		if err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "cron.cycle_failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runCycle runs each due job in registration order. Failures are collected
// and never stop the jobs after them.
func (s *Service) runCycle(ctx context.Context) (errs error) {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !acquired {
		s.metrics.IncSkipped()
		s.logg.Info(s.withHolder(ctx), "cron.skipped")
		return nil
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "cron.lock_release_failed", err)
		}
	}()

	ran := 0
	for _, job := range s.registry.Jobs() {
		if !s.due(job) {
			continue
		}
		ran++
		errs = multierr.Append(errs, s.runJob(ctx, job))
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs_run": ran,
		"failures": len(multierr.Errors(errs)),
	}), "cron.cycle_complete")
	return errs
}

func (s *Service) withHolder(ctx context.Context) context.Context {
	hr, ok := s.lock.(holderReporter)
	if !ok {
		return ctx
	}
	holder, err := hr.Holder(ctx)
	if err != nil || holder == "" {
		return ctx
	}
	return s.logg.WithField(ctx, "lock_holder", holder)
}

func (s *Service) due(job Job) bool {
	every := cadence(job)
	last, ran := s.lastOK[job.Name()]
	return every <= 0 || !ran || s.now().Sub(last) >= every
}

// runJob only records success, so a failed job is retried next tick even
// when its cadence is longer.
func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	ctx = s.logg.WithField(ctx, "job", name)

	start := s.now()
	err := s.invoke(ctx, job)
	took := s.now().Sub(start)
	s.metrics.ObserveRun(name, took, err)

	ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron.job_failed", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	s.lastOK[name] = start
	s.logg.Info(ctx, "cron.job_complete")
	return nil
}

// invoke runs job under the per-job timeout and turns a panic into an error.
func (s *Service) invoke(ctx context.Context, job Job) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("panic: %v", v)
		}
	}()
	return job.Run(ctx)
}
