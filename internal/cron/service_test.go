package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/khatabook-backend/pkg/logger"
)

type fakeLock struct {
	held     bool
	holder   string
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

func (f *fakeLock) Holder(context.Context) (string, error) { return f.holder, nil }

type testJob struct {
	name  string
	every time.Duration
	err   error
	runs  int
	run   func(context.Context) error
}

func (j *testJob) Name() string         { return j.name }
func (j *testJob) Every() time.Duration { return j.every }

func (j *testJob) Run(ctx context.Context) error {
	j.runs++
	if j.run != nil {
		return j.run(ctx)
	}
	return j.err
}

func newTestCronService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
	})
	require.NoError(t, err)
	return svc
}

func TestCycleCollectsFailuresAndReleasesLock(t *testing.T) {
	ok := &testJob{name: "payment-change-expiry"}
	failing := &testJob{name: "khatabook-reconcile", err: errors.New("boom")}
	lock := &fakeLock{}
	svc := newTestCronService(t, lock, failing, ok)

	err := svc.runCycle(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.ErrorContains(t, err, "khatabook-reconcile: boom")
	assert.Equal(t, 1, ok.runs, "a failure does not stop later jobs")
	assert.Equal(t, 1, failing.runs)
	assert.False(t, lock.held)
	assert.Equal(t, 1, lock.releases)
}

func TestCycleHonoursCadence(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	everyTick := &testJob{name: "payment-change-expiry"}
	daily := &testJob{name: "outbox-retention", every: 24 * time.Hour}
	svc := newTestCronService(t, &fakeLock{}, everyTick, daily)
	svc.now = func() time.Time { return now }

	for range 3 {
		require.NoError(t, svc.runCycle(context.Background()))
		now = now.Add(15 * time.Minute)
	}
	assert.Equal(t, 3, everyTick.runs)
	assert.Equal(t, 1, daily.runs)

	now = now.Add(24 * time.Hour)
	require.NoError(t, svc.runCycle(context.Background()))
	assert.Equal(t, 2, daily.runs)
}

func TestFailedPeriodicJobRetriesNextTick(t *testing.T) {
	daily := &testJob{name: "khatabook-reconcile", every: 24 * time.Hour, err: errors.New("db down")}
	svc := newTestCronService(t, &fakeLock{}, daily)

	assert.Error(t, svc.runCycle(context.Background()))
	daily.err = nil
	assert.NoError(t, svc.runCycle(context.Background()))
	assert.NoError(t, svc.runCycle(context.Background()))
	assert.Equal(t, 2, daily.runs, "runs again after the failure, then waits a day")
}

func TestCycleSkipsWhenLockHeldElsewhere(t *testing.T) {
	job := &testJob{name: "payment-change-expiry"}
	lock := &fakeLock{held: true, holder: "worker-2/abc"}
	svc := newTestCronService(t, lock, job)

	require.NoError(t, svc.runCycle(context.Background()))
	assert.Zero(t, job.runs)
	assert.Zero(t, lock.releases, "another worker's lease is left alone")
}

func TestJobPanicBecomesError(t *testing.T) {
	bad := &testJob{name: "reconcile", run: func(context.Context) error { panic("nil ledger") }}
	after := &testJob{name: "expiry"}
	svc := newTestCronService(t, &fakeLock{}, bad, after)

	err := svc.runCycle(context.Background())
	assert.ErrorContains(t, err, "reconcile: panic: nil ledger")
	assert.Equal(t, 1, after.runs)
}

func TestJobRunsUnderTimeout(t *testing.T) {
	var deadline time.Time
	job := &testJob{name: "expiry", run: func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	}}
	svc := newTestCronService(t, &fakeLock{}, job)
	svc.jobTimeout = time.Minute

	require.NoError(t, svc.runCycle(context.Background()))
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestNewServiceDefaults(t *testing.T) {
	_, err := NewService(ServiceParams{Lock: &fakeLock{}})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logger.New(logger.Options{Output: io.Discard})})
	assert.Error(t, err)

	svc := newTestCronService(t, &fakeLock{})
	assert.Equal(t, defaultTick, svc.tick)
	assert.Equal(t, defaultJobTimeout, svc.jobTimeout)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "expiry"}
	svc := newTestCronService(t, &fakeLock{}, job)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
	assert.Equal(t, 1, job.runs, "the first cycle runs immediately")
}
