package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/khatabook-backend/pkg/logger"
)

const (
	defaultOutboxRetentionDays = 30
	defaultDLQRetentionDays    = 90
	// Unpublished rows with fewer attempts are still owned by the publisher.
	outboxMinAttempts = 5
)

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type deadLetterPurger interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// OutboxRetentionJobParams configure the outbox and dead letter purge.
type OutboxRetentionJobParams struct {
	Logger         *logger.Logger
	DB             txRunner
	Outbox         outboxPurger
	DeadLetters    deadLetterPurger
	OutboxDays     int
	DeadLetterDays int
	Every          time.Duration
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Outbox == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:       params.Logger,
		db:         params.DB,
		outbox:     params.Outbox,
		deadLetter: params.DeadLetters,
		outboxDays: params.OutboxDays,
		dlqDays:    params.DeadLetterDays,
		every:      params.Every,
		now:        time.Now,
	}
	if job.outboxDays <= 0 {
		job.outboxDays = defaultOutboxRetentionDays
	}
	if job.dlqDays <= 0 {
		job.dlqDays = defaultDLQRetentionDays
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg       *logger.Logger
	db         txRunner
	outbox     outboxPurger
	deadLetter deadLetterPurger
	outboxDays int
	dlqDays    int
	every      time.Duration
	now        func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Every() time.Duration { return j.every }

// Run drops delivered notification events and expired dead letters in one
// transaction so a partial purge never commits.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	today := j.now().UTC()
	outboxCutoff := today.AddDate(0, 0, -j.outboxDays)
	dlqCutoff := today.AddDate(0, 0, -j.dlqDays)

	var events, deadLetters int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := j.outbox.DeletePublishedBefore(ctx, tx, outboxCutoff, outboxMinAttempts)
		if err != nil {
			return err
		}
		events = n
		if j.deadLetter == nil {
			return nil
		}
		n, err = j.deadLetter.DeleteFailedBefore(ctx, tx, dlqCutoff)
		if err != nil {
			return err
		}
		deadLetters = n
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"outbox_cutoff":        outboxCutoff,
		"dead_letter_cutoff":   dlqCutoff,
		"events_deleted":       events,
		"dead_letters_deleted": deadLetters,
	}), "outbox retention cleanup complete")
	return nil
}
