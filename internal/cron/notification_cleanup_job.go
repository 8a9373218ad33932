package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/khatabook-backend/pkg/logger"
)

const notificationRetentionDays = 30

type readNotificationPurger interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationCleanupJobParams configure the inbox purge. Unread
// notifications are never removed.
type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository readNotificationPurger
	Retention  int
	Every      time.Duration
}

func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Repository == nil:
		return nil, errors.New("notifications repository required")
	}
	days := params.Retention
	if days <= 0 {
		days = notificationRetentionDays
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		inbox:     params.Repository,
		retention: days,
		every:     params.Every,
		now:       time.Now,
	}, nil
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	inbox     readNotificationPurger
	retention int
	every     time.Duration
	now       func() time.Time
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Every() time.Duration { return j.every }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	purged, err := j.inbox.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge read notifications before %s: %w", cutoff.Format(time.DateOnly), err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"purged":         purged,
	}), "read notifications purged")
	return nil
}
