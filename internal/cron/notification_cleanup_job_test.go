package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/khatabook-backend/internal/notifications"
	"github.com/angelmondragon/khatabook-backend/pkg/db/dbtest"
	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
)

type purgeFunc func(ctx context.Context, cutoff time.Time) (int64, error)

func (f purgeFunc) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return f(ctx, cutoff)
}

func cleanupJob(t *testing.T, inbox readNotificationPurger, retention int, now time.Time) *notificationCleanupJob {
	t.Helper()
	job, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Repository: inbox,
		Retention:  retention,
		Every:      24 * time.Hour,
	})
	require.NoError(t, err)
	impl := job.(*notificationCleanupJob)
	impl.now = func() time.Time { return now }
	return impl
}

func TestNotificationCleanupKeepsUnreadAndRecent(t *testing.T) {
	ctx := context.Background()
	client := dbtest.Open(t)
	inbox := notifications.NewRepository(client.DB())
	now := time.Now().UTC()
	user := uuid.New()

	stamp := func(age time.Duration) *time.Time {
		at := now.Add(-age)
		return &at
	}
	rows := map[string]*models.Notification{
		"read long ago":  {ReadAt: stamp(10 * 24 * time.Hour)},
		"read yesterday": {ReadAt: stamp(24 * time.Hour)},
		"never read":     {},
	}
	for title, row := range rows {
		row.UserID, row.Type, row.Title, row.Message = user, enums.NotificationPaymentReceived, title, "body"
		require.NoError(t, inbox.Create(ctx, row))
	}

	require.NoError(t, cleanupJob(t, inbox, 7, now).Run(ctx))

	var left []models.Notification
	require.NoError(t, client.DB().Order("title").Find(&left).Error)
	require.Len(t, left, 2)
	assert.Equal(t, "never read", left[0].Title)
	assert.Equal(t, "read yesterday", left[1].Title)
}

func TestNotificationCleanupCutoffAndCadence(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	var cutoff time.Time
	job := cleanupJob(t, purgeFunc(func(_ context.Context, c time.Time) (int64, error) {
		cutoff = c
		return 0, nil
	}), 0, now)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.AddDate(0, 0, -notificationRetentionDays), cutoff)
	assert.Equal(t, 24*time.Hour, job.Every())
}

func TestNotificationCleanupWrapsStoreErrors(t *testing.T) {
	boom := errors.New("boom")
	job := cleanupJob(t, purgeFunc(func(context.Context, time.Time) (int64, error) { return 0, boom }), 7, time.Now())
	err := job.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "purge read notifications")

	_, err = NewNotificationCleanupJob(NotificationCleanupJobParams{Repository: purgeFunc(nil)})
	assert.Error(t, err)
}
