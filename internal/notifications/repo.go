package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists inbox rows. Every read and update is scoped by
// recipient so one user can never touch another user's inbox.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, q pageQuery) ([]models.Notification, *pagination.Cursor, error)
	CountUnread(ctx context.Context, f Filter) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (readOutcome, error)
	MarkAllRead(ctx context.Context, f Filter, now time.Time) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Filter narrows an inbox to one recipient and optionally one order.
type Filter struct {
	UserID     uuid.UUID
	OrderID    *uuid.UUID
	UnreadOnly bool
}

type pageQuery struct {
	Filter
	Limit  int
	Cursor *pagination.Cursor
}

type readOutcome int

const (
	readMissing readOutcome = iota
	readApplied
	readAlready
)

type inboxRepo struct {
	db *gorm.DB
}

// NewRepository binds the inbox repository to db.
func NewRepository(db *gorm.DB) Repository {
	return &inboxRepo{db: db}
}

func (f Filter) scope(db *gorm.DB) *gorm.DB {
	db = db.Where("user_id = ?", f.UserID)
	if f.OrderID != nil {
		db = db.Where("order_id = ?", *f.OrderID)
	}
	if f.UnreadOnly {
		db = db.Where("read_at IS NULL")
	}
	return db
}

func (r *inboxRepo) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &inboxRepo{db: tx}
}

func (r *inboxRepo) inbox(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{})
}

func (r *inboxRepo) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *inboxRepo) List(ctx context.Context, q pageQuery) ([]models.Notification, *pagination.Cursor, error) {
	var rows []models.Notification
	err := r.inbox(ctx).
		Scopes(q.Filter.scope, pagination.Keyset(q.Cursor, q.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, q.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

func (r *inboxRepo) CountUnread(ctx context.Context, f Filter) (int64, error) {
	f.UnreadOnly = true
	var n int64
	err := r.inbox(ctx).Scopes(f.scope).Count(&n).Error
	return n, err
}

// MarkRead stamps read_at once. A second call reports readAlready and keeps
// the first timestamp.
func (r *inboxRepo) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (readOutcome, error) {
	var row models.Notification
	err := r.inbox(ctx).
		Select("id", "read_at").
		Where("id = ? AND user_id = ?", notificationID, userID).
		Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return readMissing, nil
	case err != nil:
		return readMissing, err
	case row.ReadAt != nil:
		return readAlready, nil
	}

	res := r.inbox(ctx).
		Where("id = ? AND read_at IS NULL", notificationID).
		UpdateColumn("read_at", now)
	if res.Error != nil {
		return readMissing, res.Error
	}
	if res.RowsAffected == 0 {
		return readAlready, nil
	}
	return readApplied, nil
}

func (r *inboxRepo) MarkAllRead(ctx context.Context, f Filter, now time.Time) (int64, error) {
	f.UnreadOnly = true
	res := r.inbox(ctx).Scopes(f.scope).UpdateColumn("read_at", now)
	return res.RowsAffected, res.Error
}

// DeleteReadBefore purges rows read before cutoff. Unread rows are kept
// regardless of age.
func (r *inboxRepo) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("read_at IS NOT NULL AND read_at < ?", cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
