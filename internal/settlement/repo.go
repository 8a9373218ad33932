package settlement

import (
	"context"
	"time"

	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists payment change requests and the payment audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateRequest(ctx context.Context, req *models.PaymentChangeRequest) error
	FindRequest(ctx context.Context, id uuid.UUID) (*models.PaymentChangeRequest, error)
	LockRequest(ctx context.Context, id uuid.UUID) (*models.PaymentChangeRequest, error)
	// FindPending returns the order's PENDING request, or nil when none is.
	FindPending(ctx context.Context, orderID uuid.UUID) (*models.PaymentChangeRequest, error)
	CountByCourier(ctx context.Context, orderID, courierID uuid.UUID) (int64, error)
	// ResolvePending moves a PENDING request to status and reports whether it
	// was still pending.
	ResolvePending(ctx context.Context, id uuid.UUID, status enums.PaymentChangeStatus, resolvedBy *uuid.UUID, reason *string, at time.Time) (bool, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentChangeRequest, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.PaymentChangeRequest, error)
	AppendAudit(ctx context.Context, row *models.PaymentAuditTrail) error
	ListAudit(ctx context.Context, orderID uuid.UUID) ([]models.PaymentAuditTrail, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the settlement repo to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateRequest(ctx context.Context, req *models.PaymentChangeRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *repository) FindRequest(ctx context.Context, id uuid.UUID) (*models.PaymentChangeRequest, error) {
	var req models.PaymentChangeRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) LockRequest(ctx context.Context, id uuid.UUID) (*models.PaymentChangeRequest, error) {
	var req models.PaymentChangeRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *repository) FindPending(ctx context.Context, orderID uuid.UUID) (*models.PaymentChangeRequest, error) {
	var rows []models.PaymentChangeRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ? AND status = ?", orderID, enums.PaymentChangePending).
		Order("created_at ASC").
		Limit(1).
		Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (r *repository) CountByCourier(ctx context.Context, orderID, courierID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PaymentChangeRequest{}).
		Where("order_id = ? AND delivery_boy_id = ?", orderID, courierID).
		Count(&count).Error
	return count, err
}

func (r *repository) ResolvePending(ctx context.Context, id uuid.UUID, status enums.PaymentChangeStatus, resolvedBy *uuid.UUID, reason *string, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":      status,
		"resolved_by": resolvedBy,
		"resolved_at": at,
	}
	if reason != nil {
		updates["rejection_reason"] = *reason
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentChangeRequest{}).
		Where("id = ? AND status = ?", id, enums.PaymentChangePending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentChangeRequest, error) {
	var rows []models.PaymentChangeRequest
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]models.PaymentChangeRequest, error) {
	var rows []models.PaymentChangeRequest
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at <= ?", enums.PaymentChangePending, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) AppendAudit(ctx context.Context, row *models.PaymentAuditTrail) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) ListAudit(ctx context.Context, orderID uuid.UUID) ([]models.PaymentAuditTrail, error) {
	var rows []models.PaymentAuditTrail
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
