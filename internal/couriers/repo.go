package couriers

import (
	"context"

	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes retailer/courier link persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, retailerID, courierID uuid.UUID) (*models.RetailerDeliveryBoy, error)
	Create(ctx context.Context, link *models.RetailerDeliveryBoy) error
	SetStatus(ctx context.Context, id uuid.UUID, status enums.CourierLinkStatus) error
	IsActive(ctx context.Context, retailerID, courierID uuid.UUID) (bool, error)
	ListByRetailer(ctx context.Context, retailerID uuid.UUID, includeInactive bool) ([]LinkDTO, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Find(ctx context.Context, retailerID, courierID uuid.UUID) (*models.RetailerDeliveryBoy, error) {
	var link models.RetailerDeliveryBoy
	err := r.db.WithContext(ctx).
		Where("retailer_id = ? AND delivery_boy_id = ?", retailerID, courierID).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *repository) Create(ctx context.Context, link *models.RetailerDeliveryBoy) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *repository) SetStatus(ctx context.Context, id uuid.UUID, status enums.CourierLinkStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.RetailerDeliveryBoy{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// IsActive reports whether courierID holds an ACTIVE link to retailerID.
func (r *repository) IsActive(ctx context.Context, retailerID, courierID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RetailerDeliveryBoy{}).
		Where("retailer_id = ? AND delivery_boy_id = ? AND status = ?", retailerID, courierID, enums.CourierLinkActive).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListByRetailer(ctx context.Context, retailerID uuid.UUID, includeInactive bool) ([]LinkDTO, error) {
	var rows []linkRow
	query := r.db.WithContext(ctx).
		Model(&models.RetailerDeliveryBoy{}).
		Select("retailer_delivery_boys.*, users.name AS courier_name, users.phone AS courier_phone").
		Joins("JOIN users ON users.id = retailer_delivery_boys.delivery_boy_id").
		Where("retailer_delivery_boys.retailer_id = ?", retailerID)
	if !includeInactive {
		query = query.Where("retailer_delivery_boys.status = ?", enums.CourierLinkActive)
	}
	if err := query.Order("users.name").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return linkRowsToDTO(rows), nil
}
