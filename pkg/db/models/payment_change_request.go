package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/khatabook-backend/pkg/enums"
)

// PaymentChangeRequest is a courier's proposal to change an order total,
// resolved once by the shop owner or by expiry.
type PaymentChangeRequest struct {
	ID              uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;index"`
	DeliveryBoyID   uuid.UUID                 `gorm:"column:delivery_boy_id;type:uuid;not null"`
	OwnerID         uuid.UUID                 `gorm:"column:owner_id;type:uuid;not null"`
	OriginalAmount  decimal.Decimal           `gorm:"column:original_amount;type:numeric(14,2);not null"`
	RequestedAmount decimal.Decimal           `gorm:"column:requested_amount;type:numeric(14,2);not null"`
	Reason          string                    `gorm:"column:reason;not null"`
	Status          enums.PaymentChangeStatus `gorm:"column:status;type:text;not null;default:'PENDING'"`
	RejectionReason *string                   `gorm:"column:rejection_reason"`
	ResolvedBy      *uuid.UUID                `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt      *time.Time                `gorm:"column:resolved_at"`
	ExpiresAt       time.Time                 `gorm:"column:expires_at;not null;index"`
	CreatedAt       time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *PaymentChangeRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
