package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/khatabook-backend/pkg/enums"
)

// PaymentAuditTrail records every settlement action on an order. ActorID is
// nil for system actions such as request expiry.
type PaymentAuditTrail struct {
	ID           uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID                `gorm:"column:order_id;type:uuid;not null;index"`
	ActorID      *uuid.UUID               `gorm:"column:actor_id;type:uuid"`
	ActorRole    *enums.UserRole          `gorm:"column:actor_role;type:text"`
	Action       enums.PaymentAuditAction `gorm:"column:action;type:text;not null"`
	AmountBefore decimal.NullDecimal      `gorm:"column:amount_before;type:numeric(14,2)"`
	AmountAfter  decimal.NullDecimal      `gorm:"column:amount_after;type:numeric(14,2)"`
	Note         *string                  `gorm:"column:note"`
	Metadata     json.RawMessage          `gorm:"column:metadata;type:jsonb"`
	CreatedAt    time.Time                `gorm:"column:created_at;autoCreateTime"`
}

func (a *PaymentAuditTrail) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
