package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/khatabook-backend/pkg/enums"
)

// OrderEvent is an append-only timeline row for an order.
type OrderEvent struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	EventType  enums.OrderEventType `gorm:"column:event_type;type:text;not null"`
	ActorID    *uuid.UUID           `gorm:"column:actor_id;type:uuid"`
	ActorRole  *enums.UserRole      `gorm:"column:actor_role;type:text"`
	FromStatus *enums.OrderStatus   `gorm:"column:from_status;type:text"`
	ToStatus   *enums.OrderStatus   `gorm:"column:to_status;type:text"`
	Note       *string              `gorm:"column:note"`
	Metadata   json.RawMessage      `gorm:"column:metadata;type:jsonb"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (e *OrderEvent) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
