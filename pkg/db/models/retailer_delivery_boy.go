package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/khatabook-backend/pkg/enums"
)

// RetailerDeliveryBoy links a courier to a retailer; only ACTIVE links allow
// assignment.
type RetailerDeliveryBoy struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	RetailerID    uuid.UUID               `gorm:"column:retailer_id;type:uuid;not null;uniqueIndex:uq_retailer_delivery_boy,priority:1"`
	DeliveryBoyID uuid.UUID               `gorm:"column:delivery_boy_id;type:uuid;not null;uniqueIndex:uq_retailer_delivery_boy,priority:2"`
	Status        enums.CourierLinkStatus `gorm:"column:status;type:text;not null;default:'ACTIVE'"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *RetailerDeliveryBoy) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
