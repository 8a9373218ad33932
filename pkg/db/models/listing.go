package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Listing is a sellable item in a store; PriceRetail is snapshotted into
// order items at placement time.
type Listing struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	StoreID     uuid.UUID       `gorm:"column:store_id;type:uuid;not null;index"`
	Name        string          `gorm:"column:name;not null"`
	Unit        *string         `gorm:"column:unit"`
	PriceRetail decimal.Decimal `gorm:"column:price_retail;type:numeric(14,2);not null"`
	IsActive    bool            `gorm:"column:is_active;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *Listing) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
