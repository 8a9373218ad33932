package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store is a retailer's catalog; orders are placed against one store.
type Store struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	RetailerID uuid.UUID `gorm:"column:retailer_id;type:uuid;not null;index"`
	Name       string    `gorm:"column:name;not null"`
	Address    *string   `gorm:"column:address"`
	IsActive   bool      `gorm:"column:is_active;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Store) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
