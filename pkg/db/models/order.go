package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/khatabook-backend/pkg/enums"
)

// Order is a shop owner's purchase from a retailer store together with its
// settlement state.
type Order struct {
	ID                     uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID                uuid.UUID          `gorm:"column:owner_id;type:uuid;not null;index"`
	RetailerID             uuid.UUID          `gorm:"column:retailer_id;type:uuid;not null;index"`
	StoreID                uuid.UUID          `gorm:"column:store_id;type:uuid;not null"`
	Status                 enums.OrderStatus  `gorm:"column:status;type:text;not null;default:'PENDING'"`
	TotalAmount            decimal.Decimal    `gorm:"column:total_amount;type:numeric(14,2);not null"`
	DeliveryType           enums.DeliveryType `gorm:"column:delivery_type;type:text;not null;default:'DELIVERY'"`
	DeliveryAt             *time.Time         `gorm:"column:delivery_at"`
	Note                   *string            `gorm:"column:note"`
	RejectionReason        *string            `gorm:"column:rejection_reason"`
	AssignedDeliveryBoyID  *uuid.UUID         `gorm:"column:assigned_delivery_boy_id;type:uuid;index"`
	PaymentReceived        bool               `gorm:"column:payment_received;not null;default:false"`
	AmountReceived         decimal.Decimal    `gorm:"column:amount_received;type:numeric(14,2);not null;default:0"`
	OriginalAmountReceived decimal.Decimal    `gorm:"column:original_amount_received;type:numeric(14,2);not null;default:0"`
	RemainingBalance       decimal.Decimal    `gorm:"column:remaining_balance;type:numeric(14,2);not null;default:0"`
	IsPartialPayment       bool               `gorm:"column:is_partial_payment;not null;default:false"`
	PaymentReceivedAt      *time.Time         `gorm:"column:payment_received_at"`
	PaymentReceivedBy      *uuid.UUID         `gorm:"column:payment_received_by;type:uuid"`
	AmountAdjustedBy       *uuid.UUID         `gorm:"column:amount_adjusted_by;type:uuid"`
	AmountAdjustedAt       *time.Time         `gorm:"column:amount_adjusted_at"`
	AdjustmentNote         *string            `gorm:"column:adjustment_note"`
	LiabilityPosted        bool               `gorm:"column:liability_posted;not null;default:false"`
	CancelledAt            *time.Time         `gorm:"column:cancelled_at"`
	CompletedAt            *time.Time         `gorm:"column:completed_at"`
	Items                  []OrderItem        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt              time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// IsParty reports whether userID is the owner, retailer or assigned courier.
func (o *Order) IsParty(userID uuid.UUID) bool {
	if o.OwnerID == userID || o.RetailerID == userID {
		return true
	}
	return o.AssignedDeliveryBoyID != nil && *o.AssignedDeliveryBoyID == userID
}

// OrderItem snapshots the listing price at placement time.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ListingID uuid.UUID       `gorm:"column:listing_id;type:uuid;not null"`
	Name      string          `gorm:"column:name;not null"`
	Qty       int             `gorm:"column:qty;not null"`
	PriceAt   decimal.Decimal `gorm:"column:price_at;type:numeric(14,2);not null"`
	LineTotal decimal.Decimal `gorm:"column:line_total;type:numeric(14,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
