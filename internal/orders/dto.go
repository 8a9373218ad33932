package orders

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateItemInput is one requested listing and quantity.
type CreateItemInput struct {
	ListingID uuid.UUID
	Qty       int
}

// CreateInput carries a shop owner's new order.
type CreateInput struct {
	OwnerID      uuid.UUID
	StoreID      uuid.UUID
	Items        []CreateItemInput
	DeliveryType enums.DeliveryType
	DeliveryAt   *time.Time
	Note         *string
}

// AcceptInput carries the retailer's acceptance of a PENDING order.
type AcceptInput struct {
	OrderID    uuid.UUID
	RetailerID uuid.UUID
	DeliveryAt *time.Time
}

// RejectInput carries the retailer's rejection of a PENDING order.
type RejectInput struct {
	OrderID    uuid.UUID
	RetailerID uuid.UUID
	Reason     string
}

// AdvanceStatusInput moves an order along the transition table.
type AdvanceStatusInput struct {
	OrderID    uuid.UUID
	RetailerID uuid.UUID
	Status     enums.OrderStatus
}

// AssignCourierInput assigns a linked courier to an order.
type AssignCourierInput struct {
	OrderID    uuid.UUID
	RetailerID uuid.UUID
	CourierID  uuid.UUID
}

// CancelInput carries the shop owner's cancellation.
type CancelInput struct {
	OrderID uuid.UUID
	OwnerID uuid.UUID
	Reason  *string
}

// ListParams holds cursor pagination and the optional status filter.
type ListParams struct {
	Limit  int
	Cursor string
	Status *enums.OrderStatus
}

// OrderItemDTO is the API view of an order item.
type OrderItemDTO struct {
	ID        uuid.UUID       `json:"id"`
	ListingID uuid.UUID       `json:"listing_id"`
	Name      string          `json:"name"`
	Qty       int             `json:"qty"`
	PriceAt   decimal.Decimal `json:"price_at"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// OrderDTO is the API view of an order including its settlement fields.
type OrderDTO struct {
	ID                     uuid.UUID          `json:"id"`
	OwnerID                uuid.UUID          `json:"owner_id"`
	RetailerID             uuid.UUID          `json:"retailer_id"`
	StoreID                uuid.UUID          `json:"store_id"`
	Status                 enums.OrderStatus  `json:"status"`
	TotalAmount            decimal.Decimal    `json:"total_amount"`
	DeliveryType           enums.DeliveryType `json:"delivery_type"`
	DeliveryAt             *time.Time         `json:"delivery_at,omitempty"`
	Note                   *string            `json:"note,omitempty"`
	RejectionReason        *string            `json:"rejection_reason,omitempty"`
	AssignedDeliveryBoyID  *uuid.UUID         `json:"assigned_delivery_boy_id,omitempty"`
	PaymentReceived        bool               `json:"payment_received"`
	AmountReceived         decimal.Decimal    `json:"amount_received"`
	OriginalAmountReceived decimal.Decimal    `json:"original_amount_received"`
	RemainingBalance       decimal.Decimal    `json:"remaining_balance"`
	IsPartialPayment       bool               `json:"is_partial_payment"`
	PaymentReceivedAt      *time.Time         `json:"payment_received_at,omitempty"`
	AdjustmentNote         *string            `json:"adjustment_note,omitempty"`
	CancelledAt            *time.Time         `json:"cancelled_at,omitempty"`
	CompletedAt            *time.Time         `json:"completed_at,omitempty"`
	Items                  []OrderItemDTO     `json:"items"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// ListResult wraps one page of orders plus the next page cursor.
type ListResult struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// EventDTO is the API view of one timeline row.
type EventDTO struct {
	ID         uuid.UUID            `json:"id"`
	EventType  enums.OrderEventType `json:"event_type"`
	ActorID    *uuid.UUID           `json:"actor_id,omitempty"`
	ActorRole  *enums.UserRole      `json:"actor_role,omitempty"`
	FromStatus *enums.OrderStatus   `json:"from_status,omitempty"`
	ToStatus   *enums.OrderStatus   `json:"to_status,omitempty"`
	Note       *string              `json:"note,omitempty"`
	Metadata   json.RawMessage      `json:"metadata,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

// FromModel maps an order and its loaded items to the API view.
func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ID:        item.ID,
			ListingID: item.ListingID,
			Name:      item.Name,
			Qty:       item.Qty,
			PriceAt:   item.PriceAt,
			LineTotal: item.LineTotal,
		})
	}
	return &OrderDTO{
		ID:                     o.ID,
		OwnerID:                o.OwnerID,
		RetailerID:             o.RetailerID,
		StoreID:                o.StoreID,
		Status:                 o.Status,
		TotalAmount:            o.TotalAmount,
		DeliveryType:           o.DeliveryType,
		DeliveryAt:             o.DeliveryAt,
		Note:                   o.Note,
		RejectionReason:        o.RejectionReason,
		AssignedDeliveryBoyID:  o.AssignedDeliveryBoyID,
		PaymentReceived:        o.PaymentReceived,
		AmountReceived:         o.AmountReceived,
		OriginalAmountReceived: o.OriginalAmountReceived,
		RemainingBalance:       o.RemainingBalance,
		IsPartialPayment:       o.IsPartialPayment,
		PaymentReceivedAt:      o.PaymentReceivedAt,
		AdjustmentNote:         o.AdjustmentNote,
		CancelledAt:            o.CancelledAt,
		CompletedAt:            o.CompletedAt,
		Items:                  items,
		CreatedAt:              o.CreatedAt,
		UpdatedAt:              o.UpdatedAt,
	}
}

func eventsToDTO(rows []models.OrderEvent) []EventDTO {
	out := make([]EventDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, EventDTO{
			ID:         row.ID,
			EventType:  row.EventType,
			ActorID:    row.ActorID,
			ActorRole:  row.ActorRole,
			FromStatus: row.FromStatus,
			ToStatus:   row.ToStatus,
			Note:       row.Note,
			Metadata:   row.Metadata,
			CreatedAt:  row.CreatedAt,
		})
	}
	return out
}
