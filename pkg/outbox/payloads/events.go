package payloads

import (
	"time"

	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderPlaced tells the retailer a shop owner placed an order.
type OrderPlaced struct {
	OrderID     uuid.UUID         `json:"orderId"`
	Status      enums.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal   `json:"totalAmount"`
}

// OrderAccepted tells the shop owner the retailer accepted the order.
type OrderAccepted struct {
	OrderID    uuid.UUID         `json:"orderId"`
	Status     enums.OrderStatus `json:"status"`
	DeliveryAt *time.Time        `json:"deliveryAt,omitempty"`
}

// OrderRejected tells the shop owner the retailer rejected the order.
type OrderRejected struct {
	OrderID uuid.UUID         `json:"orderId"`
	Status  enums.OrderStatus `json:"status"`
	Reason  string            `json:"reason"`
}

// OrderStatusChanged reports a forward status transition.
type OrderStatusChanged struct {
	OrderID        uuid.UUID         `json:"orderId"`
	Status         enums.OrderStatus `json:"status"`
	PreviousStatus enums.OrderStatus `json:"previousStatus"`
}

// OrderCancelled tells the retailer the shop owner cancelled the order.
type OrderCancelled struct {
	OrderID uuid.UUID         `json:"orderId"`
	Status  enums.OrderStatus `json:"status"`
}

// CourierRef identifies the assigned delivery courier.
type CourierRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// DeliveryBoyAssigned tells the owner and the courier about an assignment.
type DeliveryBoyAssigned struct {
	OrderID          uuid.UUID  `json:"orderId"`
	DeliveryBoy      CourierRef `json:"deliveryBoy"`
	DeliveryBoyPhone *string    `json:"deliveryBoyPhone,omitempty"`
}

// PaymentReceived reports a confirmed payment against the order total.
type PaymentReceived struct {
	OrderID          uuid.UUID       `json:"orderId"`
	AmountReceived   decimal.Decimal `json:"amountReceived"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	RemainingBalance decimal.Decimal `json:"remainingBalance"`
	IsPartialPayment bool            `json:"isPartialPayment"`
}

// PaymentAdjusted reports a shop owner correction of the amount received.
type PaymentAdjusted struct {
	OrderID        uuid.UUID       `json:"orderId"`
	AdjustedAmount decimal.Decimal `json:"adjustedAmount"`
	Adjustment     decimal.Decimal `json:"adjustment"`
	Note           string          `json:"note,omitempty"`
}

// PaymentChangeRequested carries a courier's proposal to the shop owner.
type PaymentChangeRequested struct {
	OrderID         uuid.UUID       `json:"orderId"`
	RequestID       uuid.UUID       `json:"requestId"`
	OriginalAmount  decimal.Decimal `json:"originalAmount"`
	RequestedAmount decimal.Decimal `json:"requestedAmount"`
	Reason          string          `json:"reason"`
}

// PaymentChangeApproved tells the courier and retailer the new total.
type PaymentChangeApproved struct {
	OrderID   uuid.UUID       `json:"orderId"`
	RequestID uuid.UUID       `json:"requestId"`
	NewAmount decimal.Decimal `json:"newAmount"`
}

// PaymentChangeRejected tells the courier the proposal was declined or expired.
type PaymentChangeRejected struct {
	OrderID   uuid.UUID `json:"orderId"`
	RequestID uuid.UUID `json:"requestId"`
	Reason    string    `json:"reason,omitempty"`
}
