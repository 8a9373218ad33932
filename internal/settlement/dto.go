package settlement

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ConfirmPaymentInput carries the retailer's confirmation. AmountReceived
// defaults to the order total.
type ConfirmPaymentInput struct {
	OrderID        uuid.UUID
	RetailerID     uuid.UUID
	AmountReceived *decimal.Decimal
	Note           *string
}

// CourierConfirmInput carries the courier's collect-and-complete action.
type CourierConfirmInput struct {
	OrderID        uuid.UUID
	CourierID      uuid.UUID
	AmountReceived *decimal.Decimal
	Note           *string
}

// AdjustAmountInput corrects the amount received after confirmation.
type AdjustAmountInput struct {
	OrderID   uuid.UUID
	OwnerID   uuid.UUID
	NewAmount decimal.Decimal
	Note      string
}

// RequestChangeInput is a courier's proposal for a new order total.
type RequestChangeInput struct {
	OrderID   uuid.UUID
	CourierID uuid.UUID
	NewAmount decimal.Decimal
	Reason    string
}

// Settlement is the payment state of an order after a settlement action.
type Settlement struct {
	OrderID          uuid.UUID         `json:"order_id"`
	Status           enums.OrderStatus `json:"status"`
	TotalAmount      decimal.Decimal   `json:"total_amount"`
	PaymentReceived  bool              `json:"payment_received"`
	AmountReceived   decimal.Decimal   `json:"amount_received"`
	RemainingBalance decimal.Decimal   `json:"remaining_balance"`
	IsPartialPayment bool              `json:"is_partial_payment"`
	ReceivedAt       *time.Time        `json:"payment_received_at,omitempty"`
	AdjustmentNote   *string           `json:"adjustment_note,omitempty"`
}

// ChangeRequestDTO is the API view of a payment change request.
type ChangeRequestDTO struct {
	ID              uuid.UUID                 `json:"id"`
	OrderID         uuid.UUID                 `json:"order_id"`
	DeliveryBoyID   uuid.UUID                 `json:"delivery_boy_id"`
	OriginalAmount  decimal.Decimal           `json:"original_amount"`
	RequestedAmount decimal.Decimal           `json:"requested_amount"`
	Reason          string                    `json:"reason"`
	Status          enums.PaymentChangeStatus `json:"status"`
	RejectionReason *string                   `json:"rejection_reason,omitempty"`
	ResolvedBy      *uuid.UUID                `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time                `json:"resolved_at,omitempty"`
	ExpiresAt       time.Time                 `json:"expires_at"`
	CreatedAt       time.Time                 `json:"created_at"`
}

// AuditEntryDTO is one row of an order's payment audit trail.
type AuditEntryDTO struct {
	ID           uuid.UUID                `json:"id"`
	ActorID      *uuid.UUID               `json:"actor_id,omitempty"`
	ActorRole    *enums.UserRole          `json:"actor_role,omitempty"`
	Action       enums.PaymentAuditAction `json:"action"`
	AmountBefore decimal.NullDecimal      `json:"amount_before"`
	AmountAfter  decimal.NullDecimal      `json:"amount_after"`
	Note         *string                  `json:"note,omitempty"`
	Metadata     json.RawMessage          `json:"metadata,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`
}

func settlementFromOrder(o *models.Order) *Settlement {
	return &Settlement{
		OrderID:          o.ID,
		Status:           o.Status,
		TotalAmount:      o.TotalAmount,
		PaymentReceived:  o.PaymentReceived,
		AmountReceived:   o.AmountReceived,
		RemainingBalance: o.RemainingBalance,
		IsPartialPayment: o.IsPartialPayment,
		ReceivedAt:       o.PaymentReceivedAt,
		AdjustmentNote:   o.AdjustmentNote,
	}
}

func requestToDTO(r *models.PaymentChangeRequest) *ChangeRequestDTO {
	return &ChangeRequestDTO{
		ID:              r.ID,
		OrderID:         r.OrderID,
		DeliveryBoyID:   r.DeliveryBoyID,
		OriginalAmount:  r.OriginalAmount,
		RequestedAmount: r.RequestedAmount,
		Reason:          r.Reason,
		Status:          r.Status,
		RejectionReason: r.RejectionReason,
		ResolvedBy:      r.ResolvedBy,
		ResolvedAt:      r.ResolvedAt,
		ExpiresAt:       r.ExpiresAt,
		CreatedAt:       r.CreatedAt,
	}
}

func auditToDTO(rows []models.PaymentAuditTrail) []AuditEntryDTO {
	out := make([]AuditEntryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, AuditEntryDTO{
			ID:           row.ID,
			ActorID:      row.ActorID,
			ActorRole:    row.ActorRole,
			Action:       row.Action,
			AmountBefore: row.AmountBefore,
			AmountAfter:  row.AmountAfter,
			Note:         row.Note,
			Metadata:     row.Metadata,
			CreatedAt:    row.CreatedAt,
		})
	}
	return out
}
