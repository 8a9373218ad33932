package notifier

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/angelmondragon/khatabook-backend/pkg/outbox/payloads"
)

// Event is one typed notification and the users it is addressed to.
type Event struct {
	Type       enums.NotificationType
	OrderID    uuid.UUID
	Recipients []uuid.UUID
	Payload    any
	OccurredAt time.Time
}

func newEvent(t enums.NotificationType, orderID uuid.UUID, payload any, recipients ...uuid.UUID) Event {
	return Event{
		Type:       t,
		OrderID:    orderID,
		Recipients: uniqueRecipients(recipients),
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// uniqueRecipients drops nil ids and duplicates while keeping order.
func uniqueRecipients(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func withCourier(order *models.Order, ids ...uuid.UUID) []uuid.UUID {
	if order.AssignedDeliveryBoyID != nil {
		ids = append(ids, *order.AssignedDeliveryBoyID)
	}
	return ids
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// OrderPlaced tells the retailer about a new order.
func OrderPlaced(order *models.Order) Event {
	return newEvent(enums.NotificationOrderPlaced, order.ID, payloads.OrderPlaced{
		OrderID:     order.ID,
		Status:      order.Status,
		TotalAmount: order.TotalAmount,
	}, order.RetailerID)
}

// OrderAccepted tells the shop owner the retailer accepted.
func OrderAccepted(order *models.Order) Event {
	return newEvent(enums.NotificationOrderAccepted, order.ID, payloads.OrderAccepted{
		OrderID:    order.ID,
		Status:     order.Status,
		DeliveryAt: order.DeliveryAt,
	}, order.OwnerID)
}

// OrderRejected tells the shop owner the retailer rejected.
func OrderRejected(order *models.Order) Event {
	return newEvent(enums.NotificationOrderRejected, order.ID, payloads.OrderRejected{
		OrderID: order.ID,
		Status:  order.Status,
		Reason:  deref(order.RejectionReason),
	}, order.OwnerID)
}

// OrderStatusChanged goes to the shop owner and the assigned courier.
func OrderStatusChanged(order *models.Order, previous enums.OrderStatus) Event {
	return newEvent(enums.NotificationOrderStatusChanged, order.ID, payloads.OrderStatusChanged{
		OrderID:        order.ID,
		Status:         order.Status,
		PreviousStatus: previous,
	}, withCourier(order, order.OwnerID)...)
}

// OrderCancelled goes to the retailer and the assigned courier.
func OrderCancelled(order *models.Order) Event {
	return newEvent(enums.NotificationOrderCancelled, order.ID, payloads.OrderCancelled{
		OrderID: order.ID,
		Status:  order.Status,
	}, withCourier(order, order.RetailerID)...)
}

// DeliveryBoyAssigned goes to the shop owner and the courier.
func DeliveryBoyAssigned(order *models.Order, courier *models.User) Event {
	return newEvent(enums.NotificationDeliveryBoyAssigned, order.ID, payloads.DeliveryBoyAssigned{
		OrderID:          order.ID,
		DeliveryBoy:      payloads.CourierRef{ID: courier.ID, Name: courier.Name},
		DeliveryBoyPhone: courier.Phone,
	}, order.OwnerID, courier.ID)
}

// PaymentReceived goes to the shop owner. When the courier collected the
// payment the retailer is told as well.
func PaymentReceived(order *models.Order, collectedByCourier bool) Event {
	recipients := []uuid.UUID{order.OwnerID}
	if collectedByCourier {
		recipients = append(recipients, order.RetailerID)
	}
	return newEvent(enums.NotificationPaymentReceived, order.ID, payloads.PaymentReceived{
		OrderID:          order.ID,
		AmountReceived:   order.AmountReceived,
		TotalAmount:      order.TotalAmount,
		RemainingBalance: order.RemainingBalance,
		IsPartialPayment: order.IsPartialPayment,
	}, recipients...)
}

// PaymentAdjusted tells the retailer the shop owner corrected the amount.
func PaymentAdjusted(order *models.Order, adjustment decimal.Decimal) Event {
	return newEvent(enums.NotificationPaymentAdjusted, order.ID, payloads.PaymentAdjusted{
		OrderID:        order.ID,
		AdjustedAmount: order.AmountReceived,
		Adjustment:     adjustment,
		Note:           deref(order.AdjustmentNote),
	}, order.RetailerID)
}

// PaymentChangeRequested carries the courier's proposal to the shop owner.
func PaymentChangeRequested(req *models.PaymentChangeRequest) Event {
	return newEvent(enums.NotificationPaymentChangeRequest, req.OrderID, payloads.PaymentChangeRequested{
		OrderID:         req.OrderID,
		RequestID:       req.ID,
		OriginalAmount:  req.OriginalAmount,
		RequestedAmount: req.RequestedAmount,
		Reason:          req.Reason,
	}, req.OwnerID)
}

// PaymentChangeApproved goes to the courier and the retailer.
func PaymentChangeApproved(order *models.Order, req *models.PaymentChangeRequest) Event {
	return newEvent(enums.NotificationPaymentChangeApproved, req.OrderID, payloads.PaymentChangeApproved{
		OrderID:   req.OrderID,
		RequestID: req.ID,
		NewAmount: req.RequestedAmount,
	}, req.DeliveryBoyID, order.RetailerID)
}

// PaymentChangeRejected tells the courier the proposal was declined or expired.
func PaymentChangeRejected(req *models.PaymentChangeRequest) Event {
	return newEvent(enums.NotificationPaymentChangeRejected, req.OrderID, payloads.PaymentChangeRejected{
		OrderID:   req.OrderID,
		RequestID: req.ID,
		Reason:    deref(req.RejectionReason),
	}, req.DeliveryBoyID)
}
