package notifier

import (
	"fmt"

	"github.com/angelmondragon/khatabook-backend/pkg/outbox/payloads"
)

// render builds the inbox title and message for an event.
func render(evt Event) (string, string) {
	switch p := evt.Payload.(type) {
	case payloads.OrderPlaced:
		return "New order", fmt.Sprintf("You received a new order for %s.", p.TotalAmount.StringFixed(2))
	case payloads.OrderAccepted:
		if p.DeliveryAt != nil {
			return "Order accepted", fmt.Sprintf("Your order was accepted for delivery on %s.", p.DeliveryAt.Format("02 Jan 2006"))
		}
		return "Order accepted", "Your order was accepted."
	case payloads.OrderRejected:
		if p.Reason != "" {
			return "Order rejected", fmt.Sprintf("Your order was rejected: %s", p.Reason)
		}
		return "Order rejected", "Your order was rejected."
	case payloads.OrderStatusChanged:
		return "Order updated", fmt.Sprintf("Order moved from %s to %s.", p.PreviousStatus, p.Status)
	case payloads.OrderCancelled:
		return "Order cancelled", "The shop owner cancelled the order."
	case payloads.DeliveryBoyAssigned:
		return "Courier assigned", fmt.Sprintf("%s will deliver this order.", p.DeliveryBoy.Name)
	case payloads.PaymentReceived:
		if p.IsPartialPayment {
			return "Partial payment received", fmt.Sprintf("%s received, %s remaining.", p.AmountReceived.StringFixed(2), p.RemainingBalance.StringFixed(2))
		}
		return "Payment received", fmt.Sprintf("Full payment of %s received.", p.AmountReceived.StringFixed(2))
	case payloads.PaymentAdjusted:
		return "Payment adjusted", fmt.Sprintf("Amount received changed to %s (%s).", p.AdjustedAmount.StringFixed(2), p.Adjustment.StringFixed(2))
	case payloads.PaymentChangeRequested:
		return "Payment change requested", fmt.Sprintf("Courier asks to collect %s instead of %s: %s", p.RequestedAmount.StringFixed(2), p.OriginalAmount.StringFixed(2), p.Reason)
	case payloads.PaymentChangeApproved:
		return "Payment change approved", fmt.Sprintf("Order total is now %s.", p.NewAmount.StringFixed(2))
	case payloads.PaymentChangeRejected:
		if p.Reason != "" {
			return "Payment change rejected", fmt.Sprintf("Your payment change was rejected: %s", p.Reason)
		}
		return "Payment change rejected", "Your payment change was rejected."
	}
	return string(evt.Type), fmt.Sprintf("Order %s has an update.", evt.OrderID)
}
