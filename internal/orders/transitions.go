package orders

import "github.com/angelmondragon/khatabook-backend/pkg/enums"

// AllowedTransitions maps each status to the statuses it may move to through
// the retailer-driven flow. Cancellation is handled separately by Cancel.
var AllowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:        {enums.OrderStatusAccepted, enums.OrderStatusRejected},
	enums.OrderStatusAccepted:       {enums.OrderStatusReady},
	enums.OrderStatusReady:          {enums.OrderStatusOutForDelivery, enums.OrderStatusCompleted},
	enums.OrderStatusOutForDelivery: {enums.OrderStatusCompleted},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range AllowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanCancel reports whether the owner may still cancel an order in status.
func CanCancel(status enums.OrderStatus) bool {
	return !status.IsTerminal()
}

// CanAssignCourier reports whether a courier may be (re)assigned in status.
func CanAssignCourier(status enums.OrderStatus) bool {
	return status == enums.OrderStatusAccepted || status == enums.OrderStatusReady
}

func expectedFrom(to enums.OrderStatus) []enums.OrderStatus {
	var out []enums.OrderStatus
	for _, from := range []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusAccepted,
		enums.OrderStatusReady,
		enums.OrderStatusOutForDelivery,
	} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}
