package enums

// OrderEventType labels rows on the append-only order timeline.
type OrderEventType string

const (
	OrderEventPlaced                 OrderEventType = "PLACED"
	OrderEventAccepted               OrderEventType = "ACCEPTED"
	OrderEventRejected               OrderEventType = "REJECTED"
	OrderEventStatusChanged          OrderEventType = "STATUS_CHANGED"
	OrderEventCourierAssigned        OrderEventType = "COURIER_ASSIGNED"
	OrderEventCancelled              OrderEventType = "CANCELLED"
	OrderEventPaymentReceived        OrderEventType = "PAYMENT_RECEIVED"
	OrderEventPartialPayment         OrderEventType = "PARTIAL_PAYMENT"
	OrderEventPaymentAdjusted        OrderEventType = "PAYMENT_ADJUSTED"
	OrderEventPaymentChangeRequested OrderEventType = "PAYMENT_CHANGE_REQUESTED"
	OrderEventPaymentChangeApproved  OrderEventType = "PAYMENT_CHANGE_APPROVED"
	OrderEventPaymentChangeRejected  OrderEventType = "PAYMENT_CHANGE_REJECTED"
	OrderEventCompleted              OrderEventType = "COMPLETED"
)
