package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(validAggregateTypes, "aggregate type", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderPlaced            OutboxEventType = "order_placed"
	EventOrderAccepted          OutboxEventType = "order_accepted"
	EventOrderRejected          OutboxEventType = "order_rejected"
	EventOrderStatusChanged     OutboxEventType = "order_status_changed"
	EventOrderCancelled         OutboxEventType = "order_cancelled"
	EventCourierAssigned        OutboxEventType = "courier_assigned"
	EventPaymentReceived        OutboxEventType = "payment_received"
	EventPaymentAdjusted        OutboxEventType = "payment_adjusted"
	EventPaymentChangeRequested OutboxEventType = "payment_change_requested"
	EventPaymentChangeApproved  OutboxEventType = "payment_change_approved"
	EventPaymentChangeRejected  OutboxEventType = "payment_change_rejected"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderPlaced,
	EventOrderAccepted,
	EventOrderRejected,
	EventOrderStatusChanged,
	EventOrderCancelled,
	EventCourierAssigned,
	EventPaymentReceived,
	EventPaymentAdjusted,
	EventPaymentChangeRequested,
	EventPaymentChangeApproved,
	EventPaymentChangeRejected,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(validOutboxEventTypes, "event type", value)
}
