package enums

import "fmt"

// NotificationType is the event name delivered to clients.
type NotificationType string

const (
	NotificationOrderPlaced           NotificationType = "orderPlaced"
	NotificationOrderAccepted         NotificationType = "orderAccepted"
	NotificationOrderRejected         NotificationType = "orderRejected"
	NotificationOrderStatusChanged    NotificationType = "orderStatusChanged"
	NotificationOrderCancelled        NotificationType = "orderCancelled"
	NotificationDeliveryBoyAssigned   NotificationType = "deliveryBoyAssigned"
	NotificationPaymentReceived       NotificationType = "paymentReceived"
	NotificationPaymentAdjusted       NotificationType = "paymentAdjusted"
	NotificationPaymentChangeRequest  NotificationType = "PAYMENT_CHANGE_REQUEST"
	NotificationPaymentChangeApproved NotificationType = "PAYMENT_CHANGE_APPROVED"
	NotificationPaymentChangeRejected NotificationType = "PAYMENT_CHANGE_REJECTED"
)

var notificationOutboxEvents = map[NotificationType]OutboxEventType{
	NotificationOrderPlaced:           EventOrderPlaced,
	NotificationOrderAccepted:         EventOrderAccepted,
	NotificationOrderRejected:         EventOrderRejected,
	NotificationOrderStatusChanged:    EventOrderStatusChanged,
	NotificationOrderCancelled:        EventOrderCancelled,
	NotificationDeliveryBoyAssigned:   EventCourierAssigned,
	NotificationPaymentReceived:       EventPaymentReceived,
	NotificationPaymentAdjusted:       EventPaymentAdjusted,
	NotificationPaymentChangeRequest:  EventPaymentChangeRequested,
	NotificationPaymentChangeApproved: EventPaymentChangeApproved,
	NotificationPaymentChangeRejected: EventPaymentChangeRejected,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	_, ok := notificationOutboxEvents[n]
	return ok
}

// OutboxEventType returns the outbox event recorded alongside the notification.
func (n NotificationType) OutboxEventType() (OutboxEventType, bool) {
	evt, ok := notificationOutboxEvents[n]
	return evt, ok
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	candidate := NotificationType(value)
	if candidate.IsValid() {
		return candidate, nil
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
