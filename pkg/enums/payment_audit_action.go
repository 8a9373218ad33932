package enums

// PaymentAuditAction labels rows in payment_audit_trails.
type PaymentAuditAction string

const (
	PaymentAuditConfirmed        PaymentAuditAction = "PAYMENT_CONFIRMED"
	PaymentAuditCourierConfirmed PaymentAuditAction = "COURIER_PAYMENT_CONFIRMED"
	PaymentAuditAdjusted         PaymentAuditAction = "AMOUNT_ADJUSTED"
	PaymentAuditChangeRequested  PaymentAuditAction = "CHANGE_REQUESTED"
	PaymentAuditChangeApproved   PaymentAuditAction = "CHANGE_APPROVED"
	PaymentAuditChangeRejected   PaymentAuditAction = "CHANGE_REJECTED"
	PaymentAuditChangeExpired    PaymentAuditAction = "CHANGE_EXPIRED"
)
