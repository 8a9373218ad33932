package enums

import "slices"

// PaymentChangeStatus tracks a courier's amount-change proposal.
type PaymentChangeStatus string

const (
	PaymentChangePending  PaymentChangeStatus = "PENDING"
	PaymentChangeApproved PaymentChangeStatus = "APPROVED"
	PaymentChangeRejected PaymentChangeStatus = "REJECTED"
)

var validPaymentChangeStatuses = []PaymentChangeStatus{
	PaymentChangePending,
	PaymentChangeApproved,
	PaymentChangeRejected,
}

func (s PaymentChangeStatus) IsValid() bool {
	return slices.Contains(validPaymentChangeStatuses, s)
}

// ParsePaymentChangeStatus converts raw input into PaymentChangeStatus.
func ParsePaymentChangeStatus(value string) (PaymentChangeStatus, error) {
	return parse(validPaymentChangeStatuses, "payment change status", value)
}
