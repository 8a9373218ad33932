package enums

// CourierLinkStatus tracks whether a retailer may assign orders to a courier.
type CourierLinkStatus string

const (
	CourierLinkActive   CourierLinkStatus = "ACTIVE"
	CourierLinkInactive CourierLinkStatus = "INACTIVE"
)

func (s CourierLinkStatus) IsValid() bool {
	return s == CourierLinkActive || s == CourierLinkInactive
}
