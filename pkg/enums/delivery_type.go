package enums

import "slices"

// DeliveryType describes how goods reach the shop owner.
type DeliveryType string

const (
	DeliveryTypePickup   DeliveryType = "PICKUP"
	DeliveryTypeDelivery DeliveryType = "DELIVERY"
)

var validDeliveryTypes = []DeliveryType{
	DeliveryTypePickup,
	DeliveryTypeDelivery,
}

func (d DeliveryType) IsValid() bool {
	return slices.Contains(validDeliveryTypes, d)
}

// ParseDeliveryType converts raw input into DeliveryType.
func ParseDeliveryType(value string) (DeliveryType, error) {
	return parse(validDeliveryTypes, "delivery type", value)
}
