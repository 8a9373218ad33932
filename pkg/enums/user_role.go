package enums

import "slices"

// UserRole is the platform role carried in access tokens.
type UserRole string

const (
	UserRoleAdmin       UserRole = "ADMIN"
	UserRoleRetailer    UserRole = "RETAILER"
	UserRoleShopOwner   UserRole = "SHOP_OWNER"
	UserRoleDeliveryBoy UserRole = "DELIVERY_BOY"
)

var validUserRoles = []UserRole{
	UserRoleAdmin,
	UserRoleRetailer,
	UserRoleShopOwner,
	UserRoleDeliveryBoy,
}

// IsValid reports whether the value matches the canonical user_role enum.
func (r UserRole) IsValid() bool {
	return slices.Contains(validUserRoles, r)
}

// ParseUserRole converts raw input into UserRole.
func ParseUserRole(value string) (UserRole, error) {
	return parse(validUserRoles, "user role", value)
}
