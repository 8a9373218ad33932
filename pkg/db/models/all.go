package models

// All lists every persisted model, in dependency order, for schema tooling
// and sqlite-backed tests.
func All() []any {
	return []any{
		&User{},
		&Store{},
		&Listing{},
		&Order{},
		&OrderItem{},
		&OrderEvent{},
		&KhatabookEntry{},
		&KhatabookBalance{},
		&PaymentChangeRequest{},
		&PaymentAuditTrail{},
		&RetailerDeliveryBoy{},
		&Notification{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
