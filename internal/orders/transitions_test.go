package orders

import (
	"testing"

	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/stretchr/testify/assert"
)

var allStatuses = []enums.OrderStatus{
	enums.OrderStatusPending,
	enums.OrderStatusAccepted,
	enums.OrderStatusRejected,
	enums.OrderStatusReady,
	enums.OrderStatusOutForDelivery,
	enums.OrderStatusCompleted,
	enums.OrderStatusCancelled,
}

func TestCanTransitionMatchesTable(t *testing.T) {
	allowed := map[[2]enums.OrderStatus]bool{
		{enums.OrderStatusPending, enums.OrderStatusAccepted}:         true,
		{enums.OrderStatusPending, enums.OrderStatusRejected}:         true,
		{enums.OrderStatusAccepted, enums.OrderStatusReady}:           true,
		{enums.OrderStatusReady, enums.OrderStatusOutForDelivery}:     true,
		{enums.OrderStatusReady, enums.OrderStatusCompleted}:          true,
		{enums.OrderStatusOutForDelivery, enums.OrderStatusCompleted}: true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			assert.Equal(t, allowed[[2]enums.OrderStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for _, status := range []enums.OrderStatus{enums.OrderStatusRejected, enums.OrderStatusCompleted, enums.OrderStatusCancelled} {
		assert.Empty(t, AllowedTransitions[status], status)
		assert.False(t, CanCancel(status), status)
	}
	assert.True(t, CanCancel(enums.OrderStatusPending))
	assert.True(t, CanCancel(enums.OrderStatusOutForDelivery))
}

func TestExpectedFrom(t *testing.T) {
	assert.Equal(t, []enums.OrderStatus{enums.OrderStatusReady, enums.OrderStatusOutForDelivery}, expectedFrom(enums.OrderStatusCompleted))
	assert.Equal(t, []enums.OrderStatus{enums.OrderStatusPending}, expectedFrom(enums.OrderStatusAccepted))
	assert.Empty(t, expectedFrom(enums.OrderStatusPending))
}
