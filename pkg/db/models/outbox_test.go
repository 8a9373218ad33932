package models

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/khatabook-backend/pkg/enums"
)

func TestDeadLetterCopiesEvent(t *testing.T) {
	event := OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPaymentReceived,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"amount":"120.00"}`),
		AttemptCount:  10,
	}

	row := event.DeadLetter(enums.OutboxDLQReasonMaxAttempts, errors.New("deadline exceeded"))
	assert.Equal(t, event.ID, row.EventID)
	assert.Equal(t, event.AggregateID, row.AggregateID)
	assert.JSONEq(t, `{"amount":"120.00"}`, string(row.Payload))
	assert.Equal(t, 10, row.AttemptCount)
	require.NotNil(t, row.ErrorMessage)
	assert.Equal(t, "deadline exceeded", *row.ErrorMessage)
	assert.Equal(t, uuid.Nil, row.ID, "id is assigned on insert")

	assert.Nil(t, event.DeadLetter(enums.OutboxDLQReasonUnroutable, nil).ErrorMessage)
}
