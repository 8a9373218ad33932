package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/khatabook-backend/pkg/db/dbtest"
	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
)

func TestEmitStoresEnvelopeKeyedByRowID(t *testing.T) {
	client := dbtest.Open(t)
	svc := NewService(NewRepository(client.DB()), nil)
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	orderID := uuid.New()
	owner := uuid.New()
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Recipients:    []uuid.UUID{owner, owner, uuid.Nil},
			Data:          map[string]string{"orderId": orderID.String()},
		})
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, client.DB().First(&row).Error)
	assert.Equal(t, orderID, row.AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	assert.Equal(t, row.ID.String(), envelope.EventID)
	assert.Equal(t, CurrentSchemaVersion, envelope.Version)
	assert.True(t, now.Equal(envelope.OccurredAt))
	assert.Equal(t, []uuid.UUID{owner}, envelope.Recipients)
	assert.JSONEq(t, `{"orderId":"`+orderID.String()+`"}`, string(envelope.Data))
}

func TestEmitRollsBackWithCaller(t *testing.T) {
	client := dbtest.Open(t)
	svc := NewService(NewRepository(client.DB()), nil)

	_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		require.NoError(t, svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
		}))
		return assert.AnError
	})

	var count int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitRejectsIncompleteEvents(t *testing.T) {
	client := dbtest.Open(t)
	svc := NewService(NewRepository(client.DB()), nil)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Emit(ctx, nil, DomainEvent{}), errTxRequired)

	cases := map[string]DomainEvent{
		"event type":     {EventType: "nope", AggregateType: enums.AggregateOrder, AggregateID: uuid.New()},
		"aggregate type": {EventType: enums.EventOrderPlaced, AggregateType: "nope", AggregateID: uuid.New()},
		"aggregate id":   {EventType: enums.EventOrderPlaced, AggregateType: enums.AggregateOrder},
	}
	for name, evt := range cases {
		err := client.WithTx(ctx, func(tx *gorm.DB) error { return svc.Emit(ctx, tx, evt) })
		assert.Error(t, err, name)
	}
}
