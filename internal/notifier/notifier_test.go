package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/khatabook-backend/pkg/db/dbtest"
	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
	"github.com/angelmondragon/khatabook-backend/pkg/outbox"
	"github.com/angelmondragon/khatabook-backend/pkg/outbox/payloads"
)

type delivery struct {
	recipient uuid.UUID
	evt       Event
}

type recordingPort struct {
	mu         sync.Mutex
	deliveries []delivery
	err        error
}

func (p *recordingPort) Name() string { return "recording" }

func (p *recordingPort) Notify(_ context.Context, recipient uuid.UUID, evt Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliveries = append(p.deliveries, delivery{recipient: recipient, evt: evt})
	return p.err
}

func (p *recordingPort) recipients() []uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]uuid.UUID, 0, len(p.deliveries))
	for _, d := range p.deliveries {
		out = append(out, d.recipient)
	}
	return out
}

type failingEmitter struct{}

func (failingEmitter) Emit(ctx context.Context, tx *gorm.DB, _ outbox.DomainEvent) error {
	if err := tx.Create(&models.OutboxEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}).Error; err != nil {
		return err
	}
	return errors.New("emit failed")
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "notifier-test"})
}

func sampleOrder() *models.Order {
	courier := uuid.New()
	return &models.Order{
		ID:                    uuid.New(),
		OwnerID:               uuid.New(),
		RetailerID:            uuid.New(),
		Status:                enums.OrderStatusOutForDelivery,
		TotalAmount:           decimal.NewFromInt(1000),
		AssignedDeliveryBoyID: &courier,
	}
}

func TestEventRecipients(t *testing.T) {
	order := sampleOrder()
	courier := *order.AssignedDeliveryBoyID
	req := &models.PaymentChangeRequest{
		ID:              uuid.New(),
		OrderID:         order.ID,
		DeliveryBoyID:   courier,
		OwnerID:         order.OwnerID,
		OriginalAmount:  decimal.NewFromInt(1000),
		RequestedAmount: decimal.NewFromInt(900),
		Reason:          "discount",
	}

	cases := []struct {
		name string
		evt  Event
		want []uuid.UUID
	}{
		{"placed", OrderPlaced(order), []uuid.UUID{order.RetailerID}},
		{"accepted", OrderAccepted(order), []uuid.UUID{order.OwnerID}},
		{"rejected", OrderRejected(order), []uuid.UUID{order.OwnerID}},
		{"status changed", OrderStatusChanged(order, enums.OrderStatusReady), []uuid.UUID{order.OwnerID, courier}},
		{"cancelled", OrderCancelled(order), []uuid.UUID{order.RetailerID, courier}},
		{"assigned", DeliveryBoyAssigned(order, &models.User{ID: courier, Name: "Ravi"}), []uuid.UUID{order.OwnerID, courier}},
		{"payment by retailer", PaymentReceived(order, false), []uuid.UUID{order.OwnerID}},
		{"payment by courier", PaymentReceived(order, true), []uuid.UUID{order.OwnerID, order.RetailerID}},
		{"adjusted", PaymentAdjusted(order, decimal.NewFromInt(-50)), []uuid.UUID{order.RetailerID}},
		{"change requested", PaymentChangeRequested(req), []uuid.UUID{order.OwnerID}},
		{"change approved", PaymentChangeApproved(order, req), []uuid.UUID{courier, order.RetailerID}},
		{"change rejected", PaymentChangeRejected(req), []uuid.UUID{courier}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.evt.Recipients)
			require.Equal(t, order.ID, tc.evt.OrderID)
			require.True(t, tc.evt.Type.IsValid())
		})
	}
}

func TestStatusChangedWithoutCourier(t *testing.T) {
	order := sampleOrder()
	order.AssignedDeliveryBoyID = nil
	evt := OrderStatusChanged(order, enums.OrderStatusAccepted)
	require.Equal(t, []uuid.UUID{order.OwnerID}, evt.Recipients)
}

func TestPaymentReceivedPayload(t *testing.T) {
	order := sampleOrder()
	order.AmountReceived = decimal.NewFromInt(700)
	order.RemainingBalance = decimal.NewFromInt(300)
	order.IsPartialPayment = true

	evt := PaymentReceived(order, false)
	payload, ok := evt.Payload.(payloads.PaymentReceived)
	require.True(t, ok)
	require.True(t, payload.IsPartialPayment)
	require.True(t, payload.RemainingBalance.Equal(decimal.NewFromInt(300)))

	title, message := render(evt)
	require.Equal(t, "Partial payment received", title)
	require.Contains(t, message, "300.00")
}

func TestDispatchDeliversToEveryPortAndSwallowsErrors(t *testing.T) {
	ok := &recordingPort{}
	broken := &recordingPort{err: errors.New("socket closed")}
	n, err := New(testLogger(), nil, ok, broken)
	require.NoError(t, err)

	order := sampleOrder()
	n.Dispatch(context.Background(), OrderStatusChanged(order, enums.OrderStatusReady), OrderPlaced(order))

	require.Equal(t, []uuid.UUID{order.OwnerID, *order.AssignedDeliveryBoyID, order.RetailerID}, ok.recipients())
	require.Len(t, broken.recipients(), 3)
}

func TestDispatchDeduplicatesRecipients(t *testing.T) {
	port := &recordingPort{}
	n, err := New(testLogger(), nil, port)
	require.NoError(t, err)

	id := uuid.New()
	n.Dispatch(context.Background(), Event{Type: enums.NotificationOrderPlaced, OrderID: uuid.New(), Recipients: []uuid.UUID{id, id, uuid.Nil}})
	require.Equal(t, []uuid.UUID{id}, port.recipients())
}

func TestNilNotifierIsNoop(t *testing.T) {
	var n *Notifier
	n.Stage(context.Background(), nil, OrderPlaced(sampleOrder()))
	n.Dispatch(context.Background(), OrderPlaced(sampleOrder()))
}

func TestStageWritesOutboxRows(t *testing.T) {
	client := dbtest.Open(t)
	ob := outbox.NewService(outbox.NewRepository(client.DB()), testLogger())
	n, err := New(testLogger(), ob)
	require.NoError(t, err)

	order := sampleOrder()
	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		n.Stage(context.Background(), tx, OrderPlaced(order), OrderCancelled(order))
		return nil
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, client.DB().Order("created_at").Find(&rows).Error)
	require.Len(t, rows, 2)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, order.ID, rows[0].AggregateID)
	require.Equal(t, enums.AggregateOrder, rows[0].AggregateType)
	require.NotEmpty(t, envelope.Recipients)
}

func TestStageFailureKeepsTransactionUsable(t *testing.T) {
	client := dbtest.Open(t)
	n, err := New(testLogger(), failingEmitter{})
	require.NoError(t, err)

	user := &models.User{Name: "Asha", Role: enums.UserRoleShopOwner}
	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		n.Stage(context.Background(), tx, OrderPlaced(sampleOrder()))
		return tx.Create(user).Error
	})
	require.NoError(t, err)

	var users, events int64
	require.NoError(t, client.DB().Model(&models.User{}).Count(&users).Error)
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Count(&events).Error)
	require.EqualValues(t, 1, users)
	require.EqualValues(t, 0, events)
}
