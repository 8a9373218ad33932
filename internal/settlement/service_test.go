package settlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/khatabook-backend/internal/orders"
	"github.com/angelmondragon/khatabook-backend/internal/orders/orderstest"
	"github.com/angelmondragon/khatabook-backend/internal/settlement"
	"github.com/angelmondragon/khatabook-backend/pkg/config"
	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
)

type harness struct {
	*orderstest.Fixture
	Settlement settlement.Service
	Repo       settlement.Repository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	f := orderstest.New(t)
	repo := settlement.NewRepository(f.Client.DB())
	svc, err := settlement.NewService(settlement.ServiceParams{
		Repo:   repo,
		Orders: f.OrdersRepo,
		Tx:     f.Client,
		Ledger: f.Ledger,
		Events: f.Notifier,
		Config: config.SettlementConfig{ChangeRequestTTL: time.Hour, MaxChangeRequests: 2},
		Logger: f.Logger,
	})
	require.NoError(t, err)
	return &harness{Fixture: f, Settlement: svc, Repo: repo}
}

func amount(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func amountPtr(v string) *decimal.Decimal {
	d := amount(v)
	return &d
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "untyped error: %v", err)
	assert.Equal(t, code, typed.Code(), err.Error())
}

func (h *harness) reload(t *testing.T, orderID uuid.UUID) *models.Order {
	t.Helper()
	order, err := h.OrdersRepo.FindByID(context.Background(), orderID)
	require.NoError(t, err)
	return order
}

func (h *harness) requestChange(t *testing.T, orderID uuid.UUID, newAmount string) *settlement.ChangeRequestDTO {
	t.Helper()
	req, err := h.Settlement.RequestChange(context.Background(), settlement.RequestChangeInput{
		OrderID:   orderID,
		CourierID: h.Courier.ID,
		NewAmount: amount(newAmount),
		Reason:    "one bag damaged",
	})
	require.NoError(t, err)
	return req
}

func TestConfirmPartialPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.OutForDelivery(t)

	result, err := h.Settlement.ConfirmPayment(ctx, settlement.ConfirmPaymentInput{
		OrderID:        order.ID,
		RetailerID:     h.Retailer.ID,
		AmountReceived: amountPtr("700"),
	})
	require.NoError(t, err)
	assert.True(t, result.PaymentReceived)
	assert.True(t, result.AmountReceived.Equal(amount("700")))
	assert.True(t, result.RemainingBalance.Equal(amount("300")))
	assert.True(t, result.IsPartialPayment)
	assert.Equal(t, enums.OrderStatusOutForDelivery, result.Status)

	assert.True(t, h.Balance(t, h.Owner.ID, h.Retailer.ID).Equal(amount("-300")))
	assert.True(t, h.Balance(t, h.Retailer.ID, h.Owner.ID).Equal(amount("300")))

	retailerEntries := h.Entries(t, h.Retailer.ID, order.ID)
	require.Len(t, retailerEntries, 2)
	assert.Equal(t, enums.EntryTypeDebit, retailerEntries[1].EntryType)
	assert.Equal(t, enums.TransactionPaymentCredit, retailerEntries[1].TransactionType)
	ownerEntries := h.Entries(t, h.Owner.ID, order.ID)
	require.Len(t, ownerEntries, 2)
	assert.Equal(t, enums.TransactionPaymentReceived, ownerEntries[1].TransactionType)

	timeline, err := h.Orders.Timeline(ctx, order.ID, h.Owner.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderEventPartialPayment, timeline[len(timeline)-1].EventType)
	assert.Contains(t, h.Port.For(h.Owner.ID), enums.NotificationPaymentReceived)

	_, err = h.Settlement.ConfirmPayment(ctx, settlement.ConfirmPaymentInput{OrderID: order.ID, RetailerID: h.Retailer.ID})
	requireCode(t, err, pkgerrors.CodeAlreadyProcessed)
	assert.Len(t, h.Entries(t, h.Retailer.ID, order.ID), 2, "a second confirmation posts nothing")
	h.RequireConserved(t)
}

func TestConfirmPaymentDefaultsToTotalAndPostsLiability(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.PlaceOrder(t)
	_, err := h.Orders.Accept(ctx, orders.AcceptInput{OrderID: order.ID, RetailerID: h.Retailer.ID})
	require.NoError(t, err)
	_, err = h.Orders.AdvanceStatus(ctx, orders.AdvanceStatusInput{OrderID: order.ID, RetailerID: h.Retailer.ID, Status: enums.OrderStatusReady})
	require.NoError(t, err)
	require.Empty(t, h.Entries(t, h.Owner.ID, order.ID))

	result, err := h.Settlement.ConfirmPayment(ctx, settlement.ConfirmPaymentInput{OrderID: order.ID, RetailerID: h.Retailer.ID})
	require.NoError(t, err)
	assert.True(t, result.AmountReceived.Equal(amount("1000")))
	assert.True(t, result.RemainingBalance.IsZero())
	assert.False(t, result.IsPartialPayment)

	ownerEntries := h.Entries(t, h.Owner.ID, order.ID)
	require.Len(t, ownerEntries, 2)
	assert.Equal(t, enums.TransactionOrderDebit, ownerEntries[0].TransactionType)
	assert.True(t, h.Balance(t, h.Owner.ID, h.Retailer.ID).IsZero())
	assert.True(t, h.reload(t, order.ID).LiabilityPosted)
	h.RequireConserved(t)
}

func TestConfirmPaymentValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	pending := h.PlaceOrder(t)

	_, err := h.Settlement.ConfirmPayment(ctx, settlement.ConfirmPaymentInput{OrderID: pending.ID, RetailerID: h.Retailer.ID})
	requireCode(t, err, pkgerrors.CodeInvalidTransition)

	order := h.Ready(t)
	_, err = h.Settlement.ConfirmPayment(ctx, settlement.ConfirmPaymentInput{OrderID: order.ID, RetailerID: h.Owner.ID})
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = h.Settlement.ConfirmPayment(ctx, settlement.ConfirmPaymentInput{OrderID: order.ID, RetailerID: h.Retailer.ID, AmountReceived: amountPtr("1000.01")})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = h.Settlement.ConfirmPayment(ctx, settlement.ConfirmPaymentInput{OrderID: order.ID, RetailerID: h.Retailer.ID, AmountReceived: amountPtr("0")})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = h.Settlement.ConfirmPayment(ctx, settlement.ConfirmPaymentInput{OrderID: order.ID, RetailerID: h.Retailer.ID, AmountReceived: amountPtr("10.005")})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = h.Settlement.ConfirmPayment(ctx, settlement.ConfirmPaymentInput{OrderID: uuid.New(), RetailerID: h.Retailer.ID})
	requireCode(t, err, pkgerrors.CodeNotFound)
	assert.False(t, h.reload(t, order.ID).PaymentReceived)
}

func TestAdjustAmount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.OutForDelivery(t)

	_, err := h.Settlement.AdjustAmount(ctx, settlement.AdjustAmountInput{OrderID: order.ID, OwnerID: h.Owner.ID, NewAmount: amount("500")})
	requireCode(t, err, pkgerrors.CodeInvalidTransition)

	_, err = h.Settlement.ConfirmPayment(ctx, settlement.ConfirmPaymentInput{OrderID: order.ID, RetailerID: h.Retailer.ID, AmountReceived: amountPtr("700")})
	require.NoError(t, err)

	result, err := h.Settlement.AdjustAmount(ctx, settlement.AdjustAmountInput{
		OrderID:   order.ID,
		OwnerID:   h.Owner.ID,
		NewAmount: amount("800"),
		Note:      "counted again",
	})
	require.NoError(t, err)
	assert.True(t, result.AmountReceived.Equal(amount("800")))
	assert.True(t, result.RemainingBalance.Equal(amount("200")))
	assert.Equal(t, "counted again", *result.AdjustmentNote)
	assert.True(t, h.Balance(t, h.Owner.ID, h.Retailer.ID).Equal(amount("-200")))

	ownerEntries := h.Entries(t, h.Owner.ID, order.ID)
	last := ownerEntries[len(ownerEntries)-1]
	assert.Equal(t, enums.TransactionPaymentAdjusted, last.TransactionType)
	assert.Equal(t, enums.EntryTypeCredit, last.EntryType)
	assert.True(t, last.Amount.Equal(amount("100")))

	result, err = h.Settlement.AdjustAmount(ctx, settlement.AdjustAmountInput{OrderID: order.ID, OwnerID: h.Owner.ID, NewAmount: amount("600")})
	require.NoError(t, err)
	assert.True(t, result.RemainingBalance.Equal(amount("400")))
	assert.True(t, h.Balance(t, h.Owner.ID, h.Retailer.ID).Equal(amount("-400")))
	assert.True(t, h.reload(t, order.ID).OriginalAmountReceived.Equal(amount("700")))

	_, err = h.Settlement.AdjustAmount(ctx, settlement.AdjustAmountInput{OrderID: order.ID, OwnerID: h.Owner.ID, NewAmount: amount("1200")})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = h.Settlement.AdjustAmount(ctx, settlement.AdjustAmountInput{OrderID: order.ID, OwnerID: h.Retailer.ID, NewAmount: amount("600")})
	requireCode(t, err, pkgerrors.CodeNotFound)

	adjusted, ok := h.Port.Last(enums.NotificationPaymentAdjusted)
	require.True(t, ok)
	assert.Equal(t, h.Retailer.ID, adjusted.Recipient)
	h.RequireConserved(t)
}

func TestApproveChangeDecreasesTotal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.OutForDelivery(t)

	req := h.requestChange(t, order.ID, "900")
	assert.Equal(t, enums.PaymentChangePending, req.Status)
	assert.True(t, req.OriginalAmount.Equal(amount("1000")))
	assert.Contains(t, h.Port.For(h.Owner.ID), enums.NotificationPaymentChangeRequest)

	approved, err := h.Settlement.ApproveChange(ctx, req.ID, h.Owner.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentChangeApproved, approved.Status)
	require.NotNil(t, approved.ResolvedBy)
	assert.Equal(t, h.Owner.ID, *approved.ResolvedBy)

	reloaded := h.reload(t, order.ID)
	assert.True(t, reloaded.TotalAmount.Equal(amount("900")))
	assert.True(t, reloaded.RemainingBalance.Equal(amount("900")))

	ownerEntries := h.Entries(t, h.Owner.ID, order.ID)
	require.Len(t, ownerEntries, 2)
	assert.Equal(t, enums.TransactionAdjustment, ownerEntries[1].TransactionType)
	assert.Equal(t, enums.EntryTypeCredit, ownerEntries[1].EntryType)
	assert.True(t, ownerEntries[1].Amount.Equal(amount("100")))
	retailerEntries := h.Entries(t, h.Retailer.ID, order.ID)
	require.Len(t, retailerEntries, 2)
	assert.Equal(t, enums.EntryTypeDebit, retailerEntries[1].EntryType)
	assert.True(t, h.Balance(t, h.Owner.ID, h.Retailer.ID).Equal(amount("-900")))

	assert.Contains(t, h.Port.For(h.Courier.ID), enums.NotificationPaymentChangeApproved)
	assert.Contains(t, h.Port.For(h.Retailer.ID), enums.NotificationPaymentChangeApproved)

	_, err = h.Settlement.ApproveChange(ctx, req.ID, h.Owner.ID)
	requireCode(t, err, pkgerrors.CodeAlreadyProcessed)

	_, err = h.Settlement.ConfirmPaymentAndComplete(ctx, settlement.CourierConfirmInput{OrderID: order.ID, CourierID: h.Courier.ID})
	require.NoError(t, err)
	assert.True(t, h.Balance(t, h.Owner.ID, h.Retailer.ID).IsZero())
	h.RequireConserved(t)
}

func TestRejectChangeKeepsTotal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.OutForDelivery(t)
	req := h.requestChange(t, order.ID, "1100")

	_, err := h.Settlement.RejectChange(ctx, req.ID, h.Retailer.ID, nil)
	requireCode(t, err, pkgerrors.CodeNotFound)

	reason := "  price is fixed  "
	rejected, err := h.Settlement.RejectChange(ctx, req.ID, h.Owner.ID, &reason)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentChangeRejected, rejected.Status)
	assert.Equal(t, "price is fixed", *rejected.RejectionReason)
	assert.True(t, h.reload(t, order.ID).TotalAmount.Equal(amount("1000")))
	assert.Len(t, h.Entries(t, h.Owner.ID, order.ID), 1)

	delivered, ok := h.Port.Last(enums.NotificationPaymentChangeRejected)
	require.True(t, ok)
	assert.Equal(t, h.Courier.ID, delivered.Recipient)

	_, err = h.Settlement.ApproveChange(ctx, req.ID, h.Owner.ID)
	requireCode(t, err, pkgerrors.CodeAlreadyProcessed)
}

func TestRequestChangeRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ready := h.Ready(t)
	_, err := h.Settlement.RequestChange(ctx, settlement.RequestChangeInput{OrderID: ready.ID, CourierID: h.Courier.ID, NewAmount: amount("900"), Reason: "short"})
	requireCode(t, err, pkgerrors.CodeInvalidTransition)

	order := h.OutForDelivery(t)
	stranger := h.CreateUser(t, "Other courier", enums.UserRoleDeliveryBoy)
	_, err = h.Settlement.RequestChange(ctx, settlement.RequestChangeInput{OrderID: order.ID, CourierID: stranger.ID, NewAmount: amount("900"), Reason: "short"})
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = h.Settlement.RequestChange(ctx, settlement.RequestChangeInput{OrderID: order.ID, CourierID: h.Courier.ID, NewAmount: amount("1000"), Reason: "same"})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = h.Settlement.RequestChange(ctx, settlement.RequestChangeInput{OrderID: order.ID, CourierID: h.Courier.ID, NewAmount: amount("0"), Reason: "free"})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = h.Settlement.RequestChange(ctx, settlement.RequestChangeInput{OrderID: order.ID, CourierID: h.Courier.ID, NewAmount: amount("900"), Reason: "   "})
	requireCode(t, err, pkgerrors.CodeValidation)

	first := h.requestChange(t, order.ID, "900")
	_, err = h.Settlement.RequestChange(ctx, settlement.RequestChangeInput{OrderID: order.ID, CourierID: h.Courier.ID, NewAmount: amount("800"), Reason: "two bags"})
	requireCode(t, err, pkgerrors.CodeAlreadyProcessed)

	_, err = h.Settlement.ConfirmPayment(ctx, settlement.ConfirmPaymentInput{OrderID: order.ID, RetailerID: h.Retailer.ID})
	requireCode(t, err, pkgerrors.CodeStateConflict)

	_, err = h.Settlement.RejectChange(ctx, first.ID, h.Owner.ID, nil)
	require.NoError(t, err)
	second := h.requestChange(t, order.ID, "950")
	_, err = h.Settlement.RejectChange(ctx, second.ID, h.Owner.ID, nil)
	require.NoError(t, err)

	_, err = h.Settlement.RequestChange(ctx, settlement.RequestChangeInput{OrderID: order.ID, CourierID: h.Courier.ID, NewAmount: amount("980"), Reason: "third try"})
	requireCode(t, err, pkgerrors.CodeRateLimit)

	requests, err := h.Settlement.ListChangeRequests(ctx, order.ID, h.Owner.ID)
	require.NoError(t, err)
	assert.Len(t, requests, 2)
}

func TestRequestChangeAfterPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.OutForDelivery(t)
	_, err := h.Settlement.ConfirmPayment(ctx, settlement.ConfirmPaymentInput{OrderID: order.ID, RetailerID: h.Retailer.ID, AmountReceived: amountPtr("500")})
	require.NoError(t, err)

	_, err = h.Settlement.RequestChange(ctx, settlement.RequestChangeInput{OrderID: order.ID, CourierID: h.Courier.ID, NewAmount: amount("900"), Reason: "late"})
	requireCode(t, err, pkgerrors.CodeAlreadyProcessed)
}

func TestConfirmPaymentAndComplete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.OutForDelivery(t)

	_, err := h.Settlement.ConfirmPaymentAndComplete(ctx, settlement.CourierConfirmInput{OrderID: order.ID, CourierID: h.Retailer.ID})
	requireCode(t, err, pkgerrors.CodeNotFound)

	note := "cash"
	result, err := h.Settlement.ConfirmPaymentAndComplete(ctx, settlement.CourierConfirmInput{
		OrderID:        order.ID,
		CourierID:      h.Courier.ID,
		AmountReceived: amountPtr("1000"),
		Note:           &note,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCompleted, result.Status)
	assert.True(t, result.PaymentReceived)

	reloaded := h.reload(t, order.ID)
	require.NotNil(t, reloaded.CompletedAt)
	require.NotNil(t, reloaded.PaymentReceivedBy)
	assert.Equal(t, h.Courier.ID, *reloaded.PaymentReceivedBy)
	assert.True(t, h.Balance(t, h.Retailer.ID, h.Owner.ID).IsZero())

	assert.Contains(t, h.Port.For(h.Retailer.ID), enums.NotificationPaymentReceived)
	assert.Contains(t, h.Port.For(h.Owner.ID), enums.NotificationOrderStatusChanged)

	_, err = h.Settlement.ConfirmPaymentAndComplete(ctx, settlement.CourierConfirmInput{OrderID: order.ID, CourierID: h.Courier.ID})
	requireCode(t, err, pkgerrors.CodeInvalidTransition)

	trail, err := h.Settlement.AuditTrail(ctx, order.ID, h.Owner.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, enums.PaymentAuditCourierConfirmed, trail[0].Action)
	require.NotNil(t, trail[0].Note)
	assert.Equal(t, "cash", *trail[0].Note)
	h.RequireConserved(t)
}

func TestExpirePending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.OutForDelivery(t)
	req := h.requestChange(t, order.ID, "900")
	fresh := h.OutForDelivery(t)
	h.requestChange(t, fresh.ID, "950")

	count, err := h.Settlement.ExpirePending(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, count)

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, h.Client.DB().Model(&models.PaymentChangeRequest{}).Where("id = ?", req.ID).Update("expires_at", past).Error)

	_, err = h.Settlement.ApproveChange(ctx, req.ID, h.Owner.ID)
	requireCode(t, err, pkgerrors.CodeAlreadyProcessed)

	count, err = h.Settlement.ExpirePending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := h.Repo.FindRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentChangeRejected, stored.Status)
	require.NotNil(t, stored.RejectionReason)
	assert.Equal(t, "expired", *stored.RejectionReason)
	assert.Nil(t, stored.ResolvedBy)

	trail, err := h.Settlement.AuditTrail(ctx, order.ID, h.Courier.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	actions := map[enums.PaymentAuditAction]settlement.AuditEntryDTO{}
	for _, entry := range trail {
		actions[entry.Action] = entry
	}
	require.Contains(t, actions, enums.PaymentAuditChangeRequested)
	require.Contains(t, actions, enums.PaymentAuditChangeExpired)
	assert.Nil(t, actions[enums.PaymentAuditChangeExpired].ActorID)

	count, err = h.Settlement.ExpirePending(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = h.Settlement.ConfirmPayment(ctx, settlement.ConfirmPaymentInput{OrderID: order.ID, RetailerID: h.Retailer.ID})
	require.NoError(t, err, "an expired request no longer blocks payment")
}

func TestLapsedRequestExpiresOnNextAction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	collect := h.OutForDelivery(t)
	lapsedCollect := h.requestChange(t, collect.ID, "900")
	retry := h.OutForDelivery(t)
	lapsedRetry := h.requestChange(t, retry.ID, "950")

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, h.Client.DB().Model(&models.PaymentChangeRequest{}).
		Where("id IN ?", []uuid.UUID{lapsedCollect.ID, lapsedRetry.ID}).
		Update("expires_at", past).Error)
	h.Port.Reset()

	result, err := h.Settlement.ConfirmPaymentAndComplete(ctx, settlement.CourierConfirmInput{OrderID: collect.ID, CourierID: h.Courier.ID})
	require.NoError(t, err)
	assert.True(t, result.PaymentReceived)
	assert.Contains(t, h.Port.For(h.Courier.ID), enums.NotificationPaymentChangeRejected)

	next, err := h.Settlement.RequestChange(ctx, settlement.RequestChangeInput{
		OrderID:   retry.ID,
		CourierID: h.Courier.ID,
		NewAmount: amount("800"),
		Reason:    "two bags damaged",
	})
	require.NoError(t, err)
	assert.NotEqual(t, lapsedRetry.ID, next.ID)

	for _, id := range []uuid.UUID{lapsedCollect.ID, lapsedRetry.ID} {
		stored, err := h.Repo.FindRequest(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, enums.PaymentChangeRejected, stored.Status)
		require.NotNil(t, stored.RejectionReason)
		assert.Equal(t, "expired", *stored.RejectionReason)
	}

	trail, err := h.Settlement.AuditTrail(ctx, retry.ID, h.Owner.ID)
	require.NoError(t, err)
	actions := make([]enums.PaymentAuditAction, 0, len(trail))
	for _, entry := range trail {
		actions = append(actions, entry.Action)
	}
	assert.Contains(t, actions, enums.PaymentAuditChangeExpired)

	count, err := h.Settlement.ExpirePending(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, count, "nothing left for the sweep")
	h.RequireConserved(t)
}

func TestAuditTrailRequiresParty(t *testing.T) {
	h := newHarness(t)
	order := h.OutForDelivery(t)
	stranger := h.CreateUser(t, "Nosy", enums.UserRoleShopOwner)

	_, err := h.Settlement.AuditTrail(context.Background(), order.ID, stranger.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = h.Settlement.ListChangeRequests(context.Background(), order.ID, stranger.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	h := newHarness(t)
	_, err := settlement.NewService(settlement.ServiceParams{
		Repo:   h.Repo,
		Orders: h.OrdersRepo,
		Tx:     h.Client,
		Ledger: h.Ledger,
		Events: h.Notifier,
		Logger: h.Logger,
	})
	require.Error(t, err)

	_, err = settlement.NewService(settlement.ServiceParams{Config: config.SettlementConfig{ChangeRequestTTL: time.Hour, MaxChangeRequests: 1}})
	require.Error(t, err)
}
