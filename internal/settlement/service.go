package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/khatabook-backend/internal/notifier"
	"github.com/angelmondragon/khatabook-backend/internal/orders"
	"github.com/angelmondragon/khatabook-backend/pkg/config"
	"github.com/angelmondragon/khatabook-backend/pkg/db"
	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
	"github.com/angelmondragon/khatabook-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	defaultExpiryBatch = 100
	expiredReason      = "expired"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service reconciles order totals with cash collected, including the
// courier/owner payment change negotiation.
type Service interface {
	ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*Settlement, error)
	ConfirmPaymentAndComplete(ctx context.Context, input CourierConfirmInput) (*Settlement, error)
	// AdjustAmount credits the owner for an increase in amountReceived.
	AdjustAmount(ctx context.Context, input AdjustAmountInput) (*Settlement, error)
	RequestChange(ctx context.Context, input RequestChangeInput) (*ChangeRequestDTO, error)
	ApproveChange(ctx context.Context, requestID, ownerID uuid.UUID) (*ChangeRequestDTO, error)
	RejectChange(ctx context.Context, requestID, ownerID uuid.UUID, reason *string) (*ChangeRequestDTO, error)
	ExpirePending(ctx context.Context, limit int) (int, error)
	ListChangeRequests(ctx context.Context, orderID, actorID uuid.UUID) ([]ChangeRequestDTO, error)
	AuditTrail(ctx context.Context, orderID, actorID uuid.UUID) ([]AuditEntryDTO, error)
}

// ServiceParams groups the settlement dependencies. Metrics may be nil.
type ServiceParams struct {
	Repo    Repository
	Orders  orders.Repository
	Tx      txRunner
	Ledger  orders.LedgerPoster
	Events  orders.EventEmitter
	Config  config.SettlementConfig
	Metrics *metrics.OrderMetrics
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	orders  orders.Repository
	tx      txRunner
	ledger  orders.LedgerPoster
	events  orders.EventEmitter
	cfg     config.SettlementConfig
	metrics *metrics.OrderMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the settlement service.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("settlement repository required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if p.Events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.Config.ChangeRequestTTL <= 0 {
		return nil, fmt.Errorf("change request ttl must be positive")
	}
	if p.Config.MaxChangeRequests <= 0 {
		return nil, fmt.Errorf("max change requests must be positive")
	}
	return &service{
		repo:    p.Repo,
		orders:  p.Orders,
		tx:      p.Tx,
		ledger:  p.Ledger,
		events:  p.Events,
		cfg:     p.Config,
		metrics: p.Metrics,
		logg:    p.Logger,
		now:     time.Now,
	}, nil
}

func (s *service) ConfirmPayment(ctx context.Context, input ConfirmPaymentInput) (*Settlement, error) {
	if input.RetailerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var (
		result *models.Order
		events []notifier.Event
		lapsed []notifier.Event
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		repo := s.repo.WithTx(tx)
		order, err := ordersRepo.LockByID(ctx, input.OrderID)
		if err != nil {
			return orders.LoadError(err)
		}
		if order.RetailerID != input.RetailerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		switch order.Status {
		case enums.OrderStatusReady, enums.OrderStatusOutForDelivery, enums.OrderStatusCompleted:
		default:
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf(
				"payment cannot be confirmed: status is %s, expected %s, %s or %s",
				order.Status, enums.OrderStatusReady, enums.OrderStatusOutForDelivery, enums.OrderStatusCompleted))
		}
		if lapsed, err = s.requireUnpaid(ctx, tx, order); err != nil {
			return err
		}
		received, err := receivedAmount(order, input.AmountReceived)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if err := s.recordPayment(ctx, tx, order, received, input.RetailerID, now, nil); err != nil {
			return err
		}
		if err := s.appendAudit(ctx, repo, order.ID, auditRecord{
			ActorID:   input.RetailerID,
			ActorRole: enums.UserRoleRetailer,
			Action:    enums.PaymentAuditConfirmed,
			After:     &received,
			Note:      input.Note,
			Metadata:  map[string]any{"total_amount": order.TotalAmount},
		}); err != nil {
			return err
		}
		if err := orders.RecordEvent(ctx, ordersRepo, order.ID, paymentEvent(order, received, input.RetailerID, enums.UserRoleRetailer, input.Note)); err != nil {
			return err
		}

		result, err = ordersRepo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		events = []notifier.Event{notifier.PaymentReceived(result, false)}
		s.events.Stage(ctx, tx, events...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.expired(ctx, lapsed)
	s.events.Dispatch(ctx, events...)
	s.metrics.IncSettlement("confirm_payment")
	s.logSettlement(ctx, result, "payment confirmed")
	return settlementFromOrder(result), nil
}

// ConfirmPaymentAndComplete is the courier path: cash is collected at the
// door and the order completes in the same transaction.
func (s *service) ConfirmPaymentAndComplete(ctx context.Context, input CourierConfirmInput) (*Settlement, error) {
	if input.CourierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var (
		result *models.Order
		events []notifier.Event
		lapsed []notifier.Event
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		repo := s.repo.WithTx(tx)
		order, err := ordersRepo.LockByID(ctx, input.OrderID)
		if err != nil {
			return orders.LoadError(err)
		}
		if !isAssignedCourier(order, input.CourierID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status != enums.OrderStatusOutForDelivery {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf(
				"payment cannot be collected: status is %s, expected %s", order.Status, enums.OrderStatusOutForDelivery))
		}
		if lapsed, err = s.requireUnpaid(ctx, tx, order); err != nil {
			return err
		}
		received, err := receivedAmount(order, input.AmountReceived)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		complete := map[string]any{
			"status":       enums.OrderStatusCompleted,
			"completed_at": now,
		}
		if err := s.recordPayment(ctx, tx, order, received, input.CourierID, now, complete); err != nil {
			return err
		}
		if err := s.appendAudit(ctx, repo, order.ID, auditRecord{
			ActorID:   input.CourierID,
			ActorRole: enums.UserRoleDeliveryBoy,
			Action:    enums.PaymentAuditCourierConfirmed,
			After:     &received,
			Note:      input.Note,
			Metadata:  map[string]any{"total_amount": order.TotalAmount},
		}); err != nil {
			return err
		}
		if err := orders.RecordEvent(ctx, ordersRepo, order.ID, paymentEvent(order, received, input.CourierID, enums.UserRoleDeliveryBoy, input.Note)); err != nil {
			return err
		}
		if err := orders.RecordEvent(ctx, ordersRepo, order.ID, orders.EventRecord{
			Type:      enums.OrderEventCompleted,
			ActorID:   input.CourierID,
			ActorRole: enums.UserRoleDeliveryBoy,
			From:      enums.OrderStatusOutForDelivery,
			To:        enums.OrderStatusCompleted,
		}); err != nil {
			return err
		}

		result, err = ordersRepo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		events = []notifier.Event{
			notifier.PaymentReceived(result, true),
			notifier.OrderStatusChanged(result, enums.OrderStatusOutForDelivery),
		}
		s.events.Stage(ctx, tx, events...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.expired(ctx, lapsed)
	s.events.Dispatch(ctx, events...)
	s.metrics.IncSettlement("courier_confirm_payment")
	s.metrics.IncTransition(string(enums.OrderStatusOutForDelivery), string(enums.OrderStatusCompleted))
	s.logSettlement(ctx, result, "payment collected by courier")
	return settlementFromOrder(result), nil
}

// AdjustAmount corrects amountReceived after payment. Raising it posts owner
// CREDIT / retailer DEBIT for the difference and lowering it posts the
// reverse. This is the opposite of a literal "positive delta debits the
// owner" rule: the owner's position on the order must keep equalling minus
// remainingBalance, and the two parties' entries must keep summing to zero.
func (s *service) AdjustAmount(ctx context.Context, input AdjustAmountInput) (*Settlement, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.NewAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	if !input.NewAmount.Equal(input.NewAmount.Round(2)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount supports at most two decimal places")
	}

	var (
		result *models.Order
		delta  decimal.Decimal
		events []notifier.Event
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		order, err := ordersRepo.LockByID(ctx, input.OrderID)
		if err != nil {
			return orders.LoadError(err)
		}
		if order.OwnerID != input.OwnerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !order.PaymentReceived {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "amount cannot be adjusted: payment has not been confirmed")
		}
		if order.Status == enums.OrderStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "amount cannot be adjusted: order is CANCELLED")
		}
		if input.NewAmount.GreaterThan(order.TotalAmount) {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("amount must not exceed the order total %s", order.TotalAmount.StringFixed(2)))
		}

		previous := order.AmountReceived
		delta = input.NewAmount.Sub(previous)
		remaining := order.TotalAmount.Sub(input.NewAmount)
		now := s.now().UTC()
		updates := map[string]any{
			"amount_received":    input.NewAmount,
			"remaining_balance":  remaining,
			"is_partial_payment": remaining.IsPositive(),
			"amount_adjusted_by": input.OwnerID,
			"amount_adjusted_at": now,
		}
		if note := strings.TrimSpace(input.Note); note != "" {
			updates["adjustment_note"] = note
		}
		if err := orders.UpdateObserved(ctx, ordersRepo, order, updates); err != nil {
			return err
		}
		if !delta.IsZero() {
			description := fmt.Sprintf("Payment for order #%s adjusted to %s", orders.Ref(order.ID), input.NewAmount.StringFixed(2))
			if _, err := s.ledger.Transfer(ctx, tx, deltaTransfer(order, delta, enums.TransactionPaymentAdjusted, description)); err != nil {
				return err
			}
		}

		note := strings.TrimSpace(input.Note)
		if err := s.appendAudit(ctx, s.repo.WithTx(tx), order.ID, auditRecord{
			ActorID:   input.OwnerID,
			ActorRole: enums.UserRoleShopOwner,
			Action:    enums.PaymentAuditAdjusted,
			Before:    &previous,
			After:     &input.NewAmount,
			Note:      &note,
			Metadata:  map[string]any{"delta": delta},
		}); err != nil {
			return err
		}
		if err := orders.RecordEvent(ctx, ordersRepo, order.ID, orders.EventRecord{
			Type:      enums.OrderEventPaymentAdjusted,
			ActorID:   input.OwnerID,
			ActorRole: enums.UserRoleShopOwner,
			Note:      note,
			Metadata:  map[string]any{"previous_amount": previous, "amount_received": input.NewAmount, "delta": delta},
		}); err != nil {
			return err
		}

		result, err = ordersRepo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		events = []notifier.Event{notifier.PaymentAdjusted(result, delta)}
		s.events.Stage(ctx, tx, events...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Dispatch(ctx, events...)
	s.metrics.IncSettlement("adjust_amount")
	s.logSettlement(ctx, result, "payment adjusted")
	return settlementFromOrder(result), nil
}

func (s *service) RequestChange(ctx context.Context, input RequestChangeInput) (*ChangeRequestDTO, error) {
	if input.CourierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if err := validateAmount(input.NewAmount); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason required")
	}

	var (
		req    *models.PaymentChangeRequest
		events []notifier.Event
		lapsed []notifier.Event
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		repo := s.repo.WithTx(tx)
		order, err := ordersRepo.LockByID(ctx, input.OrderID)
		if err != nil {
			return orders.LoadError(err)
		}
		if !isAssignedCourier(order, input.CourierID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status != enums.OrderStatusOutForDelivery {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf(
				"payment change cannot be requested: status is %s, expected %s", order.Status, enums.OrderStatusOutForDelivery))
		}
		if order.PaymentReceived {
			return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "payment already confirmed for this order")
		}
		if input.NewAmount.Equal(order.TotalAmount) {
			return pkgerrors.New(pkgerrors.CodeValidation, "requested amount equals the current order total")
		}
		var open *models.PaymentChangeRequest
		if open, lapsed, err = s.openRequest(ctx, tx, order); err != nil {
			return err
		}
		if open != nil {
			return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "a payment change request is already pending for this order")
		}
		count, err := repo.CountByCourier(ctx, order.ID, input.CourierID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count change requests")
		}
		if count >= int64(s.cfg.MaxChangeRequests) {
			return pkgerrors.New(pkgerrors.CodeRateLimit, fmt.Sprintf("payment change request limit of %d reached for this order", s.cfg.MaxChangeRequests))
		}

		now := s.now().UTC()
		req = &models.PaymentChangeRequest{
			OrderID:         order.ID,
			DeliveryBoyID:   input.CourierID,
			OwnerID:         order.OwnerID,
			OriginalAmount:  order.TotalAmount,
			RequestedAmount: input.NewAmount,
			Reason:          reason,
			Status:          enums.PaymentChangePending,
			ExpiresAt:       now.Add(s.cfg.ChangeRequestTTL),
		}
		if err := repo.CreateRequest(ctx, req); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "a payment change request is already pending for this order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create change request")
		}
		if err := s.appendAudit(ctx, repo, order.ID, auditRecord{
			ActorID:   input.CourierID,
			ActorRole: enums.UserRoleDeliveryBoy,
			Action:    enums.PaymentAuditChangeRequested,
			Before:    &req.OriginalAmount,
			After:     &req.RequestedAmount,
			Note:      &reason,
			Metadata:  map[string]any{"request_id": req.ID},
		}); err != nil {
			return err
		}
		if err := orders.RecordEvent(ctx, ordersRepo, order.ID, orders.EventRecord{
			Type:      enums.OrderEventPaymentChangeRequested,
			ActorID:   input.CourierID,
			ActorRole: enums.UserRoleDeliveryBoy,
			Note:      reason,
			Metadata:  map[string]any{"request_id": req.ID, "original_amount": req.OriginalAmount, "requested_amount": req.RequestedAmount},
		}); err != nil {
			return err
		}

		events = []notifier.Event{notifier.PaymentChangeRequested(req)}
		s.events.Stage(ctx, tx, events...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.expired(ctx, lapsed)
	s.events.Dispatch(ctx, events...)
	s.metrics.IncSettlement("change_requested")
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":   req.OrderID.String(),
		"request_id": req.ID.String(),
	}), "payment change requested")
	return requestToDTO(req), nil
}

// ApproveChange sets the order total to the requested amount and posts the
// difference as an ADJUSTMENT transfer once the liability exists.
func (s *service) ApproveChange(ctx context.Context, requestID, ownerID uuid.UUID) (*ChangeRequestDTO, error) {
	var (
		req    *models.PaymentChangeRequest
		events []notifier.Event
	)
	err := s.resolve(ctx, requestID, ownerID, func(ctx context.Context, tx *gorm.DB, order *models.Order, locked *models.PaymentChangeRequest) error {
		if order.Status != enums.OrderStatusOutForDelivery {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf(
				"payment change cannot be approved: order status is %s, expected %s", order.Status, enums.OrderStatusOutForDelivery))
		}
		if order.PaymentReceived {
			return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "payment already confirmed for this order")
		}

		now := s.now().UTC()
		repo := s.repo.WithTx(tx)
		ordersRepo := s.orders.WithTx(tx)
		if err := s.markResolved(ctx, repo, locked, enums.PaymentChangeApproved, &ownerID, nil, now); err != nil {
			return err
		}

		previous := order.TotalAmount
		requested := locked.RequestedAmount
		if err := orders.UpdateObserved(ctx, ordersRepo, order, map[string]any{
			"total_amount":      requested,
			"remaining_balance": requested.Sub(order.AmountReceived),
		}); err != nil {
			return err
		}
		if order.LiabilityPosted && !previous.Equal(requested) {
			description := fmt.Sprintf("Order #%s total changed from %s to %s", orders.Ref(order.ID), previous.StringFixed(2), requested.StringFixed(2))
			if _, err := s.ledger.Transfer(ctx, tx, deltaTransfer(order, previous.Sub(requested), enums.TransactionAdjustment, description)); err != nil {
				return err
			}
		}

		if err := s.appendAudit(ctx, repo, order.ID, auditRecord{
			ActorID:   ownerID,
			ActorRole: enums.UserRoleShopOwner,
			Action:    enums.PaymentAuditChangeApproved,
			Before:    &previous,
			After:     &requested,
			Metadata:  map[string]any{"request_id": locked.ID},
		}); err != nil {
			return err
		}
		if err := orders.RecordEvent(ctx, ordersRepo, order.ID, orders.EventRecord{
			Type:      enums.OrderEventPaymentChangeApproved,
			ActorID:   ownerID,
			ActorRole: enums.UserRoleShopOwner,
			Metadata:  map[string]any{"request_id": locked.ID, "previous_amount": previous, "new_amount": requested},
		}); err != nil {
			return err
		}

		req = locked
		order.TotalAmount = requested
		events = []notifier.Event{notifier.PaymentChangeApproved(order, locked)}
		s.events.Stage(ctx, tx, events...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Dispatch(ctx, events...)
	s.metrics.IncSettlement("change_approved")
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":   req.OrderID.String(),
		"request_id": req.ID.String(),
	}), "payment change approved")
	return requestToDTO(req), nil
}

func (s *service) RejectChange(ctx context.Context, requestID, ownerID uuid.UUID, reason *string) (*ChangeRequestDTO, error) {
	var (
		req    *models.PaymentChangeRequest
		events []notifier.Event
	)
	err := s.resolve(ctx, requestID, ownerID, func(ctx context.Context, tx *gorm.DB, order *models.Order, locked *models.PaymentChangeRequest) error {
		repo := s.repo.WithTx(tx)
		now := s.now().UTC()
		var note *string
		if reason != nil {
			if trimmed := strings.TrimSpace(*reason); trimmed != "" {
				note = &trimmed
			}
		}
		if err := s.markResolved(ctx, repo, locked, enums.PaymentChangeRejected, &ownerID, note, now); err != nil {
			return err
		}
		if err := s.appendAudit(ctx, repo, order.ID, auditRecord{
			ActorID:   ownerID,
			ActorRole: enums.UserRoleShopOwner,
			Action:    enums.PaymentAuditChangeRejected,
			Before:    &locked.OriginalAmount,
			After:     &locked.OriginalAmount,
			Note:      note,
			Metadata:  map[string]any{"request_id": locked.ID, "requested_amount": locked.RequestedAmount},
		}); err != nil {
			return err
		}
		if err := orders.RecordEvent(ctx, s.orders.WithTx(tx), order.ID, orders.EventRecord{
			Type:      enums.OrderEventPaymentChangeRejected,
			ActorID:   ownerID,
			ActorRole: enums.UserRoleShopOwner,
			Note:      deref(note),
			Metadata:  map[string]any{"request_id": locked.ID},
		}); err != nil {
			return err
		}

		req = locked
		events = []notifier.Event{notifier.PaymentChangeRejected(locked)}
		s.events.Stage(ctx, tx, events...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Dispatch(ctx, events...)
	s.metrics.IncSettlement("change_rejected")
	return requestToDTO(req), nil
}

type resolveFn func(ctx context.Context, tx *gorm.DB, order *models.Order, req *models.PaymentChangeRequest) error

// resolve locks the order before the request, the same order RequestChange
// takes them in, and checks ownership and that the request is still open.
func (s *service) resolve(ctx context.Context, requestID, ownerID uuid.UUID, fn resolveFn) error {
	if ownerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if requestID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		peek, err := repo.FindRequest(ctx, requestID)
		if err != nil {
			return requestLoadError(err)
		}
		if peek.OwnerID != ownerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment change request not found")
		}
		order, err := s.orders.WithTx(tx).LockByID(ctx, peek.OrderID)
		if err != nil {
			return orders.LoadError(err)
		}
		req, err := repo.LockRequest(ctx, requestID)
		if err != nil {
			return requestLoadError(err)
		}
		if req.Status != enums.PaymentChangePending {
			return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, fmt.Sprintf("payment change request already %s", strings.ToLower(string(req.Status))))
		}
		if !s.now().Before(req.ExpiresAt) {
			return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "payment change request has expired")
		}
		return fn(ctx, tx, order, req)
	})
}

func (s *service) markResolved(ctx context.Context, repo Repository, req *models.PaymentChangeRequest, status enums.PaymentChangeStatus, by *uuid.UUID, reason *string, at time.Time) error {
	ok, err := repo.ResolvePending(ctx, req.ID, status, by, reason, at)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve change request")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "payment change request already resolved")
	}
	req.Status = status
	req.ResolvedBy = by
	req.ResolvedAt = &at
	req.RejectionReason = reason
	return nil
}

// ExpirePending auto-rejects PENDING requests past their expiry and returns
// how many were expired. Each request resolves in its own transaction.
func (s *service) ExpirePending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultExpiryBatch
	}
	now := s.now().UTC()
	expired, err := s.repo.ListExpiredPending(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired change requests")
	}

	var (
		count int
		errs  error
	)
	for i := range expired {
		req := expired[i]
		ok, err := s.expireOne(ctx, &req, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire change request %s: %w", req.ID, err))
			continue
		}
		if ok {
			count++
		}
	}
	return count, errs
}

func (s *service) expireOne(ctx context.Context, req *models.PaymentChangeRequest, now time.Time) (bool, error) {
	var events []notifier.Event
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		events, err = s.expireLocked(ctx, tx, req, now)
		return err
	})
	if err != nil {
		return false, err
	}
	if len(events) == 0 {
		return false, nil
	}
	s.expired(ctx, events)
	return true, nil
}

// expireLocked auto-rejects req inside tx and returns the courier
// notification to dispatch after commit. It returns nothing when req was
// already resolved.
func (s *service) expireLocked(ctx context.Context, tx *gorm.DB, req *models.PaymentChangeRequest, now time.Time) ([]notifier.Event, error) {
	repo := s.repo.WithTx(tx)
	reason := expiredReason
	ok, err := repo.ResolvePending(ctx, req.ID, enums.PaymentChangeRejected, nil, &reason, now)
	if err != nil || !ok {
		return nil, err
	}
	req.Status = enums.PaymentChangeRejected
	req.RejectionReason = &reason
	req.ResolvedAt = &now

	if err := s.appendAudit(ctx, repo, req.OrderID, auditRecord{
		Action:   enums.PaymentAuditChangeExpired,
		Before:   &req.OriginalAmount,
		After:    &req.OriginalAmount,
		Note:     &reason,
		Metadata: map[string]any{"request_id": req.ID, "requested_amount": req.RequestedAmount},
	}); err != nil {
		return nil, err
	}
	if err := orders.RecordEvent(ctx, s.orders.WithTx(tx), req.OrderID, orders.EventRecord{
		Type:     enums.OrderEventPaymentChangeRejected,
		Note:     reason,
		Metadata: map[string]any{"request_id": req.ID},
	}); err != nil {
		return nil, err
	}
	events := []notifier.Event{notifier.PaymentChangeRejected(req)}
	s.events.Stage(ctx, tx, events...)
	return events, nil
}

// expired delivers notifications for requests expired by a committed tx.
func (s *service) expired(ctx context.Context, events []notifier.Event) {
	if len(events) == 0 {
		return
	}
	s.events.Dispatch(ctx, events...)
	for range events {
		s.metrics.IncSettlement("change_expired")
	}
}

// openRequest returns the order's actionable PENDING request, or nil. The
// caller must hold the order lock. A PENDING request past its expiry is
// auto-rejected here and its notification returned for dispatch after commit.
func (s *service) openRequest(ctx context.Context, tx *gorm.DB, order *models.Order) (*models.PaymentChangeRequest, []notifier.Event, error) {
	req, err := s.repo.WithTx(tx).FindPending(ctx, order.ID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending change requests")
	}
	if req == nil {
		return nil, nil, nil
	}
	now := s.now().UTC()
	if now.Before(req.ExpiresAt) {
		return req, nil, nil
	}
	events, err := s.expireLocked(ctx, tx, req, now)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire change request")
	}
	return nil, events, nil
}

func (s *service) ListChangeRequests(ctx context.Context, orderID, actorID uuid.UUID) ([]ChangeRequestDTO, error) {
	if err := s.requireParty(ctx, orderID, actorID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list change requests")
	}
	out := make([]ChangeRequestDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *requestToDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) AuditTrail(ctx context.Context, orderID, actorID uuid.UUID) ([]AuditEntryDTO, error) {
	if err := s.requireParty(ctx, orderID, actorID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListAudit(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment audit trail")
	}
	return auditToDTO(rows), nil
}

func (s *service) requireParty(ctx context.Context, orderID, actorID uuid.UUID) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return orders.LoadError(err)
	}
	if !order.IsParty(actorID) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

// requireUnpaid fails when the order is paid or has an open change request.
// Notifications for requests it expired are returned for dispatch.
func (s *service) requireUnpaid(ctx context.Context, tx *gorm.DB, order *models.Order) ([]notifier.Event, error) {
	if order.PaymentReceived {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "payment already confirmed for this order")
	}
	open, lapsed, err := s.openRequest(ctx, tx, order)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment cannot be confirmed while a payment change request is pending")
	}
	return lapsed, nil
}

// recordPayment writes the payment fields, posts the liability if no courier
// assignment did, then posts the payment transfer.
func (s *service) recordPayment(ctx context.Context, tx *gorm.DB, order *models.Order, received decimal.Decimal, actorID uuid.UUID, now time.Time, extra map[string]any) error {
	ordersRepo := s.orders.WithTx(tx)
	remaining := order.TotalAmount.Sub(received)
	updates := map[string]any{
		"payment_received":         true,
		"amount_received":          received,
		"original_amount_received": received,
		"remaining_balance":        remaining,
		"is_partial_payment":       remaining.IsPositive(),
		"payment_received_at":      now,
		"payment_received_by":      actorID,
	}
	for k, v := range extra {
		updates[k] = v
	}
	if err := orders.UpdateObserved(ctx, ordersRepo, order, updates); err != nil {
		return err
	}
	if _, err := orders.EnsureLiability(ctx, tx, ordersRepo, s.ledger, order); err != nil {
		return err
	}
	collector := "retailer"
	if isAssignedCourier(order, actorID) {
		collector = "courier"
	}
	if _, err := s.ledger.Transfer(ctx, tx, paymentTransfer(order, received, collector)); err != nil {
		return err
	}
	return nil
}

type auditRecord struct {
	ActorID   uuid.UUID
	ActorRole enums.UserRole
	Action    enums.PaymentAuditAction
	Before    *decimal.Decimal
	After     *decimal.Decimal
	Note      *string
	Metadata  map[string]any
}

func (s *service) appendAudit(ctx context.Context, repo Repository, orderID uuid.UUID, rec auditRecord) error {
	row := &models.PaymentAuditTrail{
		OrderID: orderID,
		Action:  rec.Action,
	}
	if rec.ActorID != uuid.Nil {
		actor := rec.ActorID
		row.ActorID = &actor
	}
	if rec.ActorRole != "" {
		role := rec.ActorRole
		row.ActorRole = &role
	}
	if rec.Before != nil {
		row.AmountBefore = decimal.NewNullDecimal(*rec.Before)
	}
	if rec.After != nil {
		row.AmountAfter = decimal.NewNullDecimal(*rec.After)
	}
	if rec.Note != nil && strings.TrimSpace(*rec.Note) != "" {
		note := strings.TrimSpace(*rec.Note)
		row.Note = &note
	}
	if len(rec.Metadata) > 0 {
		raw, err := json.Marshal(rec.Metadata)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode audit metadata")
		}
		row.Metadata = raw
	}
	if err := repo.AppendAudit(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append payment audit")
	}
	return nil
}

func (s *service) logSettlement(ctx context.Context, order *models.Order, msg string) {
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":          order.ID.String(),
		"amount_received":   order.AmountReceived.StringFixed(2),
		"remaining_balance": order.RemainingBalance.StringFixed(2),
	}), msg)
}

func paymentEvent(order *models.Order, received decimal.Decimal, actorID uuid.UUID, role enums.UserRole, note *string) orders.EventRecord {
	eventType := enums.OrderEventPaymentReceived
	remaining := order.TotalAmount.Sub(received)
	if remaining.IsPositive() {
		eventType = enums.OrderEventPartialPayment
	}
	return orders.EventRecord{
		Type:      eventType,
		ActorID:   actorID,
		ActorRole: role,
		Note:      strings.TrimSpace(deref(note)),
		Metadata: map[string]any{
			"amount_received":   received,
			"total_amount":      order.TotalAmount,
			"remaining_balance": remaining,
		},
	}
}

// receivedAmount defaults to the order total and enforces 0 < amount <= total.
func receivedAmount(order *models.Order, requested *decimal.Decimal) (decimal.Decimal, error) {
	if requested == nil {
		return order.TotalAmount, nil
	}
	if err := validateAmount(*requested); err != nil {
		return decimal.Zero, err
	}
	if requested.GreaterThan(order.TotalAmount) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("amount received must not exceed the order total %s", order.TotalAmount.StringFixed(2)))
	}
	return *requested, nil
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount supports at most two decimal places")
	}
	return nil
}

func isAssignedCourier(order *models.Order, userID uuid.UUID) bool {
	return order.AssignedDeliveryBoyID != nil && *order.AssignedDeliveryBoyID == userID
}

func requestLoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment change request not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load change request")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
