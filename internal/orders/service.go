package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/khatabook-backend/internal/couriers"
	"github.com/angelmondragon/khatabook-backend/internal/notifier"
	"github.com/angelmondragon/khatabook-backend/internal/users"
	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
	"github.com/angelmondragon/khatabook-backend/pkg/metrics"
	"github.com/angelmondragon/khatabook-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// EventEmitter stages notifier events inside a transaction and delivers them
// once it commits.
type EventEmitter interface {
	Stage(ctx context.Context, tx *gorm.DB, events ...notifier.Event)
	Dispatch(ctx context.Context, events ...notifier.Event)
}

// Service is the order state machine.
//
// Every mutation locks the order row, validates the actor and the transition,
// writes with a compare-and-swap on the observed status and appends a
// timeline event in one transaction. Notifications are delivered after commit.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*OrderDTO, error)
	Accept(ctx context.Context, input AcceptInput) (*OrderDTO, error)
	Reject(ctx context.Context, input RejectInput) (*OrderDTO, error)
	AdvanceStatus(ctx context.Context, input AdvanceStatusInput) (*OrderDTO, error)
	AssignCourier(ctx context.Context, input AssignCourierInput) (*OrderDTO, error)
	Cancel(ctx context.Context, input CancelInput) (*OrderDTO, error)
	GetByID(ctx context.Context, orderID, actorID uuid.UUID) (*OrderDTO, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID, params ListParams) (*ListResult, error)
	GetByRetailer(ctx context.Context, retailerID uuid.UUID, params ListParams) (*ListResult, error)
	GetByCourier(ctx context.Context, courierID uuid.UUID, params ListParams) (*ListResult, error)
	Timeline(ctx context.Context, orderID, actorID uuid.UUID) ([]EventDTO, error)
}

// ServiceParams groups the order service dependencies. Metrics may be nil.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Ledger   LedgerPoster
	Couriers couriers.Repository
	Users    users.Repository
	Events   EventEmitter
	Metrics  *metrics.OrderMetrics
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	tx       txRunner
	ledger   LedgerPoster
	couriers couriers.Repository
	users    users.Repository
	events   EventEmitter
	metrics  *metrics.OrderMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the order state machine with the required dependencies.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if p.Couriers == nil {
		return nil, fmt.Errorf("couriers repository required")
	}
	if p.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if p.Events == nil {
		return nil, fmt.Errorf("event emitter required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     p.Repo,
		tx:       p.Tx,
		ledger:   p.Ledger,
		couriers: p.Couriers,
		users:    p.Users,
		events:   p.Events,
		metrics:  p.Metrics,
		logg:     p.Logger,
		now:      time.Now,
	}, nil
}

// mutateFn applies one change to a locked order and returns the builder of
// the notifier events, which runs against the reloaded order.
type mutateFn func(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) (func(*models.Order) []notifier.Event, error)

func (s *service) mutate(ctx context.Context, orderID uuid.UUID, fn mutateFn) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var (
		updated *models.Order
		events  []notifier.Event
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockByID(ctx, orderID)
		if err != nil {
			return LoadError(err)
		}
		build, err := fn(ctx, tx, repo, order)
		if err != nil {
			return err
		}
		updated, err = repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		if build != nil {
			events = build(updated)
		}
		s.events.Stage(ctx, tx, events...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.Dispatch(ctx, events...)
	return updated, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*OrderDTO, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if input.DeliveryType == "" {
		input.DeliveryType = enums.DeliveryTypeDelivery
	}
	if !input.DeliveryType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery type")
	}
	quantities, listingIDs, err := mergeItems(input.Items)
	if err != nil {
		return nil, err
	}

	var (
		created *models.Order
		events  []notifier.Event
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		store, err := repo.FindStore(ctx, input.StoreID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
		}
		if store.RetailerID == input.OwnerID {
			return pkgerrors.New(pkgerrors.CodeValidation, "cannot order from your own store")
		}

		listings, err := repo.FindListings(ctx, store.ID, listingIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listings")
		}
		byID := make(map[uuid.UUID]models.Listing, len(listings))
		for _, listing := range listings {
			byID[listing.ID] = listing
		}

		order := &models.Order{
			OwnerID:      input.OwnerID,
			RetailerID:   store.RetailerID,
			StoreID:      store.ID,
			Status:       enums.OrderStatusPending,
			DeliveryType: input.DeliveryType,
			DeliveryAt:   input.DeliveryAt,
			Note:         trimmedOrNil(input.Note),
		}
		total := decimal.Zero
		for _, id := range listingIDs {
			listing, ok := byID[id]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("listing %s not found", id))
			}
			qty := quantities[id]
			lineTotal := listing.PriceRetail.Mul(decimal.NewFromInt(int64(qty))).Round(2)
			total = total.Add(lineTotal)
			order.Items = append(order.Items, models.OrderItem{
				ListingID: listing.ID,
				Name:      listing.Name,
				Qty:       qty,
				PriceAt:   listing.PriceRetail,
				LineTotal: lineTotal,
			})
		}
		if !total.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
		}
		order.TotalAmount = total
		order.RemainingBalance = total

		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := RecordEvent(ctx, repo, order.ID, EventRecord{
			Type:      enums.OrderEventPlaced,
			ActorID:   input.OwnerID,
			ActorRole: enums.UserRoleShopOwner,
			To:        enums.OrderStatusPending,
			Metadata:  map[string]any{"total_amount": total, "item_count": len(order.Items)},
		}); err != nil {
			return err
		}

		created, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		events = []notifier.Event{notifier.OrderPlaced(created)}
		s.events.Stage(ctx, tx, events...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Dispatch(ctx, events...)
	s.metrics.IncTransition("NEW", string(enums.OrderStatusPending))
	s.logg.Info(s.logg.WithOrderID(ctx, created.ID.String()), "order placed")
	return FromModel(created), nil
}

func (s *service) Accept(ctx context.Context, input AcceptInput) (*OrderDTO, error) {
	if input.RetailerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	updates := map[string]any{}
	if input.DeliveryAt != nil {
		updates["delivery_at"] = *input.DeliveryAt
	}
	return s.transition(ctx, input.OrderID, input.RetailerID, enums.OrderStatusAccepted, updates, "")
}

func (s *service) Reject(ctx context.Context, input RejectInput) (*OrderDTO, error) {
	if input.RetailerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
	}
	return s.transition(ctx, input.OrderID, input.RetailerID, enums.OrderStatusRejected, map[string]any{"rejection_reason": reason}, reason)
}

// AdvanceStatus applies any transition from the table. Acceptance and
// rejection are routed through Accept and Reject so their fields are set.
func (s *service) AdvanceStatus(ctx context.Context, input AdvanceStatusInput) (*OrderDTO, error) {
	if input.RetailerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	switch {
	case !input.Status.IsValid():
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	case input.Status == enums.OrderStatusAccepted:
		return s.Accept(ctx, AcceptInput{OrderID: input.OrderID, RetailerID: input.RetailerID})
	case input.Status == enums.OrderStatusRejected:
		return s.Reject(ctx, RejectInput{OrderID: input.OrderID, RetailerID: input.RetailerID})
	case input.Status == enums.OrderStatusCancelled:
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "order cannot be cancelled by the retailer: only the shop owner may cancel")
	}

	updates := map[string]any{}
	if input.Status == enums.OrderStatusCompleted {
		updates["completed_at"] = s.now().UTC()
	}
	return s.transition(ctx, input.OrderID, input.RetailerID, input.Status, updates, "")
}

func (s *service) transition(ctx context.Context, orderID, retailerID uuid.UUID, to enums.OrderStatus, updates map[string]any, note string) (*OrderDTO, error) {
	var from enums.OrderStatus
	order, err := s.mutate(ctx, orderID, func(ctx context.Context, _ *gorm.DB, repo Repository, order *models.Order) (func(*models.Order) []notifier.Event, error) {
		if order.RetailerID != retailerID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !CanTransition(order.Status, to) {
			return nil, invalidTransition(order.Status, to)
		}
		if to == enums.OrderStatusOutForDelivery && order.AssignedDeliveryBoyID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "order cannot be sent out for delivery: no courier assigned")
		}

		from = order.Status
		updates["status"] = to
		if err := UpdateObserved(ctx, repo, order, updates); err != nil {
			return nil, err
		}
		if err := RecordEvent(ctx, repo, order.ID, EventRecord{
			Type:      timelineType(to),
			ActorID:   retailerID,
			ActorRole: enums.UserRoleRetailer,
			From:      from,
			To:        to,
			Note:      note,
		}); err != nil {
			return nil, err
		}

		return func(o *models.Order) []notifier.Event {
			switch to {
			case enums.OrderStatusAccepted:
				return []notifier.Event{notifier.OrderAccepted(o)}
			case enums.OrderStatusRejected:
				return []notifier.Event{notifier.OrderRejected(o)}
			default:
				return []notifier.Event{notifier.OrderStatusChanged(o, from)}
			}
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(from), string(to))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"from":     string(from),
		"to":       string(to),
	}), "order status changed")
	return FromModel(order), nil
}

func (s *service) AssignCourier(ctx context.Context, input AssignCourierInput) (*OrderDTO, error) {
	if input.RetailerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.CourierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "courier id required")
	}

	var liabilityPosted bool
	order, err := s.mutate(ctx, input.OrderID, func(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) (func(*models.Order) []notifier.Event, error) {
		if order.RetailerID != input.RetailerID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !CanAssignCourier(order.Status) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf(
				"courier cannot be assigned: status is %s, expected %s or %s",
				order.Status, enums.OrderStatusAccepted, enums.OrderStatusReady))
		}
		if order.AssignedDeliveryBoyID != nil && *order.AssignedDeliveryBoyID == input.CourierID {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "courier is already assigned to this order")
		}

		courier, err := s.users.WithTx(tx).FindActiveByRole(ctx, input.CourierID, enums.UserRoleDeliveryBoy)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "courier not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load courier")
		}
		linked, err := s.couriers.WithTx(tx).IsActive(ctx, order.RetailerID, courier.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check courier link")
		}
		if !linked {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "courier is not linked to this retailer")
		}

		metadata := map[string]any{"courier_id": courier.ID}
		if order.AssignedDeliveryBoyID != nil {
			metadata["previous_courier_id"] = *order.AssignedDeliveryBoyID
		}
		if err := UpdateObserved(ctx, repo, order, map[string]any{"assigned_delivery_boy_id": courier.ID}); err != nil {
			return nil, err
		}
		liabilityPosted, err = EnsureLiability(ctx, tx, repo, s.ledger, order)
		if err != nil {
			return nil, err
		}
		metadata["liability_posted"] = liabilityPosted
		if err := RecordEvent(ctx, repo, order.ID, EventRecord{
			Type:      enums.OrderEventCourierAssigned,
			ActorID:   input.RetailerID,
			ActorRole: enums.UserRoleRetailer,
			Note:      courier.Name,
			Metadata:  metadata,
		}); err != nil {
			return nil, err
		}

		return func(o *models.Order) []notifier.Event {
			return []notifier.Event{notifier.DeliveryBoyAssigned(o, courier)}
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":         order.ID.String(),
		"courier_id":       input.CourierID.String(),
		"liability_posted": liabilityPosted,
	}), "courier assigned")
	return FromModel(order), nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*OrderDTO, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var from enums.OrderStatus
	order, err := s.mutate(ctx, input.OrderID, func(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) (func(*models.Order) []notifier.Event, error) {
		if order.OwnerID != input.OwnerID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !CanCancel(order.Status) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("order cannot be cancelled: status is %s", order.Status))
		}

		from = order.Status
		if err := UpdateObserved(ctx, repo, order, map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": s.now().UTC(),
		}); err != nil {
			return nil, err
		}

		metadata := map[string]any{}
		if order.LiabilityPosted {
			if _, err := s.ledger.Transfer(ctx, tx, RefundTransfer(order)); err != nil {
				return nil, err
			}
			metadata["refunded_amount"] = order.TotalAmount
		}
		if err := RecordEvent(ctx, repo, order.ID, EventRecord{
			Type:      enums.OrderEventCancelled,
			ActorID:   input.OwnerID,
			ActorRole: enums.UserRoleShopOwner,
			From:      from,
			To:        enums.OrderStatusCancelled,
			Note:      strings.TrimSpace(deref(input.Reason)),
			Metadata:  metadata,
		}); err != nil {
			return nil, err
		}

		return func(o *models.Order) []notifier.Event {
			return []notifier.Event{notifier.OrderCancelled(o)}
		}, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(from), string(enums.OrderStatusCancelled))
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "order cancelled")
	return FromModel(order), nil
}

func (s *service) GetByID(ctx context.Context, orderID, actorID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadForParty(ctx, orderID, actorID)
	if err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

func (s *service) GetByOwner(ctx context.Context, ownerID uuid.UUID, params ListParams) (*ListResult, error) {
	return s.list(ctx, ListFilter{OwnerID: &ownerID}, ownerID, params)
}

func (s *service) GetByRetailer(ctx context.Context, retailerID uuid.UUID, params ListParams) (*ListResult, error) {
	return s.list(ctx, ListFilter{RetailerID: &retailerID}, retailerID, params)
}

func (s *service) GetByCourier(ctx context.Context, courierID uuid.UUID, params ListParams) (*ListResult, error) {
	return s.list(ctx, ListFilter{CourierID: &courierID}, courierID, params)
}

func (s *service) Timeline(ctx context.Context, orderID, actorID uuid.UUID) ([]EventDTO, error) {
	if _, err := s.loadForParty(ctx, orderID, actorID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListEvents(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order events")
	}
	return eventsToDTO(rows), nil
}

func (s *service) loadForParty(ctx context.Context, orderID, actorID uuid.UUID) (*models.Order, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, LoadError(err)
	}
	if !order.IsParty(actorID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) list(ctx context.Context, filter ListFilter, actorID uuid.UUID, params ListParams) (*ListResult, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filter.Status = params.Status

	rows, next, err := s.repo.List(ctx, filter, params.Limit, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	result := &ListResult{Orders: make([]OrderDTO, 0, len(rows))}
	for i := range rows {
		result.Orders = append(result.Orders, *FromModel(&rows[i]))
	}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// UpdateObserved writes updates while the order still carries the status it
// was locked with. A lost race surfaces as a state conflict.
func UpdateObserved(ctx context.Context, repo Repository, order *models.Order, updates map[string]any) error {
	ok, err := repo.UpdateIfStatus(ctx, order.ID, order.Status, updates)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order was modified concurrently; reload and retry")
	}
	if status, ok := updates["status"].(enums.OrderStatus); ok {
		order.Status = status
	}
	return nil
}

// LoadError maps a repository load failure to a typed error.
func LoadError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func invalidTransition(from, to enums.OrderStatus) error {
	expected := expectedFrom(to)
	names := make([]string, 0, len(expected))
	for _, status := range expected {
		names = append(names, string(status))
	}
	msg := fmt.Sprintf("order cannot be %s: status is %s", transitionVerb(to), from)
	if len(names) > 0 {
		msg += ", expected " + strings.Join(names, " or ")
	}
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, msg)
}

func transitionVerb(to enums.OrderStatus) string {
	switch to {
	case enums.OrderStatusAccepted:
		return "accepted"
	case enums.OrderStatusRejected:
		return "rejected"
	case enums.OrderStatusReady:
		return "marked ready"
	case enums.OrderStatusOutForDelivery:
		return "sent out for delivery"
	case enums.OrderStatusCompleted:
		return "completed"
	default:
		return "moved to " + string(to)
	}
}

func timelineType(to enums.OrderStatus) enums.OrderEventType {
	switch to {
	case enums.OrderStatusAccepted:
		return enums.OrderEventAccepted
	case enums.OrderStatusRejected:
		return enums.OrderEventRejected
	case enums.OrderStatusCompleted:
		return enums.OrderEventCompleted
	default:
		return enums.OrderEventStatusChanged
	}
}

// mergeItems validates quantities and folds repeated listings into one line.
func mergeItems(items []CreateItemInput) (map[uuid.UUID]int, []uuid.UUID, error) {
	if len(items) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}
	quantities := make(map[uuid.UUID]int, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.ListingID == uuid.Nil {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id required")
		}
		if item.Qty <= 0 {
			return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if _, seen := quantities[item.ListingID]; !seen {
			ids = append(ids, item.ListingID)
		}
		quantities[item.ListingID] += item.Qty
	}
	return quantities, ids, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
