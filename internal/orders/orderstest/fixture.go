// Package orderstest wires the order state machine against an in-memory
// database with seeded parties for service tests.
package orderstest

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/khatabook-backend/internal/couriers"
	"github.com/angelmondragon/khatabook-backend/internal/ledger"
	"github.com/angelmondragon/khatabook-backend/internal/notifier"
	"github.com/angelmondragon/khatabook-backend/internal/orders"
	"github.com/angelmondragon/khatabook-backend/internal/users"
	"github.com/angelmondragon/khatabook-backend/pkg/db"
	"github.com/angelmondragon/khatabook-backend/pkg/db/dbtest"
	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
	"github.com/angelmondragon/khatabook-backend/pkg/outbox"
)

// RecordingPort captures every delivered notification.
type RecordingPort struct {
	mu         sync.Mutex
	deliveries []Delivery
}

// Delivery is one notification as seen by a recipient.
type Delivery struct {
	Recipient uuid.UUID
	Event     notifier.Event
}

func (p *RecordingPort) Name() string { return "recording" }

func (p *RecordingPort) Notify(_ context.Context, recipient uuid.UUID, evt notifier.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliveries = append(p.deliveries, Delivery{Recipient: recipient, Event: evt})
	return nil
}

// For returns the notification types delivered to recipient in order.
func (p *RecordingPort) For(recipient uuid.UUID) []enums.NotificationType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []enums.NotificationType
	for _, d := range p.deliveries {
		if d.Recipient == recipient {
			out = append(out, d.Event.Type)
		}
	}
	return out
}

// Last returns the most recent delivery of type t, if any.
func (p *RecordingPort) Last(t enums.NotificationType) (Delivery, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.deliveries) - 1; i >= 0; i-- {
		if p.deliveries[i].Event.Type == t {
			return p.deliveries[i], true
		}
	}
	return Delivery{}, false
}

// Reset drops recorded deliveries.
func (p *RecordingPort) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliveries = nil
}

// Fixture holds the wired services and the seeded parties.
type Fixture struct {
	Client     *db.Client
	Logger     *logger.Logger
	Ledger     ledger.Service
	Orders     orders.Service
	OrdersRepo orders.Repository
	Couriers   couriers.Repository
	Users      users.Repository
	Notifier   *notifier.Notifier
	Port       *RecordingPort

	Owner    *models.User
	Retailer *models.User
	Courier  *models.User
	Store    *models.Store
	// Rice costs 250.00 and Oil 100.00.
	Rice *models.Listing
	Oil  *models.Listing
}

// New opens a database, seeds one owner, retailer, linked courier and store,
// and wires the order service.
func New(t testing.TB) *Fixture {
	t.Helper()
	ctx := context.Background()
	client := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "orders-test", Output: io.Discard})

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(client.DB()), client, nil, logg)
	require.NoError(t, err)

	port := &RecordingPort{}
	n, err := notifier.New(logg, outbox.NewService(outbox.NewRepository(client.DB()), logg), port)
	require.NoError(t, err)

	f := &Fixture{
		Client:     client,
		Logger:     logg,
		Ledger:     ledgerSvc,
		OrdersRepo: orders.NewRepository(client.DB()),
		Couriers:   couriers.NewRepository(client.DB()),
		Users:      users.NewRepository(client.DB()),
		Notifier:   n,
		Port:       port,
	}

	f.Owner = f.CreateUser(t, "Sharma Kirana", enums.UserRoleShopOwner)
	f.Retailer = f.CreateUser(t, "Gupta Wholesale", enums.UserRoleRetailer)
	f.Courier = f.CreateUser(t, "Ravi", enums.UserRoleDeliveryBoy)
	f.LinkCourier(t, f.Courier.ID)

	f.Store = &models.Store{RetailerID: f.Retailer.ID, Name: "Gupta Wholesale Main", IsActive: true}
	require.NoError(t, client.DB().WithContext(ctx).Create(f.Store).Error)
	f.Rice = &models.Listing{StoreID: f.Store.ID, Name: "Rice 25kg", PriceRetail: decimal.RequireFromString("250"), IsActive: true}
	f.Oil = &models.Listing{StoreID: f.Store.ID, Name: "Oil 5L", PriceRetail: decimal.RequireFromString("100"), IsActive: true}
	require.NoError(t, client.DB().WithContext(ctx).Create(f.Rice).Error)
	require.NoError(t, client.DB().WithContext(ctx).Create(f.Oil).Error)

	f.Orders, err = orders.NewService(orders.ServiceParams{
		Repo:     f.OrdersRepo,
		Tx:       client,
		Ledger:   ledgerSvc,
		Couriers: f.Couriers,
		Users:    f.Users,
		Events:   n,
		Logger:   logg,
	})
	require.NoError(t, err)
	return f
}

// CreateUser inserts an active user with role.
func (f *Fixture) CreateUser(t testing.TB, name string, role enums.UserRole) *models.User {
	t.Helper()
	phone := "+91-98" + uuid.NewString()[:8]
	user, err := f.Users.Create(context.Background(), users.CreateUserDTO{Name: name, Phone: &phone, Role: role})
	require.NoError(t, err)
	return user
}

// LinkCourier gives courierID an ACTIVE link to the fixture retailer.
func (f *Fixture) LinkCourier(t testing.TB, courierID uuid.UUID) {
	t.Helper()
	require.NoError(t, f.Couriers.Create(context.Background(), &models.RetailerDeliveryBoy{
		RetailerID:    f.Retailer.ID,
		DeliveryBoyID: courierID,
		Status:        enums.CourierLinkActive,
	}))
}

// PlaceOrder creates a PENDING order worth 1000.00 (4 x Rice).
func (f *Fixture) PlaceOrder(t testing.TB) *orders.OrderDTO {
	t.Helper()
	order, err := f.Orders.Create(context.Background(), orders.CreateInput{
		OwnerID: f.Owner.ID,
		StoreID: f.Store.ID,
		Items:   []orders.CreateItemInput{{ListingID: f.Rice.ID, Qty: 4}},
	})
	require.NoError(t, err)
	return order
}

// OutForDelivery places an order and drives it to OUT_FOR_DELIVERY with the
// fixture courier assigned.
func (f *Fixture) OutForDelivery(t testing.TB) *orders.OrderDTO {
	t.Helper()
	order := f.Ready(t)
	order, err := f.Orders.AdvanceStatus(context.Background(), orders.AdvanceStatusInput{
		OrderID: order.ID, RetailerID: f.Retailer.ID, Status: enums.OrderStatusOutForDelivery,
	})
	require.NoError(t, err)
	return order
}

// Ready places an order, accepts it, assigns the fixture courier and marks
// it READY.
func (f *Fixture) Ready(t testing.TB) *orders.OrderDTO {
	t.Helper()
	ctx := context.Background()
	order := f.PlaceOrder(t)
	_, err := f.Orders.Accept(ctx, orders.AcceptInput{OrderID: order.ID, RetailerID: f.Retailer.ID})
	require.NoError(t, err)
	_, err = f.Orders.AssignCourier(ctx, orders.AssignCourierInput{OrderID: order.ID, RetailerID: f.Retailer.ID, CourierID: f.Courier.ID})
	require.NoError(t, err)
	order, err = f.Orders.AdvanceStatus(ctx, orders.AdvanceStatusInput{OrderID: order.ID, RetailerID: f.Retailer.ID, Status: enums.OrderStatusReady})
	require.NoError(t, err)
	return order
}

// Balance returns the running balance of user's scope with counterparty.
func (f *Fixture) Balance(t testing.TB, userID, counterpartyID uuid.UUID) decimal.Decimal {
	t.Helper()
	balance, err := f.Ledger.GetOutstandingBalance(context.Background(), userID, counterpartyID)
	require.NoError(t, err)
	return balance
}

// Entries returns the order's khatabook rows for userID in posting order.
func (f *Fixture) Entries(t testing.TB, userID, orderID uuid.UUID) []models.KhatabookEntry {
	t.Helper()
	var rows []models.KhatabookEntry
	require.NoError(t, f.Client.DB().
		Where("user_id = ? AND order_id = ?", userID, orderID).
		Order("overall_sequence ASC").
		Find(&rows).Error)
	return rows
}

// RequireConserved asserts that the signed amounts of every entry sum to zero.
func (f *Fixture) RequireConserved(t testing.TB) {
	t.Helper()
	var rows []models.KhatabookEntry
	require.NoError(t, f.Client.DB().Find(&rows).Error)
	sum := decimal.Zero
	for _, row := range rows {
		if row.EntryType == enums.EntryTypeCredit {
			sum = sum.Add(row.Amount)
		} else {
			sum = sum.Sub(row.Amount)
		}
	}
	require.True(t, sum.IsZero(), "ledger not conserved: net %s", sum)
}
