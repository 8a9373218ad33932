package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/khatabook-backend/internal/couriers"
	"github.com/angelmondragon/khatabook-backend/internal/ledger"
	"github.com/angelmondragon/khatabook-backend/internal/notifications"
	"github.com/angelmondragon/khatabook-backend/internal/orders"
	"github.com/angelmondragon/khatabook-backend/internal/settlement"
	pkgAuth "github.com/angelmondragon/khatabook-backend/pkg/auth"
	"github.com/angelmondragon/khatabook-backend/pkg/config"
	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryRedis struct {
	data map[string]string
	hits int64
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", goredis.Nil
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryRedis) IdempotencyKey(scope, id string) string {
	return "test:idem:" + scope + ":" + id
}

func (m *memoryRedis) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.hits++
	return m.hits <= limit, m.hits, nil
}

func (m *memoryRedis) Ping(context.Context) error {
	return nil
}

type stubLedgerService struct{}

func (stubLedgerService) PostEntry(ctx context.Context, tx *gorm.DB, input ledger.PostEntryInput) (*models.KhatabookEntry, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubLedgerService) Transfer(ctx context.Context, tx *gorm.DB, input ledger.TransferInput) (*ledger.TransferResult, error) {
	return nil, fmt.Errorf("not implemented")
}

func (stubLedgerService) GetSummary(ctx context.Context, userID uuid.UUID, counterpartyID *uuid.UUID) (*ledger.Summary, error) {
	return &ledger.Summary{UserID: userID}, nil
}

func (stubLedgerService) GetEntries(ctx context.Context, userID uuid.UUID, query ledger.EntryQuery) (*ledger.EntryPage, error) {
	return &ledger.EntryPage{Entries: []ledger.Entry{}}, nil
}

func (stubLedgerService) GetOutstandingBalance(ctx context.Context, userID, counterpartyID uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

type stubOrdersService struct{}

func (stubOrdersService) Create(ctx context.Context, input orders.CreateInput) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{OwnerID: input.OwnerID, Status: enums.OrderStatusPending}, nil
}

func (stubOrdersService) Accept(ctx context.Context, input orders.AcceptInput) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: input.OrderID, Status: enums.OrderStatusAccepted}, nil
}

func (stubOrdersService) Reject(ctx context.Context, input orders.RejectInput) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: input.OrderID, Status: enums.OrderStatusRejected}, nil
}

func (stubOrdersService) AdvanceStatus(ctx context.Context, input orders.AdvanceStatusInput) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: input.OrderID, Status: input.Status}, nil
}

func (stubOrdersService) AssignCourier(ctx context.Context, input orders.AssignCourierInput) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: input.OrderID}, nil
}

func (stubOrdersService) Cancel(ctx context.Context, input orders.CancelInput) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: input.OrderID, Status: enums.OrderStatusCancelled}, nil
}

func (stubOrdersService) GetByID(ctx context.Context, orderID, actorID uuid.UUID) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: orderID}, nil
}

func (stubOrdersService) GetByOwner(ctx context.Context, ownerID uuid.UUID, params orders.ListParams) (*orders.ListResult, error) {
	return &orders.ListResult{Orders: []orders.OrderDTO{}}, nil
}

func (stubOrdersService) GetByRetailer(ctx context.Context, retailerID uuid.UUID, params orders.ListParams) (*orders.ListResult, error) {
	return &orders.ListResult{Orders: []orders.OrderDTO{}}, nil
}

func (stubOrdersService) GetByCourier(ctx context.Context, courierID uuid.UUID, params orders.ListParams) (*orders.ListResult, error) {
	return &orders.ListResult{Orders: []orders.OrderDTO{}}, nil
}

func (stubOrdersService) Timeline(ctx context.Context, orderID, actorID uuid.UUID) ([]orders.EventDTO, error) {
	return []orders.EventDTO{}, nil
}

type stubSettlementService struct {
	confirmCalls *int
}

func (s stubSettlementService) ConfirmPayment(ctx context.Context, input settlement.ConfirmPaymentInput) (*settlement.Settlement, error) {
	if s.confirmCalls != nil {
		*s.confirmCalls++
	}
	return &settlement.Settlement{OrderID: input.OrderID, PaymentReceived: true}, nil
}

func (stubSettlementService) ConfirmPaymentAndComplete(ctx context.Context, input settlement.CourierConfirmInput) (*settlement.Settlement, error) {
	return &settlement.Settlement{OrderID: input.OrderID, Status: enums.OrderStatusCompleted}, nil
}

func (stubSettlementService) AdjustAmount(ctx context.Context, input settlement.AdjustAmountInput) (*settlement.Settlement, error) {
	return &settlement.Settlement{OrderID: input.OrderID}, nil
}

func (stubSettlementService) RequestChange(ctx context.Context, input settlement.RequestChangeInput) (*settlement.ChangeRequestDTO, error) {
	return &settlement.ChangeRequestDTO{OrderID: input.OrderID}, nil
}

func (stubSettlementService) ApproveChange(ctx context.Context, requestID, ownerID uuid.UUID) (*settlement.ChangeRequestDTO, error) {
	return &settlement.ChangeRequestDTO{ID: requestID}, nil
}

func (stubSettlementService) RejectChange(ctx context.Context, requestID, ownerID uuid.UUID, reason *string) (*settlement.ChangeRequestDTO, error) {
	return &settlement.ChangeRequestDTO{ID: requestID}, nil
}

func (stubSettlementService) ExpirePending(ctx context.Context, limit int) (int, error) {
	return 0, nil
}

func (stubSettlementService) ListChangeRequests(ctx context.Context, orderID, actorID uuid.UUID) ([]settlement.ChangeRequestDTO, error) {
	return []settlement.ChangeRequestDTO{}, nil
}

func (stubSettlementService) AuditTrail(ctx context.Context, orderID, actorID uuid.UUID) ([]settlement.AuditEntryDTO, error) {
	return []settlement.AuditEntryDTO{}, nil
}

type stubCouriersService struct{}

func (stubCouriersService) Link(ctx context.Context, retailerID, courierID uuid.UUID) (*couriers.LinkDTO, error) {
	return &couriers.LinkDTO{CourierID: courierID}, nil
}

func (stubCouriersService) Unlink(ctx context.Context, retailerID, courierID uuid.UUID) error {
	return nil
}

func (stubCouriersService) List(ctx context.Context, retailerID uuid.UUID, includeInactive bool) ([]couriers.LinkDTO, error) {
	return []couriers.LinkDTO{}, nil
}

type stubNotificationsService struct{}

func (stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{Items: []notifications.Item{}}, nil
}

func (stubNotificationsService) UnreadCount(ctx context.Context, userID uuid.UUID, orderID *uuid.UUID) (int64, error) {
	return 0, nil
}

func (stubNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID, orderID *uuid.UUID) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config, store redisStore, settlementSvc settlement.Service) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "# metrics")
	})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		store,
		metricsHandler,
		stubLedgerService{},
		stubOrdersService{},
		settlementSvc,
		stubCouriersService{},
		stubNotificationsService{},
	)
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), nil, stubSettlementService{})
	resp := serve(router, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil, stubSettlementService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleShopOwner))
	if resp := serve(router, req); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for session got %d", resp.Code)
	}
}

func TestRoleGatedRoutes(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, nil, stubSettlementService{})
	orderPath := "/api/v1/orders/" + uuid.NewString()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		role   enums.UserRole
		want   int
	}{
		{"retailer cannot create", http.MethodPost, "/api/v1/orders", `{}`, enums.UserRoleRetailer, http.StatusForbidden},
		{"owner cannot accept", http.MethodPost, orderPath + "/accept", "", enums.UserRoleShopOwner, http.StatusForbidden},
		{"retailer accepts", http.MethodPost, orderPath + "/accept", "", enums.UserRoleRetailer, http.StatusOK},
		{"courier cannot confirm as retailer", http.MethodPost, orderPath + "/payment", "", enums.UserRoleDeliveryBoy, http.StatusForbidden},
		{"courier completes", http.MethodPost, orderPath + "/payment/complete", "", enums.UserRoleDeliveryBoy, http.StatusOK},
		{"retailer cannot request change", http.MethodPost, orderPath + "/payment-changes", `{"new_amount":"10","reason":"x"}`, enums.UserRoleRetailer, http.StatusForbidden},
		{"any party lists changes", http.MethodGet, orderPath + "/payment-changes", "", enums.UserRoleRetailer, http.StatusOK},
		{"courier cannot approve", http.MethodPost, "/api/v1/payment-changes/" + uuid.NewString() + "/approve", "", enums.UserRoleDeliveryBoy, http.StatusForbidden},
		{"owner approves", http.MethodPost, "/api/v1/payment-changes/" + uuid.NewString() + "/approve", "", enums.UserRoleShopOwner, http.StatusOK},
		{"owner cannot manage couriers", http.MethodGet, "/api/v1/couriers", "", enums.UserRoleShopOwner, http.StatusForbidden},
		{"retailer lists couriers", http.MethodGet, "/api/v1/couriers", "", enums.UserRoleRetailer, http.StatusOK},
		{"courier reads khatabook", http.MethodGet, "/api/v1/khatabook/summary", "", enums.UserRoleDeliveryBoy, http.StatusOK},
		{"owner lists orders", http.MethodGet, "/api/v1/orders", "", enums.UserRoleShopOwner, http.StatusOK},
	}

	for _, tt := range tests {
		var body io.Reader
		if tt.body != "" {
			body = strings.NewReader(tt.body)
		}
		req := httptest.NewRequest(tt.method, tt.path, body)
		req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, tt.role))
		if resp := serve(router, req); resp.Code != tt.want {
			t.Fatalf("%s: expected %d got %d: %s", tt.name, tt.want, resp.Code, resp.Body.String())
		}
	}
}

func TestMoneyRoutesRequireIdempotencyKey(t *testing.T) {
	cfg := testConfig()
	calls := 0
	router := newTestRouter(cfg, &memoryRedis{data: map[string]string{}}, stubSettlementService{confirmCalls: &calls})
	token := buildToken(t, cfg, enums.UserRoleRetailer)
	path := "/api/v1/orders/" + uuid.NewString() + "/payment"

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"amount_received":"500"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	if resp := serve(router, req); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key got %d", resp.Code)
	}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"amount_received":"500"}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "pay-1")
		if resp := serve(router, req); resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d", i, resp.Code)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one confirmation, got %d", calls)
	}
}

func TestWritesAreThrottledPerUser(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{WriteLimit: 1, WriteWindow: time.Minute}
	router := newTestRouter(cfg, &memoryRedis{data: map[string]string{}}, stubSettlementService{})
	token := buildToken(t, cfg, enums.UserRoleRetailer)

	want := []int{http.StatusCreated, http.StatusTooManyRequests}
	for i, code := range want {
		body := fmt.Sprintf(`{"courier_id":%q}`, uuid.NewString())
		req := httptest.NewRequest(http.MethodPost, "/api/v1/couriers", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", fmt.Sprintf("link-%d", i))
		if resp := serve(router, req); resp.Code != code {
			t.Fatalf("attempt %d: expected %d got %d: %s", i, code, resp.Code, resp.Body.String())
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(testConfig(), nil, stubSettlementService{})
	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		if resp := serve(router, httptest.NewRequest(http.MethodGet, path, nil)); resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}
