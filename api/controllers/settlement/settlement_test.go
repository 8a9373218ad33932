package settlement

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/khatabook-backend/api/middleware"
	internalsettlement "github.com/angelmondragon/khatabook-backend/internal/settlement"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
)

type stubSettlementService struct {
	confirmFn  func(ctx context.Context, input internalsettlement.ConfirmPaymentInput) (*internalsettlement.Settlement, error)
	completeFn func(ctx context.Context, input internalsettlement.CourierConfirmInput) (*internalsettlement.Settlement, error)
	adjustFn   func(ctx context.Context, input internalsettlement.AdjustAmountInput) (*internalsettlement.Settlement, error)
	requestFn  func(ctx context.Context, input internalsettlement.RequestChangeInput) (*internalsettlement.ChangeRequestDTO, error)
	approveFn  func(ctx context.Context, requestID, ownerID uuid.UUID) (*internalsettlement.ChangeRequestDTO, error)
	rejectFn   func(ctx context.Context, requestID, ownerID uuid.UUID, reason *string) (*internalsettlement.ChangeRequestDTO, error)
}

func (s *stubSettlementService) ConfirmPayment(ctx context.Context, input internalsettlement.ConfirmPaymentInput) (*internalsettlement.Settlement, error) {
	if s.confirmFn != nil {
		return s.confirmFn(ctx, input)
	}
	return &internalsettlement.Settlement{OrderID: input.OrderID}, nil
}

func (s *stubSettlementService) ConfirmPaymentAndComplete(ctx context.Context, input internalsettlement.CourierConfirmInput) (*internalsettlement.Settlement, error) {
	if s.completeFn != nil {
		return s.completeFn(ctx, input)
	}
	return &internalsettlement.Settlement{OrderID: input.OrderID}, nil
}

func (s *stubSettlementService) AdjustAmount(ctx context.Context, input internalsettlement.AdjustAmountInput) (*internalsettlement.Settlement, error) {
	if s.adjustFn != nil {
		return s.adjustFn(ctx, input)
	}
	return &internalsettlement.Settlement{OrderID: input.OrderID}, nil
}

func (s *stubSettlementService) RequestChange(ctx context.Context, input internalsettlement.RequestChangeInput) (*internalsettlement.ChangeRequestDTO, error) {
	if s.requestFn != nil {
		return s.requestFn(ctx, input)
	}
	return &internalsettlement.ChangeRequestDTO{OrderID: input.OrderID}, nil
}

func (s *stubSettlementService) ApproveChange(ctx context.Context, requestID, ownerID uuid.UUID) (*internalsettlement.ChangeRequestDTO, error) {
	if s.approveFn != nil {
		return s.approveFn(ctx, requestID, ownerID)
	}
	return &internalsettlement.ChangeRequestDTO{ID: requestID}, nil
}

func (s *stubSettlementService) RejectChange(ctx context.Context, requestID, ownerID uuid.UUID, reason *string) (*internalsettlement.ChangeRequestDTO, error) {
	if s.rejectFn != nil {
		return s.rejectFn(ctx, requestID, ownerID, reason)
	}
	return &internalsettlement.ChangeRequestDTO{ID: requestID}, nil
}

func (s *stubSettlementService) ExpirePending(ctx context.Context, limit int) (int, error) {
	return 0, nil
}

func (s *stubSettlementService) ListChangeRequests(ctx context.Context, orderID, actorID uuid.UUID) ([]internalsettlement.ChangeRequestDTO, error) {
	return nil, nil
}

func (s *stubSettlementService) AuditTrail(ctx context.Context, orderID, actorID uuid.UUID) ([]internalsettlement.AuditEntryDTO, error) {
	return nil, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newRequest(body string, actorID uuid.UUID, role enums.UserRole, key, value string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(http.MethodPost, "/", reader)
	ctx := middleware.WithUserID(req.Context(), actorID.String())
	ctx = middleware.WithRole(ctx, string(role))
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(ctx, chi.RouteCtxKey, routeCtx))
}

func TestConfirmPaymentDefaultsAmountWhenBodyEmpty(t *testing.T) {
	retailerID := uuid.New()
	orderID := uuid.New()
	var captured internalsettlement.ConfirmPaymentInput
	svc := &stubSettlementService{
		confirmFn: func(ctx context.Context, input internalsettlement.ConfirmPaymentInput) (*internalsettlement.Settlement, error) {
			captured = input
			return &internalsettlement.Settlement{OrderID: input.OrderID}, nil
		},
	}

	resp := httptest.NewRecorder()
	ConfirmPayment(svc, testLogger())(resp, newRequest("", retailerID, enums.UserRoleRetailer, "orderId", orderID.String()))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, orderID, captured.OrderID)
	assert.Equal(t, retailerID, captured.RetailerID)
	assert.Nil(t, captured.AmountReceived)
}

func TestConfirmPaymentParsesAmount(t *testing.T) {
	var captured internalsettlement.ConfirmPaymentInput
	svc := &stubSettlementService{
		confirmFn: func(ctx context.Context, input internalsettlement.ConfirmPaymentInput) (*internalsettlement.Settlement, error) {
			captured = input
			return &internalsettlement.Settlement{}, nil
		},
	}

	resp := httptest.NewRecorder()
	ConfirmPayment(svc, testLogger())(resp, newRequest(`{"amount_received":"700.50","note":"cash"}`, uuid.New(), enums.UserRoleRetailer, "orderId", uuid.NewString()))

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, captured.AmountReceived)
	assert.True(t, captured.AmountReceived.Equal(decimal.RequireFromString("700.50")))
	require.NotNil(t, captured.Note)
	assert.Equal(t, "cash", *captured.Note)
}

func TestAdjustAmountRequiresNote(t *testing.T) {
	resp := httptest.NewRecorder()
	AdjustAmount(&stubSettlementService{}, testLogger())(resp, newRequest(`{"new_amount":900}`, uuid.New(), enums.UserRoleShopOwner, "orderId", uuid.NewString()))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRequestChangeReturnsCreated(t *testing.T) {
	courierID := uuid.New()
	var captured internalsettlement.RequestChangeInput
	svc := &stubSettlementService{
		requestFn: func(ctx context.Context, input internalsettlement.RequestChangeInput) (*internalsettlement.ChangeRequestDTO, error) {
			captured = input
			return &internalsettlement.ChangeRequestDTO{ID: uuid.New(), Status: enums.PaymentChangePending}, nil
		},
	}

	resp := httptest.NewRecorder()
	RequestChange(svc, testLogger())(resp, newRequest(`{"new_amount":"950","reason":"one crate damaged"}`, courierID, enums.UserRoleDeliveryBoy, "orderId", uuid.NewString()))

	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, courierID, captured.CourierID)
	assert.True(t, captured.NewAmount.Equal(decimal.NewFromInt(950)))
	assert.Equal(t, "one crate damaged", captured.Reason)
}

func TestApproveChangeMapsAlreadyProcessed(t *testing.T) {
	svc := &stubSettlementService{
		approveFn: func(ctx context.Context, requestID, ownerID uuid.UUID) (*internalsettlement.ChangeRequestDTO, error) {
			return nil, pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "change request already resolved")
		},
	}

	resp := httptest.NewRecorder()
	ApproveChange(svc, testLogger())(resp, newRequest("", uuid.New(), enums.UserRoleShopOwner, "requestId", uuid.NewString()))

	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Contains(t, resp.Body.String(), string(pkgerrors.CodeAlreadyProcessed))
}

func TestRejectChangePassesReason(t *testing.T) {
	ownerID := uuid.New()
	requestID := uuid.New()
	var gotReason *string
	svc := &stubSettlementService{
		rejectFn: func(ctx context.Context, rid, oid uuid.UUID, reason *string) (*internalsettlement.ChangeRequestDTO, error) {
			assert.Equal(t, requestID, rid)
			assert.Equal(t, ownerID, oid)
			gotReason = reason
			return &internalsettlement.ChangeRequestDTO{ID: rid, Status: enums.PaymentChangeRejected}, nil
		},
	}

	resp := httptest.NewRecorder()
	RejectChange(svc, testLogger())(resp, newRequest(`{"reason":"price was agreed"}`, ownerID, enums.UserRoleShopOwner, "requestId", requestID.String()))

	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, gotReason)
	assert.Equal(t, "price was agreed", *gotReason)
}

func TestSettlementRejectsInvalidPathID(t *testing.T) {
	resp := httptest.NewRecorder()
	ApproveChange(&stubSettlementService{}, testLogger())(resp, newRequest("", uuid.New(), enums.UserRoleShopOwner, "requestId", "bogus"))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
