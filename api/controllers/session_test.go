package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/khatabook-backend/api/middleware"
	"github.com/angelmondragon/khatabook-backend/pkg/config"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
)

func TestSessionListsRoleActions(t *testing.T) {
	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req = req.WithContext(middleware.WithRole(middleware.WithUserID(context.Background(), userID.String()), string(enums.UserRoleDeliveryBoy)))
	resp := httptest.NewRecorder()

	Session(quietLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	got := decodeData[sessionView](t, resp.Body.Bytes())
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, enums.UserRoleDeliveryBoy, got.Role)
	assert.Contains(t, got.Actions, "payment_change.request")
	assert.NotContains(t, got.Actions, "payment_change.approve")
}

func TestSessionWithoutActor(t *testing.T) {
	resp := httptest.NewRecorder()
	Session(quietLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestEveryRoleHasActions(t *testing.T) {
	for _, role := range []enums.UserRole{enums.UserRoleShopOwner, enums.UserRoleRetailer, enums.UserRoleDeliveryBoy, enums.UserRoleAdmin} {
		assert.NotEmpty(t, roleActions[role], role)
	}
}

func TestPublicPingNamesService(t *testing.T) {
	cfg := &config.Config{Service: config.ServiceConfig{Kind: "api"}}
	resp := httptest.NewRecorder()
	PublicPing(cfg)(resp, httptest.NewRequest(http.MethodGet, "/api/public/ping", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, map[string]string{"status": "ok", "service": "api"}, decodeData[map[string]string](t, resp.Body.Bytes()))
}
