package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/khatabook-backend/api/middleware"
	"github.com/angelmondragon/khatabook-backend/api/responses"
	"github.com/angelmondragon/khatabook-backend/pkg/config"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
)

// roleActions lists what each role may do, so clients can hide controls the
// API would refuse.
var roleActions = map[enums.UserRole][]string{
	enums.UserRoleShopOwner: {
		"order.place", "order.cancel", "payment.adjust",
		"payment_change.approve", "payment_change.reject", "khatabook.view",
	},
	enums.UserRoleRetailer: {
		"order.accept", "order.reject", "order.advance", "order.assign_courier",
		"payment.confirm", "courier.link", "courier.unlink", "khatabook.view",
	},
	enums.UserRoleDeliveryBoy: {
		"payment.complete", "payment_change.request",
	},
	enums.UserRoleAdmin: {"khatabook.view"},
}

type sessionView struct {
	UserID  uuid.UUID      `json:"userId"`
	Role    enums.UserRole `json:"role"`
	Actions []string       `json:"actions"`
}

// Session echoes the caller's identity from the bearer token with the
// actions their role unlocks.
func Session(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "no session"))
			return
		}
		actions := roleActions[role]
		if actions == nil {
			actions = []string{}
		}
		responses.WriteSuccess(w, sessionView{UserID: userID, Role: role, Actions: actions})
	}
}

// PublicPing answers unauthenticated reachability checks from clients.
func PublicPing(cfg *config.Config) http.HandlerFunc {
	body := map[string]string{"status": "ok", "service": cfg.Service.Kind}
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, body)
	}
}
