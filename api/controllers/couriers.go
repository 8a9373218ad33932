package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/khatabook-backend/api/middleware"
	"github.com/angelmondragon/khatabook-backend/api/responses"
	"github.com/angelmondragon/khatabook-backend/api/validators"
	"github.com/angelmondragon/khatabook-backend/internal/couriers"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
)

type linkCourierRequest struct {
	CourierID uuid.UUID `json:"courier_id" validate:"required"`
}

// ListCouriers returns the retailer's courier links.
func ListCouriers(svc couriers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "couriers service unavailable"))
			return
		}

		retailerID, _, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		includeInactive := false
		if raw := strings.TrimSpace(r.URL.Query().Get("includeInactive")); raw != "" {
			value, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid includeInactive value"))
				return
			}
			includeInactive = value
		}

		links, err := svc.List(r.Context(), retailerID, includeInactive)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"couriers": links})
	}
}

func LinkCourier(svc couriers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "couriers service unavailable"))
			return
		}

		retailerID, _, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload linkCourierRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		link, err := svc.Link(r.Context(), retailerID, payload.CourierID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, link)
	}
}

func UnlinkCourier(svc couriers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "couriers service unavailable"))
			return
		}

		retailerID, _, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		courierID, err := validators.ParseUUIDParam(r, "courierId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Unlink(r.Context(), retailerID, courierID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"unlinked": true})
	}
}
