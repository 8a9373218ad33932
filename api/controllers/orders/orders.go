package orders

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/khatabook-backend/api/middleware"
	"github.com/angelmondragon/khatabook-backend/api/responses"
	"github.com/angelmondragon/khatabook-backend/api/validators"
	internalorders "github.com/angelmondragon/khatabook-backend/internal/orders"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
	"github.com/angelmondragon/khatabook-backend/pkg/pagination"
)

const maxNoteLength = 500

type createItemRequest struct {
	ListingID uuid.UUID `json:"listing_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}

type createOrderRequest struct {
	StoreID      uuid.UUID           `json:"store_id" validate:"required"`
	Items        []createItemRequest `json:"items" validate:"required,min=1,dive"`
	DeliveryType string              `json:"delivery_type"`
	DeliveryAt   *time.Time          `json:"delivery_at"`
	Note         *string             `json:"note"`
}

type acceptOrderRequest struct {
	DeliveryAt *time.Time `json:"delivery_at"`
}

type rejectOrderRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=500"`
}

type advanceStatusRequest struct {
	Status string `json:"status" validate:"required,notblank"`
}

type assignCourierRequest struct {
	CourierID uuid.UUID `json:"courier_id" validate:"required"`
}

type cancelOrderRequest struct {
	Reason *string `json:"reason"`
}

// Create places a new order for the authenticated shop owner.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, _, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var deliveryType enums.DeliveryType
		if raw := strings.TrimSpace(payload.DeliveryType); raw != "" {
			parsed, err := enums.ParseDeliveryType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery_type"))
				return
			}
			deliveryType = parsed
		}

		items := make([]internalorders.CreateItemInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, internalorders.CreateItemInput{ListingID: item.ListingID, Qty: item.Qty})
		}

		order, err := svc.Create(r.Context(), internalorders.CreateInput{
			OwnerID:      actorID,
			StoreID:      payload.StoreID,
			Items:        items,
			DeliveryType: deliveryType,
			DeliveryAt:   payload.DeliveryAt,
			Note:         sanitizeOptional(payload.Note),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// List returns the caller's orders from the perspective of their role.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := internalorders.ListParams{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			params.Status = &status
		}

		var list *internalorders.ListResult
		switch role {
		case enums.UserRoleShopOwner:
			list, err = svc.GetByOwner(r.Context(), actorID, params)
		case enums.UserRoleRetailer:
			list, err = svc.GetByRetailer(r.Context(), actorID, params)
		case enums.UserRoleDeliveryBoy:
			list, err = svc.GetByCourier(r.Context(), actorID, params)
		default:
			err = pkgerrors.New(pkgerrors.CodeForbidden, "role has no order view")
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order to any of its parties.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, orderID, err := actorAndOrder(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetByID(r.Context(), orderID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Timeline returns the order's event history.
func Timeline(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, orderID, err := actorAndOrder(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		events, err := svc.Timeline(r.Context(), orderID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"events": events})
	}
}

func Accept(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, orderID, err := actorAndOrder(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload acceptOrderRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.Accept(r.Context(), internalorders.AcceptInput{
			OrderID:    orderID,
			RetailerID: actorID,
			DeliveryAt: payload.DeliveryAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func Reject(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, orderID, err := actorAndOrder(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload rejectOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Reject(r.Context(), internalorders.RejectInput{
			OrderID:    orderID,
			RetailerID: actorID,
			Reason:     validators.SanitizeString(payload.Reason, maxNoteLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// AdvanceStatus moves an accepted order along the delivery pipeline.
func AdvanceStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, orderID, err := actorAndOrder(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload advanceStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := svc.AdvanceStatus(r.Context(), internalorders.AdvanceStatusInput{
			OrderID:    orderID,
			RetailerID: actorID,
			Status:     status,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func AssignCourier(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, orderID, err := actorAndOrder(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload assignCourierRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.AssignCourier(r.Context(), internalorders.AssignCourierInput{
			OrderID:    orderID,
			RetailerID: actorID,
			CourierID:  payload.CourierID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actorID, orderID, err := actorAndOrder(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelOrderRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.Cancel(r.Context(), internalorders.CancelInput{
			OrderID: orderID,
			OwnerID: actorID,
			Reason:  sanitizeOptional(payload.Reason),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func actorAndOrder(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	actorID, _, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	orderID, err := validators.ParseUUIDParam(r, "orderId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return actorID, orderID, nil
}

func sanitizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	cleaned := validators.SanitizeString(*value, maxNoteLength)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
