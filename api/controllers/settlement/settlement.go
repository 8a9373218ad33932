package settlement

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/khatabook-backend/api/middleware"
	"github.com/angelmondragon/khatabook-backend/api/responses"
	"github.com/angelmondragon/khatabook-backend/api/validators"
	internalsettlement "github.com/angelmondragon/khatabook-backend/internal/settlement"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
)

const maxNoteLength = 500

type confirmPaymentRequest struct {
	AmountReceived *decimal.Decimal `json:"amount_received" validate:"omitempty,money"`
	Note           *string          `json:"note" validate:"omitempty,max=500"`
}

type adjustAmountRequest struct {
	NewAmount *decimal.Decimal `json:"new_amount" validate:"required,money"`
	Note      string           `json:"note" validate:"required,notblank,max=500"`
}

type changeRequest struct {
	NewAmount *decimal.Decimal `json:"new_amount" validate:"required,money"`
	Reason    string           `json:"reason" validate:"required,notblank,max=500"`
}

type rejectChangeRequest struct {
	Reason *string `json:"reason"`
}

// ConfirmPayment records the retailer's receipt of payment for an order.
func ConfirmPayment(svc internalsettlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		actorID, orderID, err := actorAndParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload confirmPaymentRequest
		if err := decodeOptional(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ConfirmPayment(r.Context(), internalsettlement.ConfirmPaymentInput{
			OrderID:        orderID,
			RetailerID:     actorID,
			AmountReceived: payload.AmountReceived,
			Note:           sanitizeOptional(payload.Note),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CompleteWithPayment lets the assigned courier collect payment and close the order.
func CompleteWithPayment(svc internalsettlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		actorID, orderID, err := actorAndParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload confirmPaymentRequest
		if err := decodeOptional(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ConfirmPaymentAndComplete(r.Context(), internalsettlement.CourierConfirmInput{
			OrderID:        orderID,
			CourierID:      actorID,
			AmountReceived: payload.AmountReceived,
			Note:           sanitizeOptional(payload.Note),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdjustAmount corrects the amount received on a paid order.
func AdjustAmount(svc internalsettlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		actorID, orderID, err := actorAndParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adjustAmountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AdjustAmount(r.Context(), internalsettlement.AdjustAmountInput{
			OrderID:   orderID,
			OwnerID:   actorID,
			NewAmount: *payload.NewAmount,
			Note:      validators.SanitizeString(payload.Note, maxNoteLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// RequestChange opens a courier's proposal to change the order total.
func RequestChange(svc internalsettlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		actorID, orderID, err := actorAndParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload changeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.RequestChange(r.Context(), internalsettlement.RequestChangeInput{
			OrderID:   orderID,
			CourierID: actorID,
			NewAmount: *payload.NewAmount,
			Reason:    validators.SanitizeString(payload.Reason, maxNoteLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, request)
	}
}

func ListChangeRequests(svc internalsettlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		actorID, orderID, err := actorAndParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requests, err := svc.ListChangeRequests(r.Context(), orderID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"requests": requests})
	}
}

func AuditTrail(svc internalsettlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		actorID, orderID, err := actorAndParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		trail, err := svc.AuditTrail(r.Context(), orderID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"entries": trail})
	}
}

// ApproveChange applies a pending change request to the order total.
func ApproveChange(svc internalsettlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		actorID, requestID, err := actorAndParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.ApproveChange(r.Context(), requestID, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

func RejectChange(svc internalsettlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement service unavailable"))
			return
		}

		actorID, requestID, err := actorAndParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload rejectChangeRequest
		if err := decodeOptional(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		request, err := svc.RejectChange(r.Context(), requestID, actorID, sanitizeOptional(payload.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

func actorAndParam(r *http.Request, key string) (uuid.UUID, uuid.UUID, error) {
	actorID, _, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := validators.ParseUUIDParam(r, key)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return actorID, id, nil
}

// decodeOptional accepts an empty body for endpoints whose fields all have defaults.
func decodeOptional(r *http.Request, dest any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return validators.DecodeJSONBody(r, dest)
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
