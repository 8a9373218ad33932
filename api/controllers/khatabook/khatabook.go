package khatabook

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/khatabook-backend/api/middleware"
	"github.com/angelmondragon/khatabook-backend/api/responses"
	"github.com/angelmondragon/khatabook-backend/api/validators"
	"github.com/angelmondragon/khatabook-backend/internal/ledger"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
	"github.com/angelmondragon/khatabook-backend/pkg/pagination"
)

// Summary returns the caller's balance snapshot, optionally scoped to one counterparty.
func Summary(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		userID, _, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		counterpartyID, err := validators.ParseQueryUUID(r, "counterparty_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.GetSummary(r.Context(), userID, counterpartyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// Entries returns one page of the caller's khatabook entries, newest first.
func Entries(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		userID, _, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query, err := buildEntryQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.GetEntries(r.Context(), userID, query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// Balance returns the caller's outstanding balance against one counterparty.
func Balance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		userID, _, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		counterpartyID, err := validators.ParseUUIDParam(r, "counterpartyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.GetOutstandingBalance(r.Context(), userID, counterpartyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"counterparty_id": counterpartyID,
			"balance":         balance,
		})
	}
}

func buildEntryQuery(r *http.Request) (ledger.EntryQuery, error) {
	var query ledger.EntryQuery

	page, err := validators.ParseQueryInt(r, "page", 1, 1, 1<<20)
	if err != nil {
		return query, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return query, err
	}
	query.Page = page
	query.Limit = limit

	if raw := strings.TrimSpace(r.URL.Query().Get("entry_type")); raw != "" {
		entryType, err := enums.ParseEntryType(raw)
		if err != nil {
			return query, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid entry_type")
		}
		query.EntryType = &entryType
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("transaction_type")); raw != "" {
		txType, err := enums.ParseTransactionType(raw)
		if err != nil {
			return query, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction_type")
		}
		query.TransactionType = &txType
	}

	if query.CounterpartyID, err = validators.ParseQueryUUID(r, "counterparty_id"); err != nil {
		return query, err
	}
	if query.OrderID, err = validators.ParseQueryUUID(r, "order_id"); err != nil {
		return query, err
	}
	return query, nil
}
