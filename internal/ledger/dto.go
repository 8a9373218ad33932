package ledger

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PostEntryInput captures a single khatabook posting.
type PostEntryInput struct {
	UserID          uuid.UUID
	CounterpartyID  *uuid.UUID
	OrderID         *uuid.UUID
	EntryType       enums.EntryType
	TransactionType enums.TransactionType
	Amount          decimal.Decimal
	Description     string
	ReferenceID     *string
	Metadata        json.RawMessage
}

// TransferInput moves Amount from DebitUserID to CreditUserID as two mirrored
// entries posted in one transaction.
type TransferInput struct {
	DebitUserID  uuid.UUID
	CreditUserID uuid.UUID
	Amount       decimal.Decimal
	DebitType    enums.TransactionType
	CreditType   enums.TransactionType
	OrderID      *uuid.UUID
	Description  string
	ReferenceID  *string
	Metadata     json.RawMessage
}

// TransferResult returns both legs of a transfer.
type TransferResult struct {
	Debit  *models.KhatabookEntry
	Credit *models.KhatabookEntry
}

// EntryQuery describes the inputs supported by the entries list.
type EntryQuery struct {
	Page            int
	Limit           int
	EntryType       *enums.EntryType
	TransactionType *enums.TransactionType
	CounterpartyID  *uuid.UUID
	OrderID         *uuid.UUID
}

// Entry is the API view of a khatabook row.
type Entry struct {
	ID              uuid.UUID             `json:"id"`
	UserID          uuid.UUID             `json:"user_id"`
	CounterpartyID  *uuid.UUID            `json:"counterparty_id,omitempty"`
	OrderID         *uuid.UUID            `json:"order_id,omitempty"`
	EntryType       enums.EntryType       `json:"entry_type"`
	TransactionType enums.TransactionType `json:"transaction_type"`
	Amount          decimal.Decimal       `json:"amount"`
	Balance         decimal.Decimal       `json:"balance"`
	OverallBalance  decimal.Decimal       `json:"overall_balance"`
	Description     string                `json:"description"`
	ReferenceID     *string               `json:"reference_id,omitempty"`
	Metadata        json.RawMessage       `json:"metadata,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

// EntryPage wraps one page of entries.
type EntryPage struct {
	Entries    []Entry `json:"entries"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	Total      int64   `json:"total"`
	TotalPages int     `json:"total_pages"`
}

// Summary is the balance snapshot of one scope read from its tail.
type Summary struct {
	UserID             uuid.UUID       `json:"user_id"`
	CounterpartyID     *uuid.UUID      `json:"counterparty_id,omitempty"`
	CurrentBalance     decimal.Decimal `json:"current_balance"`
	TotalCredits       decimal.Decimal `json:"total_credits"`
	TotalDebits        decimal.Decimal `json:"total_debits"`
	TotalTransactions  int64           `json:"total_transactions"`
	RecentTransactions []Entry         `json:"recent_transactions"`
}

func toEntry(m models.KhatabookEntry) Entry {
	return Entry{
		ID:              m.ID,
		UserID:          m.UserID,
		CounterpartyID:  m.CounterpartyID,
		OrderID:         m.OrderID,
		EntryType:       m.EntryType,
		TransactionType: m.TransactionType,
		Amount:          m.Amount,
		Balance:         m.Balance,
		OverallBalance:  m.OverallBalance,
		Description:     m.Description,
		ReferenceID:     m.ReferenceID,
		Metadata:        m.Metadata,
		CreatedAt:       m.CreatedAt,
	}
}

func toEntries(rows []models.KhatabookEntry) []Entry {
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, toEntry(row))
	}
	return out
}
