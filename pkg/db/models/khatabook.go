package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/khatabook-backend/pkg/enums"
)

// KhatabookEntry is an immutable ledger row. Balance is the running balance
// of the (user, counterparty) scope after this entry; OverallBalance is the
// running balance across every entry of the user. Entries without a
// counterparty belong to the user-wide scope.
type KhatabookEntry struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID             `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_khatabook_entries_scope_seq,priority:1;uniqueIndex:uq_khatabook_entries_overall_seq,priority:1"`
	CounterpartyID  *uuid.UUID            `gorm:"column:counterparty_id;type:uuid;index"`
	ScopeKey        string                `gorm:"column:scope_key;not null;uniqueIndex:uq_khatabook_entries_scope_seq,priority:2"`
	Sequence        int64                 `gorm:"column:sequence;not null;uniqueIndex:uq_khatabook_entries_scope_seq,priority:3"`
	OverallSequence int64                 `gorm:"column:overall_sequence;not null;uniqueIndex:uq_khatabook_entries_overall_seq,priority:2"`
	OrderID         *uuid.UUID            `gorm:"column:order_id;type:uuid;index"`
	EntryType       enums.EntryType       `gorm:"column:entry_type;type:text;not null"`
	TransactionType enums.TransactionType `gorm:"column:transaction_type;type:text;not null"`
	Amount          decimal.Decimal       `gorm:"column:amount;type:numeric(14,2);not null"`
	Balance         decimal.Decimal       `gorm:"column:balance;type:numeric(14,2);not null"`
	OverallBalance  decimal.Decimal       `gorm:"column:overall_balance;type:numeric(14,2);not null"`
	Description     string                `gorm:"column:description;not null"`
	ReferenceID     *string               `gorm:"column:reference_id"`
	Metadata        json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (e *KhatabookEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// KhatabookBalance is the tail of one ledger scope. Postings lock it and
// advance Sequence with a compare-and-swap.
type KhatabookBalance struct {
	UserID            uuid.UUID       `gorm:"column:user_id;type:uuid;primaryKey"`
	ScopeKey          string          `gorm:"column:scope_key;primaryKey"`
	Balance           decimal.Decimal `gorm:"column:balance;type:numeric(14,2);not null;default:0"`
	Sequence          int64           `gorm:"column:sequence;not null;default:0"`
	TotalCredits      decimal.Decimal `gorm:"column:total_credits;type:numeric(14,2);not null;default:0"`
	TotalDebits       decimal.Decimal `gorm:"column:total_debits;type:numeric(14,2);not null;default:0"`
	TotalTransactions int64           `gorm:"column:total_transactions;not null;default:0"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
