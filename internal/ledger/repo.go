package ledger

import (
	"context"
	"time"

	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository manages persistence for khatabook entries and scope tails.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	EnsureTail(ctx context.Context, userID uuid.UUID, scopeKey string) error
	LockTail(ctx context.Context, userID uuid.UUID, scopeKey string) (*models.KhatabookBalance, error)
	FindTail(ctx context.Context, userID uuid.UUID, scopeKey string) (*models.KhatabookBalance, error)
	AdvanceTail(ctx context.Context, tail *models.KhatabookBalance, expectedSequence int64) (bool, error)
	InsertEntry(ctx context.Context, entry *models.KhatabookEntry) error
	ListEntries(ctx context.Context, userID uuid.UUID, filter EntryFilter, limit, offset int) ([]models.KhatabookEntry, int64, error)
	ListTails(ctx context.Context, afterUserID uuid.UUID, afterScope string, limit int) ([]models.KhatabookBalance, error)
	ScopeTotals(ctx context.Context, userID uuid.UUID, scopeKey string) (*ScopeTotals, error)
}

// EntryFilter narrows ListEntries.
type EntryFilter struct {
	EntryType       *enums.EntryType
	TransactionType *enums.TransactionType
	CounterpartyID  *uuid.UUID
	OrderID         *uuid.UUID
}

// ScopeTotals is the entry log aggregated for one scope.
type ScopeTotals struct {
	Credits decimal.Decimal
	Debits  decimal.Decimal
	Count   int64
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) EnsureTail(ctx context.Context, userID uuid.UUID, scopeKey string) error {
	tail := &models.KhatabookBalance{
		UserID:       userID,
		ScopeKey:     scopeKey,
		Balance:      decimal.Zero,
		TotalCredits: decimal.Zero,
		TotalDebits:  decimal.Zero,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(tail).Error
}

func (r *repository) LockTail(ctx context.Context, userID uuid.UUID, scopeKey string) (*models.KhatabookBalance, error) {
	var tail models.KhatabookBalance
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND scope_key = ?", userID, scopeKey).
		First(&tail).Error; err != nil {
		return nil, err
	}
	return &tail, nil
}

func (r *repository) FindTail(ctx context.Context, userID uuid.UUID, scopeKey string) (*models.KhatabookBalance, error) {
	var tail models.KhatabookBalance
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND scope_key = ?", userID, scopeKey).
		First(&tail).Error; err != nil {
		return nil, err
	}
	return &tail, nil
}

func (r *repository) AdvanceTail(ctx context.Context, tail *models.KhatabookBalance, expectedSequence int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.KhatabookBalance{}).
		Where("user_id = ? AND scope_key = ? AND sequence = ?", tail.UserID, tail.ScopeKey, expectedSequence).
		Updates(map[string]any{
			"balance":            tail.Balance,
			"sequence":           tail.Sequence,
			"total_credits":      tail.TotalCredits,
			"total_debits":       tail.TotalDebits,
			"total_transactions": tail.TotalTransactions,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) InsertEntry(ctx context.Context, entry *models.KhatabookEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListEntries(ctx context.Context, userID uuid.UUID, filter EntryFilter, limit, offset int) ([]models.KhatabookEntry, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.KhatabookEntry{}).
		Where("user_id = ?", userID)
	if filter.EntryType != nil {
		query = query.Where("entry_type = ?", *filter.EntryType)
	}
	if filter.TransactionType != nil {
		query = query.Where("transaction_type = ?", *filter.TransactionType)
	}
	if filter.CounterpartyID != nil {
		query = query.Where("counterparty_id = ?", *filter.CounterpartyID)
	}
	if filter.OrderID != nil {
		query = query.Where("order_id = ?", *filter.OrderID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.KhatabookEntry
	if err := query.
		Order("overall_sequence DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *repository) ListTails(ctx context.Context, afterUserID uuid.UUID, afterScope string, limit int) ([]models.KhatabookBalance, error) {
	var tails []models.KhatabookBalance
	query := r.db.WithContext(ctx).Model(&models.KhatabookBalance{})
	if afterUserID != uuid.Nil {
		query = query.Where("user_id > ? OR (user_id = ? AND scope_key > ?)", afterUserID, afterUserID, afterScope)
	}
	if err := query.
		Order("user_id ASC").
		Order("scope_key ASC").
		Limit(limit).
		Find(&tails).Error; err != nil {
		return nil, err
	}
	return tails, nil
}

type entryTypeTotal struct {
	EntryType enums.EntryType
	Total     decimal.Decimal
	Entries   int64
}

// ScopeTotals sums a scope's entries in the database, one row per entry
// type. Sums are rounded to cents since sqlite aggregates numerics as floats.
func (r *repository) ScopeTotals(ctx context.Context, userID uuid.UUID, scopeKey string) (*ScopeTotals, error) {
	var rows []entryTypeTotal
	query := r.db.WithContext(ctx).
		Model(&models.KhatabookEntry{}).
		Select("entry_type, SUM(amount) AS total, COUNT(*) AS entries").
		Where("user_id = ?", userID)
	if scopeKey != AllScope {
		query = query.Where("scope_key = ?", scopeKey)
	}
	if err := query.Group("entry_type").Scan(&rows).Error; err != nil {
		return nil, err
	}

	totals := &ScopeTotals{Credits: decimal.Zero, Debits: decimal.Zero}
	for _, row := range rows {
		switch row.EntryType {
		case enums.EntryTypeCredit:
			totals.Credits = row.Total.Round(2)
		case enums.EntryTypeDebit:
			totals.Debits = row.Total.Round(2)
		}
		totals.Count += row.Entries
	}
	return totals, nil
}
