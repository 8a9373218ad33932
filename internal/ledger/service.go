package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/khatabook-backend/pkg/db"
	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
	"github.com/angelmondragon/khatabook-backend/pkg/logger"
	"github.com/angelmondragon/khatabook-backend/pkg/metrics"
	"github.com/angelmondragon/khatabook-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	// AllScope keys the user-wide tail and entries that have no counterparty.
	AllScope = "all"

	recentTransactionsLimit = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the khatabook operations.
//
// PostEntry and Transfer join the caller's transaction when tx is non-nil and
// open their own otherwise. Each posting locks the scope tails it touches, so
// concurrent postings on the same (user, counterparty) pair serialize.
type Service interface {
	PostEntry(ctx context.Context, tx *gorm.DB, input PostEntryInput) (*models.KhatabookEntry, error)
	Transfer(ctx context.Context, tx *gorm.DB, input TransferInput) (*TransferResult, error)
	GetSummary(ctx context.Context, userID uuid.UUID, counterpartyID *uuid.UUID) (*Summary, error)
	GetEntries(ctx context.Context, userID uuid.UUID, query EntryQuery) (*EntryPage, error)
	GetOutstandingBalance(ctx context.Context, userID, counterpartyID uuid.UUID) (decimal.Decimal, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	metrics *metrics.LedgerMetrics
	logg    *logger.Logger
}

// NewService wires a ledger service with the provided dependencies. metrics may be nil.
func NewService(repo Repository, tx txRunner, m *metrics.LedgerMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, metrics: m, logg: logg}, nil
}

// ScopeKey returns the tail key for a counterparty, or AllScope when nil.
func ScopeKey(counterpartyID *uuid.UUID) string {
	if counterpartyID == nil {
		return AllScope
	}
	return counterpartyID.String()
}

func (s *service) PostEntry(ctx context.Context, tx *gorm.DB, input PostEntryInput) (*models.KhatabookEntry, error) {
	if err := validatePosting(&input); err != nil {
		return nil, err
	}

	var entry *models.KhatabookEntry
	err := s.inTx(ctx, tx, func(tx *gorm.DB) error {
		var err error
		entry, err = s.post(ctx, s.repo.WithTx(tx), input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) Transfer(ctx context.Context, tx *gorm.DB, input TransferInput) (*TransferResult, error) {
	if input.DebitUserID == uuid.Nil || input.CreditUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer requires both parties")
	}
	if input.DebitUserID == input.CreditUserID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer parties must differ")
	}

	debitUser, creditUser := input.DebitUserID, input.CreditUserID
	legs := []PostEntryInput{
		{
			UserID:          debitUser,
			CounterpartyID:  &creditUser,
			OrderID:         input.OrderID,
			EntryType:       enums.EntryTypeDebit,
			TransactionType: input.DebitType,
			Amount:          input.Amount,
			Description:     input.Description,
			ReferenceID:     input.ReferenceID,
			Metadata:        input.Metadata,
		},
		{
			UserID:          creditUser,
			CounterpartyID:  &debitUser,
			OrderID:         input.OrderID,
			EntryType:       enums.EntryTypeCredit,
			TransactionType: input.CreditType,
			Amount:          input.Amount,
			Description:     input.Description,
			ReferenceID:     input.ReferenceID,
			Metadata:        input.Metadata,
		},
	}
	for i := range legs {
		if err := validatePosting(&legs[i]); err != nil {
			return nil, err
		}
	}

	// Tails are locked in user id order so opposite transfers between the same
	// pair cannot deadlock.
	order := []int{0, 1}
	sort.Slice(order, func(i, j int) bool {
		return legs[order[i]].UserID.String() < legs[order[j]].UserID.String()
	})

	result := &TransferResult{}
	err := s.inTx(ctx, tx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, idx := range order {
			entry, err := s.post(ctx, repo, legs[idx])
			if err != nil {
				return err
			}
			if idx == 0 {
				result.Debit = entry
			} else {
				result.Credit = entry
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) GetSummary(ctx context.Context, userID uuid.UUID, counterpartyID *uuid.UUID) (*Summary, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	summary := &Summary{
		UserID:         userID,
		CounterpartyID: counterpartyID,
		CurrentBalance: decimal.Zero,
		TotalCredits:   decimal.Zero,
		TotalDebits:    decimal.Zero,
	}

	tail, err := s.repo.FindTail(ctx, userID, ScopeKey(counterpartyID))
	switch {
	case err == nil:
		summary.CurrentBalance = tail.Balance
		summary.TotalCredits = tail.TotalCredits
		summary.TotalDebits = tail.TotalDebits
		summary.TotalTransactions = tail.TotalTransactions
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load khatabook summary")
	}

	recent, _, err := s.repo.ListEntries(ctx, userID, EntryFilter{CounterpartyID: counterpartyID}, recentTransactionsLimit, 0)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recent transactions")
	}
	summary.RecentTransactions = toEntries(recent)
	return summary, nil
}

func (s *service) GetEntries(ctx context.Context, userID uuid.UUID, query EntryQuery) (*EntryPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if query.EntryType != nil && !query.EntryType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid entry type")
	}
	if query.TransactionType != nil && !query.TransactionType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction type")
	}

	page := pagination.Page{Page: query.Page, Limit: query.Limit}.Normalize()
	filter := EntryFilter{
		EntryType:       query.EntryType,
		TransactionType: query.TransactionType,
		CounterpartyID:  query.CounterpartyID,
		OrderID:         query.OrderID,
	}
	rows, total, err := s.repo.ListEntries(ctx, userID, filter, page.Limit, page.Offset())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list khatabook entries")
	}
	return &EntryPage{
		Entries:    toEntries(rows),
		Page:       page.Page,
		Limit:      page.Limit,
		Total:      total,
		TotalPages: page.TotalPages(total),
	}, nil
}

func (s *service) GetOutstandingBalance(ctx context.Context, userID, counterpartyID uuid.UUID) (decimal.Decimal, error) {
	if userID == uuid.Nil || counterpartyID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "user and counterparty ids required")
	}
	tail, err := s.repo.FindTail(ctx, userID, counterpartyID.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load outstanding balance")
	}
	return tail.Balance, nil
}

func (s *service) inTx(ctx context.Context, tx *gorm.DB, fn func(tx *gorm.DB) error) error {
	if tx != nil {
		return fn(tx)
	}
	return s.tx.WithTx(ctx, fn)
}

// post locks the scope tail (and the user-wide tail), stamps the new entry
// with both running balances and advances each tail with a compare-and-swap
// on its sequence.
func (s *service) post(ctx context.Context, repo Repository, input PostEntryInput) (*models.KhatabookEntry, error) {
	scopes := []string{AllScope}
	if input.CounterpartyID != nil {
		scopes = []string{input.CounterpartyID.String(), AllScope}
	}

	tails := make([]*models.KhatabookBalance, 0, len(scopes))
	for _, scope := range scopes {
		if err := repo.EnsureTail(ctx, input.UserID, scope); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure khatabook tail")
		}
		tail, err := repo.LockTail(ctx, input.UserID, scope)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock khatabook tail")
		}
		tails = append(tails, tail)
	}

	signed := signedAmount(input.EntryType, input.Amount)
	scopeTail := tails[0]
	overallTail := tails[len(tails)-1]

	entry := &models.KhatabookEntry{
		UserID:          input.UserID,
		CounterpartyID:  input.CounterpartyID,
		ScopeKey:        scopeTail.ScopeKey,
		Sequence:        scopeTail.Sequence + 1,
		OverallSequence: overallTail.Sequence + 1,
		OrderID:         input.OrderID,
		EntryType:       input.EntryType,
		TransactionType: input.TransactionType,
		Amount:          input.Amount,
		Balance:         scopeTail.Balance.Add(signed),
		OverallBalance:  overallTail.Balance.Add(signed),
		Description:     input.Description,
		ReferenceID:     input.ReferenceID,
		Metadata:        input.Metadata,
	}
	if err := repo.InsertEntry(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "") {
			s.metrics.IncConflict()
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "khatabook scope advanced concurrently; retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert khatabook entry")
	}

	for _, tail := range tails {
		expected := tail.Sequence
		applyToTail(tail, input.EntryType, input.Amount)
		ok, err := repo.AdvanceTail(ctx, tail, expected)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance khatabook tail")
		}
		if !ok {
			s.metrics.IncConflict()
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "khatabook scope advanced concurrently; retry")
		}
	}

	s.metrics.IncPosting(string(input.EntryType), string(input.TransactionType))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"user_id":          input.UserID.String(),
		"scope":            scopeTail.ScopeKey,
		"entry_type":       string(input.EntryType),
		"transaction_type": string(input.TransactionType),
		"amount":           input.Amount.String(),
		"balance":          entry.Balance.String(),
	})
	s.logg.Debug(logCtx, "khatabook entry posted")
	return entry, nil
}

func validatePosting(input *PostEntryInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.CounterpartyID != nil && *input.CounterpartyID == input.UserID {
		return pkgerrors.New(pkgerrors.CodeValidation, "counterparty must differ from ledger owner")
	}
	if !input.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if !input.Amount.Equal(input.Amount.Round(2)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount supports at most two decimal places")
	}
	if !input.EntryType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid entry type")
	}
	if !input.TransactionType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction type")
	}
	input.Description = strings.TrimSpace(input.Description)
	if input.Description == "" {
		input.Description = strings.ToLower(strings.ReplaceAll(string(input.TransactionType), "_", " "))
	}
	return nil
}

func signedAmount(entryType enums.EntryType, amount decimal.Decimal) decimal.Decimal {
	if entryType == enums.EntryTypeDebit {
		return amount.Neg()
	}
	return amount
}

func applyToTail(tail *models.KhatabookBalance, entryType enums.EntryType, amount decimal.Decimal) {
	tail.Balance = tail.Balance.Add(signedAmount(entryType, amount))
	tail.Sequence++
	tail.TotalTransactions++
	if entryType == enums.EntryTypeCredit {
		tail.TotalCredits = tail.TotalCredits.Add(amount)
	} else {
		tail.TotalDebits = tail.TotalDebits.Add(amount)
	}
}
