package ledger

import (
	"context"
	"fmt"

	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/google/uuid"
)

// Drift describes a tail field that disagrees with the entry log.
type Drift struct {
	UserID   uuid.UUID
	ScopeKey string
	Field    string
	Stored   string
	Computed string
}

func (d Drift) String() string {
	return fmt.Sprintf("user %s scope %s: %s stored=%s computed=%s", d.UserID, d.ScopeKey, d.Field, d.Stored, d.Computed)
}

// CompareTail checks a stored tail against totals recomputed from entries.
func CompareTail(tail models.KhatabookBalance, totals ScopeTotals) []Drift {
	var drifts []Drift
	add := func(field, stored, computed string) {
		drifts = append(drifts, Drift{
			UserID:   tail.UserID,
			ScopeKey: tail.ScopeKey,
			Field:    field,
			Stored:   stored,
			Computed: computed,
		})
	}

	balance := totals.Credits.Sub(totals.Debits)
	if !tail.Balance.Equal(balance) {
		add("balance", tail.Balance.String(), balance.String())
	}
	if !tail.TotalCredits.Equal(totals.Credits) {
		add("total_credits", tail.TotalCredits.String(), totals.Credits.String())
	}
	if !tail.TotalDebits.Equal(totals.Debits) {
		add("total_debits", tail.TotalDebits.String(), totals.Debits.String())
	}
	if tail.TotalTransactions != totals.Count {
		add("total_transactions", fmt.Sprint(tail.TotalTransactions), fmt.Sprint(totals.Count))
	}
	return drifts
}

// ReconcileBatch verifies up to limit tails after the given cursor and
// returns the drifts plus the cursor for the next batch. An empty tails
// result means the walk is complete.
func ReconcileBatch(ctx context.Context, repo Repository, afterUserID uuid.UUID, afterScope string, limit int) ([]Drift, []models.KhatabookBalance, error) {
	tails, err := repo.ListTails(ctx, afterUserID, afterScope, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("list khatabook tails: %w", err)
	}
	var drifts []Drift
	for _, tail := range tails {
		totals, err := repo.ScopeTotals(ctx, tail.UserID, tail.ScopeKey)
		if err != nil {
			return drifts, tails, fmt.Errorf("totals for %s/%s: %w", tail.UserID, tail.ScopeKey, err)
		}
		drifts = append(drifts, CompareTail(tail, *totals)...)
	}
	return drifts, tails, nil
}
