package ledger

import (
	"context"
	"testing"

	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareTailFlagsEveryField(t *testing.T) {
	tail := models.KhatabookBalance{
		UserID:            uuid.New(),
		ScopeKey:          AllScope,
		Balance:           amount("10"),
		TotalCredits:      amount("10"),
		TotalDebits:       amount("0"),
		TotalTransactions: 1,
	}

	assert.Empty(t, CompareTail(tail, ScopeTotals{Credits: amount("10"), Debits: amount("0"), Count: 1}))

	drifts := CompareTail(tail, ScopeTotals{Credits: amount("12"), Debits: amount("1"), Count: 2})
	fields := make([]string, 0, len(drifts))
	for _, d := range drifts {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"balance", "total_credits", "total_debits", "total_transactions"}, fields)
}

func TestReconcileBatchFindsTamperedTail(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	owner, retailer := uuid.New(), uuid.New()

	_, err := svc.Transfer(ctx, nil, TransferInput{
		DebitUserID: owner, CreditUserID: retailer, Amount: amount("100"),
		DebitType: enums.TransactionOrderDebit, CreditType: enums.TransactionOrderPlaced,
	})
	require.NoError(t, err)

	repo := NewRepository(client.DB())
	drifts, tails, err := ReconcileBatch(ctx, repo, uuid.Nil, "", 50)
	require.NoError(t, err)
	assert.Len(t, tails, 4)
	assert.Empty(t, drifts)

	require.NoError(t, client.DB().Model(&models.KhatabookBalance{}).
		Where("user_id = ? AND scope_key = ?", owner, AllScope).
		Update("balance", "-90").Error)

	drifts, _, err = ReconcileBatch(ctx, repo, uuid.Nil, "", 50)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, owner, drifts[0].UserID)
	assert.Equal(t, "balance", drifts[0].Field)
	assert.Equal(t, "-100", drifts[0].Computed)
}

func TestScopeTotalsSumsInDatabase(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()
	owner, retailer := uuid.New(), uuid.New()

	postings := []struct {
		entryType enums.EntryType
		txType    enums.TransactionType
		amount    string
	}{
		{enums.EntryTypeCredit, enums.TransactionPaymentReceived, "0.10"},
		{enums.EntryTypeCredit, enums.TransactionPaymentReceived, "0.20"},
		{enums.EntryTypeDebit, enums.TransactionOrderDebit, "1000.05"},
	}
	for _, p := range postings {
		_, err := svc.PostEntry(ctx, nil, PostEntryInput{
			UserID: owner, CounterpartyID: &retailer,
			EntryType: p.entryType, TransactionType: p.txType, Amount: amount(p.amount),
		})
		require.NoError(t, err)
	}
	_, err := svc.PostEntry(ctx, nil, PostEntryInput{
		UserID: owner, EntryType: enums.EntryTypeCredit, TransactionType: enums.TransactionCommission, Amount: amount("5"),
	})
	require.NoError(t, err)

	repo := NewRepository(client.DB())
	scoped, err := repo.ScopeTotals(ctx, owner, retailer.String())
	require.NoError(t, err)
	assert.True(t, scoped.Credits.Equal(amount("0.30")), scoped.Credits.String())
	assert.True(t, scoped.Debits.Equal(amount("1000.05")), scoped.Debits.String())
	assert.Equal(t, int64(3), scoped.Count)

	overall, err := repo.ScopeTotals(ctx, owner, AllScope)
	require.NoError(t, err)
	assert.True(t, overall.Credits.Equal(amount("5.30")), overall.Credits.String())
	assert.Equal(t, int64(4), overall.Count)

	empty, err := repo.ScopeTotals(ctx, uuid.New(), AllScope)
	require.NoError(t, err)
	assert.True(t, empty.Credits.IsZero())
	assert.True(t, empty.Debits.IsZero())
	assert.Zero(t, empty.Count)
}
