package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/khatabook-backend/internal/ledger"
	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/khatabook-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerPoster posts mirrored khatabook entries between two parties.
type LedgerPoster interface {
	Transfer(ctx context.Context, tx *gorm.DB, input ledger.TransferInput) (*ledger.TransferResult, error)
}

// Ref is the short order reference used in ledger descriptions and notifications.
func Ref(id uuid.UUID) string {
	return strings.ToUpper(id.String()[:8])
}

// LiabilityTransfer records the order total as owed by the owner to the retailer.
func LiabilityTransfer(order *models.Order) ledger.TransferInput {
	orderID := order.ID
	ref := order.ID.String()
	return ledger.TransferInput{
		DebitUserID:  order.OwnerID,
		CreditUserID: order.RetailerID,
		Amount:       order.TotalAmount,
		DebitType:    enums.TransactionOrderDebit,
		CreditType:   enums.TransactionOrderPlaced,
		OrderID:      &orderID,
		Description:  fmt.Sprintf("Order #%s placed", Ref(order.ID)),
		ReferenceID:  &ref,
	}
}

// RefundTransfer reverses the liability of a cancelled order.
func RefundTransfer(order *models.Order) ledger.TransferInput {
	orderID := order.ID
	ref := order.ID.String()
	return ledger.TransferInput{
		DebitUserID:  order.RetailerID,
		CreditUserID: order.OwnerID,
		Amount:       order.TotalAmount,
		DebitType:    enums.TransactionRefund,
		CreditType:   enums.TransactionRefund,
		OrderID:      &orderID,
		Description:  fmt.Sprintf("Order #%s cancelled", Ref(order.ID)),
		ReferenceID:  &ref,
	}
}

// EnsureLiability posts the order liability unless it was already posted and
// reports whether this call posted it. order must be locked by tx.
func EnsureLiability(ctx context.Context, tx *gorm.DB, repo Repository, poster LedgerPoster, order *models.Order) (bool, error) {
	if order.LiabilityPosted {
		return false, nil
	}
	marked, err := repo.WithTx(tx).MarkLiabilityPosted(ctx, order.ID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark liability posted")
	}
	order.LiabilityPosted = true
	if !marked {
		return false, nil
	}
	if _, err := poster.Transfer(ctx, tx, LiabilityTransfer(order)); err != nil {
		return false, err
	}
	return true, nil
}
