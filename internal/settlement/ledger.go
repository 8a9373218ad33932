package settlement

import (
	"fmt"

	"github.com/angelmondragon/khatabook-backend/internal/ledger"
	"github.com/angelmondragon/khatabook-backend/internal/orders"
	"github.com/angelmondragon/khatabook-backend/pkg/db/models"
	"github.com/angelmondragon/khatabook-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// paymentTransfer credits the owner and debits the retailer for cash handed
// over, settling that much of the liability. The retailer leg is a DEBIT so
// the two parties' entries for the order keep summing to zero.
func paymentTransfer(order *models.Order, amount decimal.Decimal, collector string) ledger.TransferInput {
	orderID := order.ID
	ref := order.ID.String()
	return ledger.TransferInput{
		DebitUserID:  order.RetailerID,
		CreditUserID: order.OwnerID,
		Amount:       amount,
		DebitType:    enums.TransactionPaymentCredit,
		CreditType:   enums.TransactionPaymentReceived,
		OrderID:      &orderID,
		Description:  fmt.Sprintf("Payment for order #%s collected by %s", orders.Ref(order.ID), collector),
		ReferenceID:  &ref,
	}
}

// deltaTransfer posts a signed correction. A positive delta credits the
// owner and debits the retailer; a negative delta does the reverse.
func deltaTransfer(order *models.Order, delta decimal.Decimal, txType enums.TransactionType, description string) ledger.TransferInput {
	orderID := order.ID
	ref := order.ID.String()
	input := ledger.TransferInput{
		DebitUserID:  order.RetailerID,
		CreditUserID: order.OwnerID,
		Amount:       delta.Abs(),
		DebitType:    txType,
		CreditType:   txType,
		OrderID:      &orderID,
		Description:  description,
		ReferenceID:  &ref,
	}
	if delta.IsNegative() {
		input.DebitUserID, input.CreditUserID = order.OwnerID, order.RetailerID
	}
	return input
}
