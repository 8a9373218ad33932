package enums

import "slices"

// EntryType is the direction of a khatabook posting.
type EntryType string

const (
	EntryTypeCredit EntryType = "CREDIT"
	EntryTypeDebit  EntryType = "DEBIT"
)

var validEntryTypes = []EntryType{
	EntryTypeCredit,
	EntryTypeDebit,
}

// IsValid reports whether the value matches the canonical entry_type enum.
func (e EntryType) IsValid() bool {
	return slices.Contains(validEntryTypes, e)
}

// Opposite returns the mirrored direction used for the counterparty posting.
func (e EntryType) Opposite() EntryType {
	if e == EntryTypeCredit {
		return EntryTypeDebit
	}
	return EntryTypeCredit
}

// ParseEntryType converts raw input into EntryType.
func ParseEntryType(value string) (EntryType, error) {
	return parse(validEntryTypes, "entry type", value)
}

// TransactionType classifies why a khatabook entry was posted.
type TransactionType string

const (
	TransactionOrderPlaced        TransactionType = "ORDER_PLACED"
	TransactionOrderDebit         TransactionType = "ORDER_DEBIT"
	TransactionPaymentReceived    TransactionType = "PAYMENT_RECEIVED"
	TransactionPaymentCredit      TransactionType = "PAYMENT_CREDIT"
	TransactionBalanceClearCredit TransactionType = "BALANCE_CLEAR_CREDIT"
	TransactionPaymentAdjusted    TransactionType = "PAYMENT_ADJUSTED"
	TransactionAdjustment         TransactionType = "ADJUSTMENT"
	TransactionRefund             TransactionType = "REFUND"
	TransactionCommission         TransactionType = "COMMISSION"
)

var validTransactionTypes = []TransactionType{
	TransactionOrderPlaced,
	TransactionOrderDebit,
	TransactionPaymentReceived,
	TransactionPaymentCredit,
	TransactionBalanceClearCredit,
	TransactionPaymentAdjusted,
	TransactionAdjustment,
	TransactionRefund,
	TransactionCommission,
}

// IsValid reports whether the value matches the canonical transaction_type enum.
func (t TransactionType) IsValid() bool {
	return slices.Contains(validTransactionTypes, t)
}

// ParseTransactionType converts raw input into TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	return parse(validTransactionTypes, "transaction type", value)
}
