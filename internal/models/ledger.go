package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TransactionKind classifies a ledger entry by its effect on the owning account.
type TransactionKind string

const (
	KindCredit      TransactionKind = "CREDIT"
	KindDebit       TransactionKind = "DEBIT"
	KindTransferIn  TransactionKind = "TRANSFER_IN"
	KindTransferOut TransactionKind = "TRANSFER_OUT"
	KindFee         TransactionKind = "FEE"
)

// TransactionKinds lists every kind the ledger knows about.
var TransactionKinds = []TransactionKind{
	KindCredit,
	KindDebit,
	KindTransferIn,
	KindTransferOut,
	KindFee,
}

// ParseTransactionKind converts a stored or user supplied value into a kind.
func ParseTransactionKind(s string) (TransactionKind, error) {
	k := TransactionKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown transaction kind %q", s)
	}
	return k, nil
}

// Valid reports whether k is one of the closed set of kinds.
func (k TransactionKind) Valid() bool {
	switch k {
	case KindCredit, KindDebit, KindTransferIn, KindTransferOut, KindFee:
		return true
	}
	return false
}

// Subtracting reports whether an entry of this kind lowers the balance.
func (k TransactionKind) Subtracting() bool {
	switch k {
	case KindDebit, KindTransferOut, KindFee:
		return true
	case KindCredit, KindTransferIn:
		return false
	}
	return false
}

// Delta returns the signed balance change of an entry of this kind.
// Credits add amount, debits and outgoing transfers subtract amount+fee,
// fees subtract amount only.
func (k TransactionKind) Delta(amount, fee decimal.Decimal) (decimal.Decimal, error) {
	switch k {
	case KindCredit, KindTransferIn:
		return amount, nil
	case KindDebit, KindTransferOut:
		return amount.Add(fee).Neg(), nil
	case KindFee:
		return amount.Neg(), nil
	}
	return decimal.Zero, fmt.Errorf("unknown transaction kind %q", k)
}

// Reversal returns the kind that compensates an entry of kind k.
// FEE entries have no compensating kind.
func (k TransactionKind) Reversal() (TransactionKind, bool) {
	switch k {
	case KindCredit:
		return KindDebit, true
	case KindDebit:
		return KindCredit, true
	case KindTransferIn:
		return KindTransferOut, true
	case KindTransferOut:
		return KindTransferIn, true
	case KindFee:
		return "", false
	}
	return "", false
}
