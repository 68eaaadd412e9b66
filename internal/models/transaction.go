package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one immutable ledger entry against a single account.
type Transaction struct {
	ID           int64           `json:"id" db:"id"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Kind         TransactionKind `json:"kind" db:"kind"`
	PostedAt     time.Time       `json:"posted_at" db:"posted_at"`
	Fee          decimal.Decimal `json:"fee" db:"fee"`
	Reference    string          `json:"reference" db:"reference"`
	Description  string          `json:"description" db:"description"`
	BalanceAfter decimal.Decimal `json:"balance_after" db:"balance_after"`
	AccountID    int64           `json:"account_id" db:"account_id"`
	TransferID   *int64          `json:"transfer_id,omitempty" db:"transfer_id"`
	ReversesID   *int64          `json:"reverses_id,omitempty" db:"reverses_id"`
}

// SignedAmount is the balance change this entry applied.
func (t *Transaction) SignedAmount() (decimal.Decimal, error) {
	return t.Kind.Delta(t.Amount, t.Fee)
}
