package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TransferStatus string

const (
	TransferPending   TransferStatus = "PENDING"
	TransferCompleted TransferStatus = "COMPLETED"
	TransferFailed    TransferStatus = "FAILED"
	TransferCancelled TransferStatus = "CANCELLED"
)

// ParseTransferStatus converts a stored or query value into a status.
func ParseTransferStatus(s string) (TransferStatus, error) {
	switch st := TransferStatus(s); st {
	case TransferPending, TransferCompleted, TransferFailed, TransferCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown transfer status %q", s)
}

// Terminal reports whether no transition leaves this status.
func (s TransferStatus) Terminal() bool {
	switch s {
	case TransferCompleted, TransferFailed, TransferCancelled:
		return true
	case TransferPending:
		return false
	}
	return true
}

// CanTransitionTo enforces PENDING -> {COMPLETED, FAILED, CANCELLED}.
func (s TransferStatus) CanTransitionTo(next TransferStatus) bool {
	switch s {
	case TransferPending:
		return next == TransferCompleted || next == TransferFailed || next == TransferCancelled
	case TransferCompleted, TransferFailed, TransferCancelled:
		return false
	}
	return false
}

// Transfer links a source account and, for internal destinations, a
// destination account to the entries it produced.
type Transfer struct {
	ID                   int64           `json:"id" db:"id"`
	Amount               decimal.Decimal `json:"amount" db:"amount"`
	Fee                  decimal.Decimal `json:"fee" db:"fee"`
	SourceCode           string          `json:"source_code" db:"source_code"`
	DestinationCode      string          `json:"destination_code" db:"destination_code"`
	BeneficiaryName      string          `json:"beneficiary_name" db:"beneficiary_name"`
	Description          string          `json:"description" db:"description"`
	Reference            string          `json:"reference" db:"reference"`
	Status               TransferStatus  `json:"status" db:"status"`
	StatusReason         string          `json:"status_reason,omitempty" db:"status_reason"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt          *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
	SourceAccountID      int64           `json:"source_account_id" db:"source_account_id"`
	DestinationAccountID *int64          `json:"destination_account_id,omitempty" db:"destination_account_id"`
}

// External reports whether the destination has no local account.
func (t *Transfer) External() bool {
	return t.DestinationAccountID == nil
}

// Total is the amount leaving the source account.
func (t *Transfer) Total() decimal.Decimal {
	return t.Amount.Add(t.Fee)
}
