package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeChecking AccountType = "CHECKING"
	AccountTypeSavings  AccountType = "SAVINGS"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeChecking, AccountTypeSavings:
		return true
	}
	return false
}

// Account is the root ledger entity. Balance is only written by the ledger,
// alongside the entry that explains the change.
type Account struct {
	ID          int64           `json:"id" db:"id"`
	Code        string          `json:"code" db:"code"`
	DisplayName string          `json:"display_name" db:"display_name"`
	Type        AccountType     `json:"type" db:"type"`
	Balance     decimal.Decimal `json:"balance" db:"balance"`
	IsActive    bool            `json:"is_active" db:"is_active"`
	OwnerID     int64           `json:"owner_id" db:"owner_id"`
	Version     int             `json:"version" db:"version"` // for optimistic locking
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}
