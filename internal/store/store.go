// Package store persists accounts, ledger entries and transfers.
//
// Business rules live in the services package; the store only enforces
// existence and uniqueness. Every mutation that must be atomic with another
// runs inside WithTx.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/bankportal/backend/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateCode indicates an account with the same external code exists.
	ErrDuplicateCode = errors.New("duplicate account code")
	// ErrOptimisticLock indicates the account row changed since it was read.
	ErrOptimisticLock = errors.New("optimistic lock failed")
)

// AccountStore is the account data access contract.
type AccountStore interface {
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	GetAccountByCode(ctx context.Context, code string) (*models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error)
	// SaveAccount upserts descriptive fields by id. It never writes the balance.
	SaveAccount(ctx context.Context, account *models.Account) (*models.Account, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	DeleteAccount(ctx context.Context, id int64) error

	// LockAccount reads the account and holds its row lock until the
	// surrounding transaction ends.
	LockAccount(ctx context.Context, id int64) (*models.Account, error)
	UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal, version int) error
}

// EntryFilter narrows ListEntries. Zero values mean "no restriction".
type EntryFilter struct {
	AccountID  int64
	TransferID int64
	From       *time.Time
	To         *time.Time
	Limit      int
}

// EntryStore persists immutable ledger entries. There is no update or delete.
type EntryStore interface {
	InsertEntry(ctx context.Context, entry *models.Transaction) (*models.Transaction, error)
	GetEntry(ctx context.Context, id int64) (*models.Transaction, error)
	GetEntryByReference(ctx context.Context, reference string) (*models.Transaction, error)
	// FindReversal returns the entry compensating entryID, or ErrNotFound.
	FindReversal(ctx context.Context, entryID int64) (*models.Transaction, error)
	// ListEntries returns entries newest first.
	ListEntries(ctx context.Context, filter EntryFilter) ([]models.Transaction, error)
	CountEntries(ctx context.Context, accountID int64) (int64, error)
}

// TransferFilter narrows ListTransfers. Zero values mean "no restriction".
type TransferFilter struct {
	AccountID int64
	Status    models.TransferStatus
	Limit     int
}

// TransferStore persists transfers. There is no delete.
type TransferStore interface {
	InsertTransfer(ctx context.Context, transfer *models.Transfer) (*models.Transfer, error)
	UpdateTransfer(ctx context.Context, transfer *models.Transfer) error
	GetTransfer(ctx context.Context, id int64) (*models.Transfer, error)
	LockTransfer(ctx context.Context, id int64) (*models.Transfer, error)
	GetTransferByReference(ctx context.Context, reference string) (*models.Transfer, error)
	// ListTransfers returns transfers newest first.
	ListTransfers(ctx context.Context, filter TransferFilter) ([]models.Transfer, error)
}

// Tx is the set of operations available inside a unit of work.
type Tx interface {
	AccountStore
	EntryStore
	TransferStore
}

// Store is a Tx that can also open units of work. Calls made directly on a
// Store run in their own implicit transaction.
type Store interface {
	Tx
	// WithTx runs fn in a transaction. fn's error rolls everything back.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
