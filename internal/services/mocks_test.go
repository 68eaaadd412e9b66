package services

import (
	"context"
	"errors"
	"testing"

	"github.com/bankportal/backend/internal/models"
	"github.com/bankportal/backend/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected store failure")

// faultyStore wraps a MemoryStore and fails InsertEntry for the configured
// entry kind, both inside and outside units of work.
type faultyStore struct {
	*store.MemoryStore
	failKind models.TransactionKind
}

func (f *faultyStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return f.MemoryStore.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, &faultyTx{Tx: tx, failKind: f.failKind})
	})
}

type faultyTx struct {
	store.Tx
	failKind models.TransactionKind
}

func (f *faultyTx) InsertEntry(ctx context.Context, entry *models.Transaction) (*models.Transaction, error) {
	if entry.Kind == f.failKind {
		return nil, errInjected
	}
	return f.Tx.InsertEntry(ctx, entry)
}

// MockPublisher records transfer notifications.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishTransfer(ctx context.Context, transfer *models.Transfer) error {
	args := m.Called(ctx, transfer)
	return args.Error(0)
}

func (m *MockPublisher) QueueSettlement(ctx context.Context, transfer *models.Transfer, message []byte) error {
	args := m.Called(ctx, transfer, message)
	return args.Error(0)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// openAccount creates an empty account and funds it with a CREDIT entry so
// the stored balance always equals the sum of its entries.
func openAccount(t *testing.T, st store.Store, ledger *LedgerService, code, balance string) *models.Account {
	t.Helper()
	ctx := context.Background()

	account, err := st.CreateAccount(ctx, &models.Account{
		Code:     code,
		Type:     models.AccountTypeChecking,
		Balance:  decimal.Zero,
		IsActive: true,
	})
	require.NoError(t, err)

	if amount := money(balance); amount.IsPositive() {
		_, err = ledger.PostEntry(ctx, PostEntryRequest{
			AccountID:   account.ID,
			Amount:      amount,
			Kind:        models.KindCredit,
			Description: "Opening balance",
		})
		require.NoError(t, err)
	}

	account, err = st.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	return account
}

func balanceOf(t *testing.T, st store.Store, accountID int64) decimal.Decimal {
	t.Helper()
	account, err := st.GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	return account.Balance
}

// requireLedgerConsistent checks that the balance equals the signed sum of
// the account's entries and that every balance_after is the running total.
func requireLedgerConsistent(t *testing.T, st store.Store, accountID int64) {
	t.Helper()
	ctx := context.Background()

	entries, err := st.ListEntries(ctx, store.EntryFilter{AccountID: accountID})
	require.NoError(t, err)

	running := decimal.Zero
	for i := len(entries) - 1; i >= 0; i-- {
		delta, err := entries[i].SignedAmount()
		require.NoError(t, err)
		running = running.Add(delta)
		require.True(t, running.Equal(entries[i].BalanceAfter),
			"entry %s: balance_after %s, running total %s", entries[i].Reference, entries[i].BalanceAfter, running)
	}

	balance := balanceOf(t, st, accountID)
	require.True(t, running.Equal(balance), "balance %s, sum of entries %s", balance, running)
}
