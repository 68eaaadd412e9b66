package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bankportal/backend/internal/models"
	"github.com/bankportal/backend/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger() (*store.MemoryStore, *LedgerService) {
	st := store.NewMemoryStore()
	return st, NewLedgerService(st, DefaultFeeSchedule(), nil, nil, nil)
}

func TestLedgerService_PostEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("credit and debit update balance", func(t *testing.T) {
		st, ledger := newTestLedger()
		account := openAccount(t, st, ledger, "FR1420041000000001", "100.00")

		entry, err := ledger.PostEntry(ctx, PostEntryRequest{AccountID: account.ID, Amount: money("40"), Kind: models.KindDebit, Description: "atm"})
		require.NoError(t, err)
		assert.Equal(t, "60.00", entry.BalanceAfter.StringFixed(2))
		assert.True(t, entry.Fee.IsZero())
		assert.NotEmpty(t, entry.Reference)
		assert.Equal(t, "60.00", balanceOf(t, st, account.ID).StringFixed(2))
		requireLedgerConsistent(t, st, account.ID)
	})

	t.Run("transfer out charges the scheduled fee", func(t *testing.T) {
		st, ledger := newTestLedger()
		account := openAccount(t, st, ledger, "FR1420041000000001", "2000.00")

		entry, err := ledger.PostEntry(ctx, PostEntryRequest{AccountID: account.ID, Amount: money("1000"), Kind: models.KindTransferOut})
		require.NoError(t, err)
		assert.Equal(t, "5.00", entry.Fee.StringFixed(2))
		assert.Equal(t, "995.00", entry.BalanceAfter.StringFixed(2))
		requireLedgerConsistent(t, st, account.ID)
	})

	t.Run("fee override replaces schedule", func(t *testing.T) {
		st, ledger := newTestLedger()
		account := openAccount(t, st, ledger, "FR1420041000000001", "2000.00")
		zero := decimal.Zero

		entry, err := ledger.PostEntry(ctx, PostEntryRequest{AccountID: account.ID, Amount: money("1000"), Kind: models.KindTransferOut, FeeOverride: &zero})
		require.NoError(t, err)
		assert.True(t, entry.Fee.IsZero())
		assert.Equal(t, "1000.00", entry.BalanceAfter.StringFixed(2))
	})

	t.Run("fee kind never carries a fee", func(t *testing.T) {
		st, ledger := newTestLedger()
		account := openAccount(t, st, ledger, "FR1420041000000001", "10.00")
		override := money("3")

		entry, err := ledger.PostEntry(ctx, PostEntryRequest{AccountID: account.ID, Amount: money("2.50"), Kind: models.KindFee, FeeOverride: &override})
		require.NoError(t, err)
		assert.True(t, entry.Fee.IsZero())
		assert.Equal(t, "7.50", entry.BalanceAfter.StringFixed(2))
	})

	t.Run("insufficient funds leaves state unchanged", func(t *testing.T) {
		st, ledger := newTestLedger()
		account := openAccount(t, st, ledger, "FR1420041000000001", "100.00")

		_, err := ledger.PostEntry(ctx, PostEntryRequest{AccountID: account.ID, Amount: money("99.80"), Kind: models.KindTransferOut})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInsufficientFunds))

		var funds *InsufficientFundsError
		require.True(t, errors.As(err, &funds))
		assert.Equal(t, "100.30", funds.Required.StringFixed(2))
		assert.Equal(t, "100.00", funds.Available.StringFixed(2))

		n, err := st.CountEntries(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		assert.Equal(t, "100.00", balanceOf(t, st, account.ID).StringFixed(2))
	})

	t.Run("exact balance may be spent", func(t *testing.T) {
		st, ledger := newTestLedger()
		account := openAccount(t, st, ledger, "FR1420041000000001", "25.00")

		entry, err := ledger.PostEntry(ctx, PostEntryRequest{AccountID: account.ID, Amount: money("25"), Kind: models.KindDebit})
		require.NoError(t, err)
		assert.True(t, entry.BalanceAfter.IsZero())
	})

	t.Run("validation", func(t *testing.T) {
		_, ledger := newTestLedger()

		_, err := ledger.PostEntry(ctx, PostEntryRequest{AccountID: 1, Amount: decimal.Zero, Kind: models.KindCredit})
		assert.ErrorIs(t, err, ErrValidation)

		_, err = ledger.PostEntry(ctx, PostEntryRequest{AccountID: 1, Amount: money("1"), Kind: "BONUS"})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("sub-cent amounts are rejected", func(t *testing.T) {
		st, ledger := newTestLedger()
		account := openAccount(t, st, ledger, "FR1420041000000001", "10.00")

		_, err := ledger.PostEntry(ctx, PostEntryRequest{AccountID: account.ID, Amount: money("0.004"), Kind: models.KindCredit})
		require.ErrorIs(t, err, ErrValidation)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Contains(t, verr.Fields, "amount")

		override := money("0.105")
		_, err = ledger.PostEntry(ctx, PostEntryRequest{AccountID: account.ID, Amount: money("1"), Kind: models.KindTransferOut, FeeOverride: &override})
		require.ErrorIs(t, err, ErrValidation)
		require.True(t, errors.As(err, &verr))
		assert.Contains(t, verr.Fields, "fee")

		err = st.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
			_, err := ledger.postEntryTx(ctx, tx, PostEntryRequest{AccountID: account.ID, Amount: money("0.001"), Kind: models.KindDebit})
			return err
		})
		assert.ErrorIs(t, err, ErrValidation)

		entry, err := ledger.PostEntry(ctx, PostEntryRequest{AccountID: account.ID, Amount: money("1.500"), Kind: models.KindCredit})
		require.NoError(t, err)
		assert.Equal(t, "11.50", entry.BalanceAfter.StringFixed(2))
		requireLedgerConsistent(t, st, account.ID)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, ledger := newTestLedger()

		_, err := ledger.PostEntry(ctx, PostEntryRequest{AccountID: 404, Amount: money("1"), Kind: models.KindCredit})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLedgerService_PostEntryConcurrentDebits(t *testing.T) {
	ctx := context.Background()
	st, ledger := newTestLedger()
	account := openAccount(t, st, ledger, "FR1420041000000001", "100.00")

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.PostEntry(ctx, PostEntryRequest{AccountID: account.ID, Amount: money("10"), Kind: models.KindDebit})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.True(t, balanceOf(t, st, account.ID).IsZero())
	requireLedgerConsistent(t, st, account.ID)
}

func TestLedgerService_Reverse(t *testing.T) {
	ctx := context.Background()

	t.Run("credit becomes debit", func(t *testing.T) {
		st, ledger := newTestLedger()
		account := openAccount(t, st, ledger, "FR1420041000000001", "0")

		credit, err := ledger.PostEntry(ctx, PostEntryRequest{AccountID: account.ID, Amount: money("75.25"), Kind: models.KindCredit})
		require.NoError(t, err)

		reversal, err := ledger.Reverse(ctx, credit.ID, "duplicate deposit")
		require.NoError(t, err)
		assert.Equal(t, models.KindDebit, reversal.Kind)
		assert.True(t, credit.Amount.Equal(reversal.Amount))
		assert.Equal(t, credit.AccountID, reversal.AccountID)
		require.NotNil(t, reversal.ReversesID)
		assert.Equal(t, credit.ID, *reversal.ReversesID)
		assert.Equal(t, "Reversal of transaction "+credit.Reference+": duplicate deposit", reversal.Description)
		assert.True(t, balanceOf(t, st, account.ID).IsZero())

		stored, err := ledger.GetEntry(ctx, credit.ID)
		require.NoError(t, err)
		assert.Equal(t, *credit, *stored)
		requireLedgerConsistent(t, st, account.ID)
	})

	t.Run("transfer out is refunded without fee", func(t *testing.T) {
		st, ledger := newTestLedger()
		account := openAccount(t, st, ledger, "FR1420041000000001", "2000.00")

		out, err := ledger.PostEntry(ctx, PostEntryRequest{AccountID: account.ID, Amount: money("1000"), Kind: models.KindTransferOut})
		require.NoError(t, err)

		reversal, err := ledger.Reverse(ctx, out.ID, "recalled")
		require.NoError(t, err)
		assert.Equal(t, models.KindTransferIn, reversal.Kind)
		assert.True(t, reversal.Fee.IsZero())
		assert.Equal(t, "1995.00", balanceOf(t, st, account.ID).StringFixed(2))
	})

	t.Run("fee is not reversible", func(t *testing.T) {
		st, ledger := newTestLedger()
		account := openAccount(t, st, ledger, "FR1420041000000001", "10.00")

		fee, err := ledger.PostEntry(ctx, PostEntryRequest{AccountID: account.ID, Amount: money("2.50"), Kind: models.KindFee})
		require.NoError(t, err)

		_, err = ledger.Reverse(ctx, fee.ID, "goodwill")
		assert.ErrorIs(t, err, ErrNotReversible)
		assert.Equal(t, "7.50", balanceOf(t, st, account.ID).StringFixed(2))
	})

	t.Run("second reversal is rejected", func(t *testing.T) {
		st, ledger := newTestLedger()
		account := openAccount(t, st, ledger, "FR1420041000000001", "50.00")

		debit, err := ledger.PostEntry(ctx, PostEntryRequest{AccountID: account.ID, Amount: money("20"), Kind: models.KindDebit})
		require.NoError(t, err)

		_, err = ledger.Reverse(ctx, debit.ID, "first")
		require.NoError(t, err)
		_, err = ledger.Reverse(ctx, debit.ID, "again")
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Equal(t, "50.00", balanceOf(t, st, account.ID).StringFixed(2))
	})

	t.Run("reversal needs funds", func(t *testing.T) {
		st, ledger := newTestLedger()
		account := openAccount(t, st, ledger, "FR1420041000000001", "0")

		credit, err := ledger.PostEntry(ctx, PostEntryRequest{AccountID: account.ID, Amount: money("30"), Kind: models.KindCredit})
		require.NoError(t, err)
		_, err = ledger.PostEntry(ctx, PostEntryRequest{AccountID: account.ID, Amount: money("25"), Kind: models.KindDebit})
		require.NoError(t, err)

		_, err = ledger.Reverse(ctx, credit.ID, "chargeback")
		assert.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("missing entry", func(t *testing.T) {
		_, ledger := newTestLedger()
		_, err := ledger.Reverse(ctx, 999, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLedgerService_DeleteEntry(t *testing.T) {
	_, ledger := newTestLedger()
	err := ledger.DeleteEntry(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
}

func TestLedgerService_ListAccountEntries(t *testing.T) {
	ctx := context.Background()
	st, ledger := newTestLedger()
	account := openAccount(t, st, ledger, "FR1420041000000001", "10.00")

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return base }
	_, err := ledger.PostEntry(ctx, PostEntryRequest{AccountID: account.ID, Amount: money("1"), Kind: models.KindDebit})
	require.NoError(t, err)

	ledger.now = func() time.Time { return base.Add(48 * time.Hour) }
	_, err = ledger.PostEntry(ctx, PostEntryRequest{AccountID: account.ID, Amount: money("2"), Kind: models.KindDebit})
	require.NoError(t, err)

	from, to := base.Add(-time.Hour), base.Add(time.Hour)
	entries, err := ledger.ListAccountEntries(ctx, account.ID, &from, &to, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "1.00", entries[0].Amount.StringFixed(2))

	_, err = ledger.ListAccountEntries(ctx, account.ID, &to, &from, 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ledger.ListAccountEntries(ctx, 999, nil, nil, 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLedgerService_PostEntryPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ledger := NewLedgerService(store.NewPostgresStore(db), DefaultFeeSchedule(), nil, nil, nil)
	accountCols := []string{"id", "code", "display_name", "type", "balance", "is_active", "owner_id", "version", "created_at", "updated_at"}
	now := time.Now()

	t.Run("successful debit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .+ FROM accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(accountCols).
				AddRow(1, "FR1420041000000001", "Main", "CHECKING", "100.00", true, 1, 1, now, now))
		mock.ExpectQuery("INSERT INTO transactions").
			WithArgs(money("40"), "DEBIT", sqlmock.AnyArg(), decimal.Zero, sqlmock.AnyArg(), "atm", money("60"), int64(1), nil, nil).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
		mock.ExpectExec("UPDATE accounts SET balance = \\$1, version = version \\+ 1, updated_at = \\$2 WHERE id = \\$3 AND version = \\$4").
			WithArgs(money("60"), sqlmock.AnyArg(), int64(1), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		entry, err := ledger.PostEntry(context.Background(), PostEntryRequest{AccountID: 1, Amount: money("40"), Kind: models.KindDebit, Description: "atm"})
		require.NoError(t, err)
		assert.Equal(t, int64(10), entry.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance rolls back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .+ FROM accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(accountCols).
				AddRow(1, "FR1420041000000001", "Main", "CHECKING", "10.00", true, 1, 1, now, now))
		mock.ExpectRollback()

		_, err := ledger.PostEntry(context.Background(), PostEntryRequest{AccountID: 1, Amount: money("40"), Kind: models.KindDebit})
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("optimistic lock failure rolls back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT .+ FROM accounts WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows(accountCols).
				AddRow(1, "FR1420041000000001", "Main", "CHECKING", "100.00", true, 1, 1, now, now))
		mock.ExpectQuery("INSERT INTO transactions").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
		mock.ExpectExec("UPDATE accounts SET balance").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := ledger.PostEntry(context.Background(), PostEntryRequest{AccountID: 1, Amount: money("40"), Kind: models.KindDebit})
		assert.ErrorIs(t, err, store.ErrOptimisticLock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
