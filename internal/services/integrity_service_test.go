package services

import (
	"context"
	"testing"

	"github.com/bankportal/backend/internal/models"
	"github.com/bankportal/backend/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegrityService_Check(t *testing.T) {
	ctx := context.Background()
	st, ledger := newTestLedger()
	x := openAccount(t, st, ledger, codeX, "100.00")
	y := openAccount(t, st, ledger, codeY, "0")

	_, err := ledger.PostEntry(ctx, PostEntryRequest{AccountID: x.ID, Amount: money("30"), Kind: models.KindDebit})
	require.NoError(t, err)

	svc := NewIntegrityService(st, observability.NewMetrics(), nil)

	t.Run("consistent ledger", func(t *testing.T) {
		report, err := svc.Check(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Accounts)
		assert.Empty(t, report.Mismatches)

		result, err := svc.CheckAccount(ctx, x.ID)
		require.NoError(t, err)
		assert.True(t, result.Consistent)
		assert.Equal(t, 2, result.Entries)
		assert.Equal(t, "70.00", result.EntrySum.StringFixed(2))
	})

	t.Run("balance written behind the ledger", func(t *testing.T) {
		account, err := st.GetAccount(ctx, x.ID)
		require.NoError(t, err)
		require.NoError(t, st.UpdateBalance(ctx, x.ID, money("75.00"), account.Version))

		report, err := svc.Check(ctx)
		require.NoError(t, err)
		require.Len(t, report.Mismatches, 1)

		drift := report.Mismatches[0]
		assert.Equal(t, x.ID, drift.AccountID)
		assert.Equal(t, "75.00", drift.StoredBalance.StringFixed(2))
		assert.Equal(t, "70.00", drift.EntrySum.StringFixed(2))
		assert.Equal(t, "70.00", drift.LastBalanceAfter.StringFixed(2))
	})

	t.Run("account without entries", func(t *testing.T) {
		result, err := svc.CheckAccount(ctx, y.ID)
		require.NoError(t, err)
		assert.True(t, result.Consistent)
		assert.Zero(t, result.Entries)
	})

	t.Run("missing account", func(t *testing.T) {
		_, err := svc.CheckAccount(ctx, 404)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
