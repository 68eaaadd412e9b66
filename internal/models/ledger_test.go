package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionKind_Delta(t *testing.T) {
	amount := decimal.RequireFromString("100.00")
	fee := decimal.RequireFromString("0.50")

	cases := map[TransactionKind]string{
		KindCredit:      "100",
		KindTransferIn:  "100",
		KindDebit:       "-100.5",
		KindTransferOut: "-100.5",
		KindFee:         "-100",
	}

	for _, kind := range TransactionKinds {
		t.Run(string(kind), func(t *testing.T) {
			want, ok := cases[kind]
			require.True(t, ok, "kind %s has no expected delta", kind)

			delta, err := kind.Delta(amount, fee)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(want).Equal(delta), "got %s", delta)
			assert.Equal(t, delta.IsNegative(), kind.Subtracting())
		})
	}

	t.Run("unknown kind", func(t *testing.T) {
		_, err := TransactionKind("BOGUS").Delta(amount, fee)
		assert.Error(t, err)
	})
}

func TestTransactionKind_Reversal(t *testing.T) {
	pairs := map[TransactionKind]TransactionKind{
		KindCredit:      KindDebit,
		KindDebit:       KindCredit,
		KindTransferIn:  KindTransferOut,
		KindTransferOut: KindTransferIn,
	}
	for from, to := range pairs {
		got, ok := from.Reversal()
		assert.True(t, ok)
		assert.Equal(t, to, got)
	}

	_, ok := KindFee.Reversal()
	assert.False(t, ok)
}

func TestParseTransactionKind(t *testing.T) {
	k, err := ParseTransactionKind("FEE")
	assert.NoError(t, err)
	assert.Equal(t, KindFee, k)

	_, err = ParseTransactionKind("fee")
	assert.Error(t, err)
}

func TestTransferStatus_CanTransitionTo(t *testing.T) {
	all := []TransferStatus{TransferPending, TransferCompleted, TransferFailed, TransferCancelled}

	for _, from := range all {
		for _, to := range all {
			want := from == TransferPending && to != TransferPending
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.False(t, TransferPending.Terminal())
	assert.True(t, TransferCompleted.Terminal())
	assert.True(t, TransferFailed.Terminal())
	assert.True(t, TransferCancelled.Terminal())
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "997.50", FormatMoney(decimal.RequireFromString("997.5")))
	assert.Equal(t, "0.10", FormatMoney(decimal.RequireFromString("0.1")))
	assert.Equal(t, "2.51", FormatMoney(RoundMoney(decimal.RequireFromString("2.505"))))
}

func TestFitsMoneyScale(t *testing.T) {
	assert.True(t, FitsMoneyScale(decimal.RequireFromString("12.50")))
	assert.True(t, FitsMoneyScale(decimal.RequireFromString("1.500")))
	assert.True(t, FitsMoneyScale(decimal.RequireFromString("7")))
	assert.False(t, FitsMoneyScale(decimal.RequireFromString("0.001")))
	assert.False(t, FitsMoneyScale(decimal.RequireFromString("2.505")))
}
