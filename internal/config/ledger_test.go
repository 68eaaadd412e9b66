package config

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLedgerConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		viper.Reset()
		cfg, err := LoadLedgerConfig()
		require.NoError(t, err)
		assert.Equal(t, TransferModeAtomic, cfg.TransferMode)
		assert.True(t, decimal.RequireFromString("0.005").Equal(cfg.FeeRate))
		assert.True(t, decimal.RequireFromString("10").Equal(cfg.FeeMax))
		assert.Equal(t, "EUR", cfg.Currency)
	})

	t.Run("overrides", func(t *testing.T) {
		viper.Reset()
		viper.Set("ledger.transfer_mode", "Stepwise")
		viper.Set("ledger.fee_min", "0.25")
		viper.Set("ledger.currency", "gbp")

		cfg, err := LoadLedgerConfig()
		require.NoError(t, err)
		assert.Equal(t, TransferModeStepwise, cfg.TransferMode)
		assert.True(t, decimal.RequireFromString("0.25").Equal(cfg.FeeMin))
		assert.Equal(t, "GBP", cfg.Currency)
	})

	t.Run("invalid mode", func(t *testing.T) {
		viper.Reset()
		viper.Set("ledger.transfer_mode", "eventual")
		_, err := LoadLedgerConfig()
		assert.Error(t, err)
	})

	t.Run("min above max", func(t *testing.T) {
		viper.Reset()
		viper.Set("ledger.fee_min", "20")
		_, err := LoadLedgerConfig()
		assert.Error(t, err)
	})

	viper.Reset()
}
