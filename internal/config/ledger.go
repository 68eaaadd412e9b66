package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// TransferMode selects how the entries of a transfer are committed.
type TransferMode string

const (
	// TransferModeAtomic posts every entry of a transfer in one unit of work.
	TransferModeAtomic TransferMode = "atomic"
	// TransferModeStepwise posts each entry in its own unit of work. A failure
	// part way leaves the earlier entries in place.
	TransferModeStepwise TransferMode = "stepwise"
)

func ParseTransferMode(s string) (TransferMode, error) {
	switch m := TransferMode(strings.ToLower(strings.TrimSpace(s))); m {
	case TransferModeAtomic, TransferModeStepwise:
		return m, nil
	}
	return "", fmt.Errorf("unknown transfer mode %q", s)
}

type LedgerConfig struct {
	Currency        string
	FeeRate         decimal.Decimal
	FeeMin          decimal.Decimal
	FeeMax          decimal.Decimal
	TransferMode    TransferMode
	SettlementBIC   string
	SettlementName  string
	EventsQueue     string
	SettlementQueue string
}

// DefaultLedgerConfig matches the published fee schedule: 0.5%, at least
// 0.10 and at most 10.00.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		Currency:        "EUR",
		FeeRate:         decimal.RequireFromString("0.005"),
		FeeMin:          decimal.RequireFromString("0.10"),
		FeeMax:          decimal.RequireFromString("10.00"),
		TransferMode:    TransferModeAtomic,
		SettlementBIC:   "BPRTFRPPXXX",
		SettlementName:  "Bank Portal",
		EventsQueue:     "transfer_events",
		SettlementQueue: "settlement_queue",
	}
}

func LoadLedgerConfig() (LedgerConfig, error) {
	def := DefaultLedgerConfig()
	viper.SetDefault("ledger.currency", def.Currency)
	viper.SetDefault("ledger.fee_rate", def.FeeRate.String())
	viper.SetDefault("ledger.fee_min", def.FeeMin.StringFixed(2))
	viper.SetDefault("ledger.fee_max", def.FeeMax.StringFixed(2))
	viper.SetDefault("ledger.transfer_mode", string(def.TransferMode))
	viper.SetDefault("ledger.settlement_bic", def.SettlementBIC)
	viper.SetDefault("ledger.settlement_name", def.SettlementName)
	viper.SetDefault("ledger.events_queue", def.EventsQueue)
	viper.SetDefault("ledger.settlement_queue", def.SettlementQueue)

	cfg := LedgerConfig{
		Currency:        strings.ToUpper(viper.GetString("ledger.currency")),
		SettlementBIC:   viper.GetString("ledger.settlement_bic"),
		SettlementName:  viper.GetString("ledger.settlement_name"),
		EventsQueue:     viper.GetString("ledger.events_queue"),
		SettlementQueue: viper.GetString("ledger.settlement_queue"),
	}

	var err error
	if cfg.FeeRate, err = decimal.NewFromString(viper.GetString("ledger.fee_rate")); err != nil {
		return cfg, fmt.Errorf("ledger.fee_rate: %w", err)
	}
	if cfg.FeeMin, err = decimal.NewFromString(viper.GetString("ledger.fee_min")); err != nil {
		return cfg, fmt.Errorf("ledger.fee_min: %w", err)
	}
	if cfg.FeeMax, err = decimal.NewFromString(viper.GetString("ledger.fee_max")); err != nil {
		return cfg, fmt.Errorf("ledger.fee_max: %w", err)
	}
	if cfg.FeeMin.GreaterThan(cfg.FeeMax) {
		return cfg, fmt.Errorf("ledger.fee_min %s exceeds ledger.fee_max %s", cfg.FeeMin, cfg.FeeMax)
	}
	if cfg.TransferMode, err = ParseTransferMode(viper.GetString("ledger.transfer_mode")); err != nil {
		return cfg, err
	}
	return cfg, nil
}
