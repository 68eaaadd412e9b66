package services

import (
	"github.com/bankportal/backend/internal/config"
	"github.com/bankportal/backend/internal/models"
	"github.com/shopspring/decimal"
)

// FeeSchedule maps a transfer amount to its fee: amount × rate rounded half
// up to cents, clamped to [Min, Max]. Non-positive amounts carry no fee.
type FeeSchedule struct {
	Rate decimal.Decimal
	Min  decimal.Decimal
	Max  decimal.Decimal
}

func NewFeeSchedule(cfg config.LedgerConfig) FeeSchedule {
	return FeeSchedule{Rate: cfg.FeeRate, Min: cfg.FeeMin, Max: cfg.FeeMax}
}

func DefaultFeeSchedule() FeeSchedule {
	return NewFeeSchedule(config.DefaultLedgerConfig())
}

func (f FeeSchedule) Fee(amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	fee := models.RoundMoney(amount.Mul(f.Rate))
	if fee.LessThan(f.Min) {
		return f.Min
	}
	if fee.GreaterThan(f.Max) {
		return f.Max
	}
	return fee
}
