package services

import (
	"context"
	"fmt"
	"time"

	"github.com/bankportal/backend/internal/models"
	"github.com/bankportal/backend/internal/observability"
	"github.com/bankportal/backend/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccountIntegrity compares an account's stored balance with its entries.
type AccountIntegrity struct {
	AccountID        int64           `json:"account_id"`
	Code             string          `json:"code"`
	StoredBalance    decimal.Decimal `json:"stored_balance"`
	EntrySum         decimal.Decimal `json:"entry_sum"`
	LastBalanceAfter decimal.Decimal `json:"last_balance_after"`
	Entries          int             `json:"entries"`
	Consistent       bool            `json:"consistent"`
}

type IntegrityReport struct {
	CheckedAt  time.Time          `json:"checked_at"`
	Accounts   int                `json:"accounts"`
	Mismatches []AccountIntegrity `json:"mismatches"`
}

type IntegrityService struct {
	store   store.Store
	metrics *observability.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewIntegrityService(st store.Store, metrics *observability.Metrics, log *zap.Logger) *IntegrityService {
	if log == nil {
		log = zap.NewNop()
	}
	return &IntegrityService{store: st, metrics: metrics, log: log.Named("integrity"), now: time.Now}
}

// CheckAccount recomputes the signed sum of the account's entries. The
// account is consistent when that sum, the newest balance_after and the
// stored balance agree.
func (s *IntegrityService) CheckAccount(ctx context.Context, accountID int64) (*AccountIntegrity, error) {
	var result *AccountIntegrity
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		account, err := tx.GetAccount(ctx, accountID)
		if err != nil {
			return fmt.Errorf("account %d: %w", accountID, err)
		}
		entries, err := tx.ListEntries(ctx, store.EntryFilter{AccountID: accountID})
		if err != nil {
			return err
		}
		result, err = compareEntries(account, entries)
		return err
	})
	return result, err
}

func compareEntries(account *models.Account, entries []models.Transaction) (*AccountIntegrity, error) {
	sum := decimal.Zero
	for _, e := range entries {
		delta, err := e.SignedAmount()
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Reference, err)
		}
		sum = sum.Add(delta)
	}

	last := decimal.Zero
	if len(entries) > 0 {
		last = entries[0].BalanceAfter
	}

	return &AccountIntegrity{
		AccountID:        account.ID,
		Code:             account.Code,
		StoredBalance:    account.Balance,
		EntrySum:         sum,
		LastBalanceAfter: last,
		Entries:          len(entries),
		Consistent:       sum.Equal(account.Balance) && last.Equal(account.Balance),
	}, nil
}

// Check runs CheckAccount for every account and publishes the mismatch
// count as a gauge.
func (s *IntegrityService) Check(ctx context.Context) (*IntegrityReport, error) {
	accounts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	report := &IntegrityReport{CheckedAt: s.now().UTC(), Mismatches: []AccountIntegrity{}}
	for _, account := range accounts {
		result, err := s.CheckAccount(ctx, account.ID)
		if err != nil {
			return nil, err
		}
		report.Accounts++
		if !result.Consistent {
			report.Mismatches = append(report.Mismatches, *result)
			s.log.Error("ledger mismatch",
				zap.Int64("account_id", result.AccountID),
				zap.String("stored_balance", models.FormatMoney(result.StoredBalance)),
				zap.String("entry_sum", models.FormatMoney(result.EntrySum)),
				zap.String("last_balance_after", models.FormatMoney(result.LastBalanceAfter)))
		}
	}

	s.metrics.IntegrityChecked(len(report.Mismatches))
	s.log.Info("integrity check finished",
		zap.Int("accounts", report.Accounts),
		zap.Int("mismatches", len(report.Mismatches)))
	return report, nil
}
