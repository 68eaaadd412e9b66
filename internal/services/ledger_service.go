package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bankportal/backend/internal/audit"
	"github.com/bankportal/backend/internal/models"
	"github.com/bankportal/backend/internal/observability"
	"github.com/bankportal/backend/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PostEntryRequest describes one posting against a single account.
type PostEntryRequest struct {
	AccountID   int64
	Amount      decimal.Decimal
	Kind        models.TransactionKind
	Description string
	// FeeOverride replaces the scheduled fee of a TRANSFER_OUT entry.
	FeeOverride *decimal.Decimal
	TransferID  *int64

	reversesID *int64
}

// LedgerService is the only writer of account balances. Every entry is
// inserted in the same unit of work as the balance update it explains,
// under the account's row lock.
type LedgerService struct {
	store   store.Store
	fees    FeeSchedule
	refs    *ReferenceGenerator
	audit   *audit.Logger
	metrics *observability.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewLedgerService(st store.Store, fees FeeSchedule, auditLogger *audit.Logger, metrics *observability.Metrics, log *zap.Logger) *LedgerService {
	if log == nil {
		log = zap.NewNop()
	}
	if auditLogger == nil {
		auditLogger = audit.NewLogger(log)
	}
	return &LedgerService{
		store:   st,
		fees:    fees,
		refs:    NewReferenceGenerator(),
		audit:   auditLogger,
		metrics: metrics,
		log:     log.Named("ledger"),
		now:     time.Now,
	}
}

// Fee returns the scheduled fee for a transfer of amount.
func (s *LedgerService) Fee(amount decimal.Decimal) decimal.Decimal {
	return s.fees.Fee(amount)
}

// PostEntry applies one entry and returns it with its id, reference and
// balance snapshot. A subtracting entry that would overdraw the account
// fails with *InsufficientFundsError and changes nothing.
func (s *LedgerService) PostEntry(ctx context.Context, req PostEntryRequest) (*models.Transaction, error) {
	if err := validateEntryRequest(req); err != nil {
		return nil, err
	}

	var entry *models.Transaction
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		entry, err = s.postEntryTx(ctx, tx, req)
		return err
	})
	if err != nil {
		s.log.Warn("entry rejected",
			zap.Int64("account_id", req.AccountID),
			zap.String("kind", string(req.Kind)),
			zap.String("amount", models.FormatMoney(req.Amount)),
			zap.Error(err))
		s.audit.LogError("", req.AccountID, err)
		return nil, err
	}

	s.recordPosted(entry)
	return entry, nil
}

func validateEntryRequest(req PostEntryRequest) error {
	verr := &ValidationError{}
	checkAmount(verr, req.Amount)
	if !req.Kind.Valid() {
		verr.Add("kind", fmt.Sprintf("unknown transaction kind %q", req.Kind))
	}
	switch {
	case req.FeeOverride == nil:
	case req.FeeOverride.IsNegative():
		verr.Add("fee", "must not be negative")
	case !models.FitsMoneyScale(*req.FeeOverride):
		verr.Add("fee", "must have at most 2 decimal places")
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// checkAmount rejects amounts that are not positive or that would change
// when rounded to cents.
func checkAmount(verr *ValidationError, amount decimal.Decimal) {
	switch {
	case !amount.IsPositive():
		verr.Add("amount", "must be greater than zero")
	case !models.FitsMoneyScale(amount):
		verr.Add("amount", "must have at most 2 decimal places")
	}
}

// postEntryTx runs the posting algorithm inside an open unit of work so that
// callers can group several entries into one commit.
func (s *LedgerService) postEntryTx(ctx context.Context, tx store.Tx, req PostEntryRequest) (*models.Transaction, error) {
	if err := validateEntryRequest(req); err != nil {
		return nil, err
	}

	fee := decimal.Zero
	if req.Kind == models.KindTransferOut {
		if req.FeeOverride != nil {
			fee = *req.FeeOverride
		} else {
			fee = s.fees.Fee(req.Amount)
		}
	}
	amount := models.RoundMoney(req.Amount)
	fee = models.RoundMoney(fee)

	account, err := tx.LockAccount(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("account %d: %w", req.AccountID, err)
	}

	delta, err := req.Kind.Delta(amount, fee)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"kind": err.Error()}}
	}

	if req.Kind.Subtracting() {
		required := amount.Add(fee)
		if account.Balance.LessThan(required) {
			return nil, &InsufficientFundsError{Required: required, Available: account.Balance}
		}
	}

	balanceAfter := account.Balance.Add(delta)
	entry, err := tx.InsertEntry(ctx, &models.Transaction{
		Amount:       amount,
		Kind:         req.Kind,
		PostedAt:     s.now().UTC(),
		Fee:          fee,
		Reference:    s.refs.Entry(),
		Description:  req.Description,
		BalanceAfter: balanceAfter,
		AccountID:    account.ID,
		TransferID:   req.TransferID,
		ReversesID:   req.reversesID,
	})
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	if err := tx.UpdateBalance(ctx, account.ID, balanceAfter, account.Version); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}
	return entry, nil
}

// recordPosted must only be called once the entry is committed.
func (s *LedgerService) recordPosted(entry *models.Transaction) {
	s.metrics.EntryPosted(string(entry.Kind))
	s.audit.LogEntry(entry.Reference, entry.AccountID, string(entry.Kind), entry.Amount, entry.BalanceAfter)
	s.log.Info("entry posted",
		zap.String("reference", entry.Reference),
		zap.Int64("account_id", entry.AccountID),
		zap.String("kind", string(entry.Kind)),
		zap.String("amount", models.FormatMoney(entry.Amount)),
		zap.String("balance_after", models.FormatMoney(entry.BalanceAfter)))
}

// Reverse posts the compensating entry for transactionID: same account, same
// amount, opposite kind. FEE entries are not reversible and an entry can be
// reversed only once. The original entry is never touched.
func (s *LedgerService) Reverse(ctx context.Context, transactionID int64, reason string) (*models.Transaction, error) {
	var original, reversal *models.Transaction
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		original, err = tx.GetEntry(ctx, transactionID)
		if err != nil {
			return fmt.Errorf("transaction %d: %w", transactionID, err)
		}

		kind, ok := original.Kind.Reversal()
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotReversible, original.Kind)
		}

		existing, err := tx.FindReversal(ctx, original.ID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: transaction %s already reversed by %s", ErrInvalidState, original.Reference, existing.Reference)
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		noFee := decimal.Zero
		reversal, err = s.postEntryTx(ctx, tx, PostEntryRequest{
			AccountID:   original.AccountID,
			Amount:      original.Amount,
			Kind:        kind,
			Description: fmt.Sprintf("Reversal of transaction %s: %s", original.Reference, reason),
			FeeOverride: &noFee,
			reversesID:  &original.ID,
		})
		return err
	})
	if err != nil {
		s.log.Warn("reversal rejected", zap.Int64("transaction_id", transactionID), zap.Error(err))
		s.audit.LogError("", 0, err)
		return nil, err
	}

	s.recordPosted(reversal)
	s.audit.LogReversal(reversal.Reference, original.Reference, original.AccountID, reason)
	return reversal, nil
}

// DeleteEntry always fails. Entries are corrected by reversal only.
func (s *LedgerService) DeleteEntry(_ context.Context, transactionID int64) error {
	return fmt.Errorf("%w: transaction %d cannot be deleted, reverse it instead", ErrUnsupportedOperation, transactionID)
}

func (s *LedgerService) GetEntry(ctx context.Context, id int64) (*models.Transaction, error) {
	entry, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("transaction %d: %w", id, err)
	}
	return entry, nil
}

func (s *LedgerService) GetEntryByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	entry, err := s.store.GetEntryByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", reference, err)
	}
	return entry, nil
}

// ListAccountEntries returns the account's entries newest first, optionally
// bounded by posting time.
func (s *LedgerService) ListAccountEntries(ctx context.Context, accountID int64, from, to *time.Time, limit int) ([]models.Transaction, error) {
	if from != nil && to != nil && from.After(*to) {
		return nil, NewValidationError("from", "must not be after to")
	}
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, fmt.Errorf("account %d: %w", accountID, err)
	}
	return s.store.ListEntries(ctx, store.EntryFilter{AccountID: accountID, From: from, To: to, Limit: limit})
}

func (s *LedgerService) ListTransferEntries(ctx context.Context, transferID int64) ([]models.Transaction, error) {
	return s.store.ListEntries(ctx, store.EntryFilter{TransferID: transferID})
}

func (s *LedgerService) CountEntries(ctx context.Context, accountID int64) (int64, error) {
	return s.store.CountEntries(ctx, accountID)
}
