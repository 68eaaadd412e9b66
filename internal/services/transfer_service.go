package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bankportal/backend/internal/audit"
	"github.com/bankportal/backend/internal/config"
	"github.com/bankportal/backend/internal/models"
	"github.com/bankportal/backend/internal/observability"
	"github.com/bankportal/backend/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransferRequest is the input of Execute. Codes are trimmed before
// validation.
type TransferRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	SourceCode      string          `json:"source_code" validate:"required,extcode"`
	DestinationCode string          `json:"destination_code" validate:"required,extcode,nefield=SourceCode"`
	BeneficiaryName string          `json:"beneficiary_name" validate:"max=255"`
	Description     string          `json:"description" validate:"max=500"`
}

// TransferDeps collects the collaborators of a TransferService. ISO and
// Publisher are optional.
type TransferDeps struct {
	Store     store.Store
	Ledger    *LedgerService
	ISO       *ISO20022Service
	Publisher TransferPublisher
	Mode      config.TransferMode
	Audit     *audit.Logger
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// TransferService moves money between a local source account and a local
// or external destination through the ledger.
type TransferService struct {
	store     store.Store
	ledger    *LedgerService
	iso       *ISO20022Service
	publisher TransferPublisher
	mode      config.TransferMode
	validator *ValidationHelper
	refs      *ReferenceGenerator
	audit     *audit.Logger
	metrics   *observability.Metrics
	log       *zap.Logger
	now       func() time.Time
}

func NewTransferService(deps TransferDeps) *TransferService {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	auditLogger := deps.Audit
	if auditLogger == nil {
		auditLogger = audit.NewLogger(log)
	}
	mode := deps.Mode
	if mode == "" {
		mode = config.TransferModeAtomic
	}
	return &TransferService{
		store:     deps.Store,
		ledger:    deps.Ledger,
		iso:       deps.ISO,
		publisher: deps.Publisher,
		mode:      mode,
		validator: NewValidationHelper(),
		refs:      NewReferenceGenerator(),
		audit:     auditLogger,
		metrics:   deps.Metrics,
		log:       log.Named("transfer"),
		now:       time.Now,
	}
}

func (s *TransferService) validate(req *TransferRequest) error {
	req.SourceCode = strings.TrimSpace(req.SourceCode)
	req.DestinationCode = strings.TrimSpace(req.DestinationCode)
	req.BeneficiaryName = strings.TrimSpace(req.BeneficiaryName)
	req.Description = strings.TrimSpace(req.Description)

	var verr *ValidationError
	switch err := s.validator.ValidateStruct(req); {
	case err == nil:
		verr = &ValidationError{}
	case !errors.As(err, &verr):
		return err
	}
	checkAmount(verr, req.Amount)
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// Execute runs a transfer to completion.
//
// Failures detected before anything is persisted (validation, unknown or
// inactive source) return a nil transfer. Failures after that return the
// persisted FAILED transfer together with the error, so callers can report
// its reference.
func (s *TransferService) Execute(ctx context.Context, req TransferRequest) (*models.Transfer, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	amount := models.RoundMoney(req.Amount)

	source, err := s.store.GetAccountByCode(ctx, req.SourceCode)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, req.SourceCode)
	}
	if err != nil {
		return nil, err
	}
	if !source.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrSourceInactive, req.SourceCode)
	}

	var destinationID *int64
	destination, err := s.store.GetAccountByCode(ctx, req.DestinationCode)
	switch {
	case err == nil:
		if !destination.IsActive {
			return nil, NewValidationError("destination_code", "destination account is inactive")
		}
		destinationID = &destination.ID
	case errors.Is(err, store.ErrNotFound):
		// Unknown codes belong to other banks.
	default:
		return nil, err
	}

	fee := s.ledger.Fee(amount)
	transfer := &models.Transfer{
		Amount:               amount,
		Fee:                  fee,
		SourceCode:           req.SourceCode,
		DestinationCode:      req.DestinationCode,
		BeneficiaryName:      req.BeneficiaryName,
		Description:          req.Description,
		Reference:            s.refs.Transfer(),
		CreatedAt:            s.now().UTC(),
		SourceAccountID:      source.ID,
		DestinationAccountID: destinationID,
	}

	if required := transfer.Total(); source.Balance.LessThan(required) {
		fundsErr := &InsufficientFundsError{Required: required, Available: source.Balance}
		processed := s.now().UTC()
		transfer.Status = models.TransferFailed
		transfer.StatusReason = fundsErr.Error()
		transfer.ProcessedAt = &processed

		saved, err := s.store.InsertTransfer(ctx, transfer)
		if err != nil {
			return nil, errors.Join(fundsErr, fmt.Errorf("record failed transfer: %w", err))
		}
		s.finished(saved, fundsErr)
		return saved, fundsErr
	}

	transfer.Status = models.TransferPending
	pending, err := s.store.InsertTransfer(ctx, transfer)
	if err != nil {
		return nil, fmt.Errorf("record transfer: %w", err)
	}

	var completed *models.Transfer
	switch s.mode {
	case config.TransferModeAtomic:
		completed, err = s.runAtomic(ctx, pending)
	case config.TransferModeStepwise:
		completed, err = s.runStepwise(ctx, pending)
	default:
		err = fmt.Errorf("unknown transfer mode %q", s.mode)
	}
	if err != nil {
		failed := s.markFailed(ctx, pending, err)
		s.finished(failed, err)
		return failed, fmt.Errorf("transfer %s failed: %w", pending.Reference, err)
	}

	s.finished(completed, nil)
	s.notify(ctx, completed)
	return completed, nil
}

// transferEntries lists the postings of a transfer in order: the outgoing
// amount, the fee, and the incoming amount for local destinations. The fee
// is charged by its own entry, so the outgoing entry carries none.
func transferEntries(t *models.Transfer) []PostEntryRequest {
	noFee := decimal.Zero
	entries := []PostEntryRequest{{
		AccountID:   t.SourceAccountID,
		Amount:      t.Amount,
		Kind:        models.KindTransferOut,
		Description: withDescription("Transfer to "+t.DestinationCode, t.Description),
		FeeOverride: &noFee,
		TransferID:  &t.ID,
	}}
	if t.Fee.IsPositive() {
		entries = append(entries, PostEntryRequest{
			AccountID:   t.SourceAccountID,
			Amount:      t.Fee,
			Kind:        models.KindFee,
			Description: "Transfer fee for " + t.Reference,
			TransferID:  &t.ID,
		})
	}
	if t.DestinationAccountID != nil {
		entries = append(entries, PostEntryRequest{
			AccountID:   *t.DestinationAccountID,
			Amount:      t.Amount,
			Kind:        models.KindTransferIn,
			Description: withDescription("Transfer from "+t.SourceCode, t.Description),
			TransferID:  &t.ID,
		})
	}
	return entries
}

func withDescription(prefix, description string) string {
	if description == "" {
		return prefix
	}
	return prefix + " - " + description
}

// runAtomic posts every entry and the COMPLETED status in one unit of work.
// Accounts are locked in ascending id order so that two transfers between
// the same pair cannot deadlock.
func (s *TransferService) runAtomic(ctx context.Context, pending *models.Transfer) (*models.Transfer, error) {
	var completed *models.Transfer
	var posted []*models.Transaction

	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		posted = posted[:0]

		ids := []int64{pending.SourceAccountID}
		if pending.DestinationAccountID != nil {
			ids = append(ids, *pending.DestinationAccountID)
		}
		if err := lockAccounts(ctx, tx, ids); err != nil {
			return err
		}

		for _, req := range transferEntries(pending) {
			entry, err := s.ledger.postEntryTx(ctx, tx, req)
			if err != nil {
				return err
			}
			posted = append(posted, entry)
		}

		var err error
		completed, err = s.completeTx(ctx, tx, pending.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, entry := range posted {
		s.ledger.recordPosted(entry)
	}
	return completed, nil
}

// runStepwise posts each entry in its own unit of work. Entries posted
// before a failure stay in place.
func (s *TransferService) runStepwise(ctx context.Context, pending *models.Transfer) (*models.Transfer, error) {
	for _, req := range transferEntries(pending) {
		if _, err := s.ledger.PostEntry(ctx, req); err != nil {
			return nil, err
		}
	}

	var completed *models.Transfer
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		completed, err = s.completeTx(ctx, tx, pending.ID)
		return err
	})
	return completed, err
}

func lockAccounts(ctx context.Context, tx store.Tx, ids []int64) error {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if _, err := tx.LockAccount(ctx, id); err != nil {
			return fmt.Errorf("account %d: %w", id, err)
		}
	}
	return nil
}

func (s *TransferService) completeTx(ctx context.Context, tx store.Tx, transferID int64) (*models.Transfer, error) {
	return s.transitionTx(ctx, tx, transferID, models.TransferCompleted, "")
}

func (s *TransferService) transitionTx(ctx context.Context, tx store.Tx, transferID int64, next models.TransferStatus, reason string) (*models.Transfer, error) {
	transfer, err := tx.LockTransfer(ctx, transferID)
	if err != nil {
		return nil, fmt.Errorf("transfer %d: %w", transferID, err)
	}
	if !transfer.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: transfer %s is %s, cannot become %s", ErrInvalidState, transfer.Reference, transfer.Status, next)
	}

	processed := s.now().UTC()
	transfer.Status = next
	transfer.StatusReason = reason
	transfer.ProcessedAt = &processed
	if err := tx.UpdateTransfer(ctx, transfer); err != nil {
		return nil, err
	}
	return transfer, nil
}

// markFailed records the failure even when ctx is already cancelled.
func (s *TransferService) markFailed(ctx context.Context, pending *models.Transfer, cause error) *models.Transfer {
	ctx = context.WithoutCancel(ctx)

	var failed *models.Transfer
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		failed, err = s.transitionTx(ctx, tx, pending.ID, models.TransferFailed, cause.Error())
		return err
	})
	if err != nil {
		s.log.Error("could not mark transfer failed",
			zap.String("reference", pending.Reference), zap.NamedError("cause", cause), zap.Error(err))
		s.audit.LogError(pending.Reference, pending.SourceAccountID, err)
		if current, getErr := s.store.GetTransfer(ctx, pending.ID); getErr == nil {
			return current
		}
		return pending
	}
	return failed
}

func (s *TransferService) finished(transfer *models.Transfer, cause error) {
	s.metrics.TransferFinished(string(transfer.Status))
	s.audit.LogTransfer(transfer.Reference, transfer.SourceCode, transfer.DestinationCode, transfer.Amount, string(transfer.Status))

	fields := []zap.Field{
		zap.String("reference", transfer.Reference),
		zap.String("status", string(transfer.Status)),
		zap.String("amount", models.FormatMoney(transfer.Amount)),
		zap.String("fee", models.FormatMoney(transfer.Fee)),
		zap.Bool("external", transfer.External()),
	}
	if cause != nil {
		s.audit.LogError(transfer.Reference, transfer.SourceAccountID, cause)
		s.log.Warn("transfer failed", append(fields, zap.Error(cause))...)
		return
	}
	s.log.Info("transfer completed", fields...)
}

// notify publishes a completed transfer. Publication problems are logged
// and never affect the ledger.
func (s *TransferService) notify(ctx context.Context, transfer *models.Transfer) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransfer(ctx, transfer); err != nil {
		s.log.Error("publish transfer event", zap.String("reference", transfer.Reference), zap.Error(err))
		s.audit.LogError(transfer.Reference, transfer.SourceAccountID, err)
	}

	if !transfer.External() || s.iso == nil {
		return
	}
	message, err := s.iso.SettlementMessage(transfer)
	if err == nil {
		err = s.publisher.QueueSettlement(ctx, transfer, message)
	}
	if err != nil {
		s.log.Error("queue settlement", zap.String("reference", transfer.Reference), zap.Error(err))
		s.audit.LogError(transfer.Reference, transfer.SourceAccountID, err)
	}
}

// Cancel moves a PENDING transfer without entries to CANCELLED.
func (s *TransferService) Cancel(ctx context.Context, transferID int64, reason string) (*models.Transfer, error) {
	reason = strings.TrimSpace(reason)

	var cancelled *models.Transfer
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		transfer, err := tx.LockTransfer(ctx, transferID)
		if err != nil {
			return fmt.Errorf("transfer %d: %w", transferID, err)
		}
		entries, err := tx.ListEntries(ctx, store.EntryFilter{TransferID: transfer.ID, Limit: 1})
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			return fmt.Errorf("%w: transfer %d already has posted entries", ErrInvalidState, transferID)
		}
		cancelled, err = s.transitionTx(ctx, tx, transferID, models.TransferCancelled, reason)
		return err
	})
	if err != nil {
		s.log.Warn("cancel rejected", zap.Int64("transfer_id", transferID), zap.Error(err))
		return nil, err
	}

	s.metrics.TransferFinished(string(cancelled.Status))
	s.audit.LogOperation(cancelled.Reference, cancelled.SourceAccountID, audit.EventCancel, reason)
	s.log.Info("transfer cancelled", zap.String("reference", cancelled.Reference), zap.String("reason", reason))
	return cancelled, nil
}

// DeleteTransfer always fails. Transfers are kept as evidence.
func (s *TransferService) DeleteTransfer(_ context.Context, transferID int64) error {
	return fmt.Errorf("%w: transfer %d cannot be deleted", ErrUnsupportedOperation, transferID)
}

func (s *TransferService) Get(ctx context.Context, id int64) (*models.Transfer, error) {
	transfer, err := s.store.GetTransfer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("transfer %d: %w", id, err)
	}
	return transfer, nil
}

func (s *TransferService) GetByReference(ctx context.Context, reference string) (*models.Transfer, error) {
	transfer, err := s.store.GetTransferByReference(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("transfer %s: %w", reference, err)
	}
	return transfer, nil
}

// ListByAccount returns transfers the account sent or received, newest first.
func (s *TransferService) ListByAccount(ctx context.Context, accountID int64, limit int) ([]models.Transfer, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, fmt.Errorf("account %d: %w", accountID, err)
	}
	return s.store.ListTransfers(ctx, store.TransferFilter{AccountID: accountID, Limit: limit})
}

func (s *TransferService) ListByStatus(ctx context.Context, status models.TransferStatus, limit int) ([]models.Transfer, error) {
	return s.store.ListTransfers(ctx, store.TransferFilter{Status: status, Limit: limit})
}

func (s *TransferService) ListPending(ctx context.Context) ([]models.Transfer, error) {
	return s.ListByStatus(ctx, models.TransferPending, 0)
}

// Entries returns the ledger entries a transfer produced.
func (s *TransferService) Entries(ctx context.Context, transferID int64) ([]models.Transaction, error) {
	if _, err := s.Get(ctx, transferID); err != nil {
		return nil, err
	}
	return s.ledger.ListTransferEntries(ctx, transferID)
}
