package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bankportal/backend/internal/services"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	// QueueDefault is used when no queue is configured.
	QueueDefault = "ledger"
	// TaskIntegrityCheck recomputes balances from ledger entries.
	TaskIntegrityCheck = "ledger:integrity_check"
)

// ErrLedgerDrift is returned by the integrity task when at least one account
// disagrees with its entries. Retrying cannot fix drift, so it skips retry.
var ErrLedgerDrift = errors.New("ledger drift detected")

// IntegrityCheckPayload limits the check to one account when AccountID is set.
type IntegrityCheckPayload struct {
	AccountID int64 `json:"account_id,omitempty"`
}

// NewIntegrityCheckTask constructs an Asynq task.
func NewIntegrityCheckTask(payload IntegrityCheckPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIntegrityCheck, data), nil
}

// IntegrityChecker is implemented by services.IntegrityService.
type IntegrityChecker interface {
	Check(ctx context.Context) (*services.IntegrityReport, error)
	CheckAccount(ctx context.Context, accountID int64) (*services.AccountIntegrity, error)
}

// IntegrityHandler processes TaskIntegrityCheck tasks.
type IntegrityHandler struct {
	checker IntegrityChecker
	log     *zap.Logger
}

func NewIntegrityHandler(checker IntegrityChecker, log *zap.Logger) *IntegrityHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &IntegrityHandler{checker: checker, log: log.Named("jobs")}
}

func (h *IntegrityHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload IntegrityCheckPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode %s payload: %v: %w", TaskIntegrityCheck, err, asynq.SkipRetry)
		}
	}

	if payload.AccountID != 0 {
		result, err := h.checker.CheckAccount(ctx, payload.AccountID)
		if errors.Is(err, services.ErrNotFound) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		if err != nil {
			return err
		}
		if !result.Consistent {
			return fmt.Errorf("%w: account %d: %w", ErrLedgerDrift, result.AccountID, asynq.SkipRetry)
		}
		h.log.Info("account integrity ok", zap.Int64("account_id", result.AccountID))
		return nil
	}

	report, err := h.checker.Check(ctx)
	if err != nil {
		return err
	}
	if n := len(report.Mismatches); n > 0 {
		return fmt.Errorf("%w: %d of %d accounts: %w", ErrLedgerDrift, n, report.Accounts, asynq.SkipRetry)
	}
	h.log.Info("ledger integrity ok", zap.Int("accounts", report.Accounts))
	return nil
}
