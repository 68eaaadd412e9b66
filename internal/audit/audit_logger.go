package audit

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	EventTransfer = "TRANSFER"
	EventEntry    = "ENTRY"
	EventReversal = "REVERSAL"
	EventCancel   = "CANCEL"
	EventError    = "ERROR"
)

// Event is one audit record. Amount is omitted when the event carries no money.
type Event struct {
	Timestamp time.Time
	EventType string
	Reference string
	AccountID int64
	Amount    *decimal.Decimal
	Status    string
	Details   map[string]string
}

// Logger writes audit events as structured log lines tagged "AUDIT".
type Logger struct {
	log *zap.Logger
	now func() time.Time
}

func NewLogger(log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{log: log.Named("audit"), now: time.Now}
}

func (a *Logger) LogTransfer(reference, fromCode, toCode string, amount decimal.Decimal, status string) {
	a.emit(Event{
		EventType: EventTransfer,
		Reference: reference,
		Amount:    &amount,
		Status:    status,
		Details: map[string]string{
			"from_account": fromCode,
			"to_account":   toCode,
		},
	})
}

func (a *Logger) LogEntry(reference string, accountID int64, kind string, amount, balanceAfter decimal.Decimal) {
	a.emit(Event{
		EventType: EventEntry,
		Reference: reference,
		AccountID: accountID,
		Amount:    &amount,
		Status:    "POSTED",
		Details: map[string]string{
			"kind":          kind,
			"balance_after": balanceAfter.StringFixed(2),
		},
	})
}

func (a *Logger) LogReversal(reference, reversedReference string, accountID int64, reason string) {
	a.emit(Event{
		EventType: EventReversal,
		Reference: reference,
		AccountID: accountID,
		Status:    "POSTED",
		Details: map[string]string{
			"reverses": reversedReference,
			"reason":   reason,
		},
	})
}

func (a *Logger) LogOperation(reference string, accountID int64, operation, details string) {
	a.emit(Event{
		EventType: operation,
		Reference: reference,
		AccountID: accountID,
		Status:    "SUCCESS",
		Details:   map[string]string{"details": details},
	})
}

func (a *Logger) LogError(reference string, accountID int64, err error) {
	a.emit(Event{
		EventType: EventError,
		Reference: reference,
		AccountID: accountID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *Logger) emit(event Event) {
	event.Timestamp = a.now().UTC()

	fields := []zap.Field{
		zap.Time("timestamp", event.Timestamp),
		zap.String("event_type", event.EventType),
		zap.String("reference", event.Reference),
		zap.String("status", event.Status),
		zap.Any("details", event.Details),
	}
	if event.AccountID != 0 {
		fields = append(fields, zap.Int64("account_id", event.AccountID))
	}
	if event.Amount != nil {
		fields = append(fields, zap.String("amount", event.Amount.StringFixed(2)))
	}
	a.log.Info("AUDIT", fields...)
}
