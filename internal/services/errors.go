package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bankportal/backend/internal/store"
	"github.com/shopspring/decimal"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = store.ErrNotFound
	ErrDuplicateCode        = store.ErrDuplicateCode
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInvalidState         = errors.New("invalid state")
	ErrNotReversible        = errors.New("transaction kind is not reversible")
	ErrUnsupportedOperation = errors.New("unsupported operation")

	ErrSourceNotFound = fmt.Errorf("source account %w", store.ErrNotFound)
	ErrSourceInactive = fmt.Errorf("%w: source account is inactive", ErrValidation)
)

// ValidationError lists the offending fields. It matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InsufficientFundsError carries the amount the operation needed and the
// balance that was available. It matches ErrInsufficientFunds.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %s, available %s",
		e.Required.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}
