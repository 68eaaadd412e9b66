package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/bankportal/backend/internal/audit"
	"github.com/bankportal/backend/internal/models"
	"github.com/bankportal/backend/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	codeCountryPrefix = "FR14"
	codeBankID        = "2004"
	codeBranchID      = "1000"
	codeAccountDigits = 11

	maxCodeAttempts = 5
)

// OpenAccountRequest opens an account. An empty Code is generated.
type OpenAccountRequest struct {
	Code           string             `json:"code" validate:"omitempty,extcode"`
	DisplayName    string             `json:"display_name" validate:"max=255"`
	Type           models.AccountType `json:"type" validate:"required,oneof=CHECKING SAVINGS"`
	OpeningBalance decimal.Decimal    `json:"opening_balance"`
	OwnerID        int64              `json:"owner_id" validate:"gte=0"`
}

// UpdateAccountRequest changes descriptive fields. Nil fields are left as is.
type UpdateAccountRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,max=255"`
	IsActive    *bool   `json:"is_active"`
}

type AccountService struct {
	store     store.Store
	ledger    *LedgerService
	validator *ValidationHelper
	audit     *audit.Logger
	log       *zap.Logger
	digits    func(n int) (string, error)
}

func NewAccountService(st store.Store, ledger *LedgerService, auditLogger *audit.Logger, log *zap.Logger) *AccountService {
	if log == nil {
		log = zap.NewNop()
	}
	if auditLogger == nil {
		auditLogger = audit.NewLogger(log)
	}
	return &AccountService{
		store:     st,
		ledger:    ledger,
		validator: NewValidationHelper(),
		audit:     auditLogger,
		log:       log.Named("accounts"),
		digits:    randomDigits,
	}
}

// Open creates the account and posts its opening balance as a CREDIT entry
// in the same unit of work.
func (s *AccountService) Open(ctx context.Context, req OpenAccountRequest) (*models.Account, error) {
	req.Code = strings.TrimSpace(req.Code)
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	var verr *ValidationError
	switch err := s.validator.ValidateStruct(&req); {
	case err == nil:
		verr = &ValidationError{}
	case !errors.As(err, &verr):
		return nil, err
	}
	switch {
	case req.OpeningBalance.IsNegative():
		verr.Add("opening_balance", "must not be negative")
	case !models.FitsMoneyScale(req.OpeningBalance):
		verr.Add("opening_balance", "must have at most 2 decimal places")
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	if req.Code == "" {
		code, err := s.GenerateCode(ctx)
		if err != nil {
			return nil, err
		}
		req.Code = code
	}

	var account *models.Account
	var opening *models.Transaction
	err := s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		created, err := tx.CreateAccount(ctx, &models.Account{
			Code:        req.Code,
			DisplayName: req.DisplayName,
			Type:        req.Type,
			Balance:     decimal.Zero,
			IsActive:    true,
			OwnerID:     req.OwnerID,
		})
		if err != nil {
			return err
		}

		if req.OpeningBalance.IsPositive() {
			opening, err = s.ledger.postEntryTx(ctx, tx, PostEntryRequest{
				AccountID:   created.ID,
				Amount:      req.OpeningBalance,
				Kind:        models.KindCredit,
				Description: "Opening balance",
			})
			if err != nil {
				return err
			}
		}

		account, err = tx.GetAccount(ctx, created.ID)
		return err
	})
	if err != nil {
		s.log.Warn("open account rejected", zap.String("code", req.Code), zap.Error(err))
		return nil, err
	}

	if opening != nil {
		s.ledger.recordPosted(opening)
	}
	s.audit.LogOperation("", account.ID, "ACCOUNT_OPENED", account.Code)
	s.log.Info("account opened",
		zap.Int64("account_id", account.ID),
		zap.String("code", account.Code),
		zap.String("balance", models.FormatMoney(account.Balance)))
	return account, nil
}

// GenerateCode returns an unused external code of the form
// FR14 2004 1000 followed by 11 random digits.
func (s *AccountService) GenerateCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		digits, err := s.digits(codeAccountDigits)
		if err != nil {
			return "", fmt.Errorf("generate account code: %w", err)
		}
		code := codeCountryPrefix + codeBankID + codeBranchID + digits

		exists, err := s.store.ExistsByCode(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: no free account code after %d attempts", ErrDuplicateCode, maxCodeAttempts)
}

func randomDigits(n int) (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

func (s *AccountService) Get(ctx context.Context, id int64) (*models.Account, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("account %d: %w", id, err)
	}
	return account, nil
}

func (s *AccountService) GetByCode(ctx context.Context, code string) (*models.Account, error) {
	code = strings.TrimSpace(code)
	account, err := s.store.GetAccountByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", code, err)
	}
	return account, nil
}

func (s *AccountService) Balance(ctx context.Context, id int64) (decimal.Decimal, error) {
	account, err := s.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

func (s *AccountService) List(ctx context.Context) ([]models.Account, error) {
	return s.store.ListAccounts(ctx)
}

// Update saves descriptive changes. The balance is never written here.
func (s *AccountService) Update(ctx context.Context, id int64, req UpdateAccountRequest) (*models.Account, error) {
	if err := s.validator.ValidateStruct(&req); err != nil {
		return nil, err
	}

	account, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.DisplayName != nil {
		account.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.IsActive != nil {
		account.IsActive = *req.IsActive
	}

	saved, err := s.store.SaveAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	s.audit.LogOperation("", saved.ID, "ACCOUNT_UPDATED", fmt.Sprintf("active=%t", saved.IsActive))
	return saved, nil
}

// Close removes an account that no entry or transfer refers to and
// deactivates any other, so that history stays attached to an existing account.
func (s *AccountService) Close(ctx context.Context, id int64) (deleted bool, err error) {
	err = s.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		account, err := tx.LockAccount(ctx, id)
		if err != nil {
			return fmt.Errorf("account %d: %w", id, err)
		}

		count, err := tx.CountEntries(ctx, id)
		if err != nil {
			return err
		}
		transfers, err := tx.ListTransfers(ctx, store.TransferFilter{AccountID: id, Limit: 1})
		if err != nil {
			return err
		}
		if count == 0 && len(transfers) == 0 {
			deleted = true
			return tx.DeleteAccount(ctx, id)
		}

		account.IsActive = false
		account.UpdatedAt = time.Now().UTC()
		_, err = tx.SaveAccount(ctx, account)
		return err
	})
	if err != nil {
		return false, err
	}

	s.audit.LogOperation("", id, "ACCOUNT_CLOSED", fmt.Sprintf("deleted=%t", deleted))
	s.log.Info("account closed", zap.Int64("account_id", id), zap.Bool("deleted", deleted))
	return deleted, nil
}
