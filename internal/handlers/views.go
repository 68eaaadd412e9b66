package handlers

import (
	"time"

	"github.com/bankportal/backend/internal/models"
)

// Response bodies render money with exactly two fractional digits.

type accountView struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	DisplayName string    `json:"display_name,omitempty"`
	Type        string    `json:"type"`
	Balance     string    `json:"balance"`
	IsActive    bool      `json:"is_active"`
	OwnerID     int64     `json:"owner_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newAccountView(a *models.Account) accountView {
	return accountView{
		ID:          a.ID,
		Code:        a.Code,
		DisplayName: a.DisplayName,
		Type:        string(a.Type),
		Balance:     models.FormatMoney(a.Balance),
		IsActive:    a.IsActive,
		OwnerID:     a.OwnerID,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func newAccountViews(accounts []models.Account) []accountView {
	views := make([]accountView, 0, len(accounts))
	for i := range accounts {
		views = append(views, newAccountView(&accounts[i]))
	}
	return views
}

type transactionView struct {
	ID           int64     `json:"id"`
	Reference    string    `json:"reference"`
	Kind         string    `json:"kind"`
	Amount       string    `json:"amount"`
	Fee          string    `json:"fee"`
	BalanceAfter string    `json:"balance_after"`
	Description  string    `json:"description,omitempty"`
	PostedAt     time.Time `json:"posted_at"`
	AccountID    int64     `json:"account_id"`
	TransferID   *int64    `json:"transfer_id,omitempty"`
	ReversesID   *int64    `json:"reverses_id,omitempty"`
}

func newTransactionView(t *models.Transaction) transactionView {
	return transactionView{
		ID:           t.ID,
		Reference:    t.Reference,
		Kind:         string(t.Kind),
		Amount:       models.FormatMoney(t.Amount),
		Fee:          models.FormatMoney(t.Fee),
		BalanceAfter: models.FormatMoney(t.BalanceAfter),
		Description:  t.Description,
		PostedAt:     t.PostedAt,
		AccountID:    t.AccountID,
		TransferID:   t.TransferID,
		ReversesID:   t.ReversesID,
	}
}

func newTransactionViews(entries []models.Transaction) []transactionView {
	views := make([]transactionView, 0, len(entries))
	for i := range entries {
		views = append(views, newTransactionView(&entries[i]))
	}
	return views
}

type transferView struct {
	ID                   int64      `json:"id"`
	Reference            string     `json:"reference"`
	Status               string     `json:"status"`
	StatusReason         string     `json:"status_reason,omitempty"`
	Amount               string     `json:"amount"`
	Fee                  string     `json:"fee"`
	SourceCode           string     `json:"source_code"`
	DestinationCode      string     `json:"destination_code"`
	BeneficiaryName      string     `json:"beneficiary_name,omitempty"`
	Description          string     `json:"description,omitempty"`
	External             bool       `json:"external"`
	CreatedAt            time.Time  `json:"created_at"`
	ProcessedAt          *time.Time `json:"processed_at,omitempty"`
	SourceAccountID      int64      `json:"source_account_id"`
	DestinationAccountID *int64     `json:"destination_account_id,omitempty"`
}

func newTransferView(t *models.Transfer) transferView {
	return transferView{
		ID:                   t.ID,
		Reference:            t.Reference,
		Status:               string(t.Status),
		StatusReason:         t.StatusReason,
		Amount:               models.FormatMoney(t.Amount),
		Fee:                  models.FormatMoney(t.Fee),
		SourceCode:           t.SourceCode,
		DestinationCode:      t.DestinationCode,
		BeneficiaryName:      t.BeneficiaryName,
		Description:          t.Description,
		External:             t.External(),
		CreatedAt:            t.CreatedAt,
		ProcessedAt:          t.ProcessedAt,
		SourceAccountID:      t.SourceAccountID,
		DestinationAccountID: t.DestinationAccountID,
	}
}

func newTransferViews(transfers []models.Transfer) []transferView {
	views := make([]transferView, 0, len(transfers))
	for i := range transfers {
		views = append(views, newTransferView(&transfers[i]))
	}
	return views
}
