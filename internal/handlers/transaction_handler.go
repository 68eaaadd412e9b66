package handlers

import (
	"net/http"
	"strings"

	"github.com/bankportal/backend/internal/models"
	"github.com/bankportal/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type TransactionHandler struct {
	ledger *services.LedgerService
	log    *zap.Logger
}

func NewTransactionHandler(ledger *services.LedgerService, log *zap.Logger) *TransactionHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TransactionHandler{ledger: ledger, log: log.Named("http.transactions")}
}

type postEntryBody struct {
	Amount      decimal.Decimal        `json:"amount"`
	Kind        models.TransactionKind `json:"kind"`
	Description string                 `json:"description"`
}

// Post posts a deposit or withdrawal
// @Summary Post entry
// @Description Post a CREDIT or DEBIT entry against an account. Transfer kinds are reserved for transfers.
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param request body postEntryBody true "Entry"
// @Success 201 {object} transactionView
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /accounts/{id}/transactions [post]
func (h *TransactionHandler) Post(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var body postEntryBody
	if !decodeJSON(w, r, &body) {
		return
	}
	body.Kind = models.TransactionKind(strings.ToUpper(strings.TrimSpace(string(body.Kind))))
	if body.Kind != models.KindCredit && body.Kind != models.KindDebit {
		writeError(w, h.log, services.NewValidationError("kind", "must be CREDIT or DEBIT"))
		return
	}

	entry, err := h.ledger.PostEntry(r.Context(), services.PostEntryRequest{
		AccountID:   accountID,
		Amount:      body.Amount,
		Kind:        body.Kind,
		Description: strings.TrimSpace(body.Description),
	})
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTransactionView(entry))
}

// ListByAccount lists an account's entries
// @Summary Account history
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param from query string false "Lower bound (RFC 3339 or YYYY-MM-DD)"
// @Param to query string false "Upper bound (RFC 3339 or YYYY-MM-DD)"
// @Param limit query int false "Maximum number of entries"
// @Success 200 {array} transactionView
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{id}/transactions [get]
func (h *TransactionHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	from, err := queryTime(r, "from", false)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	to, err := queryTime(r, "to", true)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	entries, err := h.ledger.ListAccountEntries(r.Context(), accountID, from, to, limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionViews(entries))
}

// Get returns one entry
// @Summary Get transaction
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Success 200 {object} transactionView
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{id} [get]
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	entry, err := h.ledger.GetEntry(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionView(entry))
}

// GetByReference returns the entry with a reference
// @Summary Get transaction by reference
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param reference path string true "Transaction reference"
// @Success 200 {object} transactionView
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/reference/{reference} [get]
func (h *TransactionHandler) GetByReference(w http.ResponseWriter, r *http.Request) {
	entry, err := h.ledger.GetEntryByReference(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionView(entry))
}

// Reverse compensates an entry
// @Summary Reverse transaction
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Param request body object{reason=string} true "Reversal reason"
// @Success 201 {object} transactionView
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /transactions/{id}/reverse [post]
func (h *TransactionHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	reason := strings.TrimSpace(body.Reason)
	if reason == "" {
		writeError(w, h.log, services.NewValidationError("reason", "is required"))
		return
	}

	reversal, err := h.ledger.Reverse(r.Context(), id, reason)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTransactionView(reversal))
}

// Delete always fails
// @Summary Delete transaction
// @Description Entries are immutable. Use the reverse endpoint instead.
// @Tags Transactions
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Failure 405 {object} services.ErrorResponse
// @Router /transactions/{id} [delete]
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeError(w, h.log, h.ledger.DeleteEntry(r.Context(), id))
}
