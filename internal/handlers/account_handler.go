package handlers

import (
	"net/http"

	"github.com/bankportal/backend/internal/models"
	"github.com/bankportal/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type AccountHandler struct {
	accounts *services.AccountService
	log      *zap.Logger
}

func NewAccountHandler(accounts *services.AccountService, log *zap.Logger) *AccountHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountHandler{accounts: accounts, log: log.Named("http.accounts")}
}

// Open opens an account
// @Summary Open account
// @Description Open an account, optionally funded with an opening balance. The code is generated when omitted.
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.OpenAccountRequest true "Account to open"
// @Success 201 {object} accountView
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /accounts [post]
func (h *AccountHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req services.OpenAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.accounts.Open(r.Context(), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAccountView(account))
}

// List lists accounts
// @Summary List accounts
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Success 200 {array} accountView
// @Router /accounts [get]
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountViews(accounts))
}

// Get returns one account
// @Summary Get account
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} accountView
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{id} [get]
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	account, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(account))
}

// GetByCode returns the account with an external code
// @Summary Get account by code
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param code path string true "External account code"
// @Success 200 {object} accountView
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/code/{code} [get]
func (h *AccountHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(account))
}

// Balance returns the current balance
// @Summary Account balance
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} object{account_id=int64,balance=string}
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{id}/balance [get]
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	balance, err := h.accounts.Balance(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id": id,
		"balance":    models.FormatMoney(balance),
	})
}

// Update changes descriptive fields
// @Summary Update account
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param request body services.UpdateAccountRequest true "Fields to change"
// @Success 200 {object} accountView
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{id} [patch]
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var req services.UpdateAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.accounts.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(account))
}

// Close closes an account
// @Summary Close account
// @Description Accounts with ledger history are deactivated, others are deleted.
// @Tags Accounts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Success 200 {object} object{account_id=int64,deleted=bool}
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{id} [delete]
func (h *AccountHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	deleted, err := h.accounts.Close(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account_id": id, "deleted": deleted})
}
