package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/bankportal/backend/internal/models"
	"github.com/bankportal/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type TransferHandler struct {
	transfers *services.TransferService
	iso       *services.ISO20022Service
	log       *zap.Logger
}

func NewTransferHandler(transfers *services.TransferService, iso *services.ISO20022Service, log *zap.Logger) *TransferHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TransferHandler{transfers: transfers, iso: iso, log: log.Named("http.transfers")}
}

// Create executes a transfer
// @Summary Execute transfer
// @Description Move money from a local account to a local or external account code. A rejected transfer that was recorded as FAILED is reported with its reference.
// @Tags Transfers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body services.TransferRequest true "Transfer"
// @Success 201 {object} transferView
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /transfers [post]
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	transfer, err := h.transfers.Execute(r.Context(), req)
	if err != nil {
		reference := ""
		if transfer != nil {
			reference = transfer.Reference
		}
		writeErrorWithReference(w, h.log, err, reference)
		return
	}
	writeJSON(w, http.StatusCreated, newTransferView(transfer))
}

// Get returns one transfer
// @Summary Get transfer
// @Tags Transfers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transfer ID"
// @Success 200 {object} transferView
// @Failure 404 {object} services.ErrorResponse
// @Router /transfers/{id} [get]
func (h *TransferHandler) Get(w http.ResponseWriter, r *http.Request) {
	transfer, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newTransferView(transfer))
}

func (h *TransferHandler) load(w http.ResponseWriter, r *http.Request) (*models.Transfer, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return nil, false
	}
	transfer, err := h.transfers.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return nil, false
	}
	return transfer, true
}

// GetByReference returns the transfer with a reference
// @Summary Get transfer by reference
// @Tags Transfers
// @Produce json
// @Security BearerAuth
// @Param reference path string true "Transfer reference"
// @Success 200 {object} transferView
// @Failure 404 {object} services.ErrorResponse
// @Router /transfers/reference/{reference} [get]
func (h *TransferHandler) GetByReference(w http.ResponseWriter, r *http.Request) {
	transfer, err := h.transfers.GetByReference(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransferView(transfer))
}

// ListByAccount lists transfers sent or received by an account
// @Summary Account transfers
// @Tags Transfers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Account ID"
// @Param limit query int false "Maximum number of transfers"
// @Success 200 {array} transferView
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{id}/transfers [get]
func (h *TransferHandler) ListByAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	transfers, err := h.transfers.ListByAccount(r.Context(), accountID, limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransferViews(transfers))
}

// List lists transfers by status
// @Summary List transfers
// @Tags Transfers
// @Produce json
// @Security BearerAuth
// @Param status query string false "PENDING, COMPLETED, FAILED or CANCELLED" default(PENDING)
// @Param limit query int false "Maximum number of transfers"
// @Success 200 {array} transferView
// @Failure 400 {object} services.ErrorResponse
// @Router /transfers [get]
func (h *TransferHandler) List(w http.ResponseWriter, r *http.Request) {
	raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
	if raw == "" {
		raw = string(models.TransferPending)
	}
	status, err := models.ParseTransferStatus(raw)
	if err != nil {
		writeError(w, h.log, services.NewValidationError("status", err.Error()))
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	transfers, err := h.transfers.ListByStatus(r.Context(), status, limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransferViews(transfers))
}

// Entries lists the ledger entries of a transfer
// @Summary Transfer entries
// @Tags Transfers
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transfer ID"
// @Success 200 {array} transactionView
// @Failure 404 {object} services.ErrorResponse
// @Router /transfers/{id}/transactions [get]
func (h *TransferHandler) Entries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	entries, err := h.transfers.Entries(r.Context(), id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionViews(entries))
}

// Cancel cancels a pending transfer
// @Summary Cancel transfer
// @Tags Transfers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transfer ID"
// @Param request body object{reason=string} false "Cancellation reason"
// @Success 200 {object} transferView
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /transfers/{id}/cancel [post]
func (h *TransferHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &body) {
		return
	}

	transfer, err := h.transfers.Cancel(r.Context(), id, body.Reason)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransferView(transfer))
}

// Delete always fails
// @Summary Delete transfer
// @Description Transfers are never deleted. Cancel a pending transfer instead.
// @Tags Transfers
// @Security BearerAuth
// @Param id path int true "Transfer ID"
// @Failure 405 {object} services.ErrorResponse
// @Router /transfers/{id} [delete]
func (h *TransferHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeError(w, h.log, h.transfers.DeleteTransfer(r.Context(), id))
}

// Pacs008 renders the settlement instruction of an external transfer
// @Summary pacs.008 message
// @Tags ISO20022
// @Produce xml
// @Security BearerAuth
// @Param id path int true "Transfer ID"
// @Success 200 {string} string "pacs.008 document"
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /transfers/{id}/pacs008 [get]
func (h *TransferHandler) Pacs008(w http.ResponseWriter, r *http.Request) {
	transfer, ok := h.load(w, r)
	if !ok {
		return
	}
	doc, err := h.iso.CreatePacs008(transfer)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.writeXML(w, doc)
}

// StatusReport renders the pacs.002 status report of a transfer
// @Summary pacs.002 status report
// @Tags ISO20022
// @Produce xml
// @Security BearerAuth
// @Param id path int true "Transfer ID"
// @Success 200 {string} string "pacs.002 document"
// @Failure 404 {object} services.ErrorResponse
// @Router /transfers/{id}/pacs002 [get]
func (h *TransferHandler) StatusReport(w http.ResponseWriter, r *http.Request) {
	transfer, ok := h.load(w, r)
	if !ok {
		return
	}
	doc, err := h.iso.CreatePacs002(transfer)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.writeXML(w, doc)
}

func (h *TransferHandler) writeXML(w http.ResponseWriter, doc any) {
	data, err := h.iso.ConvertToXML(doc)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, data)
}
