package handlers

import (
	"net/http"

	"github.com/bankportal/backend/internal/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type QRHandler struct {
	service   *services.QRService
	transfers *services.TransferService
	validator *services.ValidationHelper
	log       *zap.Logger
}

func NewQRHandler(service *services.QRService, transfers *services.TransferService, log *zap.Logger) *QRHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &QRHandler{
		service:   service,
		transfers: transfers,
		validator: services.NewValidationHelper(),
		log:       log.Named("http.qr"),
	}
}

// GenerateQR generates a payment request QR code
// @Summary Generate QR Code
// @Description Generate a one-time QR code requesting a payment into an account. It expires after 10 minutes.
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{account_code=string,amount=string,description=string} true "QR generation request"
// @Success 201 {object} services.PaymentQR
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /qr/generate [post]
func (h *QRHandler) GenerateQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountCode string          `json:"account_code" validate:"required,extcode"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description" validate:"max=500"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		writeError(w, h.log, err)
		return
	}

	qr, err := h.service.GenerateQRCode(r.Context(), req.AccountCode, req.Amount, req.Description)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, qr)
}

// ProcessQR pays a scanned QR code
// @Summary Process QR Code
// @Description Consume a scanned QR code and transfer its amount from the payer's account.
// @Tags QR
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{qr_code=string,source_code=string} true "QR processing request"
// @Success 201 {object} transferView
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /qr/process [post]
func (h *QRHandler) ProcessQR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QRCode     string `json:"qr_code" validate:"required"`
		SourceCode string `json:"source_code" validate:"required,extcode"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		writeError(w, h.log, err)
		return
	}

	payment, err := h.service.ProcessQRCode(r.Context(), req.QRCode)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	transfer, err := h.transfers.Execute(r.Context(), services.TransferRequest{
		Amount:          payment.Amount,
		SourceCode:      req.SourceCode,
		DestinationCode: payment.AccountCode,
		Description:     payment.Description,
	})
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
