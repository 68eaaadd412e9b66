package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/bankportal/backend/internal/services"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// IntegrityEnqueuer hands integrity checks to the background worker.
type IntegrityEnqueuer interface {
	EnqueueIntegrityCheck(ctx context.Context, accountID int64) (*asynq.TaskInfo, error)
}

type IntegrityHandler struct {
	integrity *services.IntegrityService
	jobs      IntegrityEnqueuer
	log       *zap.Logger
}

// NewIntegrityHandler builds the handler. jobs may be nil when no worker
// queue is configured.
func NewIntegrityHandler(integrity *services.IntegrityService, jobs IntegrityEnqueuer, log *zap.Logger) *IntegrityHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &IntegrityHandler{integrity: integrity, jobs: jobs, log: log.Named("http.integrity")}
}

// Check compares stored balances with ledger entries
// @Summary Ledger integrity
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.IntegrityReport
// @Router /ledger/integrity [get]
func (h *IntegrityHandler) Check(w http.ResponseWriter, r *http.Request) {
	report, err := h.integrity.Check(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Enqueue schedules an integrity check on the worker
// @Summary Queue integrity check
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param account_id query int false "Check a single account"
// @Success 202 {object} object{task_id=string,queue=string}
// @Failure 503 {object} services.ErrorResponse
// @Router /ledger/integrity/jobs [post]
func (h *IntegrityHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		services.SendErrorResponse(w, "Background worker is not configured", http.StatusServiceUnavailable, nil)
		return
	}

	var accountID int64
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, h.log, services.NewValidationError("account_id", "must be a positive integer"))
			return
		}
		accountID = id
	}

	info, err := h.jobs.EnqueueIntegrityCheck(r.Context(), accountID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": info.ID, "queue": info.Queue})
}
