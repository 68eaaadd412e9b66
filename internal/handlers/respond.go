package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bankportal/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1_048_576

// errorResponse extends services.ErrorResponse with the reference of a
// transfer that was recorded as FAILED.
type errorResponse struct {
	services.ErrorResponse
	Reference string `json:"reference,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads exactly one JSON object into dst and reports whether it
// succeeded. On failure the 400 response is already written.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

// statusFor maps the service error taxonomy onto HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrDuplicateCode):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotReversible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrUnsupportedOperation):
		return http.StatusMethodNotAllowed
	case errors.Is(err, services.ErrQRUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	writeErrorWithReference(w, log, err, "")
}

func writeErrorWithReference(w http.ResponseWriter, log *zap.Logger, err error, reference string) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		message = "Internal server error"
	}

	resp := errorResponse{ErrorResponse: services.ErrorResponse{Error: message}, Reference: reference}
	var verr *services.ValidationError
	if errors.As(err, &verr) && len(verr.Fields) > 0 {
		resp.Details = verr.Fields
	}
	writeJSON(w, status, resp)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, services.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, services.NewValidationError("limit", "must be a non-negative integer")
	}
	return limit, nil
}

// queryTime accepts RFC 3339 timestamps or plain dates. A plain date used as
// an upper bound covers the whole day.
func queryTime(r *http.Request, name string, upper bool) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		if upper {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return &t, nil
	}
	return nil, services.NewValidationError(name, "must be an RFC 3339 timestamp or YYYY-MM-DD date")
}
