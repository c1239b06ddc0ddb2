package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/logger"
	"carbooking-backend/internal/payment"
	"carbooking-backend/internal/security"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

func writeBadRequest(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Field: field})
}

// writeError maps a service error onto an HTTP status. Unknown errors are logged and hidden.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, payment.ErrUnknownProvider):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPaymentVerificationFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, payment.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, security.ErrExpiredToken), errors.Is(err, security.ErrInvalidToken), errors.Is(err, security.ErrWrongTokenType):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConcurrentBookingConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
