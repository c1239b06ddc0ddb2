package http

import (
	"io"
	"net/http"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/logger"
	"carbooking-backend/internal/payment"
	"carbooking-backend/internal/service"

	"github.com/gorilla/mux"
)

// PaymentHandler accepts checkout callbacks from clients and webhooks from gateways.
type PaymentHandler struct {
	paymentSvc service.PaymentService
}

func NewPaymentHandler(paymentSvc service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

func (h *PaymentHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/payments/{provider}/verify", h.Verify).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/payments/{provider}/webhook", h.Webhook).Methods(http.MethodPost)
}

func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	provider := domain.PaymentProvider(mux.Vars(r)["provider"])
	var cb payment.Callback
	if err := decodeAndValidate(r, &cb); err != nil {
		writeError(w, r, err)
		return
	}
	booking, err := h.paymentSvc.VerifyCallback(r.Context(), provider, cb)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// Webhook hands the raw body to the gateway so the signature covers the exact bytes received.
// A non-2xx answer makes the gateway retry, so only signature and processing failures return one.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	provider := domain.PaymentProvider(mux.Vars(r)["provider"])
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeBadRequest(w, "body", "could not read request body")
		return
	}
	if err := h.paymentSvc.HandleWebhook(r.Context(), provider, payload, r.Header); err != nil {
		logger.Warn("Webhook rejected", "provider", provider, "error", err)
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
