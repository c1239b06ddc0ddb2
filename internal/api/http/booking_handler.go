package http

import (
	"net/http"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/service"

	"github.com/gorilla/mux"
)

// BookingHandler serves the customer-facing booking endpoints.
type BookingHandler struct {
	bookingSvc service.BookingService
	paymentSvc service.PaymentService
}

func NewBookingHandler(bookingSvc service.BookingService, paymentSvc service.PaymentService) *BookingHandler {
	return &BookingHandler{bookingSvc: bookingSvc, paymentSvc: paymentSvc}
}

func (h *BookingHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/bookings", h.Submit).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/bookings", h.List).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/bookings/{id}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/bookings/{id}/cancel", h.Cancel).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/bookings/{id}/payment-order", h.CreatePaymentOrder).Methods(http.MethodPost)
}

func (h *BookingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	var req submitBookingRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	booking, err := h.bookingSvc.Submit(r.Context(), actor.UserID, req.toInput())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	page := queryInt32(r, "page", 1)
	bookings, total, err := h.bookingSvc.ListForCustomer(r.Context(), actor.UserID, page, queryInt32(r, "page_size", 20))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.Booking]{Items: bookings, Total: total, Page: page})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "id", err.Error())
		return
	}
	actor, _ := ActorFromContext(r.Context())
	booking, err := h.bookingSvc.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// Cancel serves both the customer and the admin cancel routes; the service checks ownership.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "id", err.Error())
		return
	}
	var req reasonRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	actor, _ := ActorFromContext(r.Context())
	booking, err := h.bookingSvc.Cancel(r.Context(), actor, id, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *BookingHandler) CreatePaymentOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "id", err.Error())
		return
	}
	var req paymentOrderRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	actor, _ := ActorFromContext(r.Context())
	order, err := h.paymentSvc.CreateOrder(r.Context(), actor.UserID, id, domain.PaymentProvider(req.Provider))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}
