package http

import (
	"net/http"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/service"

	"github.com/gorilla/mux"
)

// AdminHandler serves the back-office lifecycle actions.
type AdminHandler struct {
	bookingSvc      service.BookingService
	paymentSvc      service.PaymentService
	availabilitySvc service.AvailabilityService
	cancel          http.HandlerFunc
}

func NewAdminHandler(bookingSvc service.BookingService, paymentSvc service.PaymentService, availabilitySvc service.AvailabilityService) *AdminHandler {
	return &AdminHandler{
		bookingSvc:      bookingSvc,
		paymentSvc:      paymentSvc,
		availabilitySvc: availabilitySvc,
		cancel:          NewBookingHandler(bookingSvc, paymentSvc).Cancel,
	}
}

func (h *AdminHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/admin/bookings/awaiting-payment", h.AwaitingPayment).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/admin/bookings/overdue", h.Overdue).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/admin/cars/{id}/bookings", h.CarBookings).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/admin/cars/{id}/conflicts", h.CarConflicts).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/admin/bookings/{id}/accept", h.Accept).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/admin/bookings/{id}/decline", h.Decline).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/admin/bookings/{id}/start", h.Start).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/admin/bookings/{id}/complete", h.Complete).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/admin/bookings/{id}/cancel", h.cancel).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/admin/bookings/{id}/refund", h.Refund).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/admin/bookings/{id}/reconcile", h.Reconcile).Methods(http.MethodPost)
}

func (h *AdminHandler) AwaitingPayment(w http.ResponseWriter, r *http.Request) {
	page := queryInt32(r, "page", 1)
	bookings, total, err := h.bookingSvc.ListAwaitingPayment(r.Context(), page, queryInt32(r, "page_size", 20))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.Booking]{Items: bookings, Total: total, Page: page})
}

func (h *AdminHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.bookingSvc.ListOverdue(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.Booking]{Items: bookings, Total: int32(len(bookings)), Page: 1})
}

func (h *AdminHandler) CarBookings(w http.ResponseWriter, r *http.Request) {
	carID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "id", err.Error())
		return
	}
	bookings, err := h.bookingSvc.ListForCar(r.Context(), carID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.Booking]{Items: bookings, Total: int32(len(bookings)), Page: 1})
}

func (h *AdminHandler) CarConflicts(w http.ResponseWriter, r *http.Request) {
	NewCarHandler(h.availabilitySvc, h.bookingSvc).windows(w, r, true)
}

func (h *AdminHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, &noteRequest{}, func(actor service.Actor, id int32, req any) (*domain.Booking, error) {
		return h.bookingSvc.Accept(r.Context(), actor.UserID, id, req.(*noteRequest).Note)
	})
}

func (h *AdminHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, &declineRequest{}, func(actor service.Actor, id int32, req any) (*domain.Booking, error) {
		return h.bookingSvc.Decline(r.Context(), actor.UserID, id, req.(*declineRequest).Reason)
	})
}

func (h *AdminHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, &startRequest{}, func(actor service.Actor, id int32, req any) (*domain.Booking, error) {
		in := req.(*startRequest)
		return h.bookingSvc.Start(r.Context(), actor.UserID, id, service.HandoverInput{
			VehicleName:   in.VehicleName,
			PlateNumber:   in.PlateNumber,
			StartOdometer: in.StartOdometer,
		})
	})
}

func (h *AdminHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, &completeRequest{}, func(actor service.Actor, id int32, req any) (*domain.Booking, error) {
		in := req.(*completeRequest)
		return h.bookingSvc.Complete(r.Context(), actor.UserID, id, service.ReturnInput{
			EndOdometer:  in.EndOdometer,
			ActualReturn: in.ActualReturn,
		})
	})
}

func (h *AdminHandler) Refund(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, &refundRequest{}, func(actor service.Actor, id int32, req any) (*domain.Booking, error) {
		return h.paymentSvc.Refund(r.Context(), actor.UserID, id, req.(*refundRequest).Amount)
	})
}

func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, &struct{}{}, func(_ service.Actor, id int32, _ any) (*domain.Booking, error) {
		return h.paymentSvc.Reconcile(r.Context(), id)
	})
}

// act decodes the body into req, then runs one booking action for the path id.
func (h *AdminHandler) act(w http.ResponseWriter, r *http.Request, req any, fn func(service.Actor, int32, any) (*domain.Booking, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "id", err.Error())
		return
	}
	if err := decodeAndValidate(r, req); err != nil {
		writeError(w, r, err)
		return
	}
	actor, _ := ActorFromContext(r.Context())
	booking, err := fn(actor, id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}
