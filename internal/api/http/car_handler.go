package http

import (
	"net/http"
	"strconv"
	"time"

	"carbooking-backend/internal/pricing"
	"carbooking-backend/internal/service"

	"github.com/gorilla/mux"
)

// CarHandler serves the public availability and quote lookups.
type CarHandler struct {
	availabilitySvc service.AvailabilityService
	bookingSvc      service.BookingService
}

func NewCarHandler(availabilitySvc service.AvailabilityService, bookingSvc service.BookingService) *CarHandler {
	return &CarHandler{availabilitySvc: availabilitySvc, bookingSvc: bookingSvc}
}

func (h *CarHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/cars/{id}/availability", h.Availability).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/cars/{id}/quote", h.Quote).Methods(http.MethodGet)
}

// Availability expects RFC 3339 start and end query parameters. Conflicting
// windows are returned without the booking ids that hold them.
func (h *CarHandler) Availability(w http.ResponseWriter, r *http.Request) {
	h.windows(w, r, false)
}

func (h *CarHandler) windows(w http.ResponseWriter, r *http.Request, withBookingIDs bool) {
	carID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "id", err.Error())
		return
	}
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("start"))
	if err != nil {
		writeBadRequest(w, "start", "must be an RFC 3339 timestamp")
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end"))
	if err != nil {
		writeBadRequest(w, "end", "must be an RFC 3339 timestamp")
		return
	}

	conflicts, err := h.availabilitySvc.ListConflicts(r.Context(), carID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !withBookingIDs {
		for i := range conflicts {
			conflicts[i].BookingID = 0
		}
	}
	writeJSON(w, http.StatusOK, availabilityResponse{
		CarID:     carID,
		Available: len(conflicts) == 0,
		Conflicts: conflicts,
	})
}

func (h *CarHandler) Quote(w http.ResponseWriter, r *http.Request) {
	carID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "id", err.Error())
		return
	}
	q := r.URL.Query()
	hours, err := strconv.Atoi(q.Get("duration_hours"))
	if err != nil {
		writeBadRequest(w, "duration_hours", "must be an integer")
		return
	}
	req := pricing.QuoteRequest{
		DurationHours: hours,
		WithDriver:    q.Get("with_driver") == "true",
		HomeDelivery:  q.Get("home_delivery") == "true",
	}
	if raw := q.Get("distance_km"); raw != "" {
		req.DeliveryDistanceKm, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			writeBadRequest(w, "distance_km", "must be a number")
			return
		}
	}

	quote, err := h.bookingSvc.Quote(r.Context(), carID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}
