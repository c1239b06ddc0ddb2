package http

import (
	"net/http"

	"carbooking-backend/internal/domain"
	"carbooking-backend/internal/service"

	"github.com/gorilla/mux"
)

type NotificationHandler struct {
	notificationSvc service.NotificationService
}

func NewNotificationHandler(notificationSvc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationSvc: notificationSvc}
}

func (h *NotificationHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/notifications", h.List).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/notifications/{id}/read", h.MarkAsRead).Methods(http.MethodPost)
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	page := queryInt32(r, "page", 1)
	notes, total, err := h.notificationSvc.GetNotifications(r.Context(), actor.UserID, page, queryInt32(r, "page_size", 20))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse[domain.Notification]{Items: notes, Total: total, Page: page})
}

func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "id", err.Error())
		return
	}
	actor, _ := ActorFromContext(r.Context())
	if err := h.notificationSvc.MarkAsRead(r.Context(), actor.UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
