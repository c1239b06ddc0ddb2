package http

import (
	"context"
	"net/http"
	"time"

	"carbooking-backend/internal/security"

	"github.com/gorilla/mux"
)

// RouteRegistrar adds a group of endpoints to the router.
type RouteRegistrar interface {
	Register(r *mux.Router)
}

// Pinger reports whether a backing dependency is reachable.
type Pinger func(ctx context.Context) error

// NewRouter wires the auth middleware in front of every registered group.
// Route templates must match the keys in config.EndpointSecurityConfig.
func NewRouter(tokens security.TokenManager, ping Pinger, registrars ...RouteRegistrar) *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware)
	r.Use(NewAuthMiddleware(tokens).Handler)

	r.HandleFunc("/health", healthHandler(ping)).Methods(http.MethodGet)
	for _, reg := range registrars {
		reg.Register(r)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "route not found"})
	})
	return r
}

func healthHandler(ping Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
