package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const (
	maxRequests    = 100             // Maximum requests per window
	windowDuration = time.Minute * 5 // Window duration
)

// NewRouter creates and configures a new router with all API endpoints.
// metrics may be nil.
func NewRouter(h *Handlers, metrics http.Handler) *mux.Router {
	r := mux.NewRouter()

	if metrics != nil {
		r.Handle("/metrics", metrics).Methods("GET")
	}

	// Apply rate limiting middleware to all API routes
	limiter := NewRateLimiter(maxRequests, windowDuration)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(limiter.Middleware)

	api.HandleFunc("/online", h.Online).Methods("GET")
	api.HandleFunc("/controllers/{cid:[0-9]+}/hours", h.ControllerHours).Methods("GET")
	api.HandleFunc("/collector/stats", h.CollectorStats).Methods("GET")

	return r
}
