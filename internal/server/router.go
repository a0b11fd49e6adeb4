// Package server provides HTTP server setup for the tramita service.
package server

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tramita-io/tramita/internal/handlers"
	"github.com/tramita-io/tramita/internal/middleware"
)

// NewRouter constructs a ServeMux with tramita API routes registered.
func NewRouter(h *handlers.Handler, cors middleware.CORSConfig) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints
	mux.HandleFunc("/healthz", h.HealthCheck)
	mux.HandleFunc("/readyz", h.ReadyCheck)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	// Message routes (under /api/v1/ prefix)
	mux.HandleFunc("/api/v1/messages", h.MessagesHandler)
	mux.HandleFunc("/api/v1/messages/", messageRouteHandler(h))

	// User routes
	mux.HandleFunc("/api/v1/users/", userRouteHandler(h))

	// Process routes
	mux.HandleFunc("/api/v1/processes/", processRouteHandler(h))

	// Archive search
	mux.HandleFunc("/api/v1/archive/search", h.ArchiveSearchHandler)

	return middleware.RequestID(middleware.CORS(cors)(mux))
}

// messageRouteHandler routes /api/v1/messages/{id}/* requests to appropriate handlers
func messageRouteHandler(h *handlers.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Check for sub-routes
		switch {
		case strings.HasSuffix(path, "/visualize"):
			h.VisualizeMessageHandler(w, r)
		case strings.HasSuffix(path, "/archive"):
			h.ArchiveMessageHandler(w, r)
		default:
			// Handle /api/v1/messages/{id} directly
			h.MessageHandler(w, r)
		}
	}
}

// userRouteHandler routes /api/v1/users/{id}/* requests to appropriate handlers
func userRouteHandler(h *handlers.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/unread"):
			h.UnreadCountHandler(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}

// processRouteHandler routes /api/v1/processes/{id}/* requests to appropriate handlers
func processRouteHandler(h *handlers.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/history"):
			h.ProcessHistoryHandler(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}
