// Package handlers provides HTTP request handlers for the tramita service.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tramita-io/tramita/internal/httputil"
	"github.com/tramita-io/tramita/internal/models"
	"github.com/tramita-io/tramita/internal/service"
)

// Handler provides HTTP handlers for the tramita service
type Handler struct {
	svc *service.Service
}

// NewHandler creates a new Handler instance
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// =============================================================================
// Helper Methods
// =============================================================================

// extractIDFromPath extracts an ID from a URL path like /api/v1/messages/{id}
func extractIDFromPath(path, prefix string) string {
	remaining := strings.TrimPrefix(path, prefix)
	remaining = strings.TrimPrefix(remaining, "/")

	parts := strings.Split(remaining, "/")
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}

// writeServiceError maps service error types to HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *service.ValidationError
	var notFoundErr *service.NotFoundError
	var authErr *service.AuthorizationError
	var txErr *service.TransactionError

	switch {
	case errors.As(err, &validationErr):
		httputil.WriteJSONAPIValidationError(w, validationErr.Error())
	case errors.As(err, &notFoundErr):
		httputil.WriteJSONAPINotFoundError(w, notFoundErr.Resource, notFoundErr.ID)
	case errors.As(err, &authErr):
		httputil.WriteJSONAPIError(w, http.StatusBadRequest, "not_authorized", "Not Authorized", authErr.Error())
	case errors.As(err, &txErr):
		httputil.WriteJSONAPIInternalError(w, "Dispatch transaction failed")
	default:
		httputil.WriteJSONAPIInternalError(w, "An internal error occurred")
	}
}

// =============================================================================
// Health Check Handlers
// =============================================================================

// HealthCheck handles GET /healthz
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONAPI(w, http.StatusOK, models.HealthResponse{
		Status:  "ok",
		Service: "tramita",
	})
}

// ReadyCheck handles GET /readyz
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ready(r.Context()); err != nil {
		httputil.WriteJSONAPI(w, http.StatusServiceUnavailable, models.HealthResponse{
			Status:  "unavailable",
			Service: "tramita",
		})
		return
	}
	httputil.WriteJSONAPI(w, http.StatusOK, models.HealthResponse{
		Status:  "ready",
		Service: "tramita",
	})
}

// =============================================================================
// Message Handlers
// =============================================================================

// MessagesHandler handles /api/v1/messages routes
func (h *Handler) MessagesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.ListMessages(w, r)
	case http.MethodPost:
		h.SendMessage(w, r)
	default:
		httputil.WriteJSONAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed", "")
	}
}

// MessageHandler handles /api/v1/messages/{id} routes
func (h *Handler) MessageHandler(w http.ResponseWriter, r *http.Request) {
	id := extractIDFromPath(r.URL.Path, "/api/v1/messages")
	if id == "" {
		httputil.WriteJSONAPIValidationError(w, "Message ID required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.GetMessage(w, r, id)
	default:
		httputil.WriteJSONAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed", "")
	}
}

// SendMessage handles POST /api/v1/messages
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSONAPIValidationError(w, "Invalid request body")
		return
	}

	result, err := h.svc.SendMessage(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteJSONAPIResource(w, http.StatusCreated, "dispatch", result.Envelope.ID, result)
}

// ListMessages handles GET /api/v1/messages
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	pagination := httputil.ParsePagination(r, 50, 1000)
	query := r.URL.Query()

	req := &models.ListMessagesRequest{
		ReceiverID: query.Get("receiver_id"),
		SenderID:   query.Get("sender_id"),
		ProcessID:  query.Get("process_id"),
		Visualized: httputil.ParseBoolParam(query.Get("visualized")),
		Page:       pagination.Page,
		Limit:      pagination.Limit,
	}

	messages, total, err := h.svc.ListMessages(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ids := make([]string, len(messages))
	items := make([]interface{}, len(messages))
	for i, msg := range messages {
		ids[i] = msg.ID
		items[i] = msg
	}

	pagination.Total = total
	httputil.WriteJSONAPICollection(w, http.StatusOK, "message", ids, items, &pagination)
}

// GetMessage handles GET /api/v1/messages/{id}
func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request, id string) {
	msg, err := h.svc.GetMessage(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteJSONAPIResource(w, http.StatusOK, "message", msg.ID, msg)
}

// VisualizeMessageHandler handles POST /api/v1/messages/{id}/visualize
func (h *Handler) VisualizeMessageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed", "")
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/v1/messages")
	if id == "" {
		httputil.WriteJSONAPIValidationError(w, "Message ID required")
		return
	}

	msg, err := h.svc.MarkVisualized(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteJSONAPIResource(w, http.StatusOK, "message", msg.ID, msg)
}

// ArchiveMessageHandler handles POST /api/v1/messages/{id}/archive
func (h *Handler) ArchiveMessageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed", "")
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/v1/messages")
	if id == "" {
		httputil.WriteJSONAPIValidationError(w, "Message ID required")
		return
	}

	archived, err := h.svc.ArchiveMessage(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteJSONAPIResource(w, http.StatusOK, "archived-message", archived.ID, archived)
}

// =============================================================================
// User Handlers
// =============================================================================

// UnreadCountHandler handles GET /api/v1/users/{id}/unread
func (h *Handler) UnreadCountHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed", "")
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/v1/users")
	if id == "" {
		httputil.WriteJSONAPIValidationError(w, "User ID required")
		return
	}

	count, err := h.svc.UnreadCount(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteJSONAPI(w, http.StatusOK, map[string]interface{}{
		"user_id": id,
		"unread":  count,
	})
}

// =============================================================================
// Process Handlers
// =============================================================================

// ProcessHistoryHandler handles GET /api/v1/processes/{id}/history
func (h *Handler) ProcessHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed", "")
		return
	}

	id := extractIDFromPath(r.URL.Path, "/api/v1/processes")
	if id == "" {
		httputil.WriteJSONAPIValidationError(w, "Process ID required")
		return
	}

	states, err := h.svc.ProcessHistory(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ids := make([]string, len(states))
	items := make([]interface{}, len(states))
	for i, state := range states {
		ids[i] = state.ID
		items[i] = state
	}

	httputil.WriteJSONAPICollection(w, http.StatusOK, "process-state", ids, items, nil)
}

// =============================================================================
// Archive Handlers
// =============================================================================

// ArchiveSearchHandler handles GET /api/v1/archive/search
func (h *Handler) ArchiveSearchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONAPIError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed", "")
		return
	}

	query := r.URL.Query().Get("q")
	pagination := httputil.ParsePagination(r, 50, 1000)

	results, total, err := h.svc.SearchArchive(r.Context(), query, pagination.Page, pagination.Limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	ids := make([]string, len(results))
	items := make([]interface{}, len(results))
	for i, msg := range results {
		ids[i] = msg.ID
		items[i] = msg
	}

	pagination.Total = total
	httputil.WriteJSONAPICollection(w, http.StatusOK, "archived-message", ids, items, &pagination)
}
