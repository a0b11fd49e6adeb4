package httputil

import "net/http"

// JSONAPIResource represents a single JSON:API resource.
type JSONAPIResource struct {
	Type       string      `json:"type"`
	ID         string      `json:"id"`
	Attributes interface{} `json:"attributes"`
}

// WriteJSONAPIResource writes a single JSON:API resource response.
//
// Example:
//
//	httputil.WriteJSONAPIResource(w, http.StatusOK, "message", msg.ID, msg)
func WriteJSONAPIResource(w http.ResponseWriter, status int, resourceType, id string, attributes interface{}) {
	response := map[string]interface{}{
		"data": JSONAPIResource{
			Type:       resourceType,
			ID:         id,
			Attributes: attributes,
		},
	}
	WriteJSONAPI(w, status, response)
}

// WriteJSONAPICollection writes a JSON:API collection response with optional
// pagination metadata. Each item supplies its own ID via the ids slice, which
// must be the same length as items.
func WriteJSONAPICollection(w http.ResponseWriter, status int, resourceType string, ids []string, items []interface{}, pagination *Pagination) {
	data := make([]JSONAPIResource, len(items))
	for i, item := range items {
		id := ""
		if i < len(ids) {
			id = ids[i]
		}
		data[i] = JSONAPIResource{
			Type:       resourceType,
			ID:         id,
			Attributes: item,
		}
	}

	response := map[string]interface{}{
		"data": data,
	}

	if pagination != nil {
		totalPages := 0
		if pagination.Limit > 0 {
			totalPages = (pagination.Total + pagination.Limit - 1) / pagination.Limit
		}
		response["meta"] = map[string]interface{}{
			"pagination": map[string]interface{}{
				"page":        pagination.Page,
				"limit":       pagination.Limit,
				"total":       pagination.Total,
				"total_pages": totalPages,
			},
		}
	}

	WriteJSONAPI(w, status, response)
}

// WriteJSONAPIValidationError writes a validation error response.
func WriteJSONAPIValidationError(w http.ResponseWriter, detail string) {
	WriteJSONAPIError(w, http.StatusBadRequest, "validation_failed", "Validation Failed", detail)
}

// WriteJSONAPINotFoundError writes a 404 not found error response.
func WriteJSONAPINotFoundError(w http.ResponseWriter, resourceType, id string) {
	WriteJSONAPIError(w, http.StatusNotFound, "not_found", "Resource Not Found",
		"The requested "+resourceType+" with ID '"+id+"' was not found")
}

// WriteJSONAPIInternalError writes a 500 internal server error response.
// Use this sparingly and ensure errors are logged with context.
func WriteJSONAPIInternalError(w http.ResponseWriter, detail string) {
	WriteJSONAPIError(w, http.StatusInternalServerError, "internal_error", "Internal Server Error", detail)
}
