package httputil

import (
	"net/http"
	"strconv"
)

// ParseIntParam parses an integer query parameter with a default value.
// Returns defaultVal if the parameter is empty or invalid.
func ParseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return defaultVal
}

// ParseBoolParam parses a boolean query parameter. Returns nil when the
// parameter is absent or unparseable, so callers can tell "not filtered"
// apart from an explicit true/false.
func ParseBoolParam(s string) *bool {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil
	}
	return &v
}

// Pagination represents common pagination parameters for API responses.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total,omitempty"`
}

// ParsePagination extracts pagination parameters from the query string.
// It enforces sensible defaults and maximum limits to prevent abuse.
//
// Example:
//
//	pagination := httputil.ParsePagination(r, 50, 1000)
//	// Use pagination.Page and pagination.Limit for database queries
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	page := ParseIntParam(r.URL.Query().Get("page"), 1)
	limit := ParseIntParam(r.URL.Query().Get("limit"), defaultLimit)

	if limit > maxLimit {
		limit = maxLimit
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if page < 1 {
		page = 1
	}

	return Pagination{
		Page:  page,
		Limit: limit,
	}
}

// Offset calculates the database offset for pagination.
// Returns (page-1) * limit for use in SQL OFFSET clauses.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}
