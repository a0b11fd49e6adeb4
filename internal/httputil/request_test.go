package httputil

import (
	"net/http/httptest"
	"testing"
)

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		defaultVal int
		expected   int
	}{
		{name: "valid number", input: "42", defaultVal: 1, expected: 42},
		{name: "empty string uses default", input: "", defaultVal: 10, expected: 10},
		{name: "invalid string uses default", input: "abc", defaultVal: 5, expected: 5},
		{name: "negative number parses", input: "-3", defaultVal: 1, expected: -3},
		{name: "zero parses", input: "0", defaultVal: 1, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseIntParam(tt.input, tt.defaultVal); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestParseBoolParam(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *bool
	}{
		{name: "true", input: "true", expected: boolPtr(true)},
		{name: "false", input: "false", expected: boolPtr(false)},
		{name: "numeric true", input: "1", expected: boolPtr(true)},
		{name: "empty is nil", input: "", expected: nil},
		{name: "garbage is nil", input: "maybe", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseBoolParam(tt.input)
			if (got == nil) != (tt.expected == nil) {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
			if got != nil && *got != *tt.expected {
				t.Errorf("expected %v, got %v", *tt.expected, *got)
			}
		})
	}
}

func boolPtr(b bool) *bool { return &b }

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		defaultLimit  int
		maxLimit      int
		expectedPage  int
		expectedLimit int
	}{
		{
			name:          "defaults when absent",
			query:         "",
			defaultLimit:  50,
			maxLimit:      1000,
			expectedPage:  1,
			expectedLimit: 50,
		},
		{
			name:          "explicit values",
			query:         "?page=3&limit=25",
			defaultLimit:  50,
			maxLimit:      1000,
			expectedPage:  3,
			expectedLimit: 25,
		},
		{
			name:          "limit capped at max",
			query:         "?limit=5000",
			defaultLimit:  50,
			maxLimit:      1000,
			expectedPage:  1,
			expectedLimit: 1000,
		},
		{
			name:          "page below 1 clamped",
			query:         "?page=0",
			defaultLimit:  50,
			maxLimit:      1000,
			expectedPage:  1,
			expectedLimit: 50,
		},
		{
			name:          "zero limit falls back to default",
			query:         "?limit=0",
			defaultLimit:  50,
			maxLimit:      1000,
			expectedPage:  1,
			expectedLimit: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/messages"+tt.query, nil)
			p := ParsePagination(req, tt.defaultLimit, tt.maxLimit)
			if p.Page != tt.expectedPage {
				t.Errorf("expected page %d, got %d", tt.expectedPage, p.Page)
			}
			if p.Limit != tt.expectedLimit {
				t.Errorf("expected limit %d, got %d", tt.expectedLimit, p.Limit)
			}
		})
	}
}

func TestPaginationOffset(t *testing.T) {
	tests := []struct {
		page     int
		limit    int
		expected int
	}{
		{page: 1, limit: 50, expected: 0},
		{page: 2, limit: 50, expected: 50},
		{page: 4, limit: 25, expected: 75},
	}

	for _, tt := range tests {
		p := Pagination{Page: tt.page, Limit: tt.limit}
		if got := p.Offset(); got != tt.expected {
			t.Errorf("page %d limit %d: expected offset %d, got %d", tt.page, tt.limit, tt.expected, got)
		}
	}
}
