package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ListQuery is the committed query of one listing screen.
type ListQuery struct {
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TextSearch string            `json:"search"`
	Filters    map[string]string `json:"filters"`
}

// Clone returns a deep copy of the query.
func (q ListQuery) Clone() ListQuery {
	out := q
	out.Filters = CloneFilters(q.Filters)
	return out
}

// FilterKeys returns the non-empty filter keys in a stable order.
func (q ListQuery) FilterKeys() []string {
	keys := make([]string, 0, len(q.Filters))
	for k, v := range q.Filters {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// CloneFilters copies a filter map, dropping empty values.
func CloneFilters(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if strings.TrimSpace(v) == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Row is an opaque entity record as returned by the backend.
type Row map[string]interface{}

// Value returns the field rendered as a string, or "" when absent.
func (r Row) Value(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(t)
	}
}

// IsActive interprets the status column the way the listings count it.
func (r Row) IsActive() bool {
	switch strings.ToLower(r.Value("status")) {
	case "active", "1", "true":
		return true
	default:
		return false
	}
}

// PageResult is the normalised result of one listing fetch.
type PageResult struct {
	Rows          []Row `json:"rows"`
	Total         int   `json:"total"`
	ActiveCount   int   `json:"active"`
	InactiveCount int   `json:"inactive"`
	CurrentPage   int   `json:"current_page"`
	LastPage      int   `json:"last_page"`
	RangeFrom     int   `json:"from"`
	RangeTo       int   `json:"to"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalCount int  `json:"total_count"`
	LastPage   int  `json:"last_page"`
	From       int  `json:"from"`
	To         int  `json:"to"`
	HasPrev    bool `json:"has_prev"`
	HasNext    bool `json:"has_next"`
}

// DeletionRequest is the row awaiting delete confirmation.
type DeletionRequest struct {
	TargetID          string `json:"target_id"`
	TargetDisplayName string `json:"target_display_name"`
}
