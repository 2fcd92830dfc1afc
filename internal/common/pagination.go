package common

import (
	"net/http"
	"strconv"
)

// maxPerPage caps list sizes so a single request cannot dump whole tables.
const maxPerPage = 100

// Pagination holds pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
}

// ParsePagination extracts page and per-page parameters from query values.
// Accepts both "limit" and "per_page" for the page size.
func ParsePagination(r *http.Request, defaultPerPage int) (page, perPage int) {
	page = 1
	perPage = defaultPerPage
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	size := r.URL.Query().Get("limit")
	if size == "" {
		size = r.URL.Query().Get("per_page")
	}
	if l, err := strconv.Atoi(size); err == nil && l > 0 {
		perPage = l
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return
}
