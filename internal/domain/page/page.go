// Package page defines the pagination request and response envelope shared by
// every paginated listing.
package page

import (
	"math"
	"strconv"

	"github.com/Strob0t/mfi-api/internal/domain"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Query selects one page of a collection, optionally ordered by a single
// field in ascending order.
type Query struct {
	Page    int
	PerPage int
	SortBy  string
}

// Offset returns the number of rows to skip for this page.
func (q Query) Offset() int {
	return (q.Page - 1) * q.PerPage
}

// Result is the paginated envelope returned to clients.
type Result[T any] struct {
	TotalPages     int `json:"total_pages"`
	TotalDocsCount int `json:"total_docs_count"`
	Docs           []T `json:"docs"`
}

// NewResult builds a Result, computing the page count from total and perPage.
func NewResult[T any](docs []T, total, perPage int) *Result[T] {
	if docs == nil {
		docs = []T{}
	}
	return &Result[T]{
		TotalPages:     TotalPages(total, perPage),
		TotalDocsCount: total,
		Docs:           docs,
	}
}

// TotalPages returns ceil(total/perPage), with a minimum of 1.
func TotalPages(total, perPage int) int {
	if perPage <= 0 || total == 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}

// Parse builds a Query from raw query-string values. Empty values fall back
// to the defaults; sortBy must be one of allowedSort (empty means unsorted).
func Parse(rawPage, rawPerPage, sortBy string, allowedSort map[string]bool) (Query, error) {
	q := Query{Page: DefaultPage, PerPage: DefaultPerPage, SortBy: sortBy}

	if rawPage != "" {
		n, err := strconv.Atoi(rawPage)
		if err != nil || n < 1 {
			return q, domain.Invalid("page", "page must be a positive integer")
		}
		q.Page = n
	}
	if rawPerPage != "" {
		n, err := strconv.Atoi(rawPerPage)
		if err != nil || n < 1 {
			return q, domain.Invalid("per_page", "per_page must be a positive integer")
		}
		q.PerPage = min(n, MaxPerPage)
	}
	if q.Page-1 > math.MaxInt/q.PerPage {
		return q, domain.Invalid("page", "page is out of range")
	}
	if sortBy != "" && !allowedSort[sortBy] {
		return q, domain.Invalid("sort_by", "cannot sort by "+sortBy)
	}
	return q, nil
}
