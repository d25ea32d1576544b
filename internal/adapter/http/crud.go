package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Strob0t/mfi-api/internal/domain/page"
)

// ---------------------------------------------------------------------------
// Generic CRUD handler factories
// ---------------------------------------------------------------------------

// flushEvery is the number of streamed documents between explicit flushes.
const flushEvery = 64

// handleGet creates a handler that retrieves a single resource by URL param "id".
func handleGet[T any](getFn func(ctx context.Context, id string) (*T, error), o op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := getFn(r.Context(), urlParam(r, "id"))
		if err != nil {
			writeDomainError(w, r, err, o)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// handleUpdate creates a handler that decodes a JSON body and updates a resource by URL param "id".
func handleUpdate[Req any, Res any](bodyLimit int64, updateFn func(ctx context.Context, id string, req Req) (*Res, error), o op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := urlParam(r, "id")
		req, ok := readJSON[Req](w, r, bodyLimit, o)
		if !ok {
			return
		}
		res, err := updateFn(r.Context(), id, req)
		if err != nil {
			writeDomainError(w, r, err, o)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// handleRemove creates a handler that deletes a resource by URL param "id"
// and answers with the deleted record.
func handleRemove[T any](removeFn func(ctx context.Context, id string) (*T, error), o op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := removeFn(r.Context(), urlParam(r, "id"))
		if err != nil {
			writeDomainError(w, r, err, o)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// handlePaginate creates a handler that reads page, per_page and sort_by from
// the query string and returns one page of the collection.
func handlePaginate[T any](sortFields map[string]bool, pageFn func(ctx context.Context, q page.Query) (*page.Result[T], error), o op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs := r.URL.Query()
		q, err := page.Parse(qs.Get("page"), qs.Get("per_page"), qs.Get("sort_by"), sortFields)
		if err != nil {
			writeDomainError(w, r, err, o)
			return
		}
		res, err := pageFn(r.Context(), q)
		if err != nil {
			writeDomainError(w, r, err, o)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// streamJSON writes the documents produced by each as a JSON array without
// buffering the collection. Errors raised before the first document become a
// problem response; later errors can only end the stream early.
func streamJSON[T any](w http.ResponseWriter, r *http.Request, o op, each func(fn func(*T) error) error) {
	rc := http.NewResponseController(w)
	n := 0
	err := each(func(doc *T) error {
		b, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		if n == 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			b = append([]byte{'['}, b...)
		} else {
			b = append([]byte{','}, b...)
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
		n++
		if n%flushEvery == 0 {
			_ = rc.Flush()
		}
		return nil
	})

	switch {
	case err != nil && n == 0:
		writeDomainError(w, r, err, o)
	case err != nil:
		slog.ErrorContext(r.Context(), "stream aborted", "type", o.typ, "written", n, "error", err)
	case n == 0:
		writeJSON(w, http.StatusOK, []T{})
	default:
		_, _ = w.Write([]byte("]\n"))
	}
}
