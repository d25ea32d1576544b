package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/mfi-api/internal/domain"
	"github.com/Strob0t/mfi-api/internal/middleware"
)

// Problem types, one per failed operation.
const (
	TypeMFICreate      = "MFI_CREATION_ERROR"
	TypeMFIRetrieve    = "MFI_RETRIEVAL_ERROR"
	TypeMFIUpdate      = "UPDATE_MFI_ERROR"
	TypeMFIStatus      = "MFI_STATUS_UPDATE_ERROR"
	TypeMFICollection  = "FETCH_MFIS_COLLECTION_ERROR"
	TypeMFIPaginate    = "FETCH_PAGINATED_MFIS_COLLECTION_ERROR"
	TypeMFIRemove      = "REMOVE_MFI_ERROR"
	TypeBranchCreate   = "BRANCH_CREATION_ERROR"
	TypeBranchRetrieve = "BRANCH_RETRIEVAL_ERROR"
	TypeBranchUpdate   = "UPDATE_BRANCH_ERROR"
	TypeBranchStatus   = "BRANCH_STATUS_UPDATE_ERROR"
	TypeBranchPaginate = "FETCH_PAGINATED_BRANCHS_COLLECTION_ERROR"
	TypeBranchSearch   = "BRANCH_SEARCH_ERROR"
	TypeBranchRemove   = "REMOVE_BRANCH_ERROR"
)

// op names the operation a handler performs: its problem type and the
// subject used in not-found messages.
type op struct {
	typ     string
	subject string
}

var (
	opMFICreate      = op{TypeMFICreate, "MFI"}
	opMFIGet         = op{TypeMFIRetrieve, "MFI"}
	opMFIUpdate      = op{TypeMFIUpdate, "MFI"}
	opMFIStatus      = op{TypeMFIStatus, "MFI"}
	opMFIList        = op{TypeMFICollection, "MFI"}
	opMFIPaginate    = op{TypeMFIPaginate, "MFI"}
	opMFIRemove      = op{TypeMFIRemove, "MFI"}
	opMFILogo        = op{TypeMFIRetrieve, "MFI logo"}
	opBranchCreate   = op{TypeBranchCreate, "Branch"}
	opBranchGet      = op{TypeBranchRetrieve, "Branch"}
	opBranchUpdate   = op{TypeBranchUpdate, "Branch"}
	opBranchStatus   = op{TypeBranchStatus, "Branch"}
	opBranchPaginate = op{TypeBranchPaginate, "Branch"}
	opBranchSearch   = op{TypeBranchSearch, "Branch"}
	opBranchRemove   = op{TypeBranchRemove, "Branch"}
)

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64, o op) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteProblem(w, http.StatusRequestEntityTooLarge, o.typ, "request body too large", nil)
		} else {
			middleware.WriteProblem(w, http.StatusBadRequest, o.typ, "invalid request body", []domain.FieldError{
				{Source: "body", Message: err.Error()},
			})
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// writeDomainError maps err onto a problem response of operation o.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, o op) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		middleware.WriteProblem(w, http.StatusBadRequest, o.typ, ve.Error(), ve.Fields)
	case errors.Is(err, domain.ErrValidation):
		middleware.WriteProblem(w, http.StatusBadRequest, o.typ, err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		middleware.WriteProblem(w, http.StatusNotFound, o.typ, o.subject+" not found", nil)
	case errors.Is(err, domain.ErrConflict):
		msg := strings.TrimSuffix(err.Error(), ": "+domain.ErrConflict.Error())
		middleware.WriteProblem(w, http.StatusConflict, o.typ, msg, nil)
	case errors.Is(err, domain.ErrForbidden):
		middleware.WriteProblem(w, http.StatusForbidden, middleware.TypeAuthorization, "forbidden", nil)
	case errors.Is(err, domain.ErrUpstream):
		slog.ErrorContext(r.Context(), "upstream failure", "type", o.typ, "error", err)
		middleware.WriteProblem(w, http.StatusBadGateway, o.typ, "upstream storage failure", nil)
	default:
		slog.ErrorContext(r.Context(), "request failed", "type", o.typ, "error", err)
		middleware.WriteProblem(w, http.StatusInternalServerError, o.typ, "internal server error", nil)
	}
}
