package http

import (
	"net/http"

	"github.com/Strob0t/mfi-api/internal/domain/branch"
)

// CreateBranch handles POST /MFI/branches/create.
func (h *Handlers) CreateBranch(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[branch.CreateRequest](w, r, h.bodyLimit(), opBranchCreate)
	if !ok {
		return
	}
	b, err := h.Branches.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, r, err, opBranchCreate)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// PaginateBranches handles GET /MFI/branches/paginate. The result is limited
// to the caller's branch scope.
func (h *Handlers) PaginateBranches(w http.ResponseWriter, r *http.Request) {
	handlePaginate(branch.SortFields, h.Branches.Paginate, opBranchPaginate)(w, r)
}

// SearchBranches handles GET /MFI/branches/search.
func (h *Handlers) SearchBranches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	streamJSON(w, r, opBranchSearch, func(fn func(*branch.Branch) error) error {
		return h.Branches.Search(r.Context(), q, fn)
	})
}

// GetBranch handles GET /MFI/branches/{id}.
func (h *Handlers) GetBranch(w http.ResponseWriter, r *http.Request) {
	handleGet(h.Branches.Get, opBranchGet)(w, r)
}

// UpdateBranch handles PUT /MFI/branches/{id}.
func (h *Handlers) UpdateBranch(w http.ResponseWriter, r *http.Request) {
	handleUpdate(h.bodyLimit(), h.Branches.Update, opBranchUpdate)(w, r)
}

// UpdateBranchStatus handles PUT /MFI/branches/{id}/status.
func (h *Handlers) UpdateBranchStatus(w http.ResponseWriter, r *http.Request) {
	handleUpdate(h.bodyLimit(), h.Branches.UpdateStatus, opBranchStatus)(w, r)
}

// RemoveBranch handles DELETE /MFI/branches/{id}.
func (h *Handlers) RemoveBranch(w http.ResponseWriter, r *http.Request) {
	handleRemove(h.Branches.Remove, opBranchRemove)(w, r)
}
