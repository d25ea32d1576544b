package http

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/Strob0t/mfi-api/internal/domain"
	"github.com/Strob0t/mfi-api/internal/domain/mfi"
	"github.com/Strob0t/mfi-api/internal/middleware"
)

// multipartMemory is the part of a multipart body kept in memory; the rest
// spills to temporary files.
const multipartMemory = 1 << 20

// CreateMFI handles POST /MFI/create. The body is either JSON or a multipart
// form whose "logo" part may be the logo file itself.
func (h *Handlers) CreateMFI(w http.ResponseWriter, r *http.Request) {
	var (
		req *mfi.CreateRequest
		ok  bool
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		req, ok = h.readMFIForm(w, r)
		if r.MultipartForm != nil {
			defer func() { _ = r.MultipartForm.RemoveAll() }()
		}
	} else {
		var body mfi.CreateRequest
		body, ok = readJSON[mfi.CreateRequest](w, r, h.bodyLimit(), opMFICreate)
		req = &body
	}
	if !ok {
		return
	}

	m, err := h.MFIs.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err, opMFICreate)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// readMFIForm decodes a multipart create request. It writes the problem
// response itself and returns false on failure.
func (h *Handlers) readMFIForm(w http.ResponseWriter, r *http.Request) (*mfi.CreateRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.bodyLimit())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteProblem(w, http.StatusRequestEntityTooLarge, opMFICreate.typ, "request body too large", nil)
		} else {
			middleware.WriteProblem(w, http.StatusBadRequest, opMFICreate.typ, "invalid multipart body", nil)
		}
		return nil, false
	}

	req := &mfi.CreateRequest{
		Name:          r.FormValue("name"),
		Logo:          r.FormValue("logo"),
		Location:      r.FormValue("location"),
		WebsiteLink:   r.FormValue("website_link"),
		Email:         r.FormValue("email"),
		Phone:         r.FormValue("phone"),
		ContactPerson: r.FormValue("contact_person"),
	}
	if y := strings.TrimSpace(r.FormValue("establishment_year")); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil {
			writeDomainError(w, r, domain.Invalid("establishment_year", "establishment_year must be a number"), opMFICreate)
			return nil, false
		}
		req.EstablishmentYear = n
	}

	file, hdr, err := r.FormFile("logo")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		middleware.WriteProblem(w, http.StatusBadRequest, opMFICreate.typ, "invalid logo file", nil)
		return nil, false
	default:
		// The multipart form owns the file; RemoveAll releases it.
		req.LogoFile = &mfi.Upload{
			Filename:    hdr.Filename,
			ContentType: hdr.Header.Get("Content-Type"),
			Size:        hdr.Size,
			Body:        file,
		}
	}
	return req, true
}

// ListMFIs handles GET /MFI/all.
func (h *Handlers) ListMFIs(w http.ResponseWriter, r *http.Request) {
	streamJSON(w, r, opMFIList, func(fn func(*mfi.MFI) error) error {
		return h.MFIs.Each(r.Context(), fn)
	})
}

// PaginateMFIs handles GET /MFI/paginate.
func (h *Handlers) PaginateMFIs(w http.ResponseWriter, r *http.Request) {
	handlePaginate(mfi.SortFields, h.MFIs.Paginate, opMFIPaginate)(w, r)
}

// GetMFI handles GET /MFI/{id}.
func (h *Handlers) GetMFI(w http.ResponseWriter, r *http.Request) {
	handleGet(h.MFIs.Get, opMFIGet)(w, r)
}

// UpdateMFI handles PUT /MFI/{id}.
func (h *Handlers) UpdateMFI(w http.ResponseWriter, r *http.Request) {
	handleUpdate(h.bodyLimit(), h.MFIs.Update, opMFIUpdate)(w, r)
}

// UpdateMFIStatus handles PUT /MFI/{id}/status.
func (h *Handlers) UpdateMFIStatus(w http.ResponseWriter, r *http.Request) {
	handleUpdate(h.bodyLimit(), h.MFIs.UpdateStatus, opMFIStatus)(w, r)
}

// RemoveMFI handles DELETE /MFI/{id}.
func (h *Handlers) RemoveMFI(w http.ResponseWriter, r *http.Request) {
	handleRemove(h.MFIs.Remove, opMFIRemove)(w, r)
}

// MFILogo handles GET /MFI/logo by redirecting to the stored logo.
func (h *Handlers) MFILogo(w http.ResponseWriter, r *http.Request) {
	url, err := h.MFIs.Logo(r.Context())
	if err != nil {
		writeDomainError(w, r, err, opMFILogo)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}
