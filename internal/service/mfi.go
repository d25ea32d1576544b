package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	cfotel "github.com/Strob0t/mfi-api/internal/adapter/otel"
	"github.com/Strob0t/mfi-api/internal/domain"
	"github.com/Strob0t/mfi-api/internal/domain/audit"
	"github.com/Strob0t/mfi-api/internal/domain/branch"
	"github.com/Strob0t/mfi-api/internal/domain/mfi"
	"github.com/Strob0t/mfi-api/internal/domain/page"
	"github.com/Strob0t/mfi-api/internal/port/blobstore"
	"github.com/Strob0t/mfi-api/internal/port/database"
	"github.com/Strob0t/mfi-api/internal/resilience"
)

// MFIService manages the single MFI record and its head office.
type MFIService struct {
	store   database.Store
	blobs   blobstore.Store
	breaker *resilience.Breaker
	audit   *AuditTrail
	metrics *cfotel.Metrics
	rand    io.Reader // nil = crypto/rand
}

var entityMFI = metric.WithAttributes(attribute.String("entity", "MFI"))

// NewMFIService creates a new MFIService. breaker may be nil.
func NewMFIService(store database.Store, blobs blobstore.Store, breaker *resilience.Breaker, trail *AuditTrail) *MFIService {
	return &MFIService{store: store, blobs: blobs, breaker: breaker, audit: trail}
}

// SetMetrics sets the OTEL metrics instruments.
func (s *MFIService) SetMetrics(m *cfotel.Metrics) {
	s.metrics = m
}

// Create bootstraps the MFI together with its "Head Office" branch.
func (s *MFIService) Create(ctx context.Context, req *mfi.CreateRequest) (*mfi.MFI, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	_, err := s.store.GetMFI(ctx, mfi.Query{})
	switch {
	case err == nil:
		return nil, fmt.Errorf("MFI already exists: %w", domain.ErrConflict)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("check existing mfi: %w", err)
	}

	if req.LogoFile != nil {
		url, err := s.uploadLogo(ctx, req.Name, req.LogoFile)
		if err != nil {
			return nil, err
		}
		req.Logo = url
	}

	var created *mfi.MFI
	txCtx, span := cfotel.StartTxSpan(ctx, "mfi.create", req.Name)
	err = s.store.InTx(txCtx, func(tx database.Store) error {
		ctx := txCtx
		m, err := tx.CreateMFI(ctx, req.Record())
		if err != nil {
			return err
		}
		hq, err := tx.CreateBranch(ctx, headOffice(m))
		if err != nil {
			return fmt.Errorf("create head office: %w", err)
		}
		m.Branches = []string{hq.ID}
		if err := tx.SetMFIBranches(ctx, m.ID, m.Branches); err != nil {
			return err
		}
		created = m
		return nil
	})
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordsCreated.Add(ctx, 1, entityMFI)
		s.metrics.RecordsCreated.Add(ctx, 1, entityBranch)
	}

	slog.InfoContext(ctx, "mfi created", "mfi_id", created.ID, "head_office", created.Branches[0])
	s.audit.Track(ctx, audit.MFICreate, created.ID, "MFI "+created.Name+" created", nil)
	return created, nil
}

func headOffice(m *mfi.MFI) *branch.Branch {
	return &branch.Branch{
		MFIID:      m.ID,
		Name:       mfi.HeadOfficeName,
		BranchType: mfi.HeadOfficeName,
		Location:   m.Location,
		Phone:      m.Phone,
		Email:      m.Email,
		Status:     branch.StatusActive,
		Weredas:    []string{},
	}
}

func (s *MFIService) uploadLogo(ctx context.Context, name string, f *mfi.Upload) (string, error) {
	if s.blobs == nil {
		return "", fmt.Errorf("logo upload: no blob store configured: %w", domain.ErrUpstream)
	}
	objName, err := mfi.LogoAssetName(name, f.Filename, s.rand)
	if err != nil {
		return "", err
	}
	if err := blobstore.ValidName(objName); err != nil {
		return "", domain.Invalid("logo", err.Error())
	}

	ctx, span := cfotel.StartUploadSpan(ctx, objName, f.Size)
	defer span.End()
	start := time.Now()

	var url string
	put := func() error {
		var err error
		url, err = s.blobs.Put(ctx, objName, f.ContentType, f.Size, f.Body)
		if errors.Is(err, blobstore.ErrInvalidName) {
			return resilience.Neutral(err)
		}
		return err
	}
	if s.breaker != nil {
		err = s.breaker.Execute(put)
	} else {
		err = put()
	}
	if s.metrics != nil {
		s.metrics.UploadDuration.Record(ctx, time.Since(start).Seconds())
	}
	switch {
	case err == nil:
	case errors.Is(err, blobstore.ErrInvalidName):
		span.SetStatus(codes.Error, err.Error())
		return "", domain.Invalid("logo", err.Error())
	case errors.Is(err, context.Canceled):
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("upload logo %s: %w", objName, err)
	default:
		span.SetStatus(codes.Error, err.Error())
		if s.metrics != nil {
			s.metrics.UploadFailures.Add(ctx, 1)
		}
		return "", fmt.Errorf("upload logo %s: %w: %w", objName, domain.ErrUpstream, err)
	}
	return url, nil
}

func (s *MFIService) countUpdate(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.RecordsUpdated.Add(ctx, 1, entityMFI)
	}
}

// Get returns the MFI by id.
func (s *MFIService) Get(ctx context.Context, id string) (*mfi.MFI, error) {
	m, err := s.store.GetMFI(ctx, mfi.Query{ID: id})
	if err != nil {
		return nil, err
	}
	s.audit.Track(ctx, audit.MFIView, m.ID, "MFI viewed", nil)
	return m, nil
}

// Update applies a partial update.
func (s *MFIService) Update(ctx context.Context, id string, p mfi.Patch) (*mfi.MFI, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	m, err := s.store.UpdateMFI(ctx, id, p)
	if err != nil {
		return nil, err
	}
	s.countUpdate(ctx)
	s.audit.Track(ctx, audit.MFIUpdate, m.ID, "MFI updated", p.Diff())
	return m, nil
}

// UpdateStatus toggles the MFI's active flag.
func (s *MFIService) UpdateStatus(ctx context.Context, id string, req mfi.StatusRequest) (*mfi.MFI, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p := req.Patch()
	m, err := s.store.UpdateMFI(ctx, id, p)
	if err != nil {
		return nil, err
	}
	s.countUpdate(ctx)
	s.audit.Track(ctx, audit.MFIStatusUpdate, m.ID, "MFI status updated", p.Diff())
	return m, nil
}

// Each streams every MFI to fn.
func (s *MFIService) Each(ctx context.Context, fn func(*mfi.MFI) error) error {
	return s.store.EachMFI(ctx, fn)
}

// Paginate returns one page of MFIs.
func (s *MFIService) Paginate(ctx context.Context, q page.Query) (*page.Result[mfi.MFI], error) {
	return s.store.PageMFIs(ctx, q)
}

// Remove deletes the MFI and every branch it owns.
func (s *MFIService) Remove(ctx context.Context, id string) (*mfi.MFI, error) {
	var (
		deleted *mfi.MFI
		removed int64
	)
	txCtx, span := cfotel.StartTxSpan(ctx, "mfi.remove", id)
	err := s.store.InTx(txCtx, func(tx database.Store) error {
		ctx := txCtx
		if _, err := tx.GetMFI(ctx, mfi.Query{ID: id, ForUpdate: true}); err != nil {
			return err
		}
		n, err := tx.DeleteBranchesByMFI(ctx, id)
		if err != nil {
			return err
		}
		m, err := tx.DeleteMFI(ctx, id)
		if err != nil {
			return err
		}
		deleted, removed = m, n
		return nil
	})
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordsDeleted.Add(ctx, 1, entityMFI)
		s.metrics.RecordsDeleted.Add(ctx, removed, entityBranch)
	}

	slog.InfoContext(ctx, "mfi removed", "mfi_id", id, "branches_removed", removed)
	s.audit.Track(ctx, audit.MFIDelete, id, fmt.Sprintf("MFI removed with %d branches", removed), nil)
	return deleted, nil
}

// Logo returns the logo URL of the MFI.
func (s *MFIService) Logo(ctx context.Context) (string, error) {
	m, err := s.store.GetMFI(ctx, mfi.Query{})
	if err != nil {
		return "", err
	}
	if m.Logo == "" {
		return "", fmt.Errorf("mfi logo: %w", domain.ErrNotFound)
	}
	return m.Logo, nil
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
