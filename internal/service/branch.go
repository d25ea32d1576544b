package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cfotel "github.com/Strob0t/mfi-api/internal/adapter/otel"
	"github.com/Strob0t/mfi-api/internal/domain"
	"github.com/Strob0t/mfi-api/internal/domain/access"
	"github.com/Strob0t/mfi-api/internal/domain/audit"
	"github.com/Strob0t/mfi-api/internal/domain/branch"
	"github.com/Strob0t/mfi-api/internal/domain/mfi"
	"github.com/Strob0t/mfi-api/internal/domain/page"
	"github.com/Strob0t/mfi-api/internal/port/database"
)

// ErrNotBootstrapped is returned when a branch is created before the MFI.
var ErrNotBootstrapped = fmt.Errorf("MFI has not been bootstrapped: %w", domain.ErrConflict)

// BranchService manages branches. Every write keeps the MFI's branch list in
// step with the branch table, under the MFI row lock.
type BranchService struct {
	store   database.Store
	audit   *AuditTrail
	metrics *cfotel.Metrics
}

var entityBranch = metric.WithAttributes(attribute.String("entity", "BRANCH"))

// NewBranchService creates a new BranchService.
func NewBranchService(store database.Store, trail *AuditTrail) *BranchService {
	return &BranchService{store: store, audit: trail}
}

// SetMetrics sets the OTEL metrics instruments.
func (s *BranchService) SetMetrics(m *cfotel.Metrics) {
	s.metrics = m
}

func (s *BranchService) count(ctx context.Context, c func(*cfotel.Metrics) metric.Int64Counter) {
	if s.metrics != nil {
		c(s.metrics).Add(ctx, 1, entityBranch)
	}
}

func createdCounter(m *cfotel.Metrics) metric.Int64Counter { return m.RecordsCreated }
func updatedCounter(m *cfotel.Metrics) metric.Int64Counter { return m.RecordsUpdated }
func deletedCounter(m *cfotel.Metrics) metric.Int64Counter { return m.RecordsDeleted }

// Create adds a branch to the MFI.
func (s *BranchService) Create(ctx context.Context, req *branch.CreateRequest) (*branch.Branch, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var out *branch.Branch
	txCtx, span := cfotel.StartTxSpan(ctx, "branch.create", req.Name)
	err := s.store.InTx(txCtx, func(tx database.Store) error {
		ctx := txCtx
		m, err := tx.GetMFI(ctx, mfi.Query{ForUpdate: true})
		if errors.Is(err, domain.ErrNotFound) {
			return ErrNotBootstrapped
		}
		if err != nil {
			return err
		}

		rec := req.Record(m.ID)
		switch _, err := tx.GetBranchByName(ctx, rec.Name); {
		case err == nil:
			return fmt.Errorf("branch %q already exists: %w", rec.Name, domain.ErrConflict)
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		b, err := tx.CreateBranch(ctx, rec)
		if err != nil {
			return err
		}
		if err := tx.SetMFIBranches(ctx, m.ID, append(slices.Clone(m.Branches), b.ID)); err != nil {
			return err
		}
		out = b
		return nil
	})
	endSpan(span, err)
	if err != nil {
		return nil, err
	}

	s.count(ctx, createdCounter)
	s.audit.Track(ctx, audit.BranchCreate, out.ID, "Branch "+out.Name+" created", nil)
	return out, nil
}

// Get returns a branch by id.
func (s *BranchService) Get(ctx context.Context, id string) (*branch.Branch, error) {
	b, err := s.store.GetBranch(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit.Track(ctx, audit.BranchView, b.ID, "Branch viewed", nil)
	return b, nil
}

// Update applies a partial update. Renaming onto an existing name is a conflict.
func (s *BranchService) Update(ctx context.Context, id string, p branch.Patch) (*branch.Branch, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	b, err := s.store.UpdateBranch(ctx, id, p)
	if err != nil {
		return nil, err
	}
	s.count(ctx, updatedCounter)
	s.audit.Track(ctx, audit.BranchUpdate, b.ID, "Branch updated", p.Diff())
	return b, nil
}

// UpdateStatus activates or deactivates a branch.
func (s *BranchService) UpdateStatus(ctx context.Context, id string, req branch.StatusRequest) (*branch.Branch, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	p := branch.Patch{Status: &req.Status}
	b, err := s.store.UpdateBranch(ctx, id, p)
	if err != nil {
		return nil, err
	}
	s.count(ctx, updatedCounter)
	s.audit.Track(ctx, audit.BranchStatusUpdate, b.ID, "Branch status set to "+string(req.Status), p.Diff())
	return b, nil
}

// Paginate returns one page of the branches visible to the caller: the
// account's access branches, else its default branch, else all of them.
func (s *BranchService) Paginate(ctx context.Context, q page.Query) (*page.Result[branch.Branch], error) {
	f := branch.Filter{IDs: access.AuthorizationFrom(ctx).BranchScope()}
	return s.store.PageBranches(ctx, f, q)
}

// Search streams every branch matching the query parameters to fn.
func (s *BranchService) Search(ctx context.Context, q url.Values, fn func(*branch.Branch) error) error {
	f, err := branch.ParseSearch(q)
	if err != nil {
		return err
	}
	return s.store.EachBranch(ctx, f, fn)
}

// Remove deletes a branch and drops it from the MFI's branch list.
func (s *BranchService) Remove(ctx context.Context, id string) (*branch.Branch, error) {
	var out *branch.Branch
	txCtx, span := cfotel.StartTxSpan(ctx, "branch.remove", id)
	err := s.store.InTx(txCtx, func(tx database.Store) error {
		ctx := txCtx
		b, err := tx.GetBranch(ctx, id)
		if err != nil {
			return err
		}
		m, err := tx.GetMFI(ctx, mfi.Query{ID: b.MFIID, ForUpdate: true})
		if err != nil {
			return err
		}
		if out, err = tx.DeleteBranch(ctx, id); err != nil {
			return err
		}
		remaining := slices.DeleteFunc(slices.Clone(m.Branches), func(v string) bool { return v == id })
		return tx.SetMFIBranches(ctx, m.ID, remaining)
	})
	endSpan(span, err)
	if err != nil {
		return nil, err
	}

	s.count(ctx, deletedCounter)
	s.audit.Track(ctx, audit.BranchDelete, out.ID, "Branch "+out.Name+" removed", nil)
	return out, nil
}
