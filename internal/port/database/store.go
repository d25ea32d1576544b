// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/mfi-api/internal/domain/access"
	"github.com/Strob0t/mfi-api/internal/domain/audit"
	"github.com/Strob0t/mfi-api/internal/domain/branch"
	"github.com/Strob0t/mfi-api/internal/domain/mfi"
	"github.com/Strob0t/mfi-api/internal/domain/page"
)

// Store is the port interface for database operations. Lookups of a missing
// record return an error wrapping domain.ErrNotFound.
type Store interface {
	// MFI
	CreateMFI(ctx context.Context, m *mfi.MFI) (*mfi.MFI, error)
	GetMFI(ctx context.Context, q mfi.Query) (*mfi.MFI, error)
	UpdateMFI(ctx context.Context, id string, p mfi.Patch) (*mfi.MFI, error)
	SetMFIBranches(ctx context.Context, id string, branches []string) error
	DeleteMFI(ctx context.Context, id string) (*mfi.MFI, error)
	EachMFI(ctx context.Context, fn func(*mfi.MFI) error) error
	PageMFIs(ctx context.Context, q page.Query) (*page.Result[mfi.MFI], error)

	// Branches
	CreateBranch(ctx context.Context, b *branch.Branch) (*branch.Branch, error)
	GetBranch(ctx context.Context, id string) (*branch.Branch, error)
	GetBranchByName(ctx context.Context, name string) (*branch.Branch, error)
	UpdateBranch(ctx context.Context, id string, p branch.Patch) (*branch.Branch, error)
	DeleteBranch(ctx context.Context, id string) (*branch.Branch, error)
	DeleteBranchesByMFI(ctx context.Context, mfiID string) (int64, error)
	EachBranch(ctx context.Context, f branch.Filter, fn func(*branch.Branch) error) error
	PageBranches(ctx context.Context, f branch.Filter, q page.Query) (*page.Result[branch.Branch], error)

	// Access control (read-only)
	GetAccountByUser(ctx context.Context, userID string) (*access.Account, error)
	GetRole(ctx context.Context, id string) (*access.Role, error)
	ListRoles(ctx context.Context) ([]access.Role, error)

	// Audit
	InsertAuditEvent(ctx context.Context, e *audit.Event) error

	// InTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(Store) error) error
}
