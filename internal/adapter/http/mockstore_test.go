package http_test

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/Strob0t/mfi-api/internal/domain"
	"github.com/Strob0t/mfi-api/internal/domain/access"
	"github.com/Strob0t/mfi-api/internal/domain/audit"
	"github.com/Strob0t/mfi-api/internal/domain/branch"
	"github.com/Strob0t/mfi-api/internal/domain/mfi"
	"github.com/Strob0t/mfi-api/internal/domain/page"
	"github.com/Strob0t/mfi-api/internal/port/database"
)

var _ database.Store = (*mockStore)(nil)

// mockStore is an in-memory database.Store. Records are kept in insertion
// order so listings are deterministic.
type mockStore struct {
	mu       sync.Mutex
	mfis     []mfi.MFI
	branches []branch.Branch
	accounts map[string]access.Account
	roles    map[string]access.Role
	events   []audit.Event

	eachErr error
}

func newMockStore() *mockStore {
	return &mockStore{accounts: map[string]access.Account{}, roles: map[string]access.Role{}}
}

func (m *mockStore) id() string {
	return uuid.NewString()
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
}

func (m *mockStore) mfiIndex(id string) int {
	return slices.IndexFunc(m.mfis, func(v mfi.MFI) bool { return id == "" || v.ID == id })
}

func (m *mockStore) branchIndex(id string) int {
	return slices.IndexFunc(m.branches, func(v branch.Branch) bool { return v.ID == id })
}

func (m *mockStore) CreateMFI(_ context.Context, rec *mfi.MFI) (*mfi.MFI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := *rec
	v.ID = m.id()
	m.mfis = append(m.mfis, v)
	return &v, nil
}

func (m *mockStore) GetMFI(_ context.Context, q mfi.Query) (*mfi.MFI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.mfiIndex(q.ID)
	if i < 0 {
		return nil, notFound("mfi", q.ID)
	}
	v := m.mfis[i]
	v.Branches = slices.Clone(v.Branches)
	return &v, nil
}

func (m *mockStore) UpdateMFI(_ context.Context, id string, p mfi.Patch) (*mfi.MFI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.mfiIndex(id)
	if id == "" || i < 0 {
		return nil, notFound("mfi", id)
	}
	v := &m.mfis[i]
	if p.Name != nil {
		v.Name = *p.Name
	}
	if p.Location != nil {
		v.Location = *p.Location
	}
	if p.IsActive != nil {
		v.IsActive = *p.IsActive
	}
	out := *v
	return &out, nil
}

func (m *mockStore) SetMFIBranches(_ context.Context, id string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.mfiIndex(id)
	if i < 0 {
		return notFound("mfi", id)
	}
	m.mfis[i].Branches = slices.Clone(ids)
	return nil
}

func (m *mockStore) DeleteMFI(_ context.Context, id string) (*mfi.MFI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.mfiIndex(id)
	if id == "" || i < 0 {
		return nil, notFound("mfi", id)
	}
	v := m.mfis[i]
	m.mfis = slices.Delete(m.mfis, i, i+1)
	return &v, nil
}

func (m *mockStore) EachMFI(_ context.Context, fn func(*mfi.MFI) error) error {
	m.mu.Lock()
	all := slices.Clone(m.mfis)
	m.mu.Unlock()
	if m.eachErr != nil {
		return m.eachErr
	}
	for i := range all {
		if err := fn(&all[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockStore) PageMFIs(_ context.Context, q page.Query) (*page.Result[mfi.MFI], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page.NewResult(window(m.mfis, q), len(m.mfis), q.PerPage), nil
}

func window[T any](all []T, q page.Query) []T {
	lo := min(q.Offset(), len(all))
	hi := min(lo+q.PerPage, len(all))
	return slices.Clone(all[lo:hi])
}

func (m *mockStore) CreateBranch(_ context.Context, rec *branch.Branch) (*branch.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := *rec
	v.ID = m.id()
	m.branches = append(m.branches, v)
	return &v, nil
}

func (m *mockStore) GetBranch(_ context.Context, id string) (*branch.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.branchIndex(id)
	if i < 0 {
		return nil, notFound("branch", id)
	}
	v := m.branches[i]
	return &v, nil
}

func (m *mockStore) GetBranchByName(_ context.Context, name string) (*branch.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.branches, func(v branch.Branch) bool { return v.Name == name })
	if i < 0 {
		return nil, notFound("branch", name)
	}
	v := m.branches[i]
	return &v, nil
}

func (m *mockStore) UpdateBranch(_ context.Context, id string, p branch.Patch) (*branch.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.branchIndex(id)
	if i < 0 {
		return nil, notFound("branch", id)
	}
	v := &m.branches[i]
	if p.Name != nil {
		v.Name = *p.Name
	}
	if p.Location != nil {
		v.Location = *p.Location
	}
	if p.Status != nil {
		v.Status = *p.Status
	}
	out := *v
	return &out, nil
}

func (m *mockStore) DeleteBranch(_ context.Context, id string) (*branch.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.branchIndex(id)
	if i < 0 {
		return nil, notFound("branch", id)
	}
	v := m.branches[i]
	m.branches = slices.Delete(m.branches, i, i+1)
	return &v, nil
}

func (m *mockStore) DeleteBranchesByMFI(_ context.Context, mfiID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.branches)
	m.branches = slices.DeleteFunc(m.branches, func(b branch.Branch) bool { return b.MFIID == mfiID })
	return int64(before - len(m.branches)), nil
}

func (m *mockStore) filtered(f branch.Filter) []branch.Branch {
	var out []branch.Branch
	for _, b := range m.branches {
		if f.IDs != nil && !slices.Contains(f.IDs, b.ID) {
			continue
		}
		if name, ok := f.Fields["name"]; ok && b.Name != name {
			continue
		}
		if loc, ok := f.Fields["location"]; ok && b.Location != loc {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (m *mockStore) EachBranch(_ context.Context, f branch.Filter, fn func(*branch.Branch) error) error {
	m.mu.Lock()
	all := m.filtered(f)
	m.mu.Unlock()
	for i := range all {
		if err := fn(&all[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockStore) PageBranches(_ context.Context, f branch.Filter, q page.Query) (*page.Result[branch.Branch], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.filtered(f)
	return page.NewResult(window(all, q), len(all), q.PerPage), nil
}

func (m *mockStore) GetAccountByUser(_ context.Context, userID string) (*access.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[userID]
	if !ok {
		return nil, notFound("account", userID)
	}
	return &a, nil
}

func (m *mockStore) GetRole(_ context.Context, id string) (*access.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return nil, notFound("role", id)
	}
	return &r, nil
}

func (m *mockStore) ListRoles(_ context.Context) ([]access.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]access.Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockStore) InsertAuditEvent(_ context.Context, e *audit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

func (m *mockStore) InTx(_ context.Context, fn func(database.Store) error) error {
	return fn(m)
}
