package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/mfi-api/internal/domain"
	"github.com/Strob0t/mfi-api/internal/domain/access"
	"github.com/Strob0t/mfi-api/internal/domain/audit"
	"github.com/Strob0t/mfi-api/internal/domain/branch"
	"github.com/Strob0t/mfi-api/internal/domain/mfi"
	"github.com/Strob0t/mfi-api/internal/domain/page"
	"github.com/Strob0t/mfi-api/internal/port/database"
)

// Ensure mockStore implements database.Store at compile time.
var _ database.Store = (*mockStore)(nil)

// mockStore is a minimal in-memory implementation of database.Store for testing.
// InTx snapshots the records and restores them when fn fails.
type mockStore struct {
	mu       sync.Mutex
	mfis     []mfi.MFI
	branches []branch.Branch
	accounts map[string]access.Account
	roles    map[string]access.Role
	events   []audit.Event

	txCalls      int
	accountCalls int

	// Error hooks; set these to inject failures.
	getMFIErr       error
	createBranchErr error
	getAccountErr   error
	getRoleErr      error
	insertAuditErr  error
}

func newMockStore() *mockStore {
	return &mockStore{accounts: map[string]access.Account{}, roles: map[string]access.Role{}}
}

func (m *mockStore) nextID() string {
	return uuid.NewString()
}

func cloneMFI(v mfi.MFI) *mfi.MFI {
	v.Branches = slices.Clone(v.Branches)
	return &v
}

func cloneBranch(v branch.Branch) *branch.Branch {
	v.Weredas = slices.Clone(v.Weredas)
	return &v
}

func (m *mockStore) findMFI(id string) int {
	for i := range m.mfis {
		if id == "" || m.mfis[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *mockStore) findBranch(id string) int {
	for i := range m.branches {
		if m.branches[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *mockStore) CreateMFI(_ context.Context, rec *mfi.MFI) (*mfi.MFI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.mfis) > 0 {
		return nil, fmt.Errorf("create mfi: %w", domain.ErrConflict)
	}
	v := *cloneMFI(*rec)
	v.ID = m.nextID()
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt
	m.mfis = append(m.mfis, v)
	return cloneMFI(v), nil
}

func (m *mockStore) GetMFI(_ context.Context, q mfi.Query) (*mfi.MFI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getMFIErr != nil {
		return nil, m.getMFIErr
	}
	i := m.findMFI(q.ID)
	if i < 0 {
		return nil, fmt.Errorf("mfi %s: %w", q.ID, domain.ErrNotFound)
	}
	return cloneMFI(m.mfis[i]), nil
}

func (m *mockStore) UpdateMFI(_ context.Context, id string, p mfi.Patch) (*mfi.MFI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findMFI(id)
	if id == "" || i < 0 {
		return nil, fmt.Errorf("mfi %s: %w", id, domain.ErrNotFound)
	}
	v := &m.mfis[i]
	if p.Name != nil {
		v.Name = *p.Name
	}
	if p.Logo != nil {
		v.Logo = *p.Logo
	}
	if p.Location != nil {
		v.Location = *p.Location
	}
	if p.Email != nil {
		v.Email = *p.Email
	}
	if p.Phone != nil {
		v.Phone = *p.Phone
	}
	if p.IsActive != nil {
		v.IsActive = *p.IsActive
	}
	v.UpdatedAt = time.Now()
	return cloneMFI(*v), nil
}

func (m *mockStore) SetMFIBranches(_ context.Context, id string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findMFI(id)
	if i < 0 {
		return fmt.Errorf("mfi %s: %w", id, domain.ErrNotFound)
	}
	m.mfis[i].Branches = slices.Clone(ids)
	return nil
}

func (m *mockStore) DeleteMFI(_ context.Context, id string) (*mfi.MFI, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findMFI(id)
	if id == "" || i < 0 {
		return nil, fmt.Errorf("mfi %s: %w", id, domain.ErrNotFound)
	}
	v := m.mfis[i]
	m.mfis = slices.Delete(m.mfis, i, i+1)
	return &v, nil
}

func (m *mockStore) EachMFI(_ context.Context, fn func(*mfi.MFI) error) error {
	m.mu.Lock()
	all := slices.Clone(m.mfis)
	m.mu.Unlock()
	for _, v := range all {
		if err := fn(cloneMFI(v)); err != nil {
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
	if m.createBranchErr != nil {
		return nil, m.createBranchErr
	}
	for i := range m.branches {
		if m.branches[i].Name == rec.Name {
			return nil, fmt.Errorf("create branch: %w", domain.ErrConflict)
		}
	}
	v := *cloneBranch(*rec)
	v.ID = m.nextID()
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt
	m.branches = append(m.branches, v)
	return cloneBranch(v), nil
}

func (m *mockStore) GetBranch(_ context.Context, id string) (*branch.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findBranch(id)
	if i < 0 {
		return nil, fmt.Errorf("branch %s: %w", id, domain.ErrNotFound)
	}
	return cloneBranch(m.branches[i]), nil
}

func (m *mockStore) GetBranchByName(_ context.Context, name string) (*branch.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.branches {
		if m.branches[i].Name == name {
			return cloneBranch(m.branches[i]), nil
		}
	}
	return nil, fmt.Errorf("branch %q: %w", name, domain.ErrNotFound)
}

func (m *mockStore) UpdateBranch(_ context.Context, id string, p branch.Patch) (*branch.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findBranch(id)
	if i < 0 {
		return nil, fmt.Errorf("branch %s: %w", id, domain.ErrNotFound)
	}
	v := &m.branches[i]
	if p.Name != nil {
		for j := range m.branches {
			if j != i && m.branches[j].Name == *p.Name {
				return nil, fmt.Errorf("update branch: %w", domain.ErrConflict)
			}
		}
		v.Name = *p.Name
	}
	if p.Location != nil {
		v.Location = *p.Location
	}
	if p.Phone != nil {
		v.Phone = *p.Phone
	}
	if p.Status != nil {
		v.Status = *p.Status
	}
	v.UpdatedAt = time.Now()
	return cloneBranch(*v), nil
}

func (m *mockStore) DeleteBranch(_ context.Context, id string) (*branch.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.findBranch(id)
	if i < 0 {
		return nil, fmt.Errorf("branch %s: %w", id, domain.ErrNotFound)
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

func matches(b *branch.Branch, f branch.Filter) bool {
	if f.IDs != nil && !slices.Contains(f.IDs, b.ID) {
		return false
	}
	for col, want := range f.Fields {
		var got string
		switch col {
		case "id":
			got = b.ID
		case "mfi_id":
			got = b.MFIID
		case "name":
			got = b.Name
		case "location":
			got = b.Location
		case "status":
			got = string(b.Status)
		default:
			return false
		}
		if got != want {
			return false
		}
	}
	return true
}

func (m *mockStore) filtered(f branch.Filter) []branch.Branch {
	var out []branch.Branch
	for i := range m.branches {
		if matches(&m.branches[i], f) {
			out = append(out, m.branches[i])
		}
	}
	return out
}

func (m *mockStore) EachBranch(_ context.Context, f branch.Filter, fn func(*branch.Branch) error) error {
	m.mu.Lock()
	all := m.filtered(f)
	m.mu.Unlock()
	for _, v := range all {
		if err := fn(cloneBranch(v)); err != nil {
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
	m.accountCalls++
	if m.getAccountErr != nil {
		return nil, m.getAccountErr
	}
	a, ok := m.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("account for %s: %w", userID, domain.ErrNotFound)
	}
	return &a, nil
}

func (m *mockStore) GetRole(_ context.Context, id string) (*access.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getRoleErr != nil {
		return nil, m.getRoleErr
	}
	r, ok := m.roles[id]
	if !ok {
		return nil, fmt.Errorf("role %s: %w", id, domain.ErrNotFound)
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
	if m.insertAuditErr != nil {
		return m.insertAuditErr
	}
	m.events = append(m.events, *e)
	return nil
}

func (m *mockStore) InTx(_ context.Context, fn func(database.Store) error) error {
	m.mu.Lock()
	m.txCalls++
	mfis := make([]mfi.MFI, len(m.mfis))
	for i := range m.mfis {
		mfis[i] = *cloneMFI(m.mfis[i])
	}
	branches := slices.Clone(m.branches)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.mfis, m.branches = mfis, branches
		m.mu.Unlock()
		return err
	}
	return nil
}

// eventNames returns the names of the recorded audit events in order.
func (m *mockStore) eventNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Event)
	}
	return out
}
