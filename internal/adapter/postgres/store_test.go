package postgres_test

import (
	"context"
	"errors"
	"os"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/mfi-api/internal/adapter/postgres"
	"github.com/Strob0t/mfi-api/internal/domain"
	"github.com/Strob0t/mfi-api/internal/domain/audit"
	"github.com/Strob0t/mfi-api/internal/domain/branch"
	"github.com/Strob0t/mfi-api/internal/domain/mfi"
	"github.com/Strob0t/mfi-api/internal/domain/page"
	"github.com/Strob0t/mfi-api/internal/port/database"
)

// setupStore creates a pgxpool connection, runs all migrations, empties the
// MFI tables and returns a ready-to-use Store. The pool is closed via
// t.Cleanup.
func setupStore(t *testing.T) (*postgres.Store, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()

	// Run goose migrations first (uses embedded SQL files).
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, `TRUNCATE branches, mfis, accounts, role_permissions, roles, permissions CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	return postgres.NewStore(pool), pool
}

func createTestMFI(t *testing.T, store *postgres.Store) *mfi.MFI {
	t.Helper()
	req := mfi.CreateRequest{Name: "Acme Credit", Logo: "https://cdn.example/acme.png", Location: "Addis Ababa"}
	m, err := store.CreateMFI(context.Background(), req.Record())
	if err != nil {
		t.Fatalf("CreateMFI: %v", err)
	}
	return m
}

func TestStore_MFISingleton(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	created := createTestMFI(t, store)
	if created.ID == "" || !created.IsActive {
		t.Fatalf("unexpected created mfi %+v", created)
	}
	if created.Branches == nil {
		t.Fatal("branches must be [] not nil")
	}

	req := mfi.CreateRequest{Name: "Second", Logo: "x", Location: "y"}
	_, err := store.CreateMFI(ctx, req.Record())
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for second mfi, got %v", err)
	}

	got, err := store.GetMFI(ctx, mfi.Query{})
	if err != nil {
		t.Fatalf("GetMFI: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("singleton lookup returned %s, want %s", got.ID, created.ID)
	}
}

func TestStore_MFIUpdateAndNotFound(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	created := createTestMFI(t, store)

	name := "Acme Microfinance"
	year := 2004
	updated, err := store.UpdateMFI(ctx, created.ID, mfi.Patch{Name: &name, EstablishmentYear: &year})
	if err != nil {
		t.Fatalf("UpdateMFI: %v", err)
	}
	if updated.Name != name || updated.EstablishmentYear != year {
		t.Fatalf("update not applied: %+v", updated)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) && !updated.UpdatedAt.Equal(created.UpdatedAt) {
		t.Fatal("last_modified went backwards")
	}

	_, err = store.GetMFI(ctx, mfi.Query{ID: uuid.New().String()})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = store.GetMFI(ctx, mfi.Query{ID: "not-a-uuid"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for malformed id, got %v", err)
	}
}

func TestStore_BranchLifecycle(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	m := createTestMFI(t, store)

	req := branch.CreateRequest{Name: "Bole", Location: "Addis Ababa", Weredas: []string{"03"}}
	var created *branch.Branch
	err := store.InTx(ctx, func(tx database.Store) error {
		locked, err := tx.GetMFI(ctx, mfi.Query{ID: m.ID, ForUpdate: true})
		if err != nil {
			return err
		}
		created, err = tx.CreateBranch(ctx, req.Record(locked.ID))
		if err != nil {
			return err
		}
		return tx.SetMFIBranches(ctx, locked.ID, append(locked.Branches, created.ID))
	})
	if err != nil {
		t.Fatalf("create in tx: %v", err)
	}

	got, err := store.GetMFI(ctx, mfi.Query{ID: m.ID})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got.Branches, []string{created.ID}) {
		t.Fatalf("branches = %v, want [%s]", got.Branches, created.ID)
	}

	_, err = store.CreateBranch(ctx, req.Record(m.ID))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate name, got %v", err)
	}

	byName, err := store.GetBranchByName(ctx, "Bole")
	if err != nil || byName.ID != created.ID {
		t.Fatalf("GetBranchByName: %v %+v", err, byName)
	}

	second := branch.CreateRequest{Name: "Piassa", Location: "Addis Ababa"}
	other, err := store.CreateBranch(ctx, second.Record(m.ID))
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	rename := "Bole"
	_, err = store.UpdateBranch(ctx, other.ID, branch.Patch{Name: &rename})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict for rename onto existing name, got %v", err)
	}
	if msg := err.Error(); msg != `branch "Bole" already exists: conflict` {
		t.Fatalf("rename conflict message = %q", msg)
	}

	inactive := branch.StatusInactive
	updated, err := store.UpdateBranch(ctx, created.ID, branch.Patch{Status: &inactive})
	if err != nil {
		t.Fatalf("UpdateBranch: %v", err)
	}
	if updated.Status != branch.StatusInactive {
		t.Fatalf("status = %s", updated.Status)
	}

	deleted, err := store.DeleteBranch(ctx, created.ID)
	if err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	if deleted.ID != created.ID {
		t.Fatalf("deleted %s, want %s", deleted.ID, created.ID)
	}
	if _, err := store.GetBranch(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStore_TxRollback(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	m := createTestMFI(t, store)

	boom := errors.New("boom")
	err := store.InTx(ctx, func(tx database.Store) error {
		req := branch.CreateRequest{Name: "Piassa", Location: "Addis Ababa"}
		if _, err := tx.CreateBranch(ctx, req.Record(m.ID)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := store.GetBranchByName(ctx, "Piassa"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("branch survived rollback: %v", err)
	}
}

func TestStore_PageAndFilterBranches(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	m := createTestMFI(t, store)

	var ids []string
	for i := range 12 {
		req := branch.CreateRequest{Name: "Branch " + string(rune('A'+i)), Location: "Loc"}
		if i%2 == 0 {
			req.Status = branch.StatusInactive
		}
		b, err := store.CreateBranch(ctx, req.Record(m.ID))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, b.ID)
	}

	res, err := store.PageBranches(ctx, branch.Filter{}, page.Query{Page: 2, PerPage: 5, SortBy: "name"})
	if err != nil {
		t.Fatalf("PageBranches: %v", err)
	}
	if res.TotalDocsCount != 12 || res.TotalPages != 3 || len(res.Docs) != 5 {
		t.Fatalf("unexpected page %+v", res)
	}
	if res.Docs[0].Name != "Branch F" {
		t.Fatalf("first doc of page 2 = %s, want Branch F", res.Docs[0].Name)
	}

	scoped, err := store.PageBranches(ctx, branch.Filter{IDs: ids[:3]}, page.Query{Page: 1, PerPage: 10})
	if err != nil {
		t.Fatal(err)
	}
	if scoped.TotalDocsCount != 3 {
		t.Fatalf("scoped total = %d, want 3", scoped.TotalDocsCount)
	}

	none, err := store.PageBranches(ctx, branch.Filter{IDs: []string{}}, page.Query{Page: 1, PerPage: 10})
	if err != nil {
		t.Fatal(err)
	}
	if none.TotalDocsCount != 0 || len(none.Docs) != 0 {
		t.Fatalf("empty scope must match nothing, got %d", none.TotalDocsCount)
	}

	var inactive int
	err = store.EachBranch(ctx, branch.Filter{Fields: map[string]string{"status": "inactive"}}, func(b *branch.Branch) error {
		inactive++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if inactive != 6 {
		t.Fatalf("inactive = %d, want 6", inactive)
	}
}

func TestStore_DeleteMFICascades(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	m := createTestMFI(t, store)

	req := branch.CreateRequest{Name: "Head Office", Location: "Addis Ababa"}
	if _, err := store.CreateBranch(ctx, req.Record(m.ID)); err != nil {
		t.Fatal(err)
	}

	err := store.InTx(ctx, func(tx database.Store) error {
		n, err := tx.DeleteBranchesByMFI(ctx, m.ID)
		if err != nil {
			return err
		}
		if n != 1 {
			t.Errorf("deleted %d branches, want 1", n)
		}
		_, err = tx.DeleteMFI(ctx, m.ID)
		return err
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	var count int
	err = store.EachBranch(ctx, branch.Filter{}, func(*branch.Branch) error { count++; return nil })
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("branches left after mfi delete: %d", count)
	}
}

func TestStore_AccessLookups(t *testing.T) {
	store, pool := setupStore(t)
	ctx := context.Background()

	var roleID string
	if err := pool.QueryRow(ctx, `INSERT INTO roles (name) VALUES ('teller') RETURNING id`).Scan(&roleID); err != nil {
		t.Fatal(err)
	}
	for i, op := range []string{"view", "create"} {
		var permID string
		if err := pool.QueryRow(ctx,
			`INSERT INTO permissions (name, entity, operation) VALUES ($1, 'BRANCH', $2) RETURNING id`,
			"branch_"+op, op).Scan(&permID); err != nil {
			t.Fatal(err)
		}
		if _, err := pool.Exec(ctx,
			`INSERT INTO role_permissions (role_id, permission_id, position) VALUES ($1, $2, $3)`,
			roleID, permID, i); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := pool.Exec(ctx, `INSERT INTO accounts (user_id, role_id) VALUES ('user-1', $1)`, roleID); err != nil {
		t.Fatal(err)
	}

	acc, err := store.GetAccountByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetAccountByUser: %v", err)
	}
	if acc.Role != roleID {
		t.Fatalf("role = %s, want %s", acc.Role, roleID)
	}

	role, err := store.GetRole(ctx, roleID)
	if err != nil {
		t.Fatalf("GetRole: %v", err)
	}
	if len(role.Permissions) != 2 || role.Permissions[0].Operation != "view" {
		t.Fatalf("permissions = %+v", role.Permissions)
	}

	roles, err := store.ListRoles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(roles) != 1 || len(roles[0].Permissions) != 2 {
		t.Fatalf("roles = %+v", roles)
	}

	if _, err := store.GetAccountByUser(ctx, "nobody"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_InsertAuditEvent(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	e := &audit.Event{
		ID:      uuid.NewString(),
		Event:   audit.MFIUpdate,
		Actor:   "user-1",
		Subject: uuid.NewString(),
		Diff:    map[string]any{"name": "New"},
	}
	if err := store.InsertAuditEvent(ctx, e); err != nil {
		t.Fatalf("InsertAuditEvent: %v", err)
	}
	// Redelivery of the same event is a no-op.
	if err := store.InsertAuditEvent(ctx, e); err != nil {
		t.Fatalf("duplicate InsertAuditEvent: %v", err)
	}
}
