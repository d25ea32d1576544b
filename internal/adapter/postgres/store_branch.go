package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Strob0t/mfi-api/internal/domain"
	"github.com/Strob0t/mfi-api/internal/domain/branch"
	"github.com/Strob0t/mfi-api/internal/domain/page"
)

var branchColumns = []string{
	"id", "mfi_id", "name", "location", "opening_date", "branch_type", "email", "phone",
	"status", "weredas", "date_created", "last_modified",
}

var branchReturning = "RETURNING " + strings.Join(branchColumns, ", ")

func scanBranch(row scannable) (branch.Branch, error) {
	var (
		b      branch.Branch
		opened *time.Time
	)
	err := row.Scan(
		&b.ID, &b.MFIID, &b.Name, &b.Location, &opened, &b.BranchType, &b.Email, &b.Phone,
		&b.Status, &b.Weredas, &b.CreatedAt, &b.UpdatedAt,
	)
	if opened != nil {
		b.OpeningDate = &branch.Date{Time: *opened}
	}
	b.Weredas = orEmpty(b.Weredas)
	return b, err
}

// applyBranchFilter narrows a select to the filter's exact-match fields and
// id scope. An empty, non-nil id scope matches nothing.
func applyBranchFilter(b sq.SelectBuilder, f branch.Filter) sq.SelectBuilder {
	if len(f.Fields) > 0 {
		eq := make(sq.Eq, len(f.Fields))
		for col, v := range f.Fields {
			eq[col] = v
		}
		b = b.Where(eq)
	}
	if f.IDs != nil {
		b = b.Where(sq.Eq{"id": f.IDs})
	}
	return b
}

func (s *Store) CreateBranch(ctx context.Context, b *branch.Branch) (*branch.Branch, error) {
	var opened any
	if b.OpeningDate != nil {
		opened = b.OpeningDate.Time
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO branches (mfi_id, name, location, opening_date, branch_type, email, phone, status, weredas)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`+branchReturning,
		b.MFIID, b.Name, b.Location, opened, b.BranchType, b.Email, b.Phone,
		string(b.Status), pgTextArray(b.Weredas),
	)
	created, err := scanBranch(row)
	if isUniqueViolation(err, constraintBranchMFIName) {
		return nil, fmt.Errorf("branch %q already exists: %w", b.Name, domain.ErrConflict)
	}
	if err != nil {
		return nil, wrapErr(err, "create branch %q", b.Name)
	}
	return &created, nil
}

func (s *Store) GetBranch(ctx context.Context, id string) (*branch.Branch, error) {
	row, err := queryRowBuilt(ctx, s.db, psql.Select(branchColumns...).From("branches").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	b, err := scanBranch(row)
	if err != nil {
		return nil, wrapErr(err, "get branch %s", id)
	}
	return &b, nil
}

func (s *Store) GetBranchByName(ctx context.Context, name string) (*branch.Branch, error) {
	row, err := queryRowBuilt(ctx, s.db,
		psql.Select(branchColumns...).From("branches").Where(sq.Eq{"name": name}).Limit(1))
	if err != nil {
		return nil, err
	}
	b, err := scanBranch(row)
	if err != nil {
		return nil, wrapErr(err, "get branch by name %q", name)
	}
	return &b, nil
}

func (s *Store) UpdateBranch(ctx context.Context, id string, p branch.Patch) (*branch.Branch, error) {
	diff := p.Diff()
	if len(diff) == 0 {
		return s.GetBranch(ctx, id)
	}
	b := psql.Update("branches").
		SetMap(diff).
		Set("last_modified", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		Suffix(branchReturning)
	row, err := queryRowBuilt(ctx, s.db, b)
	if err != nil {
		return nil, err
	}
	updated, err := scanBranch(row)
	if isUniqueViolation(err, constraintBranchMFIName) {
		return nil, fmt.Errorf("branch %q already exists: %w", diff["name"], domain.ErrConflict)
	}
	if err != nil {
		return nil, wrapErr(err, "update branch %s", id)
	}
	return &updated, nil
}

func (s *Store) DeleteBranch(ctx context.Context, id string) (*branch.Branch, error) {
	row := s.db.QueryRow(ctx, `DELETE FROM branches WHERE id = $1 `+branchReturning, id)
	b, err := scanBranch(row)
	if err != nil {
		return nil, wrapErr(err, "delete branch %s", id)
	}
	return &b, nil
}

func (s *Store) DeleteBranchesByMFI(ctx context.Context, mfiID string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM branches WHERE mfi_id = $1`, mfiID)
	if err != nil {
		return 0, wrapErr(err, "delete branches of mfi %s", mfiID)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) EachBranch(ctx context.Context, f branch.Filter, fn func(*branch.Branch) error) error {
	q := applyBranchFilter(psql.Select(branchColumns...).From("branches"), f).OrderBy("date_created", "id")
	rows, err := queryBuilt(ctx, s.db, q)
	if err != nil {
		return wrapErr(err, "list branches")
	}
	defer rows.Close()

	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return fmt.Errorf("scan branch: %w", err)
		}
		if err := fn(&b); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return wrapErr(err, "list branches")
	}
	return nil
}

func (s *Store) PageBranches(ctx context.Context, f branch.Filter, q page.Query) (*page.Result[branch.Branch], error) {
	var (
		total int
		docs  []branch.Branch
	)
	count := func(ctx context.Context) error {
		row, err := queryRowBuilt(ctx, s.db, applyBranchFilter(psql.Select("count(*)").From("branches"), f))
		if err != nil {
			return err
		}
		if err := row.Scan(&total); err != nil {
			return wrapErr(err, "count branches")
		}
		return nil
	}
	fetch := func(ctx context.Context) error {
		b := applyBranchFilter(psql.Select(branchColumns...).From("branches"), f).
			OrderBy(orderBy(q.SortBy)...).
			Limit(uint64(q.PerPage)).
			Offset(uint64(q.Offset()))
		rows, err := queryBuilt(ctx, s.db, b)
		if err != nil {
			return wrapErr(err, "page branches")
		}
		defer rows.Close()
		for rows.Next() {
			br, err := scanBranch(rows)
			if err != nil {
				return fmt.Errorf("scan branch: %w", err)
			}
			docs = append(docs, br)
		}
		if err := rows.Err(); err != nil {
			return wrapErr(err, "page branches")
		}
		return nil
	}

	if err := s.both(ctx, count, fetch); err != nil {
		return nil, err
	}
	return page.NewResult(docs, total, q.PerPage), nil
}
