package postgres

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/Strob0t/mfi-api/internal/domain/mfi"
	"github.com/Strob0t/mfi-api/internal/domain/page"
)

var mfiColumns = []string{
	"id", "name", "logo", "location", "establishment_year", "website_link", "email",
	"phone", "contact_person", "branches::text[]", "is_active", "date_created", "last_modified",
}

var mfiReturning = "RETURNING " + strings.Join(mfiColumns, ", ")

func scanMFI(row scannable) (mfi.MFI, error) {
	var m mfi.MFI
	err := row.Scan(
		&m.ID, &m.Name, &m.Logo, &m.Location, &m.EstablishmentYear, &m.WebsiteLink, &m.Email,
		&m.Phone, &m.ContactPerson, &m.Branches, &m.IsActive, &m.CreatedAt, &m.UpdatedAt,
	)
	m.Branches = orEmpty(m.Branches)
	return m, err
}

func (s *Store) CreateMFI(ctx context.Context, m *mfi.MFI) (*mfi.MFI, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO mfis (name, logo, location, establishment_year, website_link, email, phone, contact_person, branches, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::text[]::uuid[], $10)
		`+mfiReturning,
		m.Name, m.Logo, m.Location, m.EstablishmentYear, m.WebsiteLink, m.Email, m.Phone,
		m.ContactPerson, pgTextArray(m.Branches), m.IsActive,
	)
	created, err := scanMFI(row)
	if err != nil {
		return nil, wrapErr(err, "create mfi")
	}
	return &created, nil
}

func (s *Store) GetMFI(ctx context.Context, q mfi.Query) (*mfi.MFI, error) {
	b := psql.Select(mfiColumns...).From("mfis").OrderBy("date_created").Limit(1)
	if q.ID != "" {
		b = b.Where(sq.Eq{"id": q.ID})
	}
	if q.ForUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	row, err := queryRowBuilt(ctx, s.db, b)
	if err != nil {
		return nil, err
	}
	m, err := scanMFI(row)
	if err != nil {
		return nil, wrapErr(err, "get mfi %s", q.ID)
	}
	return &m, nil
}

func (s *Store) UpdateMFI(ctx context.Context, id string, p mfi.Patch) (*mfi.MFI, error) {
	diff := p.Diff()
	if len(diff) == 0 {
		return s.GetMFI(ctx, mfi.Query{ID: id})
	}
	b := psql.Update("mfis").
		SetMap(diff).
		Set("last_modified", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		Suffix(mfiReturning)
	row, err := queryRowBuilt(ctx, s.db, b)
	if err != nil {
		return nil, err
	}
	m, err := scanMFI(row)
	if err != nil {
		return nil, wrapErr(err, "update mfi %s", id)
	}
	return &m, nil
}

func (s *Store) SetMFIBranches(ctx context.Context, id string, branches []string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE mfis SET branches = $2::text[]::uuid[], last_modified = now() WHERE id = $1`,
		id, pgTextArray(branches))
	return execExpectOne(tag, err, "set mfi %s branches", id)
}

func (s *Store) DeleteMFI(ctx context.Context, id string) (*mfi.MFI, error) {
	row := s.db.QueryRow(ctx, `DELETE FROM mfis WHERE id = $1 `+mfiReturning, id)
	m, err := scanMFI(row)
	if err != nil {
		return nil, wrapErr(err, "delete mfi %s", id)
	}
	return &m, nil
}

func (s *Store) EachMFI(ctx context.Context, fn func(*mfi.MFI) error) error {
	rows, err := queryBuilt(ctx, s.db, psql.Select(mfiColumns...).From("mfis").OrderBy("date_created", "id"))
	if err != nil {
		return wrapErr(err, "list mfis")
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMFI(rows)
		if err != nil {
			return fmt.Errorf("scan mfi: %w", err)
		}
		if err := fn(&m); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return wrapErr(err, "list mfis")
	}
	return nil
}

func (s *Store) PageMFIs(ctx context.Context, q page.Query) (*page.Result[mfi.MFI], error) {
	var (
		total int
		docs  []mfi.MFI
	)
	count := func(ctx context.Context) error {
		row, err := queryRowBuilt(ctx, s.db, psql.Select("count(*)").From("mfis"))
		if err != nil {
			return err
		}
		if err := row.Scan(&total); err != nil {
			return wrapErr(err, "count mfis")
		}
		return nil
	}
	fetch := func(ctx context.Context) error {
		b := psql.Select(mfiColumns...).From("mfis").
			OrderBy(orderBy(q.SortBy)...).
			Limit(uint64(q.PerPage)).
			Offset(uint64(q.Offset()))
		rows, err := queryBuilt(ctx, s.db, b)
		if err != nil {
			return wrapErr(err, "page mfis")
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMFI(rows)
			if err != nil {
				return fmt.Errorf("scan mfi: %w", err)
			}
			docs = append(docs, m)
		}
		return rows.Err()
	}

	if err := s.both(ctx, count, fetch); err != nil {
		return nil, err
	}
	return page.NewResult(docs, total, q.PerPage), nil
}

// orderBy returns the ORDER BY terms for an ascending single-field sort,
// falling back to insertion order. The id tiebreak keeps pages stable.
func orderBy(sortBy string) []string {
	if sortBy == "" {
		return []string{"date_created", "id"}
	}
	return []string{sortBy, "id"}
}
