package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/mfi-api/internal/domain/access"
)

func (s *Store) GetAccountByUser(ctx context.Context, userID string) (*access.Account, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, COALESCE(role_id::text, ''), access_branches::text[], COALESCE(default_branch::text, '')
		FROM accounts WHERE user_id = $1`, userID)

	var a access.Account
	if err := row.Scan(&a.ID, &a.User, &a.Role, &a.AccessBranches, &a.DefaultBranch); err != nil {
		return nil, wrapErr(err, "get account for user %s", userID)
	}
	a.AccessBranches = orEmpty(a.AccessBranches)
	return &a, nil
}

func (s *Store) GetRole(ctx context.Context, id string) (*access.Role, error) {
	var r access.Role
	err := s.db.QueryRow(ctx, `SELECT id, name FROM roles WHERE id = $1`, id).Scan(&r.ID, &r.Name)
	if err != nil {
		return nil, wrapErr(err, "get role %s", id)
	}

	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.name, p.entity, p.operation
		FROM role_permissions rp JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY rp.position, p.id`, id)
	if err != nil {
		return nil, wrapErr(err, "get role %s permissions", id)
	}
	defer rows.Close()

	for rows.Next() {
		var p access.Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Entity, &p.Operation); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		r.Permissions = append(r.Permissions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "get role %s permissions", id)
	}
	r.Permissions = orEmpty(r.Permissions)
	return &r, nil
}

// ListRoles returns every role with its permissions, ordered by role name.
func (s *Store) ListRoles(ctx context.Context) ([]access.Role, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.name, p.id, p.name, p.entity, p.operation
		FROM roles r
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		ORDER BY r.name, r.id, rp.position`)
	if err != nil {
		return nil, wrapErr(err, "list roles")
	}
	defer rows.Close()

	var roles []access.Role
	for rows.Next() {
		var (
			roleID, roleName                   string
			permID, permName, entity, operation *string
		)
		if err := rows.Scan(&roleID, &roleName, &permID, &permName, &entity, &operation); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		if len(roles) == 0 || roles[len(roles)-1].ID != roleID {
			roles = append(roles, access.Role{ID: roleID, Name: roleName, Permissions: []access.Permission{}})
		}
		if permID != nil {
			r := &roles[len(roles)-1]
			r.Permissions = append(r.Permissions, access.Permission{
				ID: *permID, Name: *permName, Entity: *entity, Operation: *operation,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err, "list roles")
	}
	return orEmpty(roles), nil
}
