package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/zenithhq/zenith/internal/infra/db"
)

type Repo struct {
	db *db.DB
}

func NewRepo(database *db.DB) *Repo {
	return &Repo{db: database}
}

const roleColumns = `id, name, organization_id, is_system, parent_id, created_at, updated_at`

func (r *Repo) CreateRole(ctx context.Context, role *Role, permissionIDs []uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rbac: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	table := r.db.TableName("roles")
	query := r.db.Rebind(fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, table, roleColumns))

	_, err = tx.ExecContext(
		ctx,
		query,
		role.ID,
		role.Name,
		role.OrganizationID,
		role.IsSystem,
		role.ParentID,
		role.CreatedAt,
		role.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("rbac: failed to insert role: %w", err)
	}

	if err := r.insertRolePermissions(ctx, tx, role.ID, permissionIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rbac: failed to commit role: %w", err)
	}
	return nil
}

func (r *Repo) GetRole(ctx context.Context, id uuid.UUID) (*Role, error) {
	table := r.db.TableName("roles")
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT %s FROM %s WHERE id = $1
	`, roleColumns, table))

	role, err := scanRole(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("rbac: failed to load role: %w", err)
	}
	return role, nil
}

// GetRoleByName looks a role up within one scope: an organization's own roles
// when orgID is set, system-wide roles when it is nil.
func (r *Repo) GetRoleByName(ctx context.Context, orgID *uuid.UUID, name string) (*Role, error) {
	table := r.db.TableName("roles")
	// organization_id is a uuid column on postgres, so the null-safe compare
	// goes through text, same as the unique index in the migration.
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE name = $1 AND COALESCE(CAST(organization_id AS TEXT), '') = $2
	`, roleColumns, table))

	org := ""
	if orgID != nil {
		org = orgID.String()
	}
	role, err := scanRole(r.db.QueryRowContext(ctx, query, name, org))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("rbac: failed to load role by name: %w", err)
	}
	return role, nil
}

// ListRoles returns all roles visible to an organization: its own plus
// system-wide ones. A nil orgID returns every role.
func (r *Repo) ListRoles(ctx context.Context, orgID *uuid.UUID) ([]*Role, error) {
	table := r.db.TableName("roles")

	var query string
	var args []any
	if orgID == nil {
		query = fmt.Sprintf(`SELECT %s FROM %s ORDER BY name`, roleColumns, table)
	} else {
		query = r.db.Rebind(fmt.Sprintf(`
			SELECT %s FROM %s
			WHERE organization_id = $1 OR organization_id IS NULL
			ORDER BY name
		`, roleColumns, table))
		args = append(args, orgID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("rbac: failed to query roles: %w", err)
	}
	defer rows.Close()

	var result []*Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("rbac: failed to scan role row: %w", err)
		}
		result = append(result, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: rows error: %w", err)
	}
	return result, nil
}

// UpdateRole writes the role row and, when permissionIDs is non-nil,
// replaces the role's permission set in the same transaction. A nil
// permissionIDs leaves the grants untouched; an empty slice clears them.
func (r *Repo) UpdateRole(ctx context.Context, role *Role, permissionIDs []uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rbac: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	table := r.db.TableName("roles")
	query := r.db.Rebind(fmt.Sprintf(`
		UPDATE %s
		SET name = $1, parent_id = $2, updated_at = $3
		WHERE id = $4
	`, table))

	res, err := tx.ExecContext(ctx, query, role.Name, role.ParentID, role.UpdatedAt, role.ID)
	if err != nil {
		return fmt.Errorf("rbac: failed to update role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRoleNotFound
	}

	if permissionIDs != nil {
		rpTable := r.db.TableName("role_permissions")
		clear := r.db.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE role_id = $1`, rpTable))
		if _, err := tx.ExecContext(ctx, clear, role.ID); err != nil {
			return fmt.Errorf("rbac: failed to clear role permissions: %w", err)
		}
		if err := r.insertRolePermissions(ctx, tx, role.ID, permissionIDs); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("rbac: failed to commit role update: %w", err)
	}
	return nil
}

func (r *Repo) DeleteRole(ctx context.Context, id uuid.UUID) error {
	table := r.db.TableName("roles")
	query := r.db.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table))

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("rbac: failed to delete role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// CountMemberships reports how many membership rows reference the role.
func (r *Repo) CountMemberships(ctx context.Context, roleID uuid.UUID) (int, error) {
	table := r.db.TableName("memberships")
	query := r.db.Rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE role_id = $1`, table))

	var count int
	if err := r.db.QueryRowContext(ctx, query, roleID).Scan(&count); err != nil {
		return 0, fmt.Errorf("rbac: failed to count memberships: %w", err)
	}
	return count, nil
}

// CountChildren reports how many roles inherit directly from the role.
func (r *Repo) CountChildren(ctx context.Context, roleID uuid.UUID) (int, error) {
	table := r.db.TableName("roles")
	query := r.db.Rebind(fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE parent_id = $1`, table))

	var count int
	if err := r.db.QueryRowContext(ctx, query, roleID).Scan(&count); err != nil {
		return 0, fmt.Errorf("rbac: failed to count child roles: %w", err)
	}
	return count, nil
}

func (r *Repo) ListPermissions(ctx context.Context) ([]*Permission, error) {
	table := r.db.TableName("permissions")
	query := fmt.Sprintf(`
		SELECT id, resource, action, description FROM %s ORDER BY resource, action
	`, table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rbac: failed to query permissions: %w", err)
	}
	defer rows.Close()

	var result []*Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Resource, &p.Action, &p.Description); err != nil {
			return nil, fmt.Errorf("rbac: failed to scan permission row: %w", err)
		}
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: rows error: %w", err)
	}
	return result, nil
}

// GetPermissions loads permissions by ID. Callers compare result length
// against the request to detect unknown IDs.
func (r *Repo) GetPermissions(ctx context.Context, ids []uuid.UUID) ([]*Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	table := r.db.TableName("permissions")
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT id, resource, action, description FROM %s WHERE id IN (%s)
	`, table, strings.Join(placeholders, ", ")))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("rbac: failed to query permissions: %w", err)
	}
	defer rows.Close()

	var result []*Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Resource, &p.Action, &p.Description); err != nil {
			return nil, fmt.Errorf("rbac: failed to scan permission row: %w", err)
		}
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: rows error: %w", err)
	}
	return result, nil
}

// GetRolePermissionKeys returns the role's directly assigned permissions in
// "resource:action" form, sorted. An unknown role yields an empty set.
func (r *Repo) GetRolePermissionKeys(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	perms := r.db.TableName("permissions")
	join := r.db.TableName("role_permissions")
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT p.resource, p.action
		FROM %s p
		JOIN %s rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.resource, p.action
	`, perms, join))

	rows, err := r.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("rbac: failed to query role permissions: %w", err)
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var resource, action string
		if err := rows.Scan(&resource, &action); err != nil {
			return nil, fmt.Errorf("rbac: failed to scan permission row: %w", err)
		}
		result = append(result, resource+":"+action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: rows error: %w", err)
	}
	return result, nil
}

func (r *Repo) GetRolePermissionList(ctx context.Context, roleID uuid.UUID) ([]*Permission, error) {
	perms := r.db.TableName("permissions")
	join := r.db.TableName("role_permissions")
	query := r.db.Rebind(fmt.Sprintf(`
		SELECT p.id, p.resource, p.action, p.description
		FROM %s p
		JOIN %s rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.resource, p.action
	`, perms, join))

	rows, err := r.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("rbac: failed to query role permissions: %w", err)
	}
	defer rows.Close()

	var result []*Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Resource, &p.Action, &p.Description); err != nil {
			return nil, fmt.Errorf("rbac: failed to scan permission row: %w", err)
		}
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: rows error: %w", err)
	}
	return result, nil
}

// ListRolePermissionPairs returns the full role/permission join in one query,
// used to seed the policy engine at startup.
func (r *Repo) ListRolePermissionPairs(ctx context.Context) ([]RolePermission, error) {
	perms := r.db.TableName("permissions")
	join := r.db.TableName("role_permissions")
	query := fmt.Sprintf(`
		SELECT rp.role_id, p.resource, p.action
		FROM %s rp
		JOIN %s p ON p.id = rp.permission_id
	`, join, perms)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rbac: failed to query role permission pairs: %w", err)
	}
	defer rows.Close()

	var result []RolePermission
	for rows.Next() {
		var pair RolePermission
		if err := rows.Scan(&pair.RoleID, &pair.Resource, &pair.Action); err != nil {
			return nil, fmt.Errorf("rbac: failed to scan pair row: %w", err)
		}
		result = append(result, pair)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: rows error: %w", err)
	}
	return result, nil
}

func (r *Repo) insertRolePermissions(ctx context.Context, tx *sql.Tx, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	table := r.db.TableName("role_permissions")
	query := r.db.Rebind(fmt.Sprintf(`
		INSERT INTO %s (role_id, permission_id) VALUES ($1, $2)
	`, table))

	for _, pid := range permissionIDs {
		if _, err := tx.ExecContext(ctx, query, roleID, pid); err != nil {
			return fmt.Errorf("rbac: failed to insert role permission: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (*Role, error) {
	var role Role
	err := row.Scan(
		&role.ID, &role.Name, &role.OrganizationID, &role.IsSystem,
		&role.ParentID, &role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &role, nil
}
