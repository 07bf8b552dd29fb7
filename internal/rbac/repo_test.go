package rbac_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenithhq/zenith/internal/infra/db"
	"github.com/zenithhq/zenith/internal/rbac"
)

// These tests pin the SQL the repo emits per driver: schema-qualified tables
// and $n placeholders on PostgreSQL, prefixed tables and ? placeholders on
// SQLite.

func newMockRepo(t *testing.T, driver string) (*rbac.Repo, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	return rbac.NewRepo(db.NewWithDB(sqlDB, driver, "zenith")), mock
}

func roleRow(id uuid.UUID, name string) *sqlmock.Rows {
	now := time.Now().Unix()
	return sqlmock.NewRows([]string{
		"id", "name", "organization_id", "is_system", "parent_id", "created_at", "updated_at",
	}).AddRow(id.String(), name, nil, false, nil, now, now)
}

func TestRepo_GetRole_Postgres(t *testing.T) {
	repo, mock := newMockRepo(t, "postgres")
	id := uuid.New()

	mock.ExpectQuery(`FROM zenith\.roles\s+WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(roleRow(id, "editor"))

	role, err := repo.GetRole(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, role)
	assert.Equal(t, id, role.ID)
	assert.Equal(t, "editor", role.Name)
	assert.Nil(t, role.OrganizationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_GetRole_Sqlite(t *testing.T) {
	repo, mock := newMockRepo(t, "sqlite")
	id := uuid.New()

	mock.ExpectQuery(`FROM zenith_roles\s+WHERE id = \?`).
		WithArgs(id).
		WillReturnRows(roleRow(id, "editor"))

	role, err := repo.GetRole(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_GetRole_NoRows(t *testing.T) {
	repo, mock := newMockRepo(t, "postgres")
	id := uuid.New()

	mock.ExpectQuery(`FROM zenith\.roles`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "organization_id", "is_system", "parent_id", "created_at", "updated_at",
		}))

	role, err := repo.GetRole(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, role)
}

func TestRepo_CountMemberships(t *testing.T) {
	repo, mock := newMockRepo(t, "sqlite")
	id := uuid.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM zenith_memberships WHERE role_id = \?`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountMemberships(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_DeleteRole_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t, "postgres")
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM zenith\.roles WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteRole(context.Background(), id)
	assert.ErrorIs(t, err, rbac.ErrRoleNotFound)
}

func TestRepo_GetRoleByName_Postgres(t *testing.T) {
	repo, mock := newMockRepo(t, "postgres")
	id := uuid.New()
	orgID := uuid.New()

	// The null-safe scope compare must cast the uuid column to text; a bare
	// COALESCE(organization_id, '') does not parse on postgres.
	mock.ExpectQuery(`COALESCE\(CAST\(organization_id AS TEXT\), ''\) = \$2`).
		WithArgs("editor", orgID.String()).
		WillReturnRows(roleRow(id, "editor"))

	role, err := repo.GetRoleByName(context.Background(), &orgID, "editor")
	require.NoError(t, err)
	require.NotNil(t, role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_GetRoleByName_SystemScope(t *testing.T) {
	repo, mock := newMockRepo(t, "postgres")
	id := uuid.New()

	// A nil org scope matches NULL organization_id via the empty string.
	mock.ExpectQuery(`COALESCE\(CAST\(organization_id AS TEXT\), ''\) = \$2`).
		WithArgs("admin", "").
		WillReturnRows(roleRow(id, "admin"))

	role, err := repo.GetRoleByName(context.Background(), nil, "admin")
	require.NoError(t, err)
	require.NotNil(t, role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_UpdateRole_ReplacesPermissionsInOneTransaction(t *testing.T) {
	repo, mock := newMockRepo(t, "sqlite")
	roleID := uuid.New()
	permA := uuid.New()
	permB := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE zenith_roles\s+SET name = \?, parent_id = \?, updated_at = \?\s+WHERE id = \?`).
		WithArgs("editor", nil, sqlmock.AnyArg(), roleID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM zenith_role_permissions WHERE role_id = \?`).
		WithArgs(roleID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO zenith_role_permissions`).
		WithArgs(roleID, permA).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO zenith_role_permissions`).
		WithArgs(roleID, permB).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	role := &rbac.Role{ID: roleID, Name: "editor", UpdatedAt: time.Now().Unix()}
	err := repo.UpdateRole(context.Background(), role, []uuid.UUID{permA, permB})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_UpdateRole_NilPermissionsLeavesGrantsAlone(t *testing.T) {
	repo, mock := newMockRepo(t, "sqlite")
	roleID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE zenith_roles`).
		WithArgs("editor", nil, sqlmock.AnyArg(), roleID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	role := &rbac.Role{ID: roleID, Name: "editor", UpdatedAt: time.Now().Unix()}
	err := repo.UpdateRole(context.Background(), role, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_GetRolePermissionKeys(t *testing.T) {
	repo, mock := newMockRepo(t, "postgres")
	roleID := uuid.New()

	mock.ExpectQuery(`FROM zenith\.permissions p\s+JOIN zenith\.role_permissions rp`).
		WithArgs(roleID).
		WillReturnRows(sqlmock.NewRows([]string{"resource", "action"}).
			AddRow("doc", "read").
			AddRow("doc", "write"))

	keys, err := repo.GetRolePermissionKeys(context.Background(), roleID)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc:read", "doc:write"}, keys)
}
