package rbac_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/zenithhq/zenith/internal/infra/db"
	"github.com/zenithhq/zenith/internal/rbac"
)

type dbFactory struct {
	name  string
	newDB func(t *testing.T) *db.DB
}

var drivers []dbFactory

func TestMain(m *testing.M) {
	ctx := context.Background()

	// Start PostgreSQL container.
	pgConnStr, pgContainer, err := startPostgresContainer(ctx)
	if err != nil {
		log.Fatalf("failed to start postgres container: %v", err)
	}

	// Register drivers.
	drivers = append(drivers, dbFactory{
		name:  "sqlite",
		newDB: newSQLiteDB,
	})
	drivers = append(drivers, dbFactory{
		name:  "postgres",
		newDB: newPostgresDB(pgConnStr),
	})

	code := m.Run()

	if pgContainer != nil {
		if err := pgContainer.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to terminate postgres container: %v\n", err)
		}
	}

	os.Exit(code)
}

func testRole(name string, orgID *uuid.UUID) *rbac.Role {
	now := time.Now().Unix()
	return &rbac.Role{
		ID:             uuid.New(),
		Name:           name,
		OrganizationID: orgID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func seedPermissionRow(t *testing.T, database *db.DB, resource, action string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	query := database.Rebind(fmt.Sprintf(`
		INSERT INTO %s (id, resource, action, description)
		VALUES ($1, $2, $3, '')
	`, database.TableName("permissions")))
	_, err := database.Exec(query, id, resource, action)
	require.NoError(t, err)
	return id
}

func seedMembershipRow(t *testing.T, database *db.DB, roleID uuid.UUID) {
	t.Helper()

	query := database.Rebind(fmt.Sprintf(`
		INSERT INTO %s (id, role_id, user_id, project_id, created_at)
		VALUES ($1, $2, $3, NULL, $4)
	`, database.TableName("memberships")))
	_, err := database.Exec(query, uuid.New(), roleID, uuid.New(), time.Now().Unix())
	require.NoError(t, err)
}
