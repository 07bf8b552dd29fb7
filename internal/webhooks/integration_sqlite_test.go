package webhooks_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zenithhq/zenith/internal/infra/db"
)

func newSQLiteDB(t *testing.T) *db.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db")

	err := db.Migrate("sqlite", dsn, "")
	require.NoError(t, err, "sqlite migration failed")

	database, err := db.New("sqlite", dsn, "")
	require.NoError(t, err, "sqlite connection failed")

	t.Cleanup(func() { database.Close() })

	return database
}
