package db

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	driver    string
	namespace string
}

func New(driver, dsn, namespace string) (*DB, error) {
	var db *sql.DB
	var err error

	switch driver {
	case "sqlite":
		db, err = sql.Open("sqlite", dsn)
	case "postgres":
		if namespace != "" {
			dsn, err = withSearchPath(dsn, namespace)
			if err != nil {
				return nil, err
			}
		}
		db, err = sql.Open("pgx", dsn)
	default:
		return nil, fmt.Errorf("db: unsupported driver: %s", driver)
	}

	if err != nil {
		return nil, fmt.Errorf("db: failed to open: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db: failed to ping: %w", err)
	}

	return &DB{DB: db, driver: driver, namespace: namespace}, nil
}

// NewWithDB wraps an already-open connection. Used by tests that drive the
// connection themselves (sqlmock).
func NewWithDB(sqlDB *sql.DB, driver, namespace string) *DB {
	return &DB{DB: sqlDB, driver: driver, namespace: namespace}
}

// TableName qualifies a table with the configured namespace: a schema prefix
// on PostgreSQL, a name prefix on SQLite (which has no schemas).
func (d *DB) TableName(name string) string {
	if d.namespace == "" {
		return name
	}
	if d.driver == "postgres" {
		return d.namespace + "." + name
	}
	return d.namespace + "_" + name
}

// withSearchPath puts the namespace first on the connection's search path so
// tables that cannot be schema-qualified in queries (the goqite queue table)
// still resolve.
func withSearchPath(dsn, namespace string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("db: failed to parse DSN: %w", err)
	}
	q := u.Query()
	q.Set("search_path", namespace+",public")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (d *DB) Close() error {
	return d.DB.Close()
}
