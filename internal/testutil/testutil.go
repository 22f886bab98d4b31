// Package testutil provides testing utilities for integration tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vodsync/vodsync/internal/database"
	"github.com/vodsync/vodsync/internal/database/sqlc"
)

// TestDB wraps a migrated test database.
type TestDB struct {
	DB      *database.DB
	Conn    *sql.DB
	Queries *sqlc.Queries
	Path    string
	Logger  zerolog.Logger
}

// NewTestDB creates a migrated database in t.TempDir().
// The caller should defer Close().
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dir := t.TempDir()
	db, err := database.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return &TestDB{
		DB:      db,
		Conn:    db.Conn(),
		Queries: sqlc.New(db.Conn()),
		Path:    dir,
		Logger:  zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel),
	}
}

// Close closes the database. The temp directory is removed by the testing package.
func (tdb *TestDB) Close() {
	if tdb.DB != nil {
		tdb.DB.Close()
	}
}

// CreateAccount inserts an active XC account pointing at serverURL.
func (tdb *TestDB) CreateAccount(t *testing.T, name, serverURL string) *sqlc.M3uAccount {
	t.Helper()
	acc, err := tdb.Queries.CreateAccount(context.Background(), sqlc.CreateAccountParams{
		Name:                 name,
		AccountType:          "XC",
		ServerUrl:            serverURL,
		Username:             "user",
		Password:             "pass",
		IsActive:             1,
		RefreshIntervalHours: 24,
	})
	if err != nil {
		t.Fatalf("Failed to create account %q: %v", name, err)
	}
	return acc
}
