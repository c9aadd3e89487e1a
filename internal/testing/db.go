// Package testing provides testing utilities and helpers for the spaces project.
package testing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/spaces/internal/database"
)

// NewTestDB creates a file-backed SQLite database for testing with automatic schema migration.
// Returns the database instance and a cleanup function that closes the connection.
// The cleanup function is idempotent and can be called multiple times safely.
//
// Supported schema names:
//   - "spaces" - applies spaces_schema.sql
//   - Unknown names - creates empty database (no schema applied)
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	// A real file rather than :memory: so every pooled connection sees the same database
	tmpPath := filepath.Join(t.TempDir(), name+".db")

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileLedger,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	closed := false
	return db, func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	}
}

// CreateTempDBPath returns a path for a database file that does not exist yet.
// The enclosing directory is removed when the test finishes.
func CreateTempDBPath(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name+".db")
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("temporary database path %s already exists", path)
	}
	return path
}
