package storage

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
)

// newTestDB opens a migrated database in a temporary directory.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{
			name: "valid path",
			path: filepath.Join(t.TempDir(), "test.db"),
		},
		{
			name:    "missing directory",
			path:    "/nonexistent/path/to/db.db",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := New(tt.path)
			if tt.wantErr {
				if err == nil {
					_ = db.Close()
					t.Error("New() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() unexpected error: %v", err)
			}
			defer func() {
				_ = db.Close()
			}()

			if db.Stats().MaxOpenConnections != 25 {
				t.Errorf("MaxOpenConnections = %v, want 25", db.Stats().MaxOpenConnections)
			}
			var fk int
			if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
				t.Fatalf("PRAGMA foreign_keys error = %v", err)
			}
			if fk != 1 {
				t.Error("New() should enable foreign keys")
			}
		})
	}
}

func TestMigrate(t *testing.T) {
	db := newTestDB(t)

	// A second run must be a no-op.
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() second run error = %v", err)
	}

	for _, table := range []string{"corpora", "games", "chunks"} {
		var schema string
		err := db.QueryRow("SELECT sql FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&schema)
		if err != nil {
			t.Fatalf("table %s not created: %v", table, err)
		}
		if table == "chunks" && !strings.Contains(schema, "ON DELETE CASCADE") {
			t.Errorf("chunks schema lacks cascade: %s", schema)
		}
	}
}
