// ABOUTME: Tests for SQLite store initialization and schema migrations.
// ABOUTME: Verifies database setup and table creation.

package store

import (
	"os"
	"testing"
)

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := "test_gridbase.db"
	defer os.Remove(dbPath)

	s, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	// Verify tables exist
	tables := []string{
		"users", "orgs", "org_members", "org_invites",
		"schema_tables", "schema_fields", "schema_relations", "schema_indexes", "schema_policies",
		"activity_logs",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestNewStore_MigrationVersion(t *testing.T) {
	dbPath := "test_gridbase.db"
	defer os.Remove(dbPath)

	s, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	var version int
	err = s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		t.Fatalf("query migration version: %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("migration version = %d, want %d", version, CurrentSchemaVersion)
	}
}

func TestNewStore_ReopenIsIdempotent(t *testing.T) {
	dbPath := "test_gridbase.db"
	defer os.Remove(dbPath)

	s, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.Close()

	// Reopening must not re-run migrations
	s2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() on existing database error = %v", err)
	}
	defer s2.Close()

	var count int
	err = s2.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if err != nil {
		t.Fatalf("query schema_migrations: %v", err)
	}
	if count != CurrentSchemaVersion {
		t.Errorf("migration rows = %d, want %d", count, CurrentSchemaVersion)
	}
}
