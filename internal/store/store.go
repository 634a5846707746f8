// ABOUTME: Core SQLite store for the gridbase server.
// ABOUTME: Handles database initialization, migrations, and connection management.

package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Migration version constants
const (
	MigrationV1 = 1 // Catalog: users, orgs, membership, invites, schema definitions
	MigrationV2 = 2 // Activity log table
	MigrationV3 = 3 // Composite indexes for activity aggregation and filtering
)

// CurrentSchemaVersion is the target version for the database schema
const CurrentSchemaVersion = MigrationV3

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func New(dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// DSN pragmas apply to every pooled connection, not just the first
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	// Verify connection works
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pooling
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0) // Connections don't expire

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection for seeding and tests
func (s *Store) GetDB() *sql.DB {
	return s.db
}

// migrate runs all pending migrations
func (s *Store) migrate() error {
	if err := s.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := s.getCurrentMigrationVersion()
	if err != nil {
		return fmt.Errorf("failed to get current migration version: %w", err)
	}

	s.logger.Info("database schema",
		zap.Int("current", currentVersion),
		zap.Int("target", CurrentSchemaVersion))

	if currentVersion < MigrationV1 {
		if err := s.migrateV1(); err != nil {
			return fmt.Errorf("migration v1 failed: %w", err)
		}
	}
	if currentVersion < MigrationV2 {
		if err := s.migrateV2(); err != nil {
			return fmt.Errorf("migration v2 failed: %w", err)
		}
	}
	if currentVersion < MigrationV3 {
		if err := s.migrateV3(); err != nil {
			return fmt.Errorf("migration v3 failed: %w", err)
		}
	}

	return nil
}

// createMigrationsTable creates the schema_migrations tracking table
func (s *Store) createMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			description TEXT
		)
	`)
	return err
}

// getCurrentMigrationVersion retrieves the current schema version
func (s *Store) getCurrentMigrationVersion() (int, error) {
	var version int
	err := s.db.QueryRow(`
		SELECT COALESCE(MAX(version), 0) FROM schema_migrations
	`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// recordMigration records a completed migration
func (s *Store) recordMigration(version int, description string) error {
	_, err := s.db.Exec(`
		INSERT INTO schema_migrations (version, description)
		VALUES (?, ?)
	`, version, description)
	return err
}

// migrateV1 creates the catalog: accounts, organizations, and the schema
// definition tables the builder writes to.
func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS orgs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS org_members (
		org_id TEXT NOT NULL REFERENCES orgs(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		role TEXT NOT NULL DEFAULT 'viewer',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(org_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS org_invites (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL REFERENCES orgs(id) ON DELETE CASCADE,
		email TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'editor',
		token TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMP NOT NULL,
		accepted_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS schema_tables (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL REFERENCES orgs(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		comment TEXT DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(org_id, name)
	);

	CREATE TABLE IF NOT EXISTS schema_fields (
		table_id TEXT NOT NULL REFERENCES schema_tables(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		alias TEXT DEFAULT '',
		subtype TEXT DEFAULT '',
		is_array INTEGER NOT NULL DEFAULT 0,
		not_null INTEGER NOT NULL DEFAULT 0,
		is_unique INTEGER NOT NULL DEFAULT 0,
		has_default INTEGER NOT NULL DEFAULT 0,
		default_value TEXT DEFAULT '',
		comment TEXT DEFAULT '',
		position INTEGER NOT NULL DEFAULT 0,
		UNIQUE(table_id, name)
	);

	CREATE TABLE IF NOT EXISTS schema_relations (
		table_id TEXT NOT NULL REFERENCES schema_tables(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		field_name TEXT NOT NULL,
		key_column TEXT DEFAULT '',
		target_table TEXT NOT NULL,
		UNIQUE(table_id, name)
	);

	CREATE TABLE IF NOT EXISTS schema_indexes (
		table_id TEXT NOT NULL REFERENCES schema_tables(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		columns TEXT NOT NULL,
		is_unique INTEGER NOT NULL DEFAULT 0,
		UNIQUE(table_id, name)
	);

	CREATE TABLE IF NOT EXISTS schema_policies (
		table_id TEXT NOT NULL REFERENCES schema_tables(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		action TEXT NOT NULL,
		role TEXT NOT NULL,
		expression TEXT NOT NULL DEFAULT '',
		UNIQUE(table_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_org_members_user ON org_members(user_id);
	CREATE INDEX IF NOT EXISTS idx_org_invites_org ON org_invites(org_id);
	CREATE INDEX IF NOT EXISTS idx_schema_tables_org ON schema_tables(org_id);
	CREATE INDEX IF NOT EXISTS idx_schema_fields_table ON schema_fields(table_id, position);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if err := s.recordMigration(MigrationV1, "Create catalog tables"); err != nil {
		return err
	}

	s.logger.Info("applied migration", zap.Int("version", MigrationV1), zap.String("description", "Create catalog tables"))
	return nil
}

// migrateV2 creates the activity log table and its base indexes
func (s *Store) migrateV2() error {
	schema := `
	CREATE TABLE IF NOT EXISTS activity_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		org_id TEXT DEFAULT '',
		table_name TEXT DEFAULT '',
		method TEXT NOT NULL,
		path TEXT NOT NULL,
		status_code INTEGER,
		duration_ms INTEGER,
		user_id TEXT,
		ip_address TEXT,
		user_agent TEXT,
		request_body TEXT,
		response_body TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_activity_logs_timestamp ON activity_logs(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_activity_logs_path ON activity_logs(path);
	CREATE INDEX IF NOT EXISTS idx_activity_logs_status ON activity_logs(status_code);
	CREATE INDEX IF NOT EXISTS idx_activity_logs_org ON activity_logs(org_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	if err := s.recordMigration(MigrationV2, "Create activity_logs table and indexes"); err != nil {
		return err
	}

	s.logger.Info("applied migration", zap.Int("version", MigrationV2), zap.String("description", "Create activity_logs table and indexes"))
	return nil
}

// migrateV3 adds composite indexes for the activity aggregation and
// filtering queries used by the dashboard
func (s *Store) migrateV3() error {
	indexes := []string{
		// GetTopTables groups by table_name and orders by count
		"CREATE INDEX IF NOT EXISTS idx_activity_logs_table_count ON activity_logs(table_name, status_code)",

		// Per-table timeline queries filter by table_name AND a timestamp range
		"CREATE INDEX IF NOT EXISTS idx_activity_logs_table_timestamp ON activity_logs(table_name, timestamp DESC)",

		// Multi-column filtering by org AND method AND status together
		"CREATE INDEX IF NOT EXISTS idx_activity_logs_org_method_status ON activity_logs(org_id, method, status_code)",

		// User filtering and uniqueness counts; non-empty filter keeps the index small
		"CREATE INDEX IF NOT EXISTS idx_activity_logs_user_id ON activity_logs(user_id) WHERE user_id != ''",

		// Date-based stats with status code filtering
		"CREATE INDEX IF NOT EXISTS idx_activity_logs_timestamp_status ON activity_logs(timestamp DESC, status_code)",
	}

	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := s.recordMigration(MigrationV3, "Add composite indexes for activity queries"); err != nil {
		return err
	}

	s.logger.Info("applied migration", zap.Int("version", MigrationV3), zap.String("description", "Add composite indexes for activity queries"))
	return nil
}
