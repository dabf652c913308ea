package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Empty database
// 1 - Initial tables (schema.sql)
// 2 - Lookup indexes on audit_logs and decision_plans
const currentSchemaVersion = 2

// Supported driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// ErrUniqueViolation is returned when an insert collides with a primary key
// or unique constraint, whichever driver reported it.
var ErrUniqueViolation = errors.New("unique constraint violation")

// Config selects the driver and data source.
type Config struct {
	Driver string
	DSN    string
}

// Store is the durable storage handle. It is safe for concurrent use; every
// read and write goes through WithTx.
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the wall clock used for created_at/updated_at columns.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open connects to the configured database, applies pragmas (SQLite) and
// runs migrations. Safe to call repeatedly against the same database.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("open store: empty DSN")
	}

	db, err := sql.Open(d.name, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if d.name == DriverSQLite {
		// SQLite only supports one writer at a time
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	s := newStore(db, d, opts)
	if _, err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return s, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*Store, error) {
	return Open(ctx, Config{Driver: DriverSQLite, DSN: path}, opts...)
}

// New wraps an already opened database. No pragmas or migrations are
// applied.
func New(db *sql.DB, driver string, opts ...Option) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	return newStore(db, d, opts), nil
}

func newStore(db *sql.DB, d dialect, opts []Option) *Store {
	s := &Store{db: db, dialect: d, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver returns the dialect name.
func (s *Store) Driver() string {
	return s.dialect.name
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise; fn's error is returned unchanged.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	tx := &Tx{tx: sqlTx, dialect: s.dialect, now: s.now}
	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Migrate applies pending migrations and returns the resulting schema
// version.
func (s *Store) Migrate(ctx context.Context) (int, error) {
	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return 0, err
	}

	if version < 1 {
		ddl := strings.ReplaceAll(schemaSQL, "{{AUTO_ID}}", s.dialect.autoID)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return 0, fmt.Errorf("failed to execute schema: %w", err)
		}
		version = 1
	}
	if version < 2 {
		if err := migrateToV2(ctx, s.db); err != nil {
			return 0, err
		}
		version = 2
	}

	if err := s.setSchemaVersion(ctx, currentSchemaVersion); err != nil {
		return 0, err
	}
	return currentSchemaVersion, nil
}

// SchemaVersion reports the applied schema version, 0 for an empty
// database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	switch s.dialect.name {
	case DriverSQLite:
		if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
			return 0, fmt.Errorf("get user_version: %w", err)
		}
	default:
		if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
			return 0, fmt.Errorf("create schema_version: %w", err)
		}
		if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version); err != nil {
			return 0, fmt.Errorf("get schema version: %w", err)
		}
	}
	return version, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, version int) error {
	switch s.dialect.name {
	case DriverSQLite:
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	default:
		if _, err := s.db.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, version); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// migrateToV2 adds the indexes used by audit trail and plan lookups.
func migrateToV2(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_audit_logs_application ON audit_logs(application_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_decision_plans_application ON decision_plans(application_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate to v2: %w", err)
		}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
