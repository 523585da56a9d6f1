package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a run log to version. Migrations run in order, each in
// its own transaction, and only when the log's user_version is older.
type migration struct {
	version int
	name    string
	apply   func(tx *sql.Tx) error
}

var migrations = []migration{
	{version: 1, name: "index events by kind", apply: indexEventsByKind},
	{version: 2, name: "record run versions", apply: addRunVersionColumns},
}

// currentSchemaVersion is the user_version of a fully migrated run log.
var currentSchemaVersion = migrations[len(migrations)-1].version

// Store is the run log of dishm: executed test cases and their traces.
type Store struct {
	db *sql.DB
}

// Open opens the run log at path, creating it when missing, and brings its
// schema up to date. The connection runs in WAL mode with foreign keys on
// and a 5 second busy timeout. A single connection is kept: runs are written
// by one process at a time.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open run log %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect run log %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create run log tables: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the run log.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the connection for ad hoc inspection of a run log.
func (s *Store) DB() *sql.DB {
	return s.db
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		if err := runMigration(db, m); err != nil {
			return err
		}
		version = m.version
	}
	return nil
}

func runMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
	}
	defer tx.Rollback()

	if err := m.apply(tx); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("migration %d (%s): set user_version: %w", m.version, m.name, err)
	}
	return tx.Commit()
}

// indexEventsByKind backs the kind filter of ReadEvents.
func indexEventsByKind(tx *sql.Tx) error {
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_events_run_kind ON events(run_id, kind, seq)`)
	return err
}

// addRunVersionColumns adds harness_version and trace_schema to run logs
// written before runs recorded them. Old runs get empty values, which
// ReadRun reports as an unsupported trace schema.
func addRunVersionColumns(tx *sql.Tx) error {
	cols, err := tableColumns(tx, "runs")
	if err != nil {
		return err
	}
	for _, name := range []string{"harness_version", "trace_schema"} {
		if cols[name] {
			continue
		}
		if _, err := tx.Exec(fmt.Sprintf("ALTER TABLE runs ADD COLUMN %s TEXT NOT NULL DEFAULT ''", name)); err != nil {
			return fmt.Errorf("add runs.%s: %w", name, err)
		}
	}
	return nil
}

func tableColumns(tx *sql.Tx, table string) (map[string]bool, error) {
	rows, err := tx.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("inspect %s: %w", table, err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// verifyPragma checks that a pragma is set to the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
