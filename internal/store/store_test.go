package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer s.Close()

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("runs = %d, want 0", count)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"runs", "events"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("Open() with invalid path should fail")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db returned error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.expected); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestConstraint_EventRequiresRun(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO events (run_id, seq, id, kind) VALUES ('missing', 1, 'e1', 'step')`)
	if err == nil {
		t.Error("event insert without a run should violate the foreign key")
	}
}

func TestConstraint_OutcomeChecked(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO runs (id, test_case, endpoint, outcome, digest, first_seq, last_seq, harness_version, trace_schema)
		VALUES ('r1', 'TC', 1, 'maybe', '', 0, 0, '0.1.0', '1')
	`)
	if err == nil {
		t.Error("unknown outcome should violate the CHECK constraint")
	}
}

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	// Simulate a v0 database: drop the v1 index and reset the version.
	if _, err := s.db.Exec("DROP INDEX idx_events_run_kind"); err != nil {
		t.Fatalf("drop index: %v", err)
	}
	if _, err := s.db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("reset version: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	var name string
	err = s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_events_run_kind'",
	).Scan(&name)
	if err != nil {
		t.Errorf("v1 index missing after upgrade: %v", err)
	}
}

func TestMigration_UpgradeLegacyRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	// A v1 run log: runs without harness_version and trace_schema.
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE runs (
			id TEXT PRIMARY KEY, test_case TEXT NOT NULL, endpoint INTEGER NOT NULL,
			outcome TEXT NOT NULL, skip_reason TEXT NOT NULL DEFAULT '',
			errors TEXT NOT NULL DEFAULT '[]', steps TEXT NOT NULL DEFAULT '[]',
			digest TEXT NOT NULL, first_seq INTEGER NOT NULL, last_seq INTEGER NOT NULL)`,
		`INSERT INTO runs (id, test_case, endpoint, outcome, digest, first_seq, last_seq)
			VALUES ('run-legacy', 'TC_DISHM_3_2', 1, 'pass', 'd', 1, 2)`,
		"PRAGMA user_version = 1",
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed legacy log: %v", err)
		}
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}

	runs, err := s.ListRuns(context.Background(), "")
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 1 || runs[0].HarnessVersion != "" {
		t.Errorf("ListRuns() = %+v, want one legacy run without a harness version", runs)
	}

	_, err = s.ReadRun(context.Background(), "run-legacy")
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Errorf("ReadRun() error = %v, want unsupported trace schema", err)
	}
}
