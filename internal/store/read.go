package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/dishm/internal/harness"
	"github.com/roach88/dishm/internal/ir"
)

// RunSummary is one row of ListRuns.
type RunSummary struct {
	ID       string          `json:"id"`
	TestCase string          `json:"test_case"`
	Endpoint uint16          `json:"endpoint"`
	Outcome  harness.Outcome `json:"outcome"`
	Digest   string          `json:"digest"`
	Events   int64           `json:"events"`

	// HarnessVersion is the runner version that recorded the run.
	HarnessVersion string `json:"harness_version"`
}

// ReadRun retrieves a run with its steps and full trace.
// Returns an error wrapping sql.ErrNoRows if the run does not exist.
func (s *Store) ReadRun(ctx context.Context, id string) (*harness.Result, error) {
	var (
		res       harness.Result
		outcome   string
		errsJSON  string
		stepsJSON string
		schema    string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, test_case, endpoint, outcome, skip_reason, errors, steps, digest, trace_schema
		FROM runs
		WHERE id = ?
	`, id).Scan(&res.RunID, &res.TestCase, &res.Endpoint, &outcome, &res.SkipReason, &errsJSON, &stepsJSON, &res.Digest, &schema)
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}
	if schema != ir.SchemaVersion {
		return nil, fmt.Errorf("read run %s: trace schema %q is not supported (want %q)", id, schema, ir.SchemaVersion)
	}
	res.Outcome = harness.Outcome(outcome)

	if res.Errors, err = unmarshalErrors(errsJSON); err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}
	if res.Steps, err = unmarshalSteps(stepsJSON); err != nil {
		return nil, fmt.Errorf("read run %s: %w", id, err)
	}
	if res.Trace, err = s.ReadEvents(ctx, id, ""); err != nil {
		return nil, err
	}
	return &res, nil
}

// ReadEvents returns the trace of a run in seq order. A non-empty kind
// restricts the result to events of that kind.
func (s *Store) ReadEvents(ctx context.Context, runID, kind string) ([]harness.TraceEvent, error) {
	query := `
		SELECT seq, id, kind, step, endpoint, target, args, result, status, message
		FROM events
		WHERE run_id = ?`
	args := []any{runID}
	if kind != "" {
		query += " AND kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []harness.TraceEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (harness.TraceEvent, error) {
	var (
		e            harness.TraceEvent
		args, result sql.NullString
	)
	if err := rows.Scan(&e.Seq, &e.ID, &e.Kind, &e.Step, &e.Endpoint, &e.Target, &args, &result, &e.Status, &e.Message); err != nil {
		return harness.TraceEvent{}, fmt.Errorf("scan event: %w", err)
	}
	var err error
	if e.Args, err = unmarshalValue(args); err != nil {
		return harness.TraceEvent{}, fmt.Errorf("event %d args: %w", e.Seq, err)
	}
	if e.Result, err = unmarshalValue(result); err != nil {
		return harness.TraceEvent{}, fmt.Errorf("event %d result: %w", e.Seq, err)
	}
	return e, nil
}

// ListRuns returns stored runs ordered by ID, optionally restricted to one
// test case.
func (s *Store) ListRuns(ctx context.Context, testCase string) ([]RunSummary, error) {
	query := `
		SELECT r.id, r.test_case, r.endpoint, r.outcome, r.digest, r.harness_version,
		       (SELECT COUNT(*) FROM events e WHERE e.run_id = r.id)
		FROM runs r`
	var args []any
	if testCase != "" {
		query += " WHERE r.test_case = ?"
		args = append(args, testCase)
	}
	query += " ORDER BY r.id COLLATE BINARY ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var (
			r       RunSummary
			outcome string
		)
		if err := rows.Scan(&r.ID, &r.TestCase, &r.Endpoint, &outcome, &r.Digest, &r.HarnessVersion, &r.Events); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Outcome = harness.Outcome(outcome)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
