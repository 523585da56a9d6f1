package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/dishm/internal/harness"
	"github.com/roach88/dishm/internal/ir"
)

// WriteRun inserts a run and its trace in one transaction.
// Uses ON CONFLICT DO NOTHING for idempotency - writing the same run twice
// leaves the first copy untouched.
func (s *Store) WriteRun(ctx context.Context, res *harness.Result) error {
	if res == nil || res.RunID == "" {
		return fmt.Errorf("write run: run ID is required")
	}

	errsJSON, err := marshalErrors(res.Errors)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	stepsJSON, err := marshalSteps(res.Steps)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	var firstSeq, lastSeq int64
	if n := len(res.Trace); n > 0 {
		firstSeq, lastSeq = res.Trace[0].Seq, res.Trace[n-1].Seq
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback()

	inserted, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, test_case, endpoint, outcome, skip_reason, errors, steps, digest, first_seq, last_seq,
		 harness_version, trace_schema)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		res.RunID,
		res.TestCase,
		res.Endpoint,
		string(res.Outcome),
		res.SkipReason,
		errsJSON,
		stepsJSON,
		res.Digest,
		firstSeq,
		lastSeq,
		ir.HarnessVersion,
		ir.SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if n, err := inserted.RowsAffected(); err == nil && n == 0 {
		// Already stored.
		return tx.Commit()
	}

	if err := writeEvents(ctx, tx, res.RunID, res.Trace); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}

func writeEvents(ctx context.Context, tx *sql.Tx, runID string, events []harness.TraceEvent) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events
		(run_id, seq, id, kind, step, endpoint, target, args, result, status, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare events: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		args, err := marshalValue(e.Args)
		if err != nil {
			return fmt.Errorf("event %d args: %w", e.Seq, err)
		}
		result, err := marshalValue(e.Result)
		if err != nil {
			return fmt.Errorf("event %d result: %w", e.Seq, err)
		}
		if _, err := stmt.ExecContext(ctx,
			runID, e.Seq, e.ID, e.Kind, e.Step, e.Endpoint, e.Target, args, result, e.Status, e.Message,
		); err != nil {
			return fmt.Errorf("insert event %d: %w", e.Seq, err)
		}
	}
	return nil
}
