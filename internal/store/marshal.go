package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/dishm/internal/harness"
	"github.com/roach88/dishm/internal/ir"
)

// marshalValue converts an event value to canonical JSON TEXT for storage.
// A nil value is stored as SQL NULL.
func marshalValue(v ir.Value) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal value: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalValue parses stored canonical JSON back to a value. SQL NULL
// yields nil, JSON null yields ir.Null.
func unmarshalValue(ns sql.NullString) (ir.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	v, err := ir.UnmarshalValue([]byte(ns.String))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// marshalErrors stores the error list as a canonical JSON array of strings.
func marshalErrors(errs []string) (string, error) {
	list := make(ir.List, len(errs))
	for i, e := range errs {
		list[i] = ir.String(e)
	}
	data, err := ir.MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("marshal errors: %w", err)
	}
	return string(data), nil
}

func unmarshalErrors(data string) ([]string, error) {
	errs := []string{}
	if data == "" {
		return errs, nil
	}
	if err := json.Unmarshal([]byte(data), &errs); err != nil {
		return nil, fmt.Errorf("unmarshal errors: %w", err)
	}
	return errs, nil
}

// marshalSteps stores step records as canonical JSON.
func marshalSteps(steps []harness.StepRecord) (string, error) {
	list := make(ir.List, len(steps))
	for i, s := range steps {
		list[i] = ir.NewStruct(
			ir.F("number", ir.Uint(s.Number)),
			ir.F("description", ir.String(s.Description)),
			ir.F("seq", ir.Uint(s.Seq)),
		)
	}
	data, err := ir.MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("marshal steps: %w", err)
	}
	return string(data), nil
}

func unmarshalSteps(data string) ([]harness.StepRecord, error) {
	steps := []harness.StepRecord{}
	if data == "" {
		return steps, nil
	}
	if err := json.Unmarshal([]byte(data), &steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	return steps, nil
}
