package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/dishm/internal/ir"
)

// TraceSnapshot captures the observable result of a scenario run.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	RunID        string
	Outcome      Outcome
	Errors       []string
	Trace        []TraceEvent
	State        map[string]ir.Value
}

// NewTraceSnapshot builds a snapshot from a scenario result.
func NewTraceSnapshot(res *ScenarioResult) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: res.Scenario,
		RunID:        res.Run.RunID,
		Outcome:      res.Run.Outcome,
		Errors:       res.Run.Errors,
		Trace:        res.Run.Trace,
		State:        res.State,
	}
}

// toCanonicalMap converts the snapshot to a map for canonical JSON, which
// only handles ir values and primitives.
func (s TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"id":   event.ID,
			"seq":  event.Seq,
			"kind": event.Kind,
		}
		for k, v := range event.Payload() {
			eventMap[k] = v
		}
		traceList[i] = eventMap
	}

	errs := make([]any, len(s.Errors))
	for i, e := range s.Errors {
		errs[i] = e
	}

	state := make(map[string]any, len(s.State))
	for k, v := range s.State {
		state[k] = v
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"run_id":        s.RunID,
		"outcome":       string(s.Outcome),
		"errors":        errs,
		"trace":         traceList,
		"state":         state,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// GoldenDir is the conventional fixture directory for golden snapshots.
const GoldenDir = "testdata/golden"

// RunWithGolden executes a scenario and compares its snapshot against
// {dir}/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./... -update
func RunWithGolden(t *testing.T, dir string, scenario *Scenario, reg Registry) (*ScenarioResult, error) {
	t.Helper()

	res, err := RunScenario(context.Background(), scenario, reg, nil)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, dir, scenario.Name, res); err != nil {
		return nil, err
	}
	return res, nil
}

// AssertGolden compares an existing scenario result against its golden file
// without re-running it.
func AssertGolden(t *testing.T, dir, name string, res *ScenarioResult) error {
	t.Helper()

	data, err := NewTraceSnapshot(res).MarshalCanonical()
	if err != nil {
		return err
	}
	newGoldie(t, dir).Assert(t, name, data)
	return nil
}

// UpdateGolden writes the golden file for a scenario result.
func UpdateGolden(t *testing.T, dir, name string, res *ScenarioResult) error {
	t.Helper()

	data, err := NewTraceSnapshot(res).MarshalCanonical()
	if err != nil {
		return err
	}
	return newGoldie(t, dir).Update(t, name, data)
}

func newGoldie(t *testing.T, dir string) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
}
