package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/dishm/internal/harness"
	"github.com/roach88/dishm/internal/ir"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun builds a failed run with one event of each interesting
// shape: step, null read, write, invoke with struct args and prompt.
func createTestRun(id string) *harness.Result {
	res := harness.NewResult(id, "TC_DISHM_3_2")
	res.Endpoint = 1
	res.Outcome = harness.OutcomeFail
	res.Errors = []string{"CurrentMode must match StartUpMode after a power cycle (expected 0, actual 1)"}
	res.Digest = "digest-" + id
	res.Steps = []harness.StepRecord{{Number: 2, Description: "Read StartUpMode attribute", Seq: 1}}
	res.Trace = []harness.TraceEvent{
		{ID: id + "-1", Seq: 1, Kind: harness.EventStep, Step: 2, Message: "Read StartUpMode attribute"},
		{ID: id + "-2", Seq: 2, Kind: harness.EventRead, Step: 2, Endpoint: 1, Target: "DishwasherMode.StartUpMode", Result: ir.Null{}, Status: "Success"},
		{ID: id + "-3", Seq: 3, Kind: harness.EventWrite, Step: 4, Endpoint: 1, Target: "DishwasherMode.StartUpMode", Args: ir.Uint(0), Status: "Success"},
		{ID: id + "-4", Seq: 4, Kind: harness.EventInvoke, Step: 7, Endpoint: 1, Target: "DishwasherMode.ChangeToMode",
			Args:   ir.Struct{"newMode": ir.Uint(1)},
			Result: ir.Struct{"status": ir.Uint(0)}, Message: "response DishwasherMode.ChangeToModeResponse"},
		{ID: id + "-5", Seq: 5, Kind: harness.EventPrompt, Step: 8, Target: "power_cycle", Message: "Press Enter when done."},
	}
	return res
}
