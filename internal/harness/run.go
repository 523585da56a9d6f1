package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/dishm/internal/device/sim"
	"github.com/roach88/dishm/internal/ir"
	"github.com/roach88/dishm/internal/operator"
	"github.com/roach88/dishm/internal/pics"
	"github.com/roach88/dishm/internal/testutil"
)

// ScenarioResult is the verdict of a scenario. Pass means the run matched
// the expectation, which may itself be a failing outcome.
type ScenarioResult struct {
	Scenario string              `json:"scenario"`
	Pass     bool                `json:"pass"`
	Failures []string            `json:"failures,omitempty"`
	Run      *Result             `json:"run"`
	State    map[string]ir.Value `json:"state"`
}

func (r *ScenarioResult) fail(msg string) {
	r.Pass = false
	r.Failures = append(r.Failures, msg)
}

// RunScenario executes a scenario against a fresh simulated DUT.
//
// The operator is automatic: every prompt power-cycles the simulator. The
// clock and run ID are deterministic, so two runs of one scenario produce
// identical traces.
func RunScenario(ctx context.Context, s *Scenario, reg Registry, logger *slog.Logger) (*ScenarioResult, error) {
	tc, ok := reg.Lookup(s.TestCase)
	if !ok {
		return nil, fmt.Errorf("scenario %s: unknown test case %q", s.Name, s.TestCase)
	}
	if logger == nil {
		logger = testutil.DiscardLogger()
	}

	set, err := pics.Parse(s.PICS)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	dut, err := sim.New(s.Endpoint, s.Device.State,
		sim.WithFaults(s.Device.Faults),
		sim.WithLogger(logger.With("component", "sim")),
	)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	op := &operator.Auto{Hook: func(context.Context, string) error {
		dut.PowerCycle()
		return nil
	}}

	run := Execute(ctx, tc, Env{
		Device:   dut,
		PICS:     set,
		Operator: op,
		Logger:   logger,
		Params:   map[string]any{"endpoint": s.Endpoint},
		Clock:    testutil.NewDeterministicClock(),
		RunIDs:   testutil.NewFixedRunIDGenerator(s.RunID),
	})

	res := &ScenarioResult{Scenario: s.Name, Pass: true, Run: run, State: dut.Snapshot()}

	if run.Outcome != s.Expect.Outcome {
		res.fail(fmt.Sprintf("outcome: expected %s, got %s (errors: %s)",
			s.Expect.Outcome, run.Outcome, strings.Join(run.Errors, "; ")))
	}
	if want := s.Expect.ErrorContains; want != "" && !containsAny(run.Errors, want) {
		res.fail(fmt.Sprintf("errors: expected one containing %q, got %q", want, run.Errors))
	}
	for _, msg := range EvaluateAssertions(run, res.State, s.Assertions) {
		res.fail(msg)
	}
	return res, nil
}

func containsAny(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
