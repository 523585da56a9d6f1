package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dishm/internal/device/sim"
)

// Scenario describes one simulated run: the DUT's initial state and faults,
// the declared PICS, and what the run must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// TestCase is the registered case to run.
	TestCase string `yaml:"test_case"`

	// Endpoint is the DUT endpoint. Defaults to 1.
	Endpoint uint16 `yaml:"endpoint,omitempty"`

	// RunID pins the run ID for deterministic event IDs.
	RunID string `yaml:"run_id,omitempty"`

	// PICS declares the DUT's conformance flags.
	PICS map[string]any `yaml:"pics"`

	// Device is the simulated DUT.
	Device DeviceSetup `yaml:"device"`

	// Expect is the required outcome of the run.
	Expect Expectation `yaml:"expect"`

	// Assertions validate the trace and the final device state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// DeviceSetup configures the simulated DUT.
type DeviceSetup struct {
	State  sim.State  `yaml:"state"`
	Faults sim.Faults `yaml:"faults,omitempty"`
}

// Expectation is the required result of a scenario run.
type Expectation struct {
	// Outcome is pass, fail, skip or error. Defaults to pass.
	Outcome Outcome `yaml:"outcome,omitempty"`

	// ErrorContains must appear in one of the result errors.
	ErrorContains string `yaml:"error_contains,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event appears with matching args/result
	// - "trace_order": events appear in order
	// - "trace_count": an event appears exactly N times
	// - "final_state": simulator attributes hold expected values
	Type string `yaml:"type"`

	// Event is an event reference, "kind" or "kind:Cluster.Name"
	// (used by trace_contains and trace_count).
	Event string `yaml:"event,omitempty"`

	// Args and Result are matched against the event (used by
	// trace_contains). Struct values match as subsets.
	Args   yaml.Node `yaml:"args,omitempty"`
	Result yaml.Node `yaml:"result,omitempty"`

	// Status is the expected event status name (used by trace_contains).
	Status string `yaml:"status,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected order (used by trace_order).
	Events []string `yaml:"events,omitempty"`

	// Expect maps attribute names or counters to values (used by
	// final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Endpoint == 0 {
		scenario.Endpoint = 1
	}
	if scenario.Expect.Outcome == "" {
		scenario.Expect.Outcome = OutcomePass
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.TestCase == "" {
		return fmt.Errorf("test_case is required")
	}
	if !s.Expect.Outcome.Valid() {
		return fmt.Errorf("expect.outcome: unknown outcome %q", s.Expect.Outcome)
	}
	if err := s.Device.State.Validate(); err != nil {
		return fmt.Errorf("device.state: %w", err)
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
