package harness

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/dishm/internal/ir"
)

// assertTraceContains checks the trace holds an event matching the
// reference, args, result and status given.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	args, err := nodeValue(a.Args)
	if err != nil {
		return fmt.Errorf("trace_contains %s: args: %w", a.Event, err)
	}
	result, err := nodeValue(a.Result)
	if err != nil {
		return fmt.Errorf("trace_contains %s: result: %w", a.Event, err)
	}

	for _, event := range trace {
		if !event.Matches(a.Event) {
			continue
		}
		if a.Status != "" && event.Status != a.Status {
			continue
		}
		if args != nil && !matchValue(event.Args, args) {
			continue
		}
		if result != nil && !matchValue(event.Result, result) {
			continue
		}
		return nil
	}

	expected := a.Event
	if args != nil {
		expected += " args=" + ir.Format(args)
	}
	if result != nil {
		expected += " result=" + ir.Format(result)
	}
	if a.Status != "" {
		expected += " status=" + a.Status
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks events appear in the specified order. Events
// don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	// First position of each expected event, 1-indexed.
	positions := make(map[string]int)
	for i, event := range trace {
		for _, want := range a.Events {
			if event.Matches(want) && positions[want] == 0 {
				positions[want] = i + 1
			}
		}
	}

	for _, want := range a.Events {
		if positions[want] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all events present: %v", a.Events),
				Actual:   fmt.Sprintf("missing event: %s", want),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Events); i++ {
		prev, curr := a.Events[i-1], a.Events[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the event appears exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Matches(a.Event) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the device snapshot holds the expected values.
// Keys not listed in Expect are ignored.
func assertFinalState(state map[string]ir.Value, a Assertion) error {
	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		want, err := ir.FromAny(a.Expect[key])
		if err != nil {
			return fmt.Errorf("final_state %s: %w", key, err)
		}
		got, ok := state[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in device state", key),
			}
		}
		if !matchValue(got, want) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %s", key, ir.Format(want)),
				Actual:   fmt.Sprintf("%s = %s", key, ir.Format(got)),
			}
		}
	}
	return nil
}

// matchValue compares actual against expected. Struct expectations match as
// subsets, everything else must be equal.
func matchValue(actual, expected ir.Value) bool {
	want, ok := expected.(ir.Struct)
	if !ok {
		return ir.Equal(actual, expected)
	}
	got, ok := actual.(ir.Struct)
	if !ok {
		return false
	}
	for k, v := range want {
		a, exists := got[k]
		if !exists || !matchValue(a, v) {
			return false
		}
	}
	return true
}

// nodeValue decodes an optional YAML node. An absent node yields nil; an
// explicit null yields ir.Null.
func nodeValue(n yaml.Node) (ir.Value, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	var raw any
	if err := n.Decode(&raw); err != nil {
		return nil, err
	}
	return ir.FromAny(raw)
}

// EvaluateAssertions evaluates all assertions against the result and the
// final device state. Returns error messages for failed assertions.
func EvaluateAssertions(result *Result, state map[string]ir.Value, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if state == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires device state", i)
			} else {
				err = assertFinalState(state, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
