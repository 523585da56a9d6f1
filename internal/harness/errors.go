package harness

import (
	"errors"
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails. A test case returns
// it unchanged so Execute can classify the run as failed.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Message  string       // Caller supplied failure message
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context, may be nil
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	if e.Message != "" {
		fmt.Fprintf(&buf, "%s\n", e.Message)
	}
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, describeEvent(event))
		}
	}

	return buf.String()
}

// Summary is a single-line form for result error lists.
func (e *AssertionError) Summary() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: expected %s, actual %s", e.Type, e.Expected, e.Actual)
	}
	return fmt.Sprintf("%s (expected %s, actual %s)", e.Message, e.Expected, e.Actual)
}

// SkipError ends a run early with a successful skip outcome.
type SkipError struct {
	Reason string
}

// Error implements the error interface.
func (e *SkipError) Error() string {
	return "skipped: " + e.Reason
}

// IsSkip reports whether err is a SkipError.
func IsSkip(err error) bool {
	var se *SkipError
	return errors.As(err, &se)
}

// IsAssertion reports whether err is an AssertionError.
func IsAssertion(err error) bool {
	var ae *AssertionError
	return errors.As(err, &ae)
}

func describeEvent(e TraceEvent) string {
	var b strings.Builder
	b.WriteString(e.Ref())
	if e.Step != 0 {
		fmt.Fprintf(&b, " #%d", e.Step)
	}
	if e.Args != nil {
		fmt.Fprintf(&b, " args=%s", formatValue(e.Args))
	}
	if e.Result != nil {
		fmt.Fprintf(&b, " result=%s", formatValue(e.Result))
	}
	if e.Status != "" {
		fmt.Fprintf(&b, " status=%s", e.Status)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " %q", e.Message)
	}
	return b.String()
}
