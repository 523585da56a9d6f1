package harness

import (
	"fmt"

	"github.com/roach88/dishm/internal/ir"
)

// AssertTrue fails with msg unless cond holds.
func AssertTrue(cond bool, msg string) error {
	if cond {
		return nil
	}
	return &AssertionError{Type: "assert_true", Message: msg, Expected: "true", Actual: "false"}
}

// AssertEqual fails with msg unless actual equals expected.
func AssertEqual(actual, expected ir.Value, msg string) error {
	if ir.Equal(actual, expected) {
		return nil
	}
	return &AssertionError{
		Type:     "assert_equal",
		Message:  msg,
		Expected: formatValue(expected),
		Actual:   formatValue(actual),
	}
}

// AssertGreaterEqual fails with msg unless actual >= min.
func AssertGreaterEqual(actual, min int, msg string) error {
	if actual >= min {
		return nil
	}
	return &AssertionError{
		Type:     "assert_greater_equal",
		Message:  msg,
		Expected: fmt.Sprintf(">= %d", min),
		Actual:   fmt.Sprintf("%d", actual),
	}
}

// Fail returns an unconditional assertion failure.
func Fail(msg string) error {
	return &AssertionError{Type: "fail", Message: msg, Expected: "unreachable", Actual: "reached"}
}

func formatValue(v ir.Value) string {
	return ir.Format(v)
}
