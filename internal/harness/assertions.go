package harness

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/varsys/internal/engine"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string              // Assertion type for categorization
	Expected string              // Human-readable expected outcome
	Actual   string              // Human-readable actual outcome
	Trace    []engine.Evaluation // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, ev := range e.Trace {
		mark := ""
		if ev.Changed {
			mark = " (changed)"
		}
		fmt.Fprintf(&buf, "  [%d] tick %d %s = %v%s\n", i+1, ev.Tick, ev.Variable, ev.Value, mark)
	}

	return buf.String()
}

// AssertionContext provides the per-tick values recorded during the run.
type AssertionContext struct {
	ValuesAt map[int64]map[string]any
}

// assertValue checks a variable's value after a tick, or at the end.
func assertValue(result *Result, assertion Assertion, actx *AssertionContext) error {
	values := result.Values
	when := "final"
	if assertion.Tick > 0 {
		if actx == nil || actx.ValuesAt[assertion.Tick] == nil {
			return fmt.Errorf("value: no values recorded for tick %d", assertion.Tick)
		}
		values = actx.ValuesAt[assertion.Tick]
		when = fmt.Sprintf("after tick %d", assertion.Tick)
	}

	actual, ok := values[assertion.Variable]
	if !ok {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("variable %s", assertion.Variable),
			Actual:   "no such variable",
			Trace:    result.Trace,
		}
	}

	expected, err := normalize(assertion.Expect)
	if err != nil {
		return fmt.Errorf("value: expected value for %s: %w", assertion.Variable, err)
	}
	if !valuesEqual(actual, expected) {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("%s = %v (%s)", assertion.Variable, expected, when),
			Actual:   fmt.Sprintf("%s = %v", assertion.Variable, actual),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertCount checks how many times a variable was dispatched, or how many
// of those evaluations changed it.
func assertCount(result *Result, assertion Assertion) error {
	count := 0
	for _, e := range result.evaluations(assertion.Variable) {
		if assertion.Type == AssertUpdatedCount || e.Changed {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     assertion.Type,
			Expected: fmt.Sprintf("%s %d times", assertion.Variable, assertion.Count),
			Actual:   fmt.Sprintf("%d times", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertEvaluationOrder checks the exact dispatch sequence of one tick.
// Unlike a subsequence check, repeats and extra variables fail.
func assertEvaluationOrder(result *Result, assertion Assertion) error {
	actual := []string{}
	for _, e := range result.Trace {
		if e.Tick == assertion.Tick {
			actual = append(actual, e.Variable)
		}
	}
	expected := assertion.Variables
	if expected == nil {
		expected = []string{}
	}

	if !reflect.DeepEqual(actual, expected) {
		return &AssertionError{
			Type:     AssertEvaluationOrder,
			Expected: fmt.Sprintf("tick %d: %v", assertion.Tick, expected),
			Actual:   fmt.Sprintf("tick %d: %v", assertion.Tick, actual),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertNotEvaluated checks that a variable was never dispatched.
func assertNotEvaluated(result *Result, assertion Assertion) error {
	evals := result.evaluations(assertion.Variable)
	if len(evals) > 0 {
		return &AssertionError{
			Type:     AssertNotEvaluated,
			Expected: fmt.Sprintf("%s never evaluated", assertion.Variable),
			Actual:   fmt.Sprintf("evaluated %d times, first at tick %d", len(evals), evals[0].Tick),
			Trace:    result.Trace,
		}
	}
	return nil
}

// valuesEqual compares two normalized values.
// Handles nested maps and slices.
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertValue:
			err = assertValue(result, assertion, actx)
		case AssertChangedCount, AssertUpdatedCount:
			err = assertCount(result, assertion)
		case AssertEvaluationOrder:
			err = assertEvaluationOrder(result, assertion)
		case AssertNotEvaluated:
			err = assertNotEvaluated(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
