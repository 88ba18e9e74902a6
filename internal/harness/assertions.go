package harness

import (
	"fmt"
	"math"
	"strings"

	"github.com/roach88/cropper/internal/crop"
)

// DefaultTolerance is the float tolerance when a scenario sets none.
const DefaultTolerance = 1e-9

// AssertionError is returned when an expect clause does not match.
// It includes the trace up to the failing step.
type AssertionError struct {
	Where    string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Where)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", ev.Seq, ev.Kind, describe(ev))
		}
	}
	return buf.String()
}

func describe(ev TraceEvent) string {
	switch {
	case ev.Error != "":
		return ev.Error
	case ev.Transform != nil:
		return formatTransform(*ev.Transform)
	default:
		return ev.State
	}
}

func formatTransform(t crop.Transform) string {
	return fmt.Sprintf("scale=%g tx=%g ty=%g", t.Scale, t.TranslateX, t.TranslateY)
}

// checkExpect matches an outcome against exp. A nil exp always matches.
func checkExpect(where string, exp *Expect, t crop.Transform, err error, tol float64, trace []TraceEvent) error {
	if exp == nil {
		return nil
	}

	fail := func(expected, actual string) error {
		return &AssertionError{Where: where, Expected: expected, Actual: actual, Trace: trace}
	}

	if exp.Error != "" {
		code := string(crop.CodeOf(err))
		if code != exp.Error {
			if err == nil {
				return fail("error "+exp.Error, "success with "+formatTransform(t))
			}
			return fail("error "+exp.Error, err.Error())
		}
		return nil
	}

	if err != nil {
		return fail("success", err.Error())
	}

	var mismatches []string
	field := func(name string, want *float64, got float64) {
		if want != nil && !approx(*want, got, tol) {
			mismatches = append(mismatches, fmt.Sprintf("%s=%g (want %g)", name, got, *want))
		}
	}
	field("scale", exp.Scale, t.Scale)
	field("translate_x", exp.TranslateX, t.TranslateX)
	field("translate_y", exp.TranslateY, t.TranslateY)

	if len(mismatches) > 0 {
		return fail(expectString(exp), strings.Join(mismatches, ", "))
	}
	return nil
}

func expectString(exp *Expect) string {
	var parts []string
	if exp.Scale != nil {
		parts = append(parts, fmt.Sprintf("scale=%g", *exp.Scale))
	}
	if exp.TranslateX != nil {
		parts = append(parts, fmt.Sprintf("translate_x=%g", *exp.TranslateX))
	}
	if exp.TranslateY != nil {
		parts = append(parts, fmt.Sprintf("translate_y=%g", *exp.TranslateY))
	}
	return strings.Join(parts, " ")
}

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
