package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/parorch/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string           // Assertion type for categorization
	Expected string           // Human-readable expected outcome
	Actual   string           // Human-readable actual outcome
	Rounds   []ir.RoundRecord // Recorded rounds for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Rounds) > 0 {
		fmt.Fprintf(&buf, "\nRecorded rounds:\n")
		for _, r := range e.Rounds {
			fmt.Fprintf(&buf, "  [%d] %v -> %v\n", r.Round, r.Workset, r.Next)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns
// the failure messages, in assertion order.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for _, a := range assertions {
		if err := evaluate(result, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func evaluate(r *Result, a Assertion) error {
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Rounds: r.Rounds}
	}

	switch a.Type {
	case AssertStatus:
		if r.Status != a.Status {
			return fail(fmt.Sprintf("status %q", a.Status), fmt.Sprintf("status %q", r.Status))
		}

	case AssertError:
		if r.ErrorCode != a.Code {
			actual := "no error"
			if r.RunErr != nil {
				actual = fmt.Sprintf("%s (%v)", r.ErrorCode, r.RunErr)
			}
			return fail(a.Code, actual)
		}

	case AssertRounds:
		if len(r.Rounds) != a.Count {
			return fail(fmt.Sprintf("%d round(s)", a.Count), fmt.Sprintf("%d round(s)", len(r.Rounds)))
		}

	case AssertWorkset:
		rec, ok := r.Round(a.Round)
		if !ok {
			return fail(fmt.Sprintf("round %d workset %v", a.Round, a.Commands), fmt.Sprintf("round %d not recorded", a.Round))
		}
		if !slices.Equal(rec.Workset, a.Commands) {
			return fail(fmt.Sprintf("round %d workset %v", a.Round, a.Commands), fmt.Sprintf("%v", rec.Workset))
		}

	case AssertDependency:
		if d, ok := findDependency(r, a); !ok {
			return fail(describeDependency(a), "not observed")
		} else if a.Paths != nil && !slices.Equal(d.Paths, a.Paths) {
			return fail(describeDependency(a), fmt.Sprintf("through %v", d.Paths))
		}

	case AssertNoDependency:
		if d, ok := findDependency(r, a); ok {
			return fail(fmt.Sprintf("no dependency %q -> %q", a.From, a.To), fmt.Sprintf("observed in round %d through %v", d.Round, d.Paths))
		}

	case AssertSets:
		c, ok := r.Command(a.Command)
		if !ok {
			return fail(fmt.Sprintf("final sets of %q", a.Command), "no result for command")
		}
		if !slices.Equal(nonNil(c.ReadSet), nonNil(a.Reads)) || !slices.Equal(nonNil(c.WriteSet), nonNil(a.Writes)) {
			return fail(
				fmt.Sprintf("reads %v writes %v", nonNil(a.Reads), nonNil(a.Writes)),
				fmt.Sprintf("reads %v writes %v", nonNil(c.ReadSet), nonNil(c.WriteSet)),
			)
		}

	case AssertDropped:
		c, ok := r.Command(a.Command)
		if !ok {
			return fail(fmt.Sprintf("%q dropped in round %d", a.Command, a.Round), "no result for command")
		}
		if c.DroppedRound != a.Round {
			return fail(fmt.Sprintf("%q dropped in round %d", a.Command, a.Round), fmt.Sprintf("dropped in round %d", c.DroppedRound))
		}

	case AssertExecutions:
		c, ok := r.Command(a.Command)
		if !ok {
			return fail(fmt.Sprintf("%q executed %d time(s)", a.Command, a.Count), "no result for command")
		}
		if c.Executions != a.Count {
			return fail(fmt.Sprintf("%q executed %d time(s)", a.Command, a.Count), fmt.Sprintf("%d time(s)", c.Executions))
		}

	case AssertViolation:
		for _, rec := range r.Rounds {
			for _, v := range rec.Violations {
				if v.Identity == a.Command {
					return nil
				}
			}
		}
		return fail(fmt.Sprintf("idempotence violation for %q", a.Command), "none recorded")

	default:
		return fail("known assertion type", fmt.Sprintf("unknown assertion type %q", a.Type))
	}
	return nil
}

// findDependency returns the first recorded dependency matching a's
// endpoints and, if set, round.
func findDependency(r *Result, a Assertion) (ir.Dependency, bool) {
	for _, rec := range r.Rounds {
		if a.Round != 0 && rec.Round != a.Round {
			continue
		}
		for _, d := range rec.Dependencies {
			if d.From == a.From && d.To == a.To {
				return d, true
			}
		}
	}
	return ir.Dependency{}, false
}

func describeDependency(a Assertion) string {
	s := fmt.Sprintf("%q depends on %q", a.To, a.From)
	if a.Round != 0 {
		s += fmt.Sprintf(" in round %d", a.Round)
	}
	if a.Paths != nil {
		s += fmt.Sprintf(" through %v", a.Paths)
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
