package harness

import (
	"fmt"
	"strings"

	"github.com/Heizenburger/chess-mentor/internal/session"
)

// AssertionError is returned when an assertion fails.
// It includes the attempt log to help debug the failure.
type AssertionError struct {
	Type     string                  // Assertion type for categorization
	Expected string                  // Human-readable expected outcome
	Actual   string                  // Human-readable actual outcome
	Attempts []session.AttemptRecord // Full attempt log for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Attempts) > 0 {
		fmt.Fprintf(&buf, "\nAttempt log:\n")
		for i, a := range e.Attempts {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", i+1, a.PuzzleID, a.Result, a.Move)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertAttemptLogged:
			err = assertAttemptLogged(result.Attempts, a)
		case AssertAttemptOrder:
			err = assertAttemptOrder(result.Attempts, a)
		case AssertAttemptCount:
			err = assertAttemptCount(result.Attempts, a)
		case AssertFinalState:
			err = assertFinalState(result.Final, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// assertAttemptLogged checks the log holds an attempt matching every field
// the assertion sets.
func assertAttemptLogged(attempts []session.AttemptRecord, a Assertion) error {
	for _, rec := range attempts {
		if matchAttempt(rec, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertAttemptLogged,
		Expected: fmt.Sprintf("attempt puzzle=%q result=%q move=%q", a.Puzzle, a.Result, a.Move),
		Actual:   "not found in attempt log",
		Attempts: attempts,
	}
}

func matchAttempt(rec session.AttemptRecord, a Assertion) bool {
	if a.Puzzle != "" && rec.PuzzleID != a.Puzzle {
		return false
	}
	if a.Result != "" && rec.Result != a.Result {
		return false
	}
	if a.Move != "" && rec.Move != a.Move {
		return false
	}
	return true
}

// assertAttemptOrder checks the results appear in the specified order.
// Results don't need to be consecutive (intervening attempts are allowed).
func assertAttemptOrder(attempts []session.AttemptRecord, a Assertion) error {
	next := 0
	for _, rec := range attempts {
		if next < len(a.Results) && rec.Result == a.Results[next] {
			next++
		}
	}
	if next == len(a.Results) {
		return nil
	}
	return &AssertionError{
		Type:     AssertAttemptOrder,
		Expected: fmt.Sprintf("results in order: %v", a.Results),
		Actual:   fmt.Sprintf("matched %d of %d, first missing %q", next, len(a.Results), a.Results[next]),
		Attempts: attempts,
	}
}

// assertAttemptCount checks the result appears exactly the specified number of times.
func assertAttemptCount(attempts []session.AttemptRecord, a Assertion) error {
	count := 0
	for _, rec := range attempts {
		if rec.Result == a.Result && (a.Puzzle == "" || rec.PuzzleID == a.Puzzle) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertAttemptCount,
			Expected: fmt.Sprintf("%d attempts with result %s", a.Count, a.Result),
			Actual:   fmt.Sprintf("%d attempts", count),
			Attempts: attempts,
		}
	}
	return nil
}

// assertFinalState checks the final snapshot with subset semantics.
func assertFinalState(final session.Snapshot, a Assertion) error {
	mismatches := matchSnapshot(final, a.Expect)
	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalState,
		Expected: "final snapshot to match",
		Actual:   strings.Join(mismatches, "; "),
	}
}

// matchSnapshot returns one message per expected field that differs.
func matchSnapshot(s session.Snapshot, want *Expect) []string {
	if want == nil {
		return nil
	}
	var out []string
	check := func(field, want, got string) {
		if want != "" && want != got {
			out = append(out, fmt.Sprintf("%s: expected %q, got %q", field, want, got))
		}
	}
	check("status", want.Status, s.Status)
	check("message", want.Message, s.Message)
	check("puzzle", want.Puzzle, s.PuzzleID)
	check("outcome", want.Outcome, s.Outcome)
	if want.Index != nil && *want.Index != s.SolutionIndex {
		out = append(out, fmt.Sprintf("index: expected %d, got %d", *want.Index, s.SolutionIndex))
	}
	return out
}
