package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/sandbox/internal/events"
	"github.com/roach88/sandbox/internal/ledger"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEntry // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, entry := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s: %s\n", entry.Seq, entry.Account, strings.Join(typeNames(entry.Events), ", "))
		}
	}
	return buf.String()
}

// scope renders the account an assertion is restricted to.
func scope(account string) string {
	if account == "" {
		return "any account"
	}
	return account
}

// assertTraceContains checks that some event of the account matches the
// assertion's type, error code and text body.
func assertTraceContains(result *Result, assertion Assertion) error {
	for _, ev := range result.EventsOf(assertion.Account) {
		if matchEvent(ev, assertion) {
			return nil
		}
	}

	expected := fmt.Sprintf("%s event on %s", assertion.Event, scope(assertion.Account))
	if assertion.ErrorCode != nil {
		expected += fmt.Sprintf(" with error code %d", *assertion.ErrorCode)
	}
	if assertion.Body != "" {
		expected += fmt.Sprintf(" with body %q", assertion.Body)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    result.Trace,
	}
}

// matchEvent reports whether ev satisfies the fields assertion sets.
func matchEvent(ev events.Event, assertion Assertion) bool {
	if ev.Type != assertion.Event {
		return false
	}
	if assertion.ErrorCode != nil && ev.ErrorCode != *assertion.ErrorCode {
		return false
	}
	if assertion.Body != "" {
		for _, m := range messagesOf(ev) {
			if m.Body.Type == events.BodyText && m.Body.Text == assertion.Body {
				return true
			}
		}
		return false
	}
	return true
}

func messagesOf(ev events.Event) []events.TrackedMessage {
	out := append([]events.TrackedMessage(nil), ev.Messages...)
	if ev.Message != nil {
		out = append(out, *ev.Message)
	}
	return out
}

// assertTraceOrder checks that the expected event types appear in order.
// Events don't need to be consecutive (intervening events are allowed).
func assertTraceOrder(result *Result, assertion Assertion) error {
	evs := result.EventsOf(assertion.Account)
	next := 0
	for _, ev := range evs {
		if next < len(assertion.Events) && ev.Type == assertion.Events[next] {
			next++
		}
	}
	if next == len(assertion.Events) {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order on %s: %v", scope(assertion.Account), assertion.Events),
		Actual:   fmt.Sprintf("matched %d of %d, missing %s after %v", next, len(assertion.Events), assertion.Events[next], typeNames(evs)),
		Trace:    result.Trace,
	}
}

// assertTraceCount checks if the event type appears exactly the specified
// number of times.
func assertTraceCount(result *Result, assertion Assertion) error {
	count := 0
	for _, ev := range result.EventsOf(assertion.Account) {
		if ev.Type == assertion.Event {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s on %s", assertion.Count, assertion.Event, scope(assertion.Account)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertFinalState checks the status and balance an account ended with.
// Only the fields the assertion sets are compared.
func assertFinalState(result *Result, assertion Assertion) error {
	state, ok := result.Account(assertion.Account)
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("state of %s", assertion.Account),
			Actual:   "account not declared",
		}
	}

	if assertion.Status != "" && state.Status != assertion.Status {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s status %s", assertion.Account, assertion.Status),
			Actual:   fmt.Sprintf("status %s", state.Status),
		}
	}
	if assertion.Balance != "" {
		want, err := ledger.ParseCoins(assertion.Balance)
		if err != nil {
			return fmt.Errorf("final_state balance: %w", err)
		}
		got, err := ledger.ParseCoins(state.Balance)
		if err != nil || got.Cmp(want) != 0 {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s balance %s", assertion.Account, want),
				Actual:   fmt.Sprintf("balance %s", state.Balance),
			}
		}
	}
	return nil
}

func typeNames(evs []events.Event) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = string(ev.Type)
	}
	return out
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result, assertion)
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
