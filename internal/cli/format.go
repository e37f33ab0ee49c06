package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/sandbox/internal/events"
)

// eventTypes renders the event types of one transaction.
func eventTypes(evs []events.Event) string {
	names := make([]string, len(evs))
	for i, ev := range evs {
		names[i] = string(ev.Type)
	}
	return strings.Join(names, ", ")
}

// writeEventDetails prints the payload of each event that has one, one
// line per event, indented under a transaction line.
func writeEventDetails(w io.Writer, evs []events.Event) {
	for _, ev := range evs {
		var detail string
		switch {
		case ev.Message != nil:
			detail = formatMessage(*ev.Message)
		case len(ev.Messages) > 0:
			parts := make([]string, len(ev.Messages))
			for i, m := range ev.Messages {
				parts[i] = formatMessage(m)
			}
			detail = strings.Join(parts, "; ")
		case ev.Type == events.TypeFailed:
			detail = fmt.Sprintf("exit code %d", ev.ErrorCode)
			if ev.ErrorMessage != "" {
				detail += fmt.Sprintf(" (%s)", ev.ErrorMessage)
			}
		case ev.Type == events.TypeProcessed:
			var gas uint64
			if ev.GasUsed != nil {
				gas = *ev.GasUsed
			}
			detail = fmt.Sprintf("gas %d", gas)
		case ev.Type == events.TypeSkipped:
			detail = string(ev.Reason)
		case ev.Type == events.TypeStorageCharged:
			detail = ev.Amount
		default:
			continue
		}
		fmt.Fprintf(w, "       %s: %s\n", ev.Type, detail)
	}
}

// formatMessage renders a tracked message on one line, e.g.
// `internal alice -> echo 5000 bounce text "ping"`.
func formatMessage(m events.TrackedMessage) string {
	var b strings.Builder
	b.WriteString(m.Type.String())
	if m.From != "" || m.To != "" {
		fmt.Fprintf(&b, " %s -> %s", orDash(m.From), orDash(m.To))
	}
	if m.Value != "" {
		b.WriteString(" " + m.Value)
	}
	if m.Bounce {
		b.WriteString(" bounce")
	}
	switch m.Body.Type {
	case events.BodyText:
		fmt.Fprintf(&b, " text %q", m.Body.Text)
	case events.BodyCell:
		b.WriteString(" " + m.Body.Cell)
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
