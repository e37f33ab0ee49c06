package emulator

import (
	"bytes"
	"strings"
)

// DebugPrefix marks engine stderr lines produced by contract debug output.
const DebugPrefix = "#DEBUG#"

const debugStrip = "#DEBUG#: "

// lineBuffer collects stderr output as complete lines.
type lineBuffer struct {
	lines   []string
	partial []byte
}

func (l *lineBuffer) Write(p []byte) (int, error) {
	l.partial = append(l.partial, p...)
	for {
		i := bytes.IndexByte(l.partial, '\n')
		if i < 0 {
			break
		}
		l.lines = append(l.lines, string(l.partial[:i]))
		l.partial = l.partial[i+1:]
	}
	return len(p), nil
}

// drain returns every line written so far, including a trailing partial
// line, and resets the buffer.
func (l *lineBuffer) drain() []string {
	out := l.lines
	if len(l.partial) > 0 {
		out = append(out, string(l.partial))
	}
	l.lines = nil
	l.partial = nil
	return out
}

// prepareLogs folds stderr lines and engine stdout into one report. Debug
// lines come first, then stdout, then remaining stderr. Empty sections are
// omitted.
func prepareLogs(errLines []string, stdout string) string {
	var debug, other []string
	for _, line := range errLines {
		if strings.HasPrefix(line, DebugPrefix) {
			debug = append(debug, stripDebug(line))
		} else {
			other = append(other, line)
		}
	}

	var b strings.Builder
	if len(debug) > 0 {
		b.WriteString("=== DEBUG LOGS ===\n")
		b.WriteString(strings.Join(debug, "\n"))
		b.WriteString("\n\n")
	}
	if stdout != "" {
		b.WriteString("=== STDOUT ===\n")
		b.WriteString(stdout)
		b.WriteString("\n\n")
	}
	if len(other) > 0 {
		b.WriteString("=== STDERR ===\n")
		b.WriteString(strings.Join(other, "\n"))
		b.WriteString("\n\n")
	}
	return b.String()
}

func stripDebug(line string) string {
	if strings.HasPrefix(line, debugStrip) {
		return line[len(debugStrip):]
	}
	return line[len(DebugPrefix):]
}
