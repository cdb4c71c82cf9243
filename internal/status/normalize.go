package status

import (
	"strings"
	"unicode/utf8"

	xunicode "golang.org/x/text/encoding/unicode"
)

// DefaultTailLines is how many recent lines classification looks at.
const DefaultTailLines = 50

// Normalizer turns a raw capture into the text rules are matched against.
// The zero value is ready to use.
type Normalizer struct {
	// TailLines bounds the output to the most recent lines. Values <= 0
	// mean DefaultTailLines.
	TailLines int
}

// Normalize decodes raw best-effort, replays escape sequences, carriage
// returns and backspaces, trims trailing whitespace and blank lines, and
// keeps the last TailLines lines. It never fails; garbage in yields a
// (possibly empty) string out.
func (n Normalizer) Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	lines := renderTerminal(decodeUTF8(raw))
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	tail := n.TailLines
	if tail <= 0 {
		tail = DefaultTailLines
	}
	if len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}
	return strings.Join(lines, "\n")
}

// decodeUTF8 replaces invalid byte sequences with U+FFFD.
func decodeUTF8(raw string) string {
	if utf8.ValidString(raw) {
		return raw
	}
	out, err := xunicode.UTF8.NewDecoder().String(raw)
	if err != nil || !utf8.ValidString(out) {
		return strings.ToValidUTF8(raw, "\uFFFD")
	}
	return out
}

// lastLines returns the last n non-blank lines of text.
func lastLines(text string, n int) []string {
	if n <= 0 || text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	out := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(out) < n; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		out = append(out, lines[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
