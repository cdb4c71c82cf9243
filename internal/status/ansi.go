package status

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// Terminal replay.
//
// A raw capture is a byte stream written to a terminal, not a document. Progress
// lines are redrawn with carriage returns, colors and cursor moves are escape
// sequences, and wide runes take two cells. renderTerminal replays the stream
// onto a list of lines so that matching sees what a person looking at the pane
// would see. Only line-local cursor movement is modelled; absolute row
// addressing is ignored.
//
// Escape parsing is a hand-written scanner rather than a regexp: malformed
// sequences in real captures make ANSI regexps either backtrack badly or eat
// printable text.

const (
	esc    = '\x1b'
	bel    = '\x07'
	c1CSI  = '\u009b'
	tabLen = 8

	// maxColumn bounds cursor movement. Printed text may run past it, but a
	// cursor move never lands beyond max(maxColumn, current line length).
	maxColumn = 1024
)

// escape is one parsed escape sequence. end is the index just past it.
type escape struct {
	end    int
	csi    bool
	final  byte
	params string
}

// scanEscape parses the sequence starting at s[i] == ESC.
func scanEscape(s string, i int) escape {
	if i+1 >= len(s) {
		return escape{end: len(s)}
	}
	n := s[i+1]
	switch {
	case n == '[':
		return scanCSI(s, i+2)
	case n == ']' || n == 'P' || n == 'X' || n == '^' || n == '_':
		// OSC, DCS, SOS, PM, APC: string ended by BEL or ST (ESC \).
		return escape{end: stringTerminator(s, i+2)}
	case n >= 0x20 && n <= 0x2f:
		// nF sequences such as charset designation: ESC ( B
		k := i + 1
		for k < len(s) && s[k] >= 0x20 && s[k] <= 0x2f {
			k++
		}
		if k < len(s) && s[k] >= 0x30 && s[k] <= 0x7e {
			k++
		}
		return escape{end: k}
	case n >= 0x30 && n <= 0x7e:
		return escape{end: i + 2}
	default:
		// Lone ESC before a control or non-ASCII byte: drop only the ESC.
		return escape{end: i + 1}
	}
}

// scanCSI parses parameter and intermediate bytes starting at j and the final
// byte. A sequence interrupted by any other byte ends before that byte so
// printable text is never consumed.
func scanCSI(s string, j int) escape {
	k := j
	for k < len(s) && s[k] >= 0x20 && s[k] <= 0x3f {
		k++
	}
	if k < len(s) && s[k] >= 0x40 && s[k] <= 0x7e {
		return escape{end: k + 1, csi: true, final: s[k], params: s[j:k]}
	}
	return escape{end: k}
}

// stringTerminator returns the index after the BEL or ST that closes a string
// sequence. An unterminated string runs to the end of the line.
func stringTerminator(s string, j int) int {
	for k := j; k < len(s); k++ {
		switch s[k] {
		case bel:
			return k + 1
		case esc:
			if k+1 < len(s) && s[k+1] == '\\' {
				return k + 2
			}
		case '\n':
			return k
		}
	}
	return len(s)
}

// firstParam returns the first numeric CSI parameter, or def when absent.
// Private markers (?, >, <, =) are ignored. Values are clamped to
// [0, maxColumn]; overflowing numbers count as maxColumn.
func firstParam(params string, def int) int {
	params = strings.TrimLeft(params, "?<>=")
	if i := strings.IndexByte(params, ';'); i >= 0 {
		params = params[:i]
	}
	if params == "" {
		return def
	}
	n, err := strconv.Atoi(params)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(params, "-") {
			return maxColumn
		}
		return def
	}
	return min(max(n, 0), maxColumn)
}

// screenLine is the line currently being written. Each cell holds one
// printable rune plus any zero-width runes combined onto it; the second cell
// of a wide rune is empty.
type screenLine struct {
	cells []string
	col   int
}

func (l *screenLine) put(r rune) {
	w := runewidth.RuneWidth(r)
	if w == 0 {
		if l.col > 0 && l.col-1 < len(l.cells) {
			l.cells[l.col-1] += string(r)
		}
		return
	}
	for len(l.cells) < l.col+w {
		l.cells = append(l.cells, " ")
	}
	l.cells[l.col] = string(r)
	for k := 1; k < w; k++ {
		l.cells[l.col+k] = ""
	}
	l.col += w
}

// moveTo sets the cursor column, bounded by the line length or maxColumn,
// whichever is larger.
func (l *screenLine) moveTo(col int) {
	l.col = min(max(col, 0), max(len(l.cells), maxColumn))
}

func (l *screenLine) applyCSI(e escape) {
	switch e.final {
	case 'K':
		switch firstParam(e.params, 0) {
		case 0:
			if l.col < len(l.cells) {
				l.cells = l.cells[:l.col]
			}
		case 1:
			for k := 0; k <= l.col && k < len(l.cells); k++ {
				l.cells[k] = " "
			}
		case 2:
			l.cells = l.cells[:0]
		}
	case 'C':
		l.moveTo(l.col + max(firstParam(e.params, 1), 1))
	case 'D':
		l.moveTo(l.col - max(firstParam(e.params, 1), 1))
	case 'G':
		l.moveTo(max(firstParam(e.params, 1), 1) - 1)
	}
}

func (l *screenLine) String() string {
	return strings.Join(l.cells, "")
}

// renderTerminal replays s (valid UTF-8) and returns the visible lines.
func renderTerminal(s string) []string {
	var (
		lines []string
		cur   screenLine
	)
	flush := func() {
		lines = append(lines, cur.String())
		cur.cells = cur.cells[:0]
		cur.col = 0
	}

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == esc:
			e := scanEscape(s, i)
			if e.csi {
				if e.final == 'J' && firstParam(e.params, 0) >= 2 {
					// Clear screen: nothing written before it is visible.
					lines = lines[:0]
					cur.cells = cur.cells[:0]
				} else {
					cur.applyCSI(e)
				}
			}
			i = e.end
		case c == '\n':
			flush()
			i++
		case c == '\r':
			cur.col = 0
			i++
		case c == '\b':
			cur.col = max(cur.col-1, 0)
			i++
		case c == '\t':
			cur.moveTo((cur.col/tabLen + 1) * tabLen)
			i++
		case c < 0x20 || c == 0x7f:
			i++
		case c < utf8.RuneSelf:
			cur.put(rune(c))
			i++
		default:
			r, size := utf8.DecodeRuneInString(s[i:])
			switch {
			case r == c1CSI:
				e := scanCSI(s, i+size)
				if e.csi {
					cur.applyCSI(e)
				}
				i = e.end
				continue
			case r >= 0x80 && r <= 0x9f:
				// other C1 controls
			case r == '\u00a0':
				cur.put(' ')
			default:
				cur.put(r)
			}
			i += size
		}
	}
	flush()
	return lines
}
