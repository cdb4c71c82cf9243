package status

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Match describes a successful matcher hit.
type Match struct {
	// Span is the byte length of the matched text. Longer spans are
	// treated as more specific when rules in one category compete.
	Span int
	// Strength in (0,1] scales the rule's base confidence. Exact phrases
	// report 1; loose heuristics report less.
	Strength float64
}

// Matcher is a predicate over normalized text. Implementations must be safe
// for concurrent use and must not retain the text.
type Matcher interface {
	Match(text string) (Match, bool)
	String() string
}

type literalMatcher struct {
	phrases []string
	fold    bool
}

// Literal matches when any of the phrases occurs verbatim.
func Literal(phrases ...string) Matcher {
	return literalMatcher{phrases: phrases}
}

// LiteralFold is Literal with case-insensitive comparison.
func LiteralFold(phrases ...string) Matcher {
	lower := make([]string, len(phrases))
	for i, p := range phrases {
		lower[i] = strings.ToLower(p)
	}
	return literalMatcher{phrases: lower, fold: true}
}

func (m literalMatcher) Match(text string) (Match, bool) {
	if m.fold {
		text = strings.ToLower(text)
	}
	best := 0
	for _, p := range m.phrases {
		if p != "" && len(p) > best && strings.Contains(text, p) {
			best = len(p)
		}
	}
	if best == 0 {
		return Match{}, false
	}
	return Match{Span: best, Strength: 1}, true
}

func (m literalMatcher) String() string {
	quoted := make([]string, len(m.phrases))
	for i, p := range m.phrases {
		quoted[i] = strconv.Quote(p)
	}
	name := "literal"
	if m.fold {
		name = "literal-fold"
	}
	return name + "(" + strings.Join(quoted, ", ") + ")"
}

type regexMatcher struct {
	re *regexp.Regexp
}

// Regex compiles expr into a matcher. Empty matches never count as hits.
func Regex(expr string) (Matcher, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, err)
	}
	return regexMatcher{re: re}, nil
}

// MustRegex is Regex that panics on a bad expression. Only for built-in rules.
func MustRegex(expr string) Matcher {
	m, err := Regex(expr)
	if err != nil {
		panic(err)
	}
	return m
}

func (m regexMatcher) Match(text string) (Match, bool) {
	best := 0
	for _, loc := range m.re.FindAllStringIndex(text, -1) {
		if span := loc[1] - loc[0]; span > best {
			best = span
		}
	}
	if best == 0 {
		return Match{}, false
	}
	return Match{Span: best, Strength: 1}, true
}

func (m regexMatcher) String() string {
	return "regex(" + m.re.String() + ")"
}

type weighted struct {
	strength float64
	m        Matcher
}

// Weighted scales the strength reported by m.
func Weighted(strength float64, m Matcher) Matcher {
	return weighted{strength: strength, m: m}
}

func (w weighted) Match(text string) (Match, bool) {
	hit, ok := w.m.Match(text)
	if !ok {
		return Match{}, false
	}
	hit.Strength *= w.strength
	return hit, true
}

func (w weighted) String() string {
	return fmt.Sprintf("%s*%g", w.m, w.strength)
}

type tail struct {
	lines int
	m     Matcher
}

// Tail restricts m to the last n non-blank lines of the text.
func Tail(n int, m Matcher) Matcher {
	return tail{lines: n, m: m}
}

func (t tail) Match(text string) (Match, bool) {
	return t.m.Match(strings.Join(lastLines(text, t.lines), "\n"))
}

func (t tail) String() string {
	return fmt.Sprintf("tail(%d, %s)", t.lines, t.m)
}

type anyOf []Matcher

// Any reports the hit with the longest span among ms. The first matcher wins
// ties.
func Any(ms ...Matcher) Matcher {
	return anyOf(ms)
}

func (a anyOf) Match(text string) (Match, bool) {
	var (
		best  Match
		found bool
	)
	for _, m := range a {
		hit, ok := m.Match(text)
		if ok && (!found || hit.Span > best.Span) {
			best, found = hit, true
		}
	}
	return best, found
}

func (a anyOf) String() string {
	parts := make([]string, len(a))
	for i, m := range a {
		parts[i] = m.String()
	}
	return "any(" + strings.Join(parts, ", ") + ")"
}

type allOf []Matcher

// All matches only when every matcher in ms matches. The span is the sum of
// the inner spans and the strength the weakest inner strength.
func All(ms ...Matcher) Matcher {
	return allOf(ms)
}

func (a allOf) Match(text string) (Match, bool) {
	if len(a) == 0 {
		return Match{}, false
	}
	out := Match{Strength: 1}
	for _, m := range a {
		hit, ok := m.Match(text)
		if !ok {
			return Match{}, false
		}
		out.Span += hit.Span
		out.Strength = min(out.Strength, hit.Strength)
	}
	return out, true
}

func (a allOf) String() string {
	parts := make([]string, len(a))
	for i, m := range a {
		parts[i] = m.String()
	}
	return "all(" + strings.Join(parts, ", ") + ")"
}
