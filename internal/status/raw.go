package status

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// regexPrefix marks a raw pattern as a regular expression. Patterns without
// it are plain substrings.
const regexPrefix = "re:"

// ErrNoPatterns is returned for a raw rule whose patterns all failed to
// compile or that listed none.
var ErrNoPatterns = errors.New("rule has no usable patterns")

// RawRule is the serializable form of a Rule, as written in config files.
type RawRule struct {
	ID          string   `toml:"id" json:"id"`
	Category    string   `toml:"category" json:"category"`
	Priority    int      `toml:"priority" json:"priority"`
	Confidence  float64  `toml:"confidence" json:"confidence"`
	Strength    float64  `toml:"strength" json:"strength,omitempty"`
	TailLines   int      `toml:"tail_lines" json:"tailLines,omitempty"`
	IgnoreCase  bool     `toml:"ignore_case" json:"ignoreCase,omitempty"`
	Description string   `toml:"description" json:"description,omitempty"`
	Patterns    []string `toml:"patterns" json:"patterns"`
}

// CompileRule turns a raw rule into a Rule. Invalid regular expressions are
// logged and skipped; the rule fails only if nothing usable is left.
func CompileRule(raw RawRule) (Rule, error) {
	category, ok := ParseStatus(raw.Category)
	if !ok {
		return Rule{}, fmt.Errorf("rule %q: unknown category %q", raw.ID, raw.Category)
	}

	var (
		literals []string
		matchers []Matcher
	)
	for _, p := range raw.Patterns {
		expr, isRegex := strings.CutPrefix(p, regexPrefix)
		if !isRegex {
			if p != "" {
				literals = append(literals, p)
			}
			continue
		}
		if raw.IgnoreCase && !strings.HasPrefix(expr, "(?i)") {
			expr = "(?i)" + expr
		}
		if _, err := regexp.Compile(expr); err != nil {
			statusLog.Warn("invalid_rule_pattern",
				slog.String("rule", raw.ID),
				slog.String("pattern", p),
				slog.String("error", err.Error()))
			continue
		}
		matchers = append(matchers, MustRegex(expr))
	}
	if len(literals) > 0 {
		lit := Literal(literals...)
		if raw.IgnoreCase {
			lit = LiteralFold(literals...)
		}
		matchers = append([]Matcher{lit}, matchers...)
	}
	if len(matchers) == 0 {
		return Rule{}, fmt.Errorf("rule %q: %w", raw.ID, ErrNoPatterns)
	}

	m := matchers[0]
	if len(matchers) > 1 {
		m = Any(matchers...)
	}
	if raw.Strength > 0 && raw.Strength < 1 {
		m = Weighted(raw.Strength, m)
	}
	if raw.TailLines > 0 {
		m = Tail(raw.TailLines, m)
	}
	return Rule{
		ID:          raw.ID,
		Category:    category,
		Priority:    raw.Priority,
		Confidence:  raw.Confidence,
		Matcher:     m,
		Description: raw.Description,
	}, nil
}

// CompileRules compiles every raw rule, skipping and reporting the ones that
// fail.
func CompileRules(raws []RawRule) ([]Rule, error) {
	rules := make([]Rule, 0, len(raws))
	var errs []error
	for _, raw := range raws {
		r, err := CompileRule(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rules = append(rules, r)
	}
	return rules, errors.Join(errs...)
}

// BuildLibrary derives a library from base: rules whose ids appear in
// disable are dropped and extra rules are added, replacing any base rule
// with the same id. The result must still validate.
func BuildLibrary(base []Rule, disable []string, extra []Rule) (*Library, error) {
	disabled := make(map[string]bool, len(disable))
	for _, id := range disable {
		disabled[id] = true
		if !containsRule(base, id) && !containsRule(extra, id) {
			statusLog.Warn("disable_unknown_rule", slog.String("rule", id))
		}
	}

	rules := make([]Rule, 0, len(base)+len(extra))
	for _, r := range base {
		if !disabled[r.ID] && !containsRule(extra, r.ID) {
			rules = append(rules, r)
		}
	}
	for _, r := range extra {
		if !disabled[r.ID] {
			rules = append(rules, r)
		}
	}
	return NewLibrary(rules)
}

func containsRule(rules []Rule, id string) bool {
	for _, r := range rules {
		if r.ID == id {
			return true
		}
	}
	return false
}
