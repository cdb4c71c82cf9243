package status

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Dynamic fragments that change on every redraw without meaning the session
// did anything new.
var (
	// "(45s · 1234 tokens · esc to interrupt)" and "(2m 3s · ↓ 749 tokens)"
	elapsedStatusPattern = regexp.MustCompile(`\([^)\n]*\d+s[^)\n]*·[^)\n]*(?:tokens|↑|↓)[^)\n]*\)`)
	// "Thinking... (45s)"
	thinkingTimePattern = regexp.MustCompile(`(?:…|\.\.\.)[ \t]*\(\d+s\)`)
	// clock times in status bars
	clockPattern = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\b`)
)

var spinnerStripper = func() *strings.Replacer {
	var pairs []string
	for _, r := range spinnerRunes {
		pairs = append(pairs, string(r), "")
	}
	return strings.NewReplacer(pairs...)
}()

// fingerprint hashes normalized text after removing spinner frames and
// counters, so two captures of the same screen hash equal even when the
// spinner advanced between them.
func fingerprint(normalized string) string {
	s := elapsedStatusPattern.ReplaceAllString(normalized, "(STATUS)")
	s = thinkingTimePattern.ReplaceAllString(s, "...")
	s = clockPattern.ReplaceAllString(s, "HH:MM")
	s = spinnerStripper.Replace(s)
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
