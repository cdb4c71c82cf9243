package fixture

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tchow-twistedxcom/agent-pulse/internal/status"
)

// Unknown is the expected status of a fixture whose name and header both fail
// to resolve. It never equals a classified status, so such fixtures fail.
const Unknown = "unknown"

// Source records where an expectation came from.
type Source string

const (
	SourcePrefix Source = "prefix"
	SourceHeader Source = "header"
	SourceNone   Source = "none"
)

// prefixTable maps fixture filename prefixes to expected statuses. Add new
// capture families here; nothing else in the harness inspects names.
var prefixTable = []struct {
	prefix string
	status status.Status
}{
	{"permission-", status.StatusWaiting},
	{"question-", status.StatusWaiting},
	{"plan-", status.StatusWaiting},
	{"feedback-", status.StatusWaiting},
	{"working-", status.StatusWorking},
	{"error-", status.StatusError},
	{"idle-", status.StatusIdle},
}

// Prefixes returns the recognized filename prefixes in table order.
func Prefixes() []string {
	out := make([]string, len(prefixTable))
	for i, p := range prefixTable {
		out[i] = p.prefix
	}
	return out
}

var headerPattern = regexp.MustCompile(`(?im)^[ \t]*(?:#|//)?[ \t]*Expected status:[ \t]*(\S*)[ \t]*$`)

// Expectation is the status a fixture should classify as.
type Expectation struct {
	Status string
	Source Source
}

// Resolved reports whether the expectation names a real status.
func (e Expectation) Resolved() bool {
	_, ok := status.ParseStatus(e.Status)
	return ok
}

// Expect derives the expected status from the fixture's base name, falling
// back to an "Expected status: <word>" header line in content.
func Expect(name, content string) Expectation {
	base := strings.ToLower(filepath.Base(name))
	for _, p := range prefixTable {
		if strings.HasPrefix(base, p.prefix) {
			return Expectation{Status: string(p.status), Source: SourcePrefix}
		}
	}
	if m := headerPattern.FindStringSubmatch(content); m != nil {
		if s, ok := status.ParseStatus(m[1]); ok {
			return Expectation{Status: string(s), Source: SourceHeader}
		}
	}
	return Expectation{Status: Unknown, Source: SourceNone}
}

// StripHeader removes "Expected status:" lines so they do not take part in
// classification.
func StripHeader(content string) string {
	if !headerPattern.MatchString(content) {
		return content
	}
	return headerPattern.ReplaceAllString(content, "")
}
