// Package fixture replays stored terminal captures through the classifier
// and checks each against the status its name or header promises. It gates
// changes to the rule library.
package fixture

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/tchow-twistedxcom/agent-pulse/internal/logging"
)

var fixtureLog = logging.ForComponent(logging.CompFixture)

// ErrFixtureDirMissing means there is nothing to validate. Callers treat it
// as fatal.
var ErrFixtureDirMissing = errors.New("fixture directory missing")

// Fixture is one stored capture.
type Fixture struct {
	Name    string
	Path    string
	Content string
	Expect  Expectation

	// LoadErr is set when the file could not be read. The fixture still
	// takes part in the run and fails.
	LoadErr error
}

// Load reads every fixture in dir, sorted by name. Hidden files, README files
// and subdirectories are skipped. A missing or non-directory dir returns
// ErrFixtureDirMissing; an unreadable file becomes a fixture with LoadErr set.
func Load(dir string) ([]Fixture, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFixtureDirMissing, dir)
		}
		return nil, fmt.Errorf("stat fixture dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrFixtureDirMissing, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read fixture dir: %w", err)
	}

	var fixtures []Fixture
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || skipName(name) {
			continue
		}
		f := Fixture{Name: name, Path: filepath.Join(dir, name)}
		data, err := os.ReadFile(f.Path)
		if err != nil {
			fixtureLog.Warn("fixture_read_failed",
				slog.String("fixture", name),
				slog.String("error", err.Error()))
			f.LoadErr = err
			f.Expect = Expect(name, "")
		} else {
			f.Content = string(data)
			f.Expect = Expect(name, f.Content)
		}
		fixtures = append(fixtures, f)
	}
	sort.Slice(fixtures, func(i, j int) bool { return fixtures[i].Name < fixtures[j].Name })

	fixtureLog.Debug("fixtures_loaded",
		slog.String("dir", dir),
		slog.Int("count", len(fixtures)))
	return fixtures, nil
}

func skipName(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(strings.ToUpper(name), "README")
}

// fuzzySource implements fuzzy.Source over fixture names
type fuzzySource []Fixture

func (s fuzzySource) String(i int) string { return s[i].Name }
func (s fuzzySource) Len() int            { return len(s) }

// Filter keeps the fixtures whose names fuzzy-match query, in their original
// order. An empty query keeps everything.
func Filter(fixtures []Fixture, query string) []Fixture {
	if query == "" {
		return fixtures
	}
	matches := fuzzy.FindFrom(query, fuzzySource(fixtures))
	idx := make([]int, 0, len(matches))
	for _, m := range matches {
		idx = append(idx, m.Index)
	}
	sort.Ints(idx)

	out := make([]Fixture, 0, len(idx))
	for _, i := range idx {
		out = append(out, fixtures[i])
	}
	return out
}
