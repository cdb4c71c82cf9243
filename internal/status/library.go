package status

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

var (
	// ErrInvalidLibrary wraps every validation failure from NewLibrary.
	ErrInvalidLibrary = errors.New("invalid pattern library")
	// ErrNilLibrary is returned when replacing a store with nothing.
	ErrNilLibrary = errors.New("nil pattern library")
)

// Rule is one named recognizer. Rules are values; a Library never hands out
// pointers into its table.
type Rule struct {
	ID          string
	Category    Status
	Priority    int
	Confidence  float64
	Matcher     Matcher
	Description string
}

// Library is an immutable, validated rule table. Build one with NewLibrary
// and share it freely between goroutines.
type Library struct {
	byCategory map[Status][]Rule
	byID       map[string]Rule
	size       int
}

// NewLibrary validates rules and orders them by category precedence and
// priority. Every problem found is reported, joined, and wrapped with
// ErrInvalidLibrary.
func NewLibrary(rules []Rule) (*Library, error) {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidLibrary}, args...)...))
	}

	lib := &Library{
		byCategory: make(map[Status][]Rule, len(Categories)),
		byID:       make(map[string]Rule, len(rules)),
	}
	priorities := make(map[int]string, len(rules))
	for _, r := range rules {
		switch {
		case r.ID == "":
			invalid("rule with priority %d has no id", r.Priority)
			continue
		case !r.Category.Valid():
			invalid("rule %q: unknown category %q", r.ID, r.Category)
			continue
		case r.Matcher == nil:
			invalid("rule %q: no matcher", r.ID)
			continue
		case r.Confidence < 0 || r.Confidence > 1:
			invalid("rule %q: confidence %g outside [0,1]", r.ID, r.Confidence)
			continue
		}
		if _, dup := lib.byID[r.ID]; dup {
			invalid("duplicate rule id %q", r.ID)
			continue
		}
		if other, dup := priorities[r.Priority]; dup {
			invalid("rules %q and %q share priority %d", other, r.ID, r.Priority)
			continue
		}
		priorities[r.Priority] = r.ID
		lib.byID[r.ID] = r
		lib.byCategory[r.Category] = append(lib.byCategory[r.Category], r)
	}
	for _, c := range Categories {
		if len(lib.byCategory[c]) == 0 {
			invalid("category %q has no rules", c)
		}
		slices.SortFunc(lib.byCategory[c], func(a, b Rule) int { return a.Priority - b.Priority })
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	lib.size = len(lib.byID)
	return lib, nil
}

// Len returns the number of rules.
func (l *Library) Len() int {
	if l == nil {
		return 0
	}
	return l.size
}

// Category returns the rules of one category in evaluation order.
func (l *Library) Category(s Status) []Rule {
	return slices.Clone(l.byCategory[s])
}

// Rules returns every rule in evaluation order.
func (l *Library) Rules() []Rule {
	out := make([]Rule, 0, l.size)
	for _, c := range Categories {
		out = append(out, l.byCategory[c]...)
	}
	return out
}

// Rule looks a rule up by id.
func (l *Library) Rule(id string) (Rule, bool) {
	r, ok := l.byID[id]
	return r, ok
}

// Store holds the active Library. Readers always see a complete table;
// Replace swaps the whole table in one step.
type Store struct {
	lib atomic.Pointer[Library]
}

// NewStore returns a store serving lib.
func NewStore(lib *Library) (*Store, error) {
	if lib == nil {
		return nil, ErrNilLibrary
	}
	s := &Store{}
	s.lib.Store(lib)
	return s, nil
}

// Load returns the current library.
func (s *Store) Load() *Library {
	return s.lib.Load()
}

// Replace installs next and returns the library it displaced. Classifications
// already in flight finish against the table they started with.
func (s *Store) Replace(next *Library) (*Library, error) {
	if next == nil {
		return nil, ErrNilLibrary
	}
	prev := s.lib.Swap(next)
	statusLog.Info("library_replaced",
		slog.Int("rules", next.Len()),
		slog.Int("previous_rules", prev.Len()))
	return prev, nil
}

var (
	defaultOnce  sync.Once
	defaultLib   *Library
	defaultStore *Store
)

func initDefaults() {
	defaultOnce.Do(func() {
		lib, err := NewLibrary(DefaultRules())
		if err != nil {
			// The built-in catalog is covered by tests; failing here is a
			// programming error.
			panic(err)
		}
		defaultLib = lib
		defaultStore, _ = NewStore(lib)
	})
}

// DefaultLibrary returns the built-in catalog.
func DefaultLibrary() *Library {
	initDefaults()
	return defaultLib
}

// DefaultStore returns the process-wide store, initially serving
// DefaultLibrary. Replace on it affects every classifier built without an
// explicit store.
func DefaultStore() *Store {
	initDefaults()
	return defaultStore
}
