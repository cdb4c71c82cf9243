package status

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLibrary(t *testing.T) {
	lib := DefaultLibrary()
	require.NotNil(t, lib)
	assert.Equal(t, len(DefaultRules()), lib.Len())

	for _, c := range Categories {
		assert.NotEmpty(t, lib.Category(c), "category %s", c)
	}

	// Evaluation order: category precedence, then ascending priority.
	rules := lib.Rules()
	seen := make(map[int]bool)
	for i, r := range rules {
		assert.False(t, seen[r.Priority], "priority %d reused", r.Priority)
		seen[r.Priority] = true
		assert.GreaterOrEqual(t, r.Confidence, 0.0)
		assert.LessOrEqual(t, r.Confidence, 1.0)
		assert.NotEmpty(t, r.Description, r.ID)
		if i == 0 {
			continue
		}
		prev := rules[i-1]
		if prev.Category == r.Category {
			assert.Less(t, prev.Priority, r.Priority)
		} else {
			assert.Less(t, prev.Category.rank(), r.Category.rank())
		}
	}

	r, ok := lib.Rule("permission-prompt")
	require.True(t, ok)
	assert.Equal(t, StatusWaiting, r.Category)
}

func TestDefaultRules_ReturnsCopy(t *testing.T) {
	rules := DefaultRules()
	rules[0].ID = "mutated"
	assert.NotEqual(t, "mutated", DefaultRules()[0].ID)
}

// oneRulePerCategory returns a minimal valid rule set.
func oneRulePerCategory(prefix string) []Rule {
	return []Rule{
		{ID: prefix + "error", Category: StatusError, Priority: 1, Confidence: 1, Matcher: Literal("boom")},
		{ID: prefix + "waiting", Category: StatusWaiting, Priority: 2, Confidence: 1, Matcher: Literal("(y/n)")},
		{ID: prefix + "working", Category: StatusWorking, Priority: 3, Confidence: 1, Matcher: Literal("busy")},
		{ID: prefix + "idle", Category: StatusIdle, Priority: 4, Confidence: 1, Matcher: Literal("$")},
	}
}

func TestNewLibrary_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]Rule) []Rule
	}{
		{"empty id", func(r []Rule) []Rule { r[0].ID = ""; return r }},
		{"duplicate id", func(r []Rule) []Rule { r[1].ID = r[0].ID; return r }},
		{"duplicate priority", func(r []Rule) []Rule { r[1].Priority = r[0].Priority; return r }},
		{"unknown category", func(r []Rule) []Rule { r[0].Category = "sleeping"; return r }},
		{"nil matcher", func(r []Rule) []Rule { r[0].Matcher = nil; return r }},
		{"confidence above one", func(r []Rule) []Rule { r[0].Confidence = 1.5; return r }},
		{"negative confidence", func(r []Rule) []Rule { r[0].Confidence = -0.1; return r }},
		{"empty category", func(r []Rule) []Rule { return r[:3] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib, err := NewLibrary(tt.mutate(oneRulePerCategory("")))
			assert.Nil(t, lib)
			assert.ErrorIs(t, err, ErrInvalidLibrary)
		})
	}

	lib, err := NewLibrary(oneRulePerCategory(""))
	require.NoError(t, err)
	assert.Equal(t, 4, lib.Len())
}

func TestStore_Replace(t *testing.T) {
	a, err := NewLibrary(oneRulePerCategory("a-"))
	require.NoError(t, err)
	b, err := NewLibrary(oneRulePerCategory("b-"))
	require.NoError(t, err)

	_, err = NewStore(nil)
	assert.ErrorIs(t, err, ErrNilLibrary)

	store, err := NewStore(a)
	require.NoError(t, err)
	assert.Same(t, a, store.Load())

	prev, err := store.Replace(b)
	require.NoError(t, err)
	assert.Same(t, a, prev)
	assert.Same(t, b, store.Load())

	_, err = store.Replace(nil)
	assert.ErrorIs(t, err, ErrNilLibrary)
	assert.Same(t, b, store.Load(), "failed replace keeps the current library")
}

func TestStore_ConcurrentReplace(t *testing.T) {
	a, err := NewLibrary(oneRulePerCategory("a-"))
	require.NoError(t, err)
	b, err := NewLibrary(oneRulePerCategory("b-"))
	require.NoError(t, err)
	store, err := NewStore(a)
	require.NoError(t, err)
	c := NewClassifier(WithStore(store))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			next := a
			if i%2 == 0 {
				next = b
			}
			_, _ = store.Replace(next)
		}
	}()
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				res := c.ClassifyText("something went boom")
				if res.MatchedPattern != "a-error" && res.MatchedPattern != "b-error" {
					t.Errorf("unexpected pattern %q", res.MatchedPattern)
					return
				}
			}
		}()
	}
	wg.Wait()
}
