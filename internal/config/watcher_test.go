package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchow-twistedxcom/agent-pulse/internal/status"
)

const customRuleConfig = `
[[rules.custom]]
id = "db-migrate"
category = "working"
priority = 950
confidence = 0.8
patterns = ["Applying migration"]
`

func TestWatcher_ReloadsOnChange(t *testing.T) {
	ClearCache()
	t.Cleanup(ClearCache)

	path := filepath.Join(t.TempDir(), FileName)
	store, err := status.NewStore(status.DefaultLibrary())
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		reloads []error
	)
	w, err := NewWatcher(path, store, func(_ *Config, err error) {
		mu.Lock()
		reloads = append(reloads, err)
		mu.Unlock()
	})
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(customRuleConfig), 0o600))

	require.Eventually(t, func() bool {
		_, ok := store.Load().Rule("db-migrate")
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	res := status.NewClassifier(status.WithStore(store)).ClassifyText("Applying migration 0042")
	assert.Equal(t, "db-migrate", res.MatchedPattern)

	// A broken edit keeps the last good library.
	good := store.Load()
	require.NoError(t, os.WriteFile(path, []byte("[[rules.custom]\n"), 0o600))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reloads) > 0 && reloads[len(reloads)-1] != nil
	}, 5*time.Second, 20*time.Millisecond)
	assert.Same(t, good, store.Load())
}

func TestWatcher_ReloadNow(t *testing.T) {
	ClearCache()
	t.Cleanup(ClearCache)

	path := filepath.Join(t.TempDir(), FileName)
	store, err := status.NewStore(status.DefaultLibrary())
	require.NoError(t, err)
	w, err := NewWatcher(path, store, nil)
	require.NoError(t, err)
	defer w.Stop()

	// Missing file means defaults.
	require.NoError(t, w.ReloadNow())
	assert.Same(t, status.DefaultLibrary(), store.Load())

	require.NoError(t, os.WriteFile(path, []byte(`[rules]
disable = ["shell-prompt"]
`), 0o600))
	require.NoError(t, w.ReloadNow())
	_, ok := store.Load().Rule("shell-prompt")
	assert.False(t, ok)
}

func TestNewWatcher_Errors(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), FileName), nil, nil)
	assert.ErrorIs(t, err, status.ErrNilLibrary)

	store, err := status.NewStore(status.DefaultLibrary())
	require.NoError(t, err)
	_, err = NewWatcher(filepath.Join(t.TempDir(), "missing", FileName), store, nil)
	assert.Error(t, err)
}
