package tmux

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureArgs(t *testing.T) {
	c := NewCapturer()
	assert.Equal(t, []string{"capture-pane", "-p", "-e", "-J", "-t", "work:1.0"}, c.captureArgs("work:1.0"))

	c = NewCapturer(WithHistory(200))
	assert.Equal(t, []string{"capture-pane", "-p", "-e", "-J", "-t", "w", "-S", "-200"}, c.captureArgs("w"))
}

func TestCaptureReturnsOutput(t *testing.T) {
	var gotArgs []string
	c := NewCapturer(withRunner(func(_ context.Context, args ...string) ([]byte, error) {
		gotArgs = args
		return []byte("❯ \n"), nil
	}))

	out, err := c.Capture(context.Background(), " agent:0.1 ")
	require.NoError(t, err)
	assert.Equal(t, "❯ \n", out)
	assert.Equal(t, "agent:0.1", gotArgs[len(gotArgs)-1])
}

func TestCaptureRequiresTarget(t *testing.T) {
	c := NewCapturer(withRunner(func(context.Context, ...string) ([]byte, error) {
		t.Fatal("runner must not be called")
		return nil, nil
	}))
	_, err := c.Capture(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestCaptureTimeout(t *testing.T) {
	c := NewCapturer(
		WithTimeout(20*time.Millisecond),
		withRunner(func(ctx context.Context, _ ...string) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	)
	_, err := c.Capture(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrCaptureTimeout)
}

func TestCaptureParentCancelIsNotTimeout(t *testing.T) {
	c := NewCapturer(withRunner(func(ctx context.Context, _ ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Capture(ctx, "gone")
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrCaptureTimeout)
}

func TestCaptureWrapsErrors(t *testing.T) {
	boom := errors.New("can't find pane: nope")
	c := NewCapturer(withRunner(func(context.Context, ...string) ([]byte, error) {
		return nil, boom
	}))
	_, err := c.Capture(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "capture pane nope")
}

func TestCaptureDeduplicatesConcurrentCalls(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := NewCapturer(withRunner(func(context.Context, ...string) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("shared"), nil
	}))

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := c.Capture(context.Background(), "same")
			assert.NoError(t, err)
			results[i] = out
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(n))
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestListPanes(t *testing.T) {
	c := NewCapturer(withRunner(func(_ context.Context, args ...string) ([]byte, error) {
		assert.Equal(t, "list-panes", args[0])
		return []byte("work:0.0\twork\tclaude\tnode\n" +
			"work:1.0\twork\t\tzsh\n" +
			"malformed line\n"), nil
	}))

	panes, err := c.ListPanes(context.Background())
	require.NoError(t, err)
	require.Len(t, panes, 2)
	assert.Equal(t, Pane{Target: "work:0.0", Session: "work", Title: "claude", Command: "node"}, panes[0])
	assert.Equal(t, "zsh", panes[1].Command)
	assert.Empty(t, panes[1].Title)
}

func TestParsePanesEmpty(t *testing.T) {
	assert.Empty(t, parsePanes(""))
	assert.Empty(t, parsePanes("\n\n"))
}
