// Package tmux captures pane contents from a running tmux server and records
// command output through a PTY so it can be stored as a fixture.
package tmux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tchow-twistedxcom/agent-pulse/internal/logging"
)

var captureLog = logging.ForComponent(logging.CompCapture)

// ErrCaptureTimeout is returned when capture-pane exceeds its timeout.
// Callers should keep the previous state rather than treating the pane as failed.
var ErrCaptureTimeout = errors.New("capture-pane timed out")

// ErrNoTarget is returned when a capture is requested without a pane target.
var ErrNoTarget = errors.New("tmux target is required")

// DefaultCaptureTimeout bounds a single capture-pane subprocess.
const DefaultCaptureTimeout = 3 * time.Second

// runFunc executes tmux with the given arguments and returns its stdout.
type runFunc func(ctx context.Context, args ...string) ([]byte, error)

func execTmux(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "tmux", args...).Output()
}

// Capturer reads pane contents with `tmux capture-pane`. Concurrent captures
// of the same target share one subprocess.
type Capturer struct {
	timeout time.Duration
	history int
	run     runFunc
	sf      singleflight.Group
}

// CapturerOption configures a Capturer.
type CapturerOption func(*Capturer)

// WithTimeout overrides DefaultCaptureTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) CapturerOption {
	return func(c *Capturer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHistory includes n lines of scrollback above the visible screen.
func WithHistory(n int) CapturerOption {
	return func(c *Capturer) {
		if n > 0 {
			c.history = n
		}
	}
}

func withRunner(run runFunc) CapturerOption {
	return func(c *Capturer) { c.run = run }
}

// NewCapturer returns a Capturer backed by the tmux binary on PATH.
func NewCapturer(opts ...CapturerOption) *Capturer {
	c := &Capturer{timeout: DefaultCaptureTimeout, run: execTmux}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Capturer) captureArgs(target string) []string {
	// -e keeps escape sequences, -J joins wrapped lines
	args := []string{"capture-pane", "-p", "-e", "-J", "-t", target}
	if c.history > 0 {
		args = append(args, "-S", "-"+strconv.Itoa(c.history))
	}
	return args
}

// Capture returns the raw contents of target (e.g. "work:1.0").
func (c *Capturer) Capture(ctx context.Context, target string) (string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", ErrNoTarget
	}

	v, err, shared := c.sf.Do(target, func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		start := time.Now()
		out, err := c.run(cctx, c.captureArgs(target)...)
		if err != nil {
			if errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				captureLog.Warn("capture_timeout",
					slog.String("target", target),
					slog.Duration("timeout", c.timeout))
				return "", ErrCaptureTimeout
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", fmt.Errorf("capture pane %s: %w", target, err)
		}
		logging.Aggregate(logging.CompCapture, "pane_captured",
			slog.Duration("elapsed", time.Since(start)))
		return string(out), nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		captureLog.Debug("capture_shared", slog.String("target", target))
	}
	return v.(string), nil
}

// Pane describes one tmux pane.
type Pane struct {
	Target  string `json:"target"`
	Session string `json:"session"`
	Title   string `json:"title"`
	Command string `json:"command"`
}

const paneFormat = "#{session_name}:#{window_index}.#{pane_index}\t#{session_name}\t#{pane_title}\t#{pane_current_command}"

// ListPanes returns every pane on the server.
func (c *Capturer) ListPanes(ctx context.Context) ([]Pane, error) {
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	out, err := c.run(cctx, "list-panes", "-a", "-F", paneFormat)
	if err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrCaptureTimeout
		}
		return nil, fmt.Errorf("list panes: %w", err)
	}
	return parsePanes(string(out)), nil
}

func parsePanes(output string) []Pane {
	var panes []Pane
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 4)
		if len(parts) != 4 {
			continue
		}
		panes = append(panes, Pane{
			Target:  parts[0],
			Session: parts[1],
			Title:   parts[2],
			Command: parts[3],
		})
	}
	return panes
}

// IsTmuxAvailable returns nil when tmux is installed and runs.
func IsTmuxAvailable() error {
	output, err := exec.Command("tmux", "-V").CombinedOutput()
	if err != nil {
		return fmt.Errorf("tmux not found or not working: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}
	return nil
}
