//go:build !windows
// +build !windows

package tmux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// ErrNoCommand is returned by Record when argv is empty.
var ErrNoCommand = errors.New("no command to record")

// Default PTY geometry when stdout is not a terminal.
const (
	DefaultCols = 120
	DefaultRows = 40
)

// drainGrace is how long Record keeps reading after the command exits.
const drainGrace = 500 * time.Millisecond

// RecordOptions controls a PTY recording.
type RecordOptions struct {
	// Duration stops the command after this long. Zero waits for exit.
	Duration time.Duration
	// Cols and Rows set the PTY size. Zero means the size of stdout or the defaults.
	Cols, Rows uint16
	// Echo receives a copy of the output while recording (usually os.Stdout).
	Echo io.Writer
}

// RecordResult summarises a finished recording.
type RecordResult struct {
	Bytes    int64
	ExitCode int
	TimedOut bool
	Elapsed  time.Duration
}

func recordSize(opts RecordOptions) *pty.Winsize {
	cols, rows := opts.Cols, opts.Rows
	if cols == 0 || rows == 0 {
		fd := int(os.Stdout.Fd())
		if term.IsTerminal(fd) {
			if w, h, err := term.GetSize(fd); err == nil && w > 0 && h > 0 {
				if cols == 0 {
					cols = uint16(w)
				}
				if rows == 0 {
					rows = uint16(h)
				}
			}
		}
	}
	if cols == 0 {
		cols = DefaultCols
	}
	if rows == 0 {
		rows = DefaultRows
	}
	return &pty.Winsize{Cols: cols, Rows: rows}
}

// Record runs argv inside a PTY and copies everything it prints to out.
// Hitting opts.Duration is a normal stop, not an error.
func Record(ctx context.Context, argv []string, out io.Writer, opts RecordOptions) (RecordResult, error) {
	var res RecordResult
	if len(argv) == 0 {
		return res, ErrNoCommand
	}

	runCtx := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	// pty.Start makes the child a session leader, so its pid is the process group.
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	start := time.Now()
	ptmx, err := pty.StartWithSize(cmd, recordSize(opts))
	if err != nil {
		return res, fmt.Errorf("failed to start pty: %w", err)
	}
	defer ptmx.Close()

	dst := out
	if opts.Echo != nil {
		dst = io.MultiWriter(out, opts.Echo)
	}

	type copyResult struct {
		n   int64
		err error
	}
	copyDone := make(chan copyResult, 1)
	go func() {
		n, err := io.Copy(dst, ptmx)
		copyDone <- copyResult{n, err}
	}()

	waitErr := cmd.Wait()

	var cr copyResult
	select {
	case cr = <-copyDone:
	case <-time.After(drainGrace):
		// a background child still holds the terminal open
		_ = ptmx.Close()
		cr = <-copyDone
	}

	res.Bytes = cr.n
	res.Elapsed = time.Since(start)
	res.TimedOut = opts.Duration > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	captureLog.Info("record_complete",
		slog.String("command", argv[0]),
		slog.Int64("bytes", res.Bytes),
		slog.Int("exit_code", res.ExitCode),
		slog.Bool("timed_out", res.TimedOut))

	// Linux reports EIO on the master once the slave side is gone.
	if cr.err != nil && !errors.Is(cr.err, syscall.EIO) && !errors.Is(cr.err, os.ErrClosed) {
		return res, fmt.Errorf("read pty: %w", cr.err)
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if waitErr != nil && !res.TimedOut {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			// a non-zero exit still produced a usable recording
			return res, nil
		}
		return res, fmt.Errorf("wait for %s: %w", argv[0], waitErr)
	}
	return res, nil
}
