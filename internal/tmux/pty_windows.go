//go:build windows

package tmux

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNoCommand is returned by Record when argv is empty.
var ErrNoCommand = errors.New("no command to record")

// RecordOptions controls a PTY recording.
type RecordOptions struct {
	Duration   time.Duration
	Cols, Rows uint16
	Echo       io.Writer
}

// RecordResult summarises a finished recording.
type RecordResult struct {
	Bytes    int64
	ExitCode int
	TimedOut bool
	Elapsed  time.Duration
}

// Record is not supported on Windows.
func Record(context.Context, []string, io.Writer, RecordOptions) (RecordResult, error) {
	return RecordResult{}, errors.ErrUnsupported
}
