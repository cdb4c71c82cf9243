package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tchow-twistedxcom/agent-pulse/internal/fixture"
	"github.com/tchow-twistedxcom/agent-pulse/internal/status"
	"github.com/tchow-twistedxcom/agent-pulse/internal/tmux"
	"github.com/tchow-twistedxcom/agent-pulse/internal/ui"
)

func (a *app) handleRecord(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	output := fs.String("o", "", "Fixture file to write (required)")
	expect := fs.String("expect", "", "Write an 'Expected status:' header (idle, working, waiting, error)")
	duration := fs.Duration("duration", 0, "Stop the command after this long (0 = wait for exit)")
	cols := fs.Int("cols", 0, "PTY width (default: terminal width or 120)")
	rows := fs.Int("rows", 0, "PTY height (default: terminal height or 40)")
	quiet := fs.Bool("quiet", false, "Do not echo output while recording")
	force := fs.Bool("force", false, "Overwrite an existing file")

	fs.Usage = func() {
		fmt.Fprintln(a.stderr, "Usage: agent-pulse record -o file [options] -- command [args...]")
		fmt.Fprintln(a.stderr)
		fmt.Fprintln(a.stderr, "Run a command in a pseudo-terminal and save its output as a fixture.")
		fmt.Fprintln(a.stderr)
		fmt.Fprintln(a.stderr, "Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return exitUsage
	}
	out := NewCLIOutput(a.stdout, a.stderr, false, *quiet)

	argv := fs.Args()
	if *output == "" || len(argv) == 0 {
		fs.Usage()
		return exitUsage
	}
	if *cols < 0 || *cols > 0xffff || *rows < 0 || *rows > 0xffff {
		out.Error("cols and rows must be between 0 and 65535", ErrCodeInvalidInput)
		return exitUsage
	}

	var want status.Status
	if *expect != "" {
		s, ok := status.ParseStatus(*expect)
		if !ok {
			out.Error(fmt.Sprintf("unknown status %q", *expect), ErrCodeInvalidInput)
			return exitUsage
		}
		want = s
	}

	if !*force {
		if _, err := os.Stat(*output); err == nil {
			out.Error(fmt.Sprintf("%s already exists (use -force to overwrite)", *output), ErrCodeInvalidInput)
			return exitFail
		}
	}

	opts := tmux.RecordOptions{
		Duration: *duration,
		Cols:     uint16(*cols),
		Rows:     uint16(*rows),
	}
	if !*quiet {
		opts.Echo = a.stdout
	}

	var buf bytes.Buffer
	if want != "" {
		fmt.Fprintf(&buf, "# Expected status: %s\n", want)
	}
	res, err := tmux.Record(ctx, argv, &buf, opts)
	if err != nil {
		out.Error(err.Error(), ErrCodeFailed)
		return exitFail
	}

	if dir := filepath.Dir(*output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			out.Error(err.Error(), ErrCodeFailed)
			return exitFail
		}
	}
	if err := os.WriteFile(*output, buf.Bytes(), 0o644); err != nil {
		out.Error(fmt.Sprintf("write fixture: %v", err), ErrCodeFailed)
		return exitFail
	}

	content := buf.String()
	c, _ := a.classifier(out)
	got := c.Classify(status.Snapshot{
		SessionID:  filepath.Base(*output),
		Content:    fixture.StripHeader(content),
		CapturedAt: time.Now(),
	}, nil)

	if !*quiet {
		fmt.Fprintln(a.stdout)
	}
	out.Success(fmt.Sprintf("recorded %d bytes to %s in %s (exit %d%s)",
		res.Bytes, *output, res.Elapsed.Round(time.Millisecond), res.ExitCode, timedOutNote(res)), nil)
	if !*quiet {
		_ = ui.RenderResult(a.stdout, got)
	}

	exp := fixture.Expect(filepath.Base(*output), content)
	switch {
	case !exp.Resolved():
		out.Warn(fmt.Sprintf("no expectation: name the file with one of %s or pass -expect",
			strings.Join(fixture.Prefixes(), ", ")))
	case string(got.Status) != exp.Status:
		out.Warn(fmt.Sprintf("classified as %s but expected %s; the library may need a new rule",
			got.Status, exp.Status))
	}
	return exitOK
}

func timedOutNote(res tmux.RecordResult) string {
	if res.TimedOut {
		return ", stopped after duration"
	}
	return ""
}
