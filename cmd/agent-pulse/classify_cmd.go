package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tchow-twistedxcom/agent-pulse/internal/fixture"
	"github.com/tchow-twistedxcom/agent-pulse/internal/status"
	"github.com/tchow-twistedxcom/agent-pulse/internal/ui"
)

func (a *app) handleClassify(args []string) int {
	fs := flag.NewFlagSet("classify", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	file := fs.String("file", "", "Read the capture from a file instead of stdin")
	fileShort := fs.String("f", "", "Read the capture from a file (short)")
	sessionID := fs.String("session", "", "Session id copied into the result")
	prevHash := fs.String("prev-hash", "", "textHash of the previous result for this session")
	stripHeader := fs.Bool("strip-header", false, "Drop 'Expected status:' header lines before classifying")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintln(a.stderr, "Usage: agent-pulse classify [options] [file]")
		fmt.Fprintln(a.stderr)
		fmt.Fprintln(a.stderr, "Classify one terminal capture. Reads stdin when no file is given.")
		fmt.Fprintln(a.stderr)
		fmt.Fprintln(a.stderr, "Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return exitUsage
	}

	out := NewCLIOutput(a.stdout, a.stderr, *jsonOutput, false)

	path := firstNonEmpty(*file, *fileShort, fs.Arg(0))
	raw, err := a.readCapture(path)
	if err != nil {
		out.Error(err.Error(), ErrCodeNotFound)
		return exitFail
	}
	content := string(raw)
	if *stripHeader {
		content = fixture.StripHeader(content)
	}

	var prev *status.Result
	if *prevHash != "" {
		prev = &status.Result{TextHash: *prevHash}
	}

	c, _ := a.classifier(out)
	res := c.Classify(status.Snapshot{
		SessionID:  *sessionID,
		Content:    content,
		CapturedAt: time.Now(),
	}, prev)

	if *jsonOutput {
		out.Print("", res)
		return exitOK
	}
	if err := ui.RenderResult(a.stdout, res); err != nil {
		out.Error(err.Error(), ErrCodeFailed)
		return exitFail
	}
	return exitOK
}

func (a *app) readCapture(path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	return data, nil
}

// firstNonEmpty returns the first non-empty string.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
