package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"

	"github.com/tchow-twistedxcom/agent-pulse/internal/fixture"
	"github.com/tchow-twistedxcom/agent-pulse/internal/ui"
)

var errNoFixtures = errors.New("no fixtures found")

func (a *app) handleFixtures(ctx context.Context, args []string) int {
	settings := a.cfg.GetFixtureSettings()

	fs := flag.NewFlagSet("fixtures", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	dir := fs.String("dir", settings.Dir, "Fixture directory")
	query := fs.String("run", "", "Only run fixtures whose name fuzzy-matches this query")
	parallel := fs.Int("parallel", settings.Parallel, "Concurrent evaluations (0 = number of CPUs)")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	verbose := fs.Bool("verbose", false, "Show expectation source and timing")
	verboseShort := fs.Bool("v", false, "Show expectation source and timing (short)")
	progress := fs.Bool("progress", false, "Show a progress bar on stderr while running")

	fs.Usage = func() {
		fmt.Fprintln(a.stderr, "Usage: agent-pulse fixtures [options]")
		fmt.Fprintln(a.stderr)
		fmt.Fprintln(a.stderr, "Classify every stored fixture and compare with its expected status.")
		fmt.Fprintln(a.stderr, "Exits 0 only when every fixture passes.")
		fmt.Fprintln(a.stderr)
		fmt.Fprintln(a.stderr, "Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return exitUsage
	}
	out := NewCLIOutput(a.stdout, a.stderr, *jsonOutput, false)

	fixtures, err := fixture.Load(*dir)
	if err != nil {
		code := ErrCodeFailed
		if errors.Is(err, fixture.ErrFixtureDirMissing) {
			code = ErrCodeNotFound
		}
		out.Error(err.Error(), code)
		return exitFail
	}
	if *query != "" {
		fixtures = fixture.Filter(fixtures, *query)
	}
	if len(fixtures) == 0 {
		out.Error(fmt.Sprintf("%v in %s", errNoFixtures, *dir), ErrCodeNotFound)
		return exitFail
	}

	c, _ := a.classifier(out)
	opts := fixture.RunOptions{Parallel: *parallel}
	var bar *progressbar.ProgressBar
	if *progress {
		bar = newFixtureProgress(a.stderr, len(fixtures))
		opts.OnOutcome = func(fixture.Outcome) {
			if err := bar.Add(1); err != nil {
				cliLog.Warn("progress_update_failed", slog.String("error", err.Error()))
			}
		}
	}
	rep, runErr := fixture.Run(ctx, fixtures, c, opts)
	if bar != nil {
		_ = bar.Finish()
	}

	if *jsonOutput {
		if err := fixture.RenderJSON(a.stdout, rep); err != nil {
			out.Error(err.Error(), ErrCodeFailed)
			return exitFail
		}
	} else if err := ui.RenderFixtureReport(a.stdout, rep, *verbose || *verboseShort); err != nil {
		out.Error(err.Error(), ErrCodeFailed)
		return exitFail
	}

	if runErr != nil {
		cliLog.Warn("fixture_run_interrupted", slog.String("error", runErr.Error()))
		return exitFail
	}
	if !rep.OK() {
		return exitFail
	}
	return exitOK
}

func newFixtureProgress(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan]Classifying fixtures[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}
