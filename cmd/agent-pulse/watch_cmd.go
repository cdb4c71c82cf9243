package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tchow-twistedxcom/agent-pulse/internal/config"
	"github.com/tchow-twistedxcom/agent-pulse/internal/monitor"
	"github.com/tchow-twistedxcom/agent-pulse/internal/status"
	"github.com/tchow-twistedxcom/agent-pulse/internal/tmux"
	"github.com/tchow-twistedxcom/agent-pulse/internal/ui"
)

func (a *app) handleWatch(ctx context.Context, args []string) int {
	ws := a.cfg.GetWatchSettings()

	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	var targets stringList
	fs.Var(&targets, "target", "tmux pane target, repeatable (default: every pane)")
	fs.Var(&targets, "t", "tmux pane target (short)")
	interval := fs.Duration("interval", ws.Interval(), "Poll interval")
	confirm := fs.Int("confirm", ws.ConfirmPolls, "Consecutive polls required to report a change")
	history := fs.Int("history", 0, "Scrollback lines to include above the visible screen")
	noReload := fs.Bool("no-reload", false, "Do not reload rules when the config file changes")
	jsonOutput := fs.Bool("json", false, "Emit one JSON object per transition")

	fs.Usage = func() {
		fmt.Fprintln(a.stderr, "Usage: agent-pulse watch [options]")
		fmt.Fprintln(a.stderr)
		fmt.Fprintln(a.stderr, "Poll tmux panes and print each confirmed status change until interrupted.")
		fmt.Fprintln(a.stderr)
		fmt.Fprintln(a.stderr, "Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		return exitUsage
	}
	out := NewCLIOutput(a.stdout, a.stderr, *jsonOutput, false)

	if err := tmux.IsTmuxAvailable(); err != nil {
		out.Error(err.Error(), ErrCodeUnavailable)
		return exitFail
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	capturer := tmux.NewCapturer(tmux.WithTimeout(ws.CaptureTimeout()), tmux.WithHistory(*history))
	classifier, store := a.classifier(out)

	opts := monitor.Options{
		Targets:           targets,
		Interval:          *interval,
		ConfirmPolls:      *confirm,
		CapturesPerSecond: ws.CapturesPerSecond,
	}
	if len(opts.Targets) == 0 {
		opts.Targets = ws.Targets
	}
	if len(opts.Targets) == 0 {
		opts.Discover = func(ctx context.Context) ([]string, error) {
			panes, err := capturer.ListPanes(ctx)
			if err != nil {
				return nil, err
			}
			found := make([]string, 0, len(panes))
			for _, p := range panes {
				found = append(found, p.Target)
			}
			return found, nil
		}
	}

	m, err := monitor.New(capturer, classifier, opts)
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidInput)
		return exitUsage
	}

	if !*noReload {
		if stopWatcher := a.watchConfig(out, store); stopWatcher != nil {
			defer stopWatcher()
		}
	}

	if ui.Theme(a.cfg.GetReportSettings().Theme) == ui.ThemeSystem {
		if tw := ui.NewThemeWatcher(ctx); tw != nil {
			defer tw.Close()
		}
	}

	started := time.Now()
	runErr := make(chan error, 1)
	go func() { runErr <- m.Run(ctx) }()

	enc := json.NewEncoder(a.stdout)
	for tr := range m.Transitions() {
		if *jsonOutput {
			_ = enc.Encode(tr)
			continue
		}
		_ = ui.RenderTransition(a.stdout, tr)
	}

	if err := <-runErr; err != nil {
		out.Error(err.Error(), ErrCodeFailed)
		return exitFail
	}
	cliLog.Info("watch_stopped", slog.Duration("uptime", time.Since(started)))
	return exitOK
}

// watchConfig reloads rules into store when the config file changes. It
// returns nil when the file cannot be watched.
func (a *app) watchConfig(out *CLIOutput, store *status.Store) func() {
	path, err := config.Path()
	if err != nil {
		return nil
	}
	w, err := config.NewWatcher(path, store, func(_ *config.Config, err error) {
		if err != nil {
			out.Warn(fmt.Sprintf("config change rejected, keeping current rules: %v", err))
			return
		}
		out.Warn("rules reloaded from " + path)
	})
	if err != nil {
		cliLog.Warn("config_watch_unavailable", slog.String("error", err.Error()))
		return nil
	}
	w.Start()
	return w.Stop
}
