package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/tchow-twistedxcom/agent-pulse/internal/config"
	"github.com/tchow-twistedxcom/agent-pulse/internal/logging"
	"github.com/tchow-twistedxcom/agent-pulse/internal/status"
	"github.com/tchow-twistedxcom/agent-pulse/internal/ui"
)

const Version = "0.3.0"

// DebugEnv enables file logging to ~/.agent-pulse at debug level.
const DebugEnv = "AGENTPULSE_DEBUG"

var cliLog = logging.ForComponent(logging.CompCLI)

// app carries the streams and config shared by every subcommand.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	cfg    *config.Config
}

func main() {
	a := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(a.run(context.Background(), os.Args[1:]))
}

// run dispatches a subcommand and returns the process exit code.
func (a *app) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		a.printHelp()
		return exitUsage
	}

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Fprintf(a.stdout, "agent-pulse v%s\n", Version)
		return exitOK
	case "help", "--help", "-h":
		a.printHelp()
		return exitOK
	}

	cleanup := a.setup()
	defer cleanup()

	switch args[0] {
	case "classify":
		return a.handleClassify(args[1:])
	case "fixtures", "test":
		return a.handleFixtures(ctx, args[1:])
	case "patterns", "rules":
		return a.handlePatterns(args[1:])
	case "watch":
		return a.handleWatch(ctx, args[1:])
	case "record":
		return a.handleRecord(ctx, args[1:])
	}

	fmt.Fprintf(a.stderr, "Error: unknown command %q\n\n", args[0])
	a.printHelp()
	return exitUsage
}

// setup loads the config and initializes logging and colors. The returned
// func flushes logs.
func (a *app) setup() func() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(a.stderr, "%s config ignored: %v\n", warnSymbol, err)
	}
	a.cfg = cfg

	debugMode := os.Getenv(DebugEnv) != ""
	logCfg := cfg.LoggingConfig(debugMode)
	logging.Init(logCfg)

	// stdlib log output from dependencies joins the structured stream
	log.SetFlags(0)
	log.SetOutput(logging.NewBridgeWriter(logging.CompCLI))

	stopDumps := watchDumpSignal(logCfg.LogDir)

	rs := cfg.GetReportSettings()
	out, _ := a.stdout.(*os.File)
	ui.InitColorProfile(rs.Color, out)
	ui.InitTheme(ui.ResolveTheme(rs.Theme))

	if debugMode {
		cliLog.Info("cli_started",
			slog.Int("pid", os.Getpid()),
			slog.String("version", Version))
	}
	return func() {
		stopDumps()
		log.SetOutput(os.Stderr)
		logging.Shutdown()
	}
}

// classifier builds a classifier from the config. A broken rules section is
// reported and the built-in library is used instead.
func (a *app) classifier(out *CLIOutput) (*status.Classifier, *status.Store) {
	lib, err := a.cfg.BuildLibrary()
	if err != nil {
		out.Warn(fmt.Sprintf("custom rules ignored: %v", err))
		lib = status.DefaultLibrary()
	}
	store, err := status.NewStore(lib)
	if err != nil {
		store = status.DefaultStore()
	}
	opts := append([]status.Option{status.WithStore(store)}, a.cfg.ClassifierOptions()...)
	return status.NewClassifier(opts...), store
}

func (a *app) printHelp() {
	w := a.stdout
	fmt.Fprintf(w, "agent-pulse v%s\n", Version)
	fmt.Fprintln(w, "Classify the state of AI coding agent terminal sessions")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: agent-pulse <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  classify [file]   Classify a capture from a file or stdin")
	fmt.Fprintln(w, "  fixtures, test    Run the fixture regression suite")
	fmt.Fprintln(w, "  patterns, rules   List the active pattern library")
	fmt.Fprintln(w, "  watch             Monitor tmux panes and report status changes")
	fmt.Fprintln(w, "  record            Record a command's output as a fixture")
	fmt.Fprintln(w, "  version           Show version")
	fmt.Fprintln(w, "  help              Show this help")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  tmux capture-pane -p -e -t work | agent-pulse classify")
	fmt.Fprintln(w, "  agent-pulse fixtures -dir fixtures -v")
	fmt.Fprintln(w, "  agent-pulse fixtures -run permission --json")
	fmt.Fprintln(w, "  agent-pulse watch -target work:0.0 -confirm 3")
	fmt.Fprintln(w, "  agent-pulse record -o fixtures/working-build.txt -duration 5s -- make build")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment Variables:")
	fmt.Fprintln(w, "  AGENTPULSE_CONFIG   Config file (default: ~/.agent-pulse/config.toml)")
	fmt.Fprintln(w, "  AGENTPULSE_COLOR    Color mode: auto, always, never, truecolor, 256, 16")
	fmt.Fprintln(w, "  AGENTPULSE_DEBUG    Write debug logs to ~/.agent-pulse/agent-pulse.log")
}
