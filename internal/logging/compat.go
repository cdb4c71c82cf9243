package logging

import (
	"bytes"
	"log/slog"
	"strings"
)

// BridgeWriter adapts slog to io.Writer so output from the standard log package
// (and libraries that use it) lands in the structured log. A leading
// "[CATEGORY] " prefix becomes the component field.
type BridgeWriter struct {
	logger    *slog.Logger
	component string
}

// NewBridgeWriter creates a writer that forwards writes to slog.
// defaultComponent is used when a line has no [CATEGORY] prefix.
func NewBridgeWriter(defaultComponent string) *BridgeWriter {
	return &BridgeWriter{
		logger:    Logger(),
		component: defaultComponent,
	}
}

// Write implements io.Writer. Each call is treated as one log line.
func (bw *BridgeWriter) Write(p []byte) (int, error) {
	n := len(p)
	msg := string(bytes.TrimSpace(p))
	if msg == "" {
		return n, nil
	}

	msg = stripLogTimestamp(msg)

	component := bw.component
	if strings.HasPrefix(msg, "[") {
		if idx := strings.Index(msg, "] "); idx > 0 {
			component = strings.ToLower(msg[1:idx])
			msg = msg[idx+2:]
		}
	}

	bw.logger.Info(msg, slog.String("component", canonicalComponent(component)))
	return n, nil
}

// stripLogTimestamp removes the prefix added by log.Ltime (optionally with
// log.Lmicroseconds) since slog adds its own time field.
func stripLogTimestamp(s string) string {
	if len(s) > 16 && s[2] == ':' && s[5] == ':' && s[8] == '.' && s[15] == ' ' {
		return s[16:]
	}
	if len(s) > 9 && s[2] == ':' && s[5] == ':' && s[8] == ' ' {
		return s[9:]
	}
	return s
}

func canonicalComponent(cat string) string {
	switch cat {
	case "status", "classify", "classifier", "rules":
		return CompStatus
	case "fixture", "fixtures", "harness":
		return CompFixture
	case "config", "reload":
		return CompConfig
	case "monitor", "watch":
		return CompMonitor
	case "capture", "tmux", "pty", "record":
		return CompCapture
	case "ui", "theme":
		return CompUI
	case "perf":
		return CompPerf
	default:
		return cat
	}
}
