package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ColorEnv overrides the configured color setting.
const ColorEnv = "AGENTPULSE_COLOR"

// InitColorProfile configures the lipgloss color profile for out.
//
// setting is one of auto, always, never, truecolor, 256, 16 or none; the
// AGENTPULSE_COLOR environment variable takes precedence. In auto mode color
// is disabled when out is not a terminal or NO_COLOR is set. Returns the
// profile chosen.
func InitColorProfile(setting string, out *os.File) termenv.Profile {
	p := chooseProfile(setting, out)
	lipgloss.SetColorProfile(p)
	return p
}

func chooseProfile(setting string, out *os.File) termenv.Profile {
	if env := os.Getenv(ColorEnv); env != "" {
		setting = env
	}
	switch strings.ToLower(strings.TrimSpace(setting)) {
	case "truecolor", "true", "24bit":
		return termenv.TrueColor
	case "256", "ansi256":
		return termenv.ANSI256
	case "16", "ansi", "basic":
		return termenv.ANSI
	case "none", "off", "ascii", "never":
		return termenv.Ascii
	case "always":
		return detectProfile()
	}

	if os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	if out == nil || !term.IsTerminal(int(out.Fd())) {
		return termenv.Ascii
	}
	return detectProfile()
}

// detectProfile prefers TrueColor on terminals known to support it and falls
// back to ANSI256.
func detectProfile() termenv.Profile {
	colorTerm := os.Getenv("COLORTERM")
	if colorTerm == "truecolor" || colorTerm == "24bit" {
		return termenv.TrueColor
	}

	termName := os.Getenv("TERM")
	for _, t := range []string{"xterm-256color", "screen-256color", "tmux-256color", "xterm-direct", "alacritty", "kitty", "wezterm"} {
		if strings.Contains(termName, t) {
			return termenv.TrueColor
		}
	}

	if os.Getenv("WT_SESSION") != "" ||
		os.Getenv("ITERM_SESSION_ID") != "" ||
		os.Getenv("TERMINAL_EMULATOR") != "" ||
		os.Getenv("KONSOLE_VERSION") != "" {
		return termenv.TrueColor
	}
	return termenv.ANSI256
}
