package ui

import (
	"sync"

	"github.com/charmbracelet/lipgloss"
	dark "github.com/thiagokokada/dark-mode-go"

	"github.com/tchow-twistedxcom/agent-pulse/internal/status"
)

// Theme represents the current color scheme
type Theme string

const (
	ThemeDark   Theme = "dark"
	ThemeLight  Theme = "light"
	ThemeSystem Theme = "system"
)

// currentTheme holds the active theme (set at init)
var currentTheme = ThemeDark

type palette struct {
	Border, Text, Accent, Cyan lipgloss.Color
	Green, Yellow, Orange, Red lipgloss.Color
	Comment                    lipgloss.Color
}

// Dark Theme - Tokyo Night
var darkColors = palette{
	Border:  lipgloss.Color("#414868"),
	Text:    lipgloss.Color("#c0caf5"),
	Accent:  lipgloss.Color("#7aa2f7"),
	Cyan:    lipgloss.Color("#7dcfff"),
	Green:   lipgloss.Color("#9ece6a"),
	Yellow:  lipgloss.Color("#e0af68"),
	Orange:  lipgloss.Color("#ff9e64"),
	Red:     lipgloss.Color("#f7768e"),
	Comment: lipgloss.Color("#787fa0"),
}

// Light Theme - Tokyo Night Light variant
var lightColors = palette{
	Border:  lipgloss.Color("#9699a3"),
	Text:    lipgloss.Color("#343b58"),
	Accent:  lipgloss.Color("#34548a"),
	Cyan:    lipgloss.Color("#166775"),
	Green:   lipgloss.Color("#485e30"),
	Yellow:  lipgloss.Color("#8f5e15"),
	Orange:  lipgloss.Color("#965027"),
	Red:     lipgloss.Color("#8c4351"),
	Comment: lipgloss.Color("#6a6d7c"),
}

// themeMu protects the style variables during live theme switches.
var themeMu sync.RWMutex

var (
	TitleStyle   lipgloss.Style
	HeaderStyle  lipgloss.Style
	DimStyle     lipgloss.Style
	TextStyle    lipgloss.Style
	PassStyle    lipgloss.Style
	FailStyle    lipgloss.Style
	PatternStyle lipgloss.Style
	SummaryStyle lipgloss.Style

	statusStyles map[status.Status]lipgloss.Style
)

// ResolveTheme turns a configured theme name into dark or light. "system"
// asks the OS and falls back to dark when detection fails.
func ResolveTheme(name string) Theme {
	switch Theme(name) {
	case ThemeLight:
		return ThemeLight
	case ThemeSystem:
		isDark, err := dark.IsDarkMode()
		if err != nil || isDark {
			return ThemeDark
		}
		return ThemeLight
	default:
		return ThemeDark
	}
}

// InitTheme sets the active palette. Anything other than "light" is dark;
// resolve "system" with ResolveTheme first.
func InitTheme(theme Theme) {
	themeMu.Lock()
	defer themeMu.Unlock()
	c := darkColors
	currentTheme = ThemeDark
	if theme == ThemeLight {
		c = lightColors
		currentTheme = ThemeLight
	}
	initStyles(c)
}

// CurrentTheme returns the active theme
func CurrentTheme() Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme
}

func init() {
	InitTheme(ThemeDark)
}

func initStyles(c palette) {
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(c.Accent)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(c.Text).
		BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(c.Border)
	DimStyle = lipgloss.NewStyle().Foreground(c.Comment)
	TextStyle = lipgloss.NewStyle().Foreground(c.Text)
	PassStyle = lipgloss.NewStyle().Bold(true).Foreground(c.Green)
	FailStyle = lipgloss.NewStyle().Bold(true).Foreground(c.Red)
	PatternStyle = lipgloss.NewStyle().Foreground(c.Cyan)
	SummaryStyle = lipgloss.NewStyle().Bold(true).Foreground(c.Text).
		Border(lipgloss.RoundedBorder()).BorderForeground(c.Border).Padding(0, 1)

	statusStyles = map[status.Status]lipgloss.Style{
		status.StatusError:   lipgloss.NewStyle().Bold(true).Foreground(c.Red),
		status.StatusWaiting: lipgloss.NewStyle().Bold(true).Foreground(c.Yellow),
		status.StatusWorking: lipgloss.NewStyle().Foreground(c.Green),
		status.StatusIdle:    lipgloss.NewStyle().Foreground(c.Comment),
	}
}

// StatusStyle returns the style for a status. Unknown statuses render in the
// fail style.
func StatusStyle(s status.Status) lipgloss.Style {
	themeMu.RLock()
	defer themeMu.RUnlock()
	if st, ok := statusStyles[s]; ok {
		return st
	}
	return FailStyle
}

// Status indicator glyphs
const (
	IconWorking = "●"
	IconWaiting = "◐"
	IconIdle    = "○"
	IconError   = "✕"
)

// StatusIcon returns the indicator glyph for a status.
func StatusIcon(s status.Status) string {
	switch s {
	case status.StatusWorking:
		return IconWorking
	case status.StatusWaiting:
		return IconWaiting
	case status.StatusError:
		return IconError
	default:
		return IconIdle
	}
}
