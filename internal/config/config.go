// Package config loads agent-pulse settings from a TOML file and turns them
// into classifier, watch, report and logging settings with defaults applied.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tchow-twistedxcom/agent-pulse/internal/logging"
	"github.com/tchow-twistedxcom/agent-pulse/internal/status"
)

var configLog = logging.ForComponent(logging.CompConfig)

const (
	// DirName is the per-user state directory under $HOME.
	DirName = ".agent-pulse"
	// FileName is the config file inside DirName.
	FileName = "config.toml"
	// PathEnv overrides the config file location.
	PathEnv = "AGENTPULSE_CONFIG"
)

// Config mirrors config.toml.
type Config struct {
	Classifier ClassifierSettings `toml:"classifier"`
	Rules      RulesSettings      `toml:"rules"`
	Fixtures   FixtureSettings    `toml:"fixtures"`
	Watch      WatchSettings      `toml:"watch"`
	Report     ReportSettings     `toml:"report"`
	Logs       LogSettings        `toml:"logs"`
}

// ClassifierSettings tunes normalization and the no-match fallback.
type ClassifierSettings struct {
	// TailLines is how many recent lines are classified (default: 50)
	TailLines int `toml:"tail_lines"`

	Fallback FallbackSettings `toml:"fallback"`
}

// FallbackSettings overrides the fallback policy per hint case.
type FallbackSettings struct {
	NoHint    FallbackEntry `toml:"no_hint"`
	Unchanged FallbackEntry `toml:"unchanged"`
	Changed   FallbackEntry `toml:"changed"`
}

// FallbackEntry is one fallback result. Unset fields keep the default.
type FallbackEntry struct {
	Status     string   `toml:"status"`
	Confidence *float64 `toml:"confidence"`
}

// RulesSettings adjusts the built-in catalog.
type RulesSettings struct {
	// Disable lists rule ids to drop.
	Disable []string `toml:"disable"`

	// Custom rules are added to the catalog; a custom rule with a built-in
	// id replaces it.
	Custom []status.RawRule `toml:"custom"`
}

// FixtureSettings configures the regression harness.
type FixtureSettings struct {
	// Dir holds fixture captures (default: "fixtures")
	Dir string `toml:"dir"`

	// Parallel bounds concurrent evaluations (default: number of CPUs)
	Parallel int `toml:"parallel"`
}

// WatchSettings configures pane monitoring.
type WatchSettings struct {
	// IntervalMs is the poll interval per target (default: 1000)
	IntervalMs int `toml:"interval_ms"`

	// ConfirmPolls is how many consecutive polls must agree before a status
	// change is reported (default: 2)
	ConfirmPolls int `toml:"confirm_polls"`

	// CapturesPerSecond caps tmux capture calls across all targets (default: 20)
	CapturesPerSecond float64 `toml:"captures_per_second"`

	// CaptureTimeoutMs bounds a single capture (default: 3000)
	CaptureTimeoutMs int `toml:"capture_timeout_ms"`

	// Targets are tmux pane targets watched when none are given on the
	// command line. Empty means every pane.
	Targets []string `toml:"targets"`
}

// ReportSettings controls terminal output.
type ReportSettings struct {
	// Theme is "dark", "light" or "system" (default: "dark")
	Theme string `toml:"theme"`

	// Color is "auto", "always" or "never" (default: "auto")
	Color string `toml:"color"`
}

// LogSettings configures the structured log.
type LogSettings struct {
	// Dir for agent-pulse.log. Empty disables file logging unless debug is on,
	// in which case ~/.agent-pulse is used.
	Dir string `toml:"dir"`

	// Level is "debug", "info", "warn" or "error" (default: "info")
	Level string `toml:"level"`

	// Format is "json" (default) or "text"
	Format string `toml:"format"`

	// MaxSizeMB before rotation (default: 10)
	MaxSizeMB int `toml:"max_size_mb"`

	// MaxBackups rotated files kept (default: 5)
	MaxBackups int `toml:"max_backups"`

	// MaxAgeDays rotated files kept (default: 10)
	MaxAgeDays int `toml:"max_age_days"`

	// Compress rotated files (default: true)
	Compress *bool `toml:"compress"`

	// RingBufferMB is the crash dump buffer size (default: 1)
	RingBufferMB int `toml:"ring_buffer_mb"`

	// AggregateIntervalSecs is the event aggregation flush interval (default: 30)
	AggregateIntervalSecs int `toml:"aggregate_interval_secs"`

	// PprofAddr starts a pprof server in debug mode, e.g. "localhost:6060"
	PprofAddr string `toml:"pprof_addr"`
}

// Dir returns ~/.agent-pulse.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// Path returns the config file path, honouring AGENTPULSE_CONFIG.
func Path() (string, error) {
	if p := os.Getenv(PathEnv); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// LoadFile parses path. A missing file yields an empty config and no error.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("%s parse error: %w", filepath.Base(path), err)
	}
	return &cfg, nil
}

// Cache for the config file (loaded once per process)
var (
	configCache   *Config
	configCacheMu sync.RWMutex
)

// Load returns the cached config, reading it on first use. A parse error is
// returned alongside an empty config, which stays cached so the error is not
// re-read on every call.
func Load() (*Config, error) {
	configCacheMu.RLock()
	if configCache != nil {
		defer configCacheMu.RUnlock()
		return configCache, nil
	}
	configCacheMu.RUnlock()

	configCacheMu.Lock()
	defer configCacheMu.Unlock()

	// Double-check after acquiring write lock
	if configCache != nil {
		return configCache, nil
	}

	path, err := Path()
	if err != nil {
		configCache = &Config{}
		return configCache, nil
	}
	cfg, err := LoadFile(path)
	if err != nil {
		configLog.Warn("config_parse_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		configCache = &Config{}
		return configCache, err
	}
	configCache = cfg
	return configCache, nil
}

// Reload forces the next Load to read the file again and returns its result.
func Reload() (*Config, error) {
	ClearCache()
	return Load()
}

// ClearCache drops the cached config without reloading.
func ClearCache() {
	configCacheMu.Lock()
	configCache = nil
	configCacheMu.Unlock()
}

// GetClassifierSettings returns classifier settings with defaults applied.
func (c *Config) GetClassifierSettings() ClassifierSettings {
	var s ClassifierSettings
	if c != nil {
		s = c.Classifier
	}
	if s.TailLines <= 0 {
		s.TailLines = status.DefaultTailLines
	}
	return s
}

// FallbackPolicy merges the configured fallbacks over the defaults.
func (c *Config) FallbackPolicy() status.FallbackPolicy {
	p := status.DefaultFallbackPolicy()
	if c == nil {
		return p
	}
	f := c.Classifier.Fallback
	p.NoHint = f.NoHint.apply(p.NoHint)
	p.Unchanged = f.Unchanged.apply(p.Unchanged)
	p.Changed = f.Changed.apply(p.Changed)
	return p
}

func (e FallbackEntry) apply(def status.Fallback) status.Fallback {
	if s, ok := status.ParseStatus(e.Status); ok {
		def.Status = s
	} else if e.Status != "" {
		configLog.Warn("invalid_fallback_status", slog.String("status", e.Status))
	}
	if e.Confidence != nil {
		def.Confidence = *e.Confidence
	}
	return def
}

// ClassifierOptions returns the options that apply these settings to a
// classifier. The library is supplied separately through a store.
func (c *Config) ClassifierOptions() []status.Option {
	return []status.Option{
		status.WithNormalizer(status.Normalizer{TailLines: c.GetClassifierSettings().TailLines}),
		status.WithFallback(c.FallbackPolicy()),
	}
}

// BuildLibrary applies [rules] to the built-in catalog. Any invalid custom
// rule fails the whole build so a bad edit never half-applies.
func (c *Config) BuildLibrary() (*status.Library, error) {
	if c == nil {
		return status.DefaultLibrary(), nil
	}
	if len(c.Rules.Disable) == 0 && len(c.Rules.Custom) == 0 {
		return status.DefaultLibrary(), nil
	}
	custom, err := status.CompileRules(c.Rules.Custom)
	if err != nil {
		return nil, fmt.Errorf("compile custom rules: %w", err)
	}
	lib, err := status.BuildLibrary(status.DefaultRules(), c.Rules.Disable, custom)
	if err != nil {
		return nil, fmt.Errorf("build rule library: %w", err)
	}
	return lib, nil
}

// GetFixtureSettings returns harness settings with defaults applied.
func (c *Config) GetFixtureSettings() FixtureSettings {
	var s FixtureSettings
	if c != nil {
		s = c.Fixtures
	}
	if s.Dir == "" {
		s.Dir = "fixtures"
	}
	return s
}

// GetWatchSettings returns watch settings with defaults applied.
func (c *Config) GetWatchSettings() WatchSettings {
	var s WatchSettings
	if c != nil {
		s = c.Watch
	}
	if s.IntervalMs <= 0 {
		s.IntervalMs = 1000
	}
	if s.ConfirmPolls <= 0 {
		s.ConfirmPolls = 2
	}
	if s.CapturesPerSecond <= 0 {
		s.CapturesPerSecond = 20
	}
	if s.CaptureTimeoutMs <= 0 {
		s.CaptureTimeoutMs = 3000
	}
	return s
}

// Interval is IntervalMs as a duration.
func (s WatchSettings) Interval() time.Duration {
	return time.Duration(s.IntervalMs) * time.Millisecond
}

// CaptureTimeout is CaptureTimeoutMs as a duration.
func (s WatchSettings) CaptureTimeout() time.Duration {
	return time.Duration(s.CaptureTimeoutMs) * time.Millisecond
}

// GetReportSettings returns output settings with defaults applied.
func (c *Config) GetReportSettings() ReportSettings {
	var s ReportSettings
	if c != nil {
		s = c.Report
	}
	switch s.Theme {
	case "dark", "light", "system":
	default:
		s.Theme = "dark"
	}
	switch s.Color {
	case "auto", "always", "never", "truecolor", "256", "16", "none":
	default:
		s.Color = "auto"
	}
	return s
}

// GetLogSettings returns log settings with defaults applied.
func (c *Config) GetLogSettings() LogSettings {
	var s LogSettings
	if c != nil {
		s = c.Logs
	}
	if s.Level == "" {
		s.Level = "info"
	}
	if s.Format == "" {
		s.Format = "json"
	}
	if s.MaxSizeMB <= 0 {
		s.MaxSizeMB = 10
	}
	if s.MaxBackups <= 0 {
		s.MaxBackups = 5
	}
	if s.MaxAgeDays <= 0 {
		s.MaxAgeDays = 10
	}
	if s.Compress == nil {
		on := true
		s.Compress = &on
	}
	if s.RingBufferMB <= 0 {
		s.RingBufferMB = 1
	}
	if s.AggregateIntervalSecs <= 0 {
		s.AggregateIntervalSecs = 30
	}
	return s
}

// LoggingConfig converts log settings for logging.Init. With debug set,
// file logging falls back to ~/.agent-pulse and the level drops to debug.
func (c *Config) LoggingConfig(debug bool) logging.Config {
	s := c.GetLogSettings()
	dir := s.Dir
	if dir == "" && debug {
		dir, _ = Dir()
	}
	level := s.Level
	if debug {
		level = "debug"
	}
	cfg := logging.Config{
		LogDir:                dir,
		Level:                 level,
		Format:                s.Format,
		MaxSizeMB:             s.MaxSizeMB,
		MaxBackups:            s.MaxBackups,
		MaxAgeDays:            s.MaxAgeDays,
		Compress:              *s.Compress,
		RingBufferSize:        s.RingBufferMB * 1024 * 1024,
		AggregateIntervalSecs: s.AggregateIntervalSecs,
		Debug:                 debug,
	}
	if debug {
		cfg.PprofAddr = s.PprofAddr
	}
	return cfg
}
