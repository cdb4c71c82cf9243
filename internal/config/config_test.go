package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchow-twistedxcom/agent-pulse/internal/status"
)

const sampleConfig = `
[classifier]
tail_lines = 30

[classifier.fallback.changed]
status = "working"
confidence = 0.45

[classifier.fallback.no_hint]
confidence = 0.1

[rules]
disable = ["open-question"]

[[rules.custom]]
id = "deploy-confirm"
category = "waiting"
priority = 900
confidence = 0.9
ignore_case = true
patterns = ["Deploy to production?", "re:promote build \\d+\\?"]

[fixtures]
dir = "testdata/fixtures"
parallel = 4

[watch]
interval_ms = 500
confirm_polls = 3
targets = ["main:0.0", "work:1"]

[report]
theme = "light"
color = "never"

[logs]
level = "warn"
format = "text"
compress = false
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.GetClassifierSettings().TailLines)
	assert.Equal(t, []string{"open-question"}, cfg.Rules.Disable)
	require.Len(t, cfg.Rules.Custom, 1)
	assert.Equal(t, "deploy-confirm", cfg.Rules.Custom[0].ID)
	assert.True(t, cfg.Rules.Custom[0].IgnoreCase)

	fx := cfg.GetFixtureSettings()
	assert.Equal(t, "testdata/fixtures", fx.Dir)
	assert.Equal(t, 4, fx.Parallel)

	w := cfg.GetWatchSettings()
	assert.Equal(t, 500, w.IntervalMs)
	assert.Equal(t, 3, w.ConfirmPolls)
	assert.Equal(t, 20.0, w.CapturesPerSecond)
	assert.Equal(t, []string{"main:0.0", "work:1"}, w.Targets)

	r := cfg.GetReportSettings()
	assert.Equal(t, "light", r.Theme)
	assert.Equal(t, "never", r.Color)

	logs := cfg.GetLogSettings()
	assert.Equal(t, "warn", logs.Level)
	assert.Equal(t, "text", logs.Format)
	require.NotNil(t, logs.Compress)
	assert.False(t, *logs.Compress)
}

func TestLoadFile_Missing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)
}

func TestLoadFile_ParseError(t *testing.T) {
	_, err := LoadFile(writeConfig(t, "[classifier\ntail_lines = "))
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	var cfg *Config

	assert.Equal(t, status.DefaultTailLines, cfg.GetClassifierSettings().TailLines)
	assert.Equal(t, status.DefaultFallbackPolicy(), cfg.FallbackPolicy())
	assert.Equal(t, "fixtures", cfg.GetFixtureSettings().Dir)

	w := cfg.GetWatchSettings()
	assert.Equal(t, 1000, w.IntervalMs)
	assert.Equal(t, 2, w.ConfirmPolls)
	assert.Equal(t, 3000, w.CaptureTimeoutMs)
	assert.Equal(t, "1s", w.Interval().String())

	r := cfg.GetReportSettings()
	assert.Equal(t, "dark", r.Theme)
	assert.Equal(t, "auto", r.Color)

	logs := cfg.GetLogSettings()
	assert.Equal(t, "info", logs.Level)
	assert.True(t, *logs.Compress)
	assert.Equal(t, 30, logs.AggregateIntervalSecs)

	lib, err := cfg.BuildLibrary()
	require.NoError(t, err)
	assert.Same(t, status.DefaultLibrary(), lib)
}

func TestReportSettings_InvalidValues(t *testing.T) {
	cfg := &Config{Report: ReportSettings{Theme: "neon", Color: "rainbow"}}
	r := cfg.GetReportSettings()
	assert.Equal(t, "dark", r.Theme)
	assert.Equal(t, "auto", r.Color)
}

func TestFallbackPolicy(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	p := cfg.FallbackPolicy()
	assert.Equal(t, status.Fallback{Status: status.StatusIdle, Confidence: 0.1}, p.NoHint)
	assert.Equal(t, status.Fallback{Status: status.StatusIdle, Confidence: 0.3}, p.Unchanged)
	assert.Equal(t, status.Fallback{Status: status.StatusWorking, Confidence: 0.45}, p.Changed)

	c := status.NewClassifier(cfg.ClassifierOptions()...)
	res := c.ClassifyText("unrecognized text")
	assert.Equal(t, 0.1, res.Confidence)
}

func TestBuildLibrary(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	lib, err := cfg.BuildLibrary()
	require.NoError(t, err)
	_, ok := lib.Rule("open-question")
	assert.False(t, ok)
	_, ok = lib.Rule("deploy-confirm")
	assert.True(t, ok)

	res := status.NewClassifier(status.WithLibrary(lib)).ClassifyText("Promote build 42?")
	assert.Equal(t, "deploy-confirm", res.MatchedPattern)
}

func TestBuildLibrary_InvalidCustomRule(t *testing.T) {
	cfg := &Config{Rules: RulesSettings{Custom: []status.RawRule{
		{ID: "bad", Category: "waiting", Priority: 901, Confidence: 0.5, Patterns: []string{"re:(unclosed"}},
	}}}
	_, err := cfg.BuildLibrary()
	assert.ErrorIs(t, err, status.ErrNoPatterns)

	cfg = &Config{Rules: RulesSettings{Custom: []status.RawRule{
		{ID: "clash", Category: "waiting", Priority: 200, Confidence: 0.5, Patterns: []string{"x"}},
	}}}
	_, err = cfg.BuildLibrary()
	assert.ErrorIs(t, err, status.ErrInvalidLibrary, "priority collides with a built-in rule")
}

func TestLoad_CachedAndReload(t *testing.T) {
	path := writeConfig(t, "[classifier]\ntail_lines = 10\n")
	t.Setenv(PathEnv, path)
	ClearCache()
	t.Cleanup(ClearCache)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.GetClassifierSettings().TailLines)

	require.NoError(t, os.WriteFile(path, []byte("[classifier]\ntail_lines = 20\n"), 0o600))
	cached, err := Load()
	require.NoError(t, err)
	assert.Same(t, cfg, cached)

	fresh, err := Reload()
	require.NoError(t, err)
	assert.Equal(t, 20, fresh.GetClassifierSettings().TailLines)
}

func TestLoad_ParseErrorCachesEmpty(t *testing.T) {
	t.Setenv(PathEnv, writeConfig(t, "not = [valid"))
	ClearCache()
	t.Cleanup(ClearCache)

	cfg, err := Load()
	assert.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, &Config{}, cfg)

	again, err := Load()
	assert.NoError(t, err)
	assert.Same(t, cfg, again)
}

func TestLoggingConfig(t *testing.T) {
	cfg := &Config{Logs: LogSettings{Dir: "/tmp/pulse-logs", PprofAddr: "localhost:6060"}}

	lc := cfg.LoggingConfig(false)
	assert.Equal(t, "/tmp/pulse-logs", lc.LogDir)
	assert.Equal(t, "info", lc.Level)
	assert.Empty(t, lc.PprofAddr)
	assert.Equal(t, 1024*1024, lc.RingBufferSize)

	lc = cfg.LoggingConfig(true)
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "localhost:6060", lc.PprofAddr)
	assert.True(t, lc.Debug)
}
