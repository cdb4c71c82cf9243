package main

import (
	"os"
	"path/filepath"
	"testing"
)

// TestMain points the CLI at an empty config so a developer's
// ~/.agent-pulse/config.toml never changes test results.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "agent-pulse-cli-test")
	if err != nil {
		panic(err)
	}
	os.Setenv("AGENTPULSE_CONFIG", filepath.Join(dir, "config.toml"))
	os.Setenv("AGENTPULSE_COLOR", "never")
	os.Unsetenv(DebugEnv)

	code := m.Run()

	_ = os.RemoveAll(dir)
	os.Exit(code)
}
