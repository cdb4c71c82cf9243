package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := &app{stdin: strings.NewReader(stdin), stdout: &stdout, stderr: &stderr}
	code := a.run(context.Background(), args)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeFixtures(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestVersionAndHelp(t *testing.T) {
	r := runCLI(t, "", "version")
	assert.Equal(t, exitOK, r.code)
	assert.Equal(t, "agent-pulse v"+Version+"\n", r.stdout)

	r = runCLI(t, "", "help")
	assert.Equal(t, exitOK, r.code)
	assert.Contains(t, r.stdout, "fixtures, test")

	r = runCLI(t, "")
	assert.Equal(t, exitUsage, r.code)

	r = runCLI(t, "", "bogus")
	assert.Equal(t, exitUsage, r.code)
	assert.Contains(t, r.stderr, `unknown command "bogus"`)
}

func TestClassifyStdinJSON(t *testing.T) {
	r := runCLI(t, "Do you want to proceed?\n❯ 1. Yes\n  2. No\n", "classify", "--json", "-session", "s1")
	require.Equal(t, exitOK, r.code, r.stderr)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &got))
	assert.Equal(t, "waiting", got["status"])
	assert.Equal(t, "permission-prompt", got["matchedPattern"])
	assert.Equal(t, "s1", got["sessionId"])
}

func TestClassifyEmptyInputFallsBack(t *testing.T) {
	r := runCLI(t, "", "classify", "-json")
	require.Equal(t, exitOK, r.code)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &got))
	assert.Equal(t, "idle", got["status"])
	assert.Nil(t, got["matchedPattern"])
	assert.LessOrEqual(t, got["confidence"].(float64), 0.5)
}

func TestClassifyPrevHash(t *testing.T) {
	text := "plain log line\n"
	first := runCLI(t, text, "classify", "-json")
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(first.stdout), &res))
	hash := res["textHash"].(string)

	same := runCLI(t, text, "classify", "-json", "-prev-hash", hash)
	require.NoError(t, json.Unmarshal([]byte(same.stdout), &res))
	assert.Equal(t, "idle", res["status"])

	changed := runCLI(t, text, "classify", "-json", "-prev-hash", "0000")
	require.NoError(t, json.Unmarshal([]byte(changed.stdout), &res))
	assert.Equal(t, "working", res["status"])
}

func TestClassifyFileText(t *testing.T) {
	dir := writeFixtures(t, map[string]string{
		"cap.txt": "# Expected status: error\nError: file not found: config.yaml\n",
	})
	r := runCLI(t, "", "classify", filepath.Join(dir, "cap.txt"), "-strip-header")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "error")
	assert.Contains(t, r.stdout, "error-message")
}

func TestClassifyMissingFile(t *testing.T) {
	r := runCLI(t, "", "classify", "-f", filepath.Join(t.TempDir(), "nope.txt"))
	assert.Equal(t, exitFail, r.code)
	assert.Contains(t, r.stderr, "read capture")
}

func TestFixturesAllPass(t *testing.T) {
	dir := writeFixtures(t, map[string]string{
		"idle-prompt.txt":     "All set.\n\n❯ \n",
		"permission-bash.txt": "Bash command\n  rm -rf build\nDo you want to proceed?\n❯ 1. Yes\n  2. No\n",
		"working-spinner.txt": "⠙ Compiling crate…\n",
		"error-crash.txt":     "panic: runtime error: index out of range\n",
		"custom-approval.txt": "# Expected status: waiting\nApply these edits? (y/n)\n",
		"README.md":           "ignored",
	})
	r := runCLI(t, "", "fixtures", "-dir", dir)
	assert.Equal(t, exitOK, r.code, r.stdout+r.stderr)
	assert.Contains(t, r.stdout, "Passed 5/5 (100.0%)")
	assert.NotContains(t, r.stdout, "README")
}

func TestFixturesFailureExitsNonZero(t *testing.T) {
	dir := writeFixtures(t, map[string]string{
		"idle-prompt.txt":   "All set.\n\n❯ \n",
		"working-wrong.txt": "All set.\n\n❯ \n",
		"mystery.txt":       "no header here\n",
	})
	r := runCLI(t, "", "fixtures", "-dir", dir, "--json")
	assert.Equal(t, exitFail, r.code)

	var rep struct {
		Passed      int     `json:"passed"`
		Failed      int     `json:"failed"`
		Total       int     `json:"total"`
		SuccessRate float64 `json:"successRate"`
		OK          bool    `json:"ok"`
		Outcomes    []struct {
			Name     string `json:"name"`
			Expected string `json:"expected"`
			Passed   bool   `json:"passed"`
		} `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &rep))
	assert.Equal(t, 1, rep.Passed)
	assert.Equal(t, 2, rep.Failed)
	assert.Equal(t, 3, rep.Total)
	assert.False(t, rep.OK)
	assert.InDelta(t, 33.33, rep.SuccessRate, 0.01)
	for _, o := range rep.Outcomes {
		if o.Name == "mystery.txt" {
			assert.Equal(t, "unknown", o.Expected)
			assert.False(t, o.Passed)
		}
	}
}

func TestFixturesMissingDir(t *testing.T) {
	r := runCLI(t, "", "fixtures", "-dir", filepath.Join(t.TempDir(), "absent"))
	assert.Equal(t, exitFail, r.code)
	assert.Contains(t, r.stderr, "Error:")
}

func TestFixturesEmptySelection(t *testing.T) {
	dir := writeFixtures(t, map[string]string{"idle-prompt.txt": "❯ \n"})
	r := runCLI(t, "", "fixtures", "-dir", dir, "-run", "zzzzqqq")
	assert.Equal(t, exitFail, r.code)
	assert.Contains(t, r.stderr, "no fixtures found")
}

func TestFixturesRepositorySuite(t *testing.T) {
	r := runCLI(t, "", "fixtures", "-dir", filepath.Join("..", "..", "fixtures"), "-v")
	assert.Equal(t, exitOK, r.code, r.stdout)
	assert.Contains(t, r.stdout, "(100.0%)")
}

func TestPatterns(t *testing.T) {
	r := runCLI(t, "", "patterns", "-json")
	require.Equal(t, exitOK, r.code, r.stderr)

	var rules []ruleJSON
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &rules))
	require.NotEmpty(t, rules)
	assert.Equal(t, "error", string(rules[0].Category))
	assert.Equal(t, "idle", string(rules[len(rules)-1].Category))
	for _, rule := range rules {
		assert.NotEmpty(t, rule.Matcher, rule.ID)
	}

	r = runCLI(t, "", "patterns", "-category", "waiting")
	require.Equal(t, exitOK, r.code)
	assert.Contains(t, r.stdout, "permission-dialog")
	assert.NotContains(t, r.stdout, "shell-prompt")

	r = runCLI(t, "", "patterns", "-category", "busy")
	assert.Equal(t, exitUsage, r.code)
}

func TestRecordWritesFixture(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	out := filepath.Join(t.TempDir(), "nested", "capture.txt")
	r := runCLI(t, "", "record", "-o", out, "-expect", "waiting", "-quiet", "--",
		"sh", "-c", "printf 'Apply changes? (y/n) '")
	require.Equal(t, exitOK, r.code, r.stderr)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Expected status: waiting\n"))
	assert.Contains(t, string(data), "Apply changes? (y/n)")

	r = runCLI(t, "", "record", "-o", out, "-quiet", "--", "sh", "-c", "true")
	assert.Equal(t, exitFail, r.code)
	assert.Contains(t, r.stderr, "already exists")
}

func TestRecordUsage(t *testing.T) {
	r := runCLI(t, "", "record", "-o", "x.txt")
	assert.Equal(t, exitUsage, r.code)

	r = runCLI(t, "", "record", "-o", filepath.Join(t.TempDir(), "x.txt"), "-expect", "busy", "--", "true")
	assert.Equal(t, exitUsage, r.code)
	assert.Contains(t, r.stderr, `unknown status "busy"`)
}

func TestFixturesProgressBar(t *testing.T) {
	dir := writeFixtures(t, map[string]string{
		"idle-a.txt": "All set.\n\n❯ \n",
		"idle-b.txt": "Task completed\n\n❯ \n",
	})
	r := runCLI(t, "", "fixtures", "-dir", dir, "-progress")
	assert.Equal(t, exitOK, r.code, r.stdout)
	assert.Contains(t, r.stderr, "Classifying fixtures")
	assert.Contains(t, r.stderr, "2/2")
}
