package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorRecordAndFlush(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "agg.log")
	f, err := os.Create(logPath)
	require.NoError(t, err)
	defer f.Close()

	agg := NewAggregator(slog.New(slog.NewJSONHandler(f, nil)), 1)
	agg.Start()

	agg.Record(CompStatus, "classified", slog.String("status", "working"))
	agg.Record(CompStatus, "classified", slog.String("status", "idle"))
	agg.Record(CompStatus, "classified", slog.String("status", "waiting"))
	agg.Record(CompMonitor, "poll")

	time.Sleep(1500 * time.Millisecond)
	agg.Stop()
	_ = f.Sync()

	records := readRecords(t, logPath)
	require.GreaterOrEqual(t, len(records), 2)

	found := false
	for _, r := range records {
		if r["event"] == "classified" && r["msg"] == "event_summary" {
			assert.Equal(t, float64(3), r["count"])
			assert.Equal(t, "waiting", r["status"], "last fields win")
			found = true
		}
	}
	assert.True(t, found, "classified summary not found")
}

func TestAggregatorPending(t *testing.T) {
	agg := NewAggregator(nil, 60)
	agg.Record(CompFixture, "evaluated")
	agg.Record(CompFixture, "evaluated")
	assert.Equal(t, int64(2), agg.Pending(CompFixture, "evaluated"))
	assert.Equal(t, int64(0), agg.Pending(CompFixture, "other"))

	agg.flush()
	assert.Equal(t, int64(0), agg.Pending(CompFixture, "evaluated"))
}

func TestAggregatorNilLogger(t *testing.T) {
	agg := NewAggregator(nil, 1)
	agg.Start()
	agg.Record(CompStatus, "test_event")
	agg.Stop()
	agg.Stop()
}

func TestAggregatorStopFlushes(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "agg.log")
	f, err := os.Create(logPath)
	require.NoError(t, err)
	defer f.Close()

	agg := NewAggregator(slog.New(slog.NewJSONHandler(f, nil)), 60)
	agg.Start()
	agg.Record(CompStatus, "state_change")
	agg.Stop()
	_ = f.Sync()

	rec := findMsg(readRecords(t, logPath), "event_summary")
	require.NotNil(t, rec, "expected final flush on Stop")
	assert.Equal(t, "state_change", rec["event"])
}

func TestAggregatorStatusSummary(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "agg.log")
	f, err := os.Create(logPath)
	require.NoError(t, err)
	defer f.Close()

	agg := NewAggregator(slog.New(slog.NewJSONHandler(f, nil)), 60)
	agg.RecordStatus("main:0.1", "working")
	agg.RecordStatus("main:0.1", "working")
	agg.RecordStatus("main:0.1", "waiting")
	agg.RecordStatus("", "idle")

	assert.Equal(t, int64(2), agg.PendingStatus("main:0.1", "working"))
	assert.Equal(t, int64(1), agg.PendingStatus("", "idle"))

	agg.flush()
	_ = f.Sync()
	assert.Zero(t, agg.PendingStatus("main:0.1", "working"))

	bySession := make(map[string]map[string]any)
	for _, r := range readRecords(t, logPath) {
		if r["msg"] == "status_summary" {
			bySession[r["session"].(string)] = r
		}
	}
	require.Len(t, bySession, 2)

	pane := bySession["main:0.1"]
	assert.Equal(t, float64(3), pane["total"])
	assert.Equal(t, float64(2), pane["working"])
	assert.Equal(t, float64(1), pane["waiting"])
	assert.Equal(t, float64(0), pane["error"])
	assert.Equal(t, "working", pane["dominant"])
	assert.Equal(t, "waiting", pane["last"])
	assert.Equal(t, CompStatus, pane["component"])

	adhoc := bySession["-"]
	assert.Equal(t, float64(1), adhoc["idle"])
	assert.Equal(t, "idle", adhoc["dominant"])
}
