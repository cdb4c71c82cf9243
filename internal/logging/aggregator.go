package logging

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

type aggregateKey struct {
	Component string
	Event     string
}

type aggregateEntry struct {
	Count  int64
	Fields []slog.Attr
}

// statusTally counts classifications per status for one session.
type statusTally struct {
	counts map[string]int64
	total  int64
	last   string
}

// summaryStatuses fixes the attribute order of a status_summary record.
var summaryStatuses = []string{"error", "waiting", "working", "idle"}

// Aggregator batches high-frequency events and emits an "event_summary"
// record per key every interval. Classifications are tallied separately per
// session and summarized as "status_summary" records.
type Aggregator struct {
	logger   *slog.Logger
	interval time.Duration

	mu       sync.Mutex
	entries  map[aggregateKey]*aggregateEntry
	sessions map[string]*statusTally

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAggregator creates an aggregator that flushes every intervalSecs seconds.
// If logger is nil, recorded events are dropped on flush.
func NewAggregator(logger *slog.Logger, intervalSecs int) *Aggregator {
	if intervalSecs <= 0 {
		intervalSecs = 30
	}
	return &Aggregator{
		logger:   logger,
		interval: time.Duration(intervalSecs) * time.Second,
		entries:  make(map[aggregateKey]*aggregateEntry),
		sessions: make(map[string]*statusTally),
		done:     make(chan struct{}),
	}
}

// Start begins the background flush goroutine.
func (a *Aggregator) Start() {
	a.wg.Add(1)
	go a.flushLoop()
}

// Stop flushes remaining entries and stops the background goroutine.
// Safe to call more than once.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() {
		close(a.done)
		a.wg.Wait()
		a.flush()
	})
}

// Record increments the counter for an event. The most recent fields win.
func (a *Aggregator) Record(component, event string, fields ...slog.Attr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := aggregateKey{Component: component, Event: event}
	entry, ok := a.entries[key]
	if !ok {
		entry = &aggregateEntry{}
		a.entries[key] = entry
	}
	entry.Count++
	if len(fields) > 0 {
		entry.Fields = fields
	}
}

// RecordStatus counts one classification of session. Each flush emits one
// "status_summary" record per session with a count per status.
func (a *Aggregator) RecordStatus(session, status string) {
	if session == "" {
		session = "-"
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	t, ok := a.sessions[session]
	if !ok {
		t = &statusTally{counts: make(map[string]int64)}
		a.sessions[session] = t
	}
	t.counts[status]++
	t.total++
	t.last = status
}

// PendingStatus returns the unflushed count of status for session.
func (a *Aggregator) PendingStatus(session, status string) int64 {
	if session == "" {
		session = "-"
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.sessions[session]; ok {
		return t.counts[status]
	}
	return 0
}

// Pending returns the unflushed count for one event.
func (a *Aggregator) Pending(component, event string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if entry, ok := a.entries[aggregateKey{Component: component, Event: event}]; ok {
		return entry.Count
	}
	return 0
}

func (a *Aggregator) flushLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.flush()
		case <-a.done:
			return
		}
	}
}

func (a *Aggregator) flush() {
	a.mu.Lock()
	if len(a.entries) == 0 && len(a.sessions) == 0 {
		a.mu.Unlock()
		return
	}
	entries := a.entries
	sessions := a.sessions
	a.entries = make(map[aggregateKey]*aggregateEntry)
	a.sessions = make(map[string]*statusTally)
	a.mu.Unlock()

	if a.logger == nil {
		return
	}

	names := make([]string, 0, len(sessions))
	for name := range sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		a.logger.Info("status_summary", sessions[name].attrs(name, a.interval)...)
	}

	for key, entry := range entries {
		attrs := []any{
			slog.String("component", key.Component),
			slog.String("event", key.Event),
			slog.Int64("count", entry.Count),
			slog.Int("window_seconds", int(a.interval.Seconds())),
		}
		for _, f := range entry.Fields {
			attrs = append(attrs, f)
		}
		a.logger.Info("event_summary", attrs...)
	}
}

func (t *statusTally) attrs(session string, window time.Duration) []any {
	attrs := []any{
		slog.String("component", CompStatus),
		slog.String("session", session),
		slog.Int64("total", t.total),
	}
	dominant, most := "", int64(0)
	for _, st := range summaryStatuses {
		n := t.counts[st]
		attrs = append(attrs, slog.Int64(st, n))
		if n > most {
			dominant, most = st, n
		}
	}
	return append(attrs,
		slog.String("dominant", dominant),
		slog.String("last", t.last),
		slog.Int("window_seconds", int(window.Seconds())))
}
