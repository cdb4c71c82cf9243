// Package monitor polls terminal panes, classifies each capture and reports
// status changes once they have held for enough consecutive polls.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tchow-twistedxcom/agent-pulse/internal/logging"
	"github.com/tchow-twistedxcom/agent-pulse/internal/status"
	"github.com/tchow-twistedxcom/agent-pulse/internal/tmux"
)

var monitorLog = logging.ForComponent(logging.CompMonitor)

// ErrNoTargets is returned when there is nothing to watch.
var ErrNoTargets = errors.New("no targets to monitor")

// Capturer returns the raw contents of a pane.
type Capturer interface {
	Capture(ctx context.Context, target string) (string, error)
}

// DiscoverFunc lists the targets to poll when none are configured.
type DiscoverFunc func(ctx context.Context) ([]string, error)

// Transition is a confirmed status change on one target. From is empty for
// the first status observed on a target.
type Transition struct {
	Target string        `json:"target"`
	At     time.Time     `json:"at"`
	From   status.Status `json:"from"`
	To     status.Status `json:"to"`
	Result status.Result `json:"result"`
}

// Options configures a Monitor.
type Options struct {
	Targets           []string
	Discover          DiscoverFunc
	Interval          time.Duration
	ConfirmPolls      int
	CapturesPerSecond float64
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.ConfirmPolls <= 0 {
		o.ConfirmPolls = 1
	}
	if o.CapturesPerSecond <= 0 {
		o.CapturesPerSecond = 20
	}
	return o
}

type paneState struct {
	last      *status.Result
	confirmed status.Status
	candidate status.Status
	streak    int
}

// Monitor polls a set of targets. Poll may be called directly; Run drives it
// on a ticker.
type Monitor struct {
	capturer   Capturer
	classifier *status.Classifier
	opts       Options
	limiter    *rate.Limiter

	mu    sync.Mutex
	panes map[string]*paneState

	transitions chan Transition
}

// New builds a Monitor. A nil classifier uses the default library.
func New(c Capturer, cl *status.Classifier, opts Options) (*Monitor, error) {
	if c == nil {
		return nil, errors.New("monitor: capturer is required")
	}
	if len(opts.Targets) == 0 && opts.Discover == nil {
		return nil, ErrNoTargets
	}
	if cl == nil {
		cl = status.NewClassifier()
	}
	opts = opts.withDefaults()
	burst := int(opts.CapturesPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Monitor{
		capturer:    c,
		classifier:  cl,
		opts:        opts,
		limiter:     rate.NewLimiter(rate.Limit(opts.CapturesPerSecond), burst),
		panes:       make(map[string]*paneState),
		transitions: make(chan Transition, 64),
	}, nil
}

// Transitions delivers confirmed changes. It is closed when Run returns.
func (m *Monitor) Transitions() <-chan Transition {
	return m.transitions
}

// Run polls every Interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	defer close(m.transitions)

	monitorLog.Info("monitor_started",
		slog.Int("targets", len(m.opts.Targets)),
		slog.Duration("interval", m.opts.Interval),
		slog.Int("confirm_polls", m.opts.ConfirmPolls))

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		if err := m.Poll(ctx); err != nil && ctx.Err() == nil {
			monitorLog.Warn("poll_failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			monitorLog.Info("monitor_stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Monitor) targets(ctx context.Context) ([]string, error) {
	if len(m.opts.Targets) > 0 {
		return m.opts.Targets, nil
	}
	found, err := m.opts.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover targets: %w", err)
	}
	m.forgetMissing(found)
	return found, nil
}

// forgetMissing drops state for targets that no longer exist.
func (m *Monitor) forgetMissing(current []string) {
	keep := make(map[string]bool, len(current))
	for _, t := range current {
		keep[t] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for t := range m.panes {
		if !keep[t] {
			delete(m.panes, t)
			monitorLog.Debug("target_gone", slog.String("target", t))
		}
	}
}

// Poll captures and classifies every target once.
func (m *Monitor) Poll(ctx context.Context) error {
	targets, err := m.targets(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		g.Go(func() error {
			return m.pollOne(gctx, target)
		})
	}
	return g.Wait()
}

func (m *Monitor) pollOne(ctx context.Context, target string) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}

	raw, err := m.capturer.Capture(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// keep the previous state for this target
		if errors.Is(err, tmux.ErrCaptureTimeout) {
			logging.Aggregate(logging.CompMonitor, "capture_timeout", slog.String("target", target))
		} else {
			monitorLog.Warn("capture_failed",
				slog.String("target", target),
				slog.String("error", err.Error()))
		}
		return nil
	}

	snap := status.Snapshot{SessionID: target, Content: raw, CapturedAt: time.Now()}
	prev := m.lastResult(target)
	res := m.classifier.Classify(snap, prev)

	if tr, ok := m.observe(target, res, snap.CapturedAt); ok {
		select {
		case m.transitions <- tr:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Monitor) lastResult(target string) *status.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.panes[target]; ok && p.last != nil {
		r := *p.last
		return &r
	}
	return nil
}

// observe records res and reports whether it completes a transition.
func (m *Monitor) observe(target string, res status.Result, at time.Time) (Transition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.panes[target]
	if !ok {
		p = &paneState{}
		m.panes[target] = p
	}
	p.last = &res

	if p.confirmed == "" {
		p.confirmed = res.Status
		p.candidate = ""
		p.streak = 0
		return Transition{Target: target, At: at, To: res.Status, Result: res}, true
	}

	if res.Status == p.confirmed {
		p.candidate = ""
		p.streak = 0
		return Transition{}, false
	}

	if res.Status != p.candidate {
		p.candidate = res.Status
		p.streak = 0
	}
	p.streak++
	if p.streak < m.opts.ConfirmPolls {
		monitorLog.Debug("transition_pending",
			slog.String("target", target),
			slog.String("candidate", string(res.Status)),
			slog.Int("streak", p.streak))
		return Transition{}, false
	}

	tr := Transition{Target: target, At: at, From: p.confirmed, To: res.Status, Result: res}
	p.confirmed = res.Status
	p.candidate = ""
	p.streak = 0
	monitorLog.Info("status_transition",
		slog.String("target", target),
		slog.String("from", string(tr.From)),
		slog.String("to", string(tr.To)),
		slog.String("pattern", res.MatchedPattern))
	return tr, true
}

// Current returns the confirmed status of target.
func (m *Monitor) Current(target string) (status.Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.panes[target]
	if !ok || p.confirmed == "" {
		return "", false
	}
	return p.confirmed, true
}

// Targets returns the targets with a confirmed status, sorted.
func (m *Monitor) Targets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.panes))
	for t, p := range m.panes {
		if p.confirmed != "" {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
