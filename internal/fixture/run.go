package fixture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tchow-twistedxcom/agent-pulse/internal/logging"
	"github.com/tchow-twistedxcom/agent-pulse/internal/status"
)

// ErrUnresolvable marks a fixture with no usable expected status.
var ErrUnresolvable = errors.New("expected status unresolvable")

// Outcome is the verdict for one fixture.
type Outcome struct {
	Name     string        `json:"name"`
	Expected string        `json:"expected"`
	Source   Source        `json:"source"`
	Result   status.Result `json:"result"`
	Passed   bool          `json:"passed"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"durationNs"`
}

// Report aggregates a run.
type Report struct {
	Outcomes []Outcome    `json:"outcomes"`
	Passed   int          `json:"passed"`
	Failed   int          `json:"failed"`
	Duration time.Duration `json:"durationNs"`
}

// Total is the number of fixtures evaluated.
func (r Report) Total() int { return r.Passed + r.Failed }

// SuccessRate is the pass percentage, 0 for an empty run.
func (r Report) SuccessRate() float64 {
	if r.Total() == 0 {
		return 0
	}
	return float64(r.Passed) / float64(r.Total()) * 100
}

// OK reports whether every fixture passed.
func (r Report) OK() bool { return r.Failed == 0 }

// Failures returns the failed outcomes in run order.
func (r Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.Passed {
			out = append(out, o)
		}
	}
	return out
}

// RunOptions tunes a run.
type RunOptions struct {
	// Parallel bounds concurrent evaluations. <= 0 means GOMAXPROCS.
	Parallel int

	// OnOutcome, if set, is called as each fixture finishes. Calls may come
	// from several goroutines at once.
	OnOutcome func(Outcome)
}

// Run classifies every fixture and compares against its expectation. Per
// fixture problems are recorded as failures and never stop the run; only a
// cancelled ctx ends it early, in which case unfinished fixtures are
// reported as failed and ctx's error is returned.
func Run(ctx context.Context, fixtures []Fixture, c *status.Classifier, opts RunOptions) (Report, error) {
	limit := opts.Parallel
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	start := time.Now()
	outcomes := make([]Outcome, len(fixtures))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, f := range fixtures {
		outcomes[i] = Outcome{Name: f.Name, Expected: f.Expect.Status, Source: f.Expect.Source, Err: "not run"}
	}
	for i, f := range fixtures {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				outcomes[i].Err = err.Error()
				return nil
			}
			outcomes[i] = evaluate(f, c)
			if opts.OnOutcome != nil {
				opts.OnOutcome(outcomes[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Outcomes: outcomes, Duration: time.Since(start)}
	for _, o := range outcomes {
		if o.Passed {
			rep.Passed++
		} else {
			rep.Failed++
		}
	}

	fixtureLog.Info("fixture_run_complete",
		slog.Int("passed", rep.Passed),
		slog.Int("failed", rep.Failed),
		slog.Float64("success_rate", rep.SuccessRate()),
		slog.Duration("duration", rep.Duration))
	return rep, ctx.Err()
}

// evaluate checks one fixture. It recovers so a single pathological capture
// cannot abort the run.
func evaluate(f Fixture, c *status.Classifier) (out Outcome) {
	start := time.Now()
	out = Outcome{Name: f.Name, Expected: f.Expect.Status, Source: f.Expect.Source}
	defer func() {
		if p := recover(); p != nil {
			out.Passed = false
			out.Err = fmt.Sprintf("panic: %v", p)
		}
		out.Duration = time.Since(start)
		if !out.Passed {
			fixtureLog.Debug("fixture_failed",
				slog.String("fixture", f.Name),
				slog.String("expected", out.Expected),
				slog.String("got", string(out.Result.Status)),
				slog.String("error", out.Err))
		}
		logging.Aggregate(logging.CompFixture, "fixture_evaluated")
	}()

	if f.LoadErr != nil {
		out.Err = f.LoadErr.Error()
		return out
	}
	out.Result = c.Classify(status.Snapshot{SessionID: f.Name, Content: StripHeader(f.Content)}, nil)
	if !f.Expect.Resolved() {
		out.Err = ErrUnresolvable.Error()
		return out
	}
	out.Passed = string(out.Result.Status) == f.Expect.Status
	return out
}
