package status

import (
	"log/slog"
	"math"

	"github.com/tchow-twistedxcom/agent-pulse/internal/logging"
)

var statusLog = logging.ForComponent(logging.CompStatus)

// MaxFallbackConfidence caps the confidence of any result produced without a
// matching rule.
const MaxFallbackConfidence = 0.5

// Fallback is the result used when no rule matches.
type Fallback struct {
	Status     Status
	Confidence float64
}

// FallbackPolicy picks the fallback from the caller's previous result.
type FallbackPolicy struct {
	// NoHint applies when no previous result (or one without a text hash)
	// is supplied.
	NoHint Fallback
	// Unchanged applies when the text fingerprint equals the previous one.
	Unchanged Fallback
	// Changed applies when the text differs from the previous capture.
	Changed Fallback
}

// DefaultFallbackPolicy treats unrecognized but moving output as low
// confidence work and everything else as low confidence idle.
func DefaultFallbackPolicy() FallbackPolicy {
	return FallbackPolicy{
		NoHint:    Fallback{Status: StatusIdle, Confidence: 0.3},
		Unchanged: Fallback{Status: StatusIdle, Confidence: 0.3},
		Changed:   Fallback{Status: StatusWorking, Confidence: 0.4},
	}
}

func (f Fallback) sanitize(def Fallback) Fallback {
	if !f.Status.Valid() {
		f.Status = def.Status
	}
	f.Confidence = clamp(f.Confidence, 0, MaxFallbackConfidence)
	return f
}

func (p FallbackPolicy) sanitize() FallbackPolicy {
	def := DefaultFallbackPolicy()
	return FallbackPolicy{
		NoHint:    p.NoHint.sanitize(def.NoHint),
		Unchanged: p.Unchanged.sanitize(def.Unchanged),
		Changed:   p.Changed.sanitize(def.Changed),
	}
}

// Classifier applies a rule library to terminal snapshots. It is safe for
// concurrent use; the only state it reads is the store's current library.
type Classifier struct {
	store      *Store
	normalizer Normalizer
	fallback   FallbackPolicy
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithStore classifies against whatever library s currently serves.
func WithStore(s *Store) Option {
	return func(c *Classifier) {
		if s != nil {
			c.store = s
		}
	}
}

// WithLibrary pins the classifier to lib.
func WithLibrary(lib *Library) Option {
	return func(c *Classifier) {
		if s, err := NewStore(lib); err == nil {
			c.store = s
		}
	}
}

// WithNormalizer overrides the normalizer, usually to change the tail window.
func WithNormalizer(n Normalizer) Option {
	return func(c *Classifier) { c.normalizer = n }
}

// WithFallback overrides the no-match policy. Invalid statuses fall back to
// the defaults and confidences are capped at MaxFallbackConfidence.
func WithFallback(p FallbackPolicy) Option {
	return func(c *Classifier) { c.fallback = p.sanitize() }
}

// NewClassifier returns a classifier backed by DefaultStore unless an option
// says otherwise.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{fallback: DefaultFallbackPolicy()}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = DefaultStore()
	}
	return c
}

// Library returns the library the next classification will use.
func (c *Classifier) Library() *Library {
	return c.store.Load()
}

// Normalizer returns the classifier's normalizer.
func (c *Classifier) Normalizer() Normalizer {
	return c.normalizer
}

// Classify normalizes snap and evaluates it. prev is an optional earlier
// result for the same session, used only to pick the fallback when no rule
// matches. Classify never panics and is deterministic in (snap.Content, prev).
func (c *Classifier) Classify(snap Snapshot, prev *Result) Result {
	text := c.normalize(snap.Content)
	res := Result{
		SessionID: snap.SessionID,
		TextLen:   len(text),
		TextHash:  fingerprint(text),
	}

	lib := c.store.Load()
	if rule, conf, ok := evaluate(lib, text); ok {
		res.Status = rule.Category
		res.Confidence = conf
		res.MatchedPattern = rule.ID
	} else {
		fb := c.fallbackFor(res.TextHash, prev)
		res.Status = fb.Status
		res.Confidence = fb.Confidence
	}

	statusLog.Debug("classified",
		slog.String("session", snap.SessionID),
		slog.String("status", string(res.Status)),
		slog.Float64("confidence", res.Confidence),
		slog.String("pattern", res.MatchedPattern),
		slog.Int("text_len", res.TextLen))
	logging.AggregateStatus(snap.SessionID, string(res.Status))
	return res
}

// normalize treats a normalizer panic as an empty screen.
func (c *Classifier) normalize(raw string) (text string) {
	defer func() {
		if p := recover(); p != nil {
			statusLog.Warn("normalize_panic",
				slog.Int("raw_len", len(raw)),
				slog.Any("panic", p))
			text = ""
		}
	}()
	return c.normalizer.Normalize(raw)
}

// ClassifyText classifies raw text with no session and no hint.
func (c *Classifier) ClassifyText(raw string) Result {
	return c.Classify(Snapshot{Content: raw}, nil)
}

// Classify runs the default classifier.
func Classify(snap Snapshot, prev *Result) Result {
	return NewClassifier().Classify(snap, prev)
}

func (c *Classifier) fallbackFor(hash string, prev *Result) Fallback {
	switch {
	case prev == nil || prev.TextHash == "":
		return c.fallback.NoHint
	case prev.TextHash == hash:
		return c.fallback.Unchanged
	default:
		return c.fallback.Changed
	}
}

// evaluate walks categories in precedence order. The first category with any
// hit decides the status; inside it the longest span wins and priority order
// breaks ties. Spans are weighted by match strength, so a loose heuristic
// needs proportionally more matched text to beat an exact signal.
func evaluate(lib *Library, text string) (Rule, float64, bool) {
	if lib == nil || text == "" {
		return Rule{}, 0, false
	}
	for _, cat := range Categories {
		var (
			best     Rule
			bestHit  Match
			bestSpan float64
			found    bool
		)
		for _, r := range lib.byCategory[cat] {
			hit, ok := safeMatch(r, text)
			if !ok {
				continue
			}
			if span := weightedSpan(hit); !found || span > bestSpan {
				best, bestHit, bestSpan, found = r, hit, span, true
			}
		}
		if found {
			return best, confidence(best.Confidence, bestHit.Strength), true
		}
	}
	return Rule{}, 0, false
}

// safeMatch runs one matcher, treating a panic as no match so a broken
// custom rule cannot take classification down.
func safeMatch(r Rule, text string) (hit Match, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			statusLog.Warn("matcher_panic",
				slog.String("rule", r.ID),
				slog.Any("panic", p))
			hit, ok = Match{}, false
		}
	}()
	return r.Matcher.Match(text)
}

func weightedSpan(m Match) float64 {
	return float64(m.Span) * clamp(m.Strength, 0, 1)
}

func confidence(base, strength float64) float64 {
	return math.Round(clamp(base*clamp(strength, 0, 1), 0, 1)*1000) / 1000
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}
