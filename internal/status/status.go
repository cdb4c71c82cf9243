// Package status classifies the state of an interactive CLI agent session
// (idle, working, waiting for the user, or failed) from a raw snapshot of its
// terminal output.
//
// Classification is a pure function of the snapshot text, the active rule
// library and an optional previous result. Rule libraries are immutable and
// are swapped as a whole through a Store, so any number of goroutines may
// classify concurrently while rules are being reloaded.
package status

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the classified state of a session.
type Status string

const (
	StatusIdle    Status = "idle"    // At a prompt, nothing running
	StatusWorking Status = "working" // Actively producing output
	StatusWaiting Status = "waiting" // Blocked on the user (permission, question, plan, feedback)
	StatusError   Status = "error"   // Crashed or hit an API/runtime error
)

// Categories lists every status in evaluation order. Actionable states come
// first so a crash or a blocking prompt beats ambient activity in the same text.
var Categories = []Status{StatusError, StatusWaiting, StatusWorking, StatusIdle}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	return s.rank() >= 0
}

// rank is the position of s in Categories, or -1.
func (s Status) rank() int {
	for i, c := range Categories {
		if c == s {
			return i
		}
	}
	return -1
}

func (s Status) String() string {
	return string(s)
}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(name string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", false
	}
	return s, true
}

// Snapshot is one capture of a session's terminal. Content may contain
// escape sequences and arbitrary bytes.
type Snapshot struct {
	SessionID  string
	Content    string
	CapturedAt time.Time
}

// Result is the output of one classification.
type Result struct {
	Status     Status
	Confidence float64

	// MatchedPattern is the ID of the rule that produced the result, or ""
	// when no rule matched and the fallback policy decided.
	MatchedPattern string

	// SessionID is copied from the snapshot.
	SessionID string

	// TextLen is the byte length of the normalized text.
	TextLen int

	// TextHash fingerprints the normalized text with volatile counters
	// (spinner frames, elapsed counters, clock times) removed. Callers pass the result
	// back as a hint so unchanged screens can be told apart from changed ones.
	TextHash string
}

// Matched reports whether a rule produced the result.
func (r Result) Matched() bool {
	return r.MatchedPattern != ""
}

type resultJSON struct {
	Status         Status  `json:"status"`
	Confidence     float64 `json:"confidence"`
	MatchedPattern *string `json:"matchedPattern"`
	SessionID      string  `json:"sessionId,omitempty"`
	TextLen        int     `json:"textLen"`
	TextHash       string  `json:"textHash"`
}

// MarshalJSON renders MatchedPattern as null on the fallback path.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		Status:     r.Status,
		Confidence: r.Confidence,
		SessionID:  r.SessionID,
		TextLen:    r.TextLen,
		TextHash:   r.TextHash,
	}
	if r.MatchedPattern != "" {
		p := r.MatchedPattern
		out.MatchedPattern = &p
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the format produced by MarshalJSON, so a stored result
// can be fed back as the previous-result hint.
func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Result{
		Status:     in.Status,
		Confidence: in.Confidence,
		SessionID:  in.SessionID,
		TextLen:    in.TextLen,
		TextHash:   in.TextHash,
	}
	if in.MatchedPattern != nil {
		r.MatchedPattern = *in.MatchedPattern
	}
	return nil
}
