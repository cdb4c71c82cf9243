package status

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, c := range Categories {
		got, ok := ParseStatus(string(c))
		assert.True(t, ok)
		assert.Equal(t, c, got)
	}
	got, ok := ParseStatus("  WAITING ")
	assert.True(t, ok)
	assert.Equal(t, StatusWaiting, got)

	_, ok = ParseStatus("unknown")
	assert.False(t, ok)
	assert.False(t, Status("").Valid())
}

func TestResultJSON(t *testing.T) {
	matched := Result{
		Status:         StatusWaiting,
		Confidence:     0.95,
		MatchedPattern: "permission-prompt",
		SessionID:      "s1",
		TextLen:        12,
		TextHash:       "abc",
	}
	raw, err := json.Marshal(matched)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"waiting","confidence":0.95,"matchedPattern":"permission-prompt","sessionId":"s1","textLen":12,"textHash":"abc"}`, string(raw))

	var back Result
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, matched, back)

	fallback := Result{Status: StatusIdle, Confidence: 0.3, TextHash: "h"}
	raw, err = json.Marshal(fallback)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"idle","confidence":0.3,"matchedPattern":null,"textLen":0,"textHash":"h"}`, string(raw))
}
