package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict(t *testing.T) {
	verdict, err := ParseVerdict(`{"label":"Q","confidence":0.82,"justification":"疑問文"}`)

	require.NoError(t, err)
	assert.Equal(t, "Q", verdict.Label)
	assert.InDelta(t, 0.82, verdict.Confidence, 1e-9)
	assert.Equal(t, "疑問文", verdict.Justification)
}

func TestParseVerdictStripsCodeFence(t *testing.T) {
	raw := "```json\n{\"label\":\"em\",\"confidence\":0.7,\"justification\":\"\"}\n```"

	verdict, err := ParseVerdict(raw)

	require.NoError(t, err)
	assert.Equal(t, "EM", verdict.Label)
}

func TestParseVerdictRejectsUnknownLabel(t *testing.T) {
	_, err := ParseVerdict(`{"label":"SPAM","confidence":0.9}`)

	assert.Error(t, err)
}

func TestParseVerdictRejectsOutOfRangeConfidence(t *testing.T) {
	_, err := ParseVerdict(`{"label":"Q","confidence":1.4}`)

	assert.Error(t, err)
}

func TestParseVerdictRejectsMalformedJSON(t *testing.T) {
	_, err := ParseVerdict("the label is Q")

	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("それな")

	assert.Contains(t, prompt, "それな")
}
