package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/models"
)

type stubTriggerSource struct {
	triggers []*models.Trigger
	err      error
}

func (s *stubTriggerSource) ListByScope(ctx context.Context, serverID string) ([]*models.Trigger, error) {
	return s.triggers, s.err
}

func TestTriggerMatchExact(t *testing.T) {
	source := &stubTriggerSource{triggers: []*models.Trigger{
		{PhraseNorm: "それな", PhraseRaw: "それな", Label: models.LabelAgree, HitCount: 2, Weight: 1.2},
	}}
	matcher := NewTriggerMatcher(source, zap.NewNop())

	match := matcher.Match(context.Background(), "srv", "それな")

	require.NotNil(t, match)
	assert.True(t, match.Exact)
	assert.InDelta(t, ExactMatchConfidence, match.Confidence, 1e-9)
	assert.Equal(t, models.LabelAgree, match.Trigger.Label)
}

func TestTriggerMatchNormalizesBeforeComparing(t *testing.T) {
	source := &stubTriggerSource{triggers: []*models.Trigger{
		{PhraseNorm: "sorena", PhraseRaw: "SORENA", Label: models.LabelAgree, HitCount: 1, Weight: 1.0},
	}}
	matcher := NewTriggerMatcher(source, zap.NewNop())

	// Full-width upper case folds to the stored normalized phrase.
	match := matcher.Match(context.Background(), "srv", "ＳＯＲＥＮＡ")

	require.NotNil(t, match)
	assert.True(t, match.Exact)
}

func TestTriggerMatchPartialConfidenceGrowsWithHits(t *testing.T) {
	low := &stubTriggerSource{triggers: []*models.Trigger{
		{PhraseNorm: "それな", PhraseRaw: "それな", Label: models.LabelAgree, HitCount: 1, Weight: 1.0},
	}}
	high := &stubTriggerSource{triggers: []*models.Trigger{
		{PhraseNorm: "それな", PhraseRaw: "それな", Label: models.LabelAgree, HitCount: 6, Weight: 1.0},
	}}

	text := "いやほんと、それな と思った"
	matchLow := NewTriggerMatcher(low, zap.NewNop()).Match(context.Background(), "srv", text)
	matchHigh := NewTriggerMatcher(high, zap.NewNop()).Match(context.Background(), "srv", text)

	require.NotNil(t, matchLow)
	require.NotNil(t, matchHigh)
	assert.False(t, matchLow.Exact)
	assert.Greater(t, matchHigh.Confidence, matchLow.Confidence)
	assert.LessOrEqual(t, matchHigh.Confidence, 0.93)
}

func TestTriggerMatchPatternWholeMatchIsExact(t *testing.T) {
	pattern := `^おは(よう)?$`
	source := &stubTriggerSource{triggers: []*models.Trigger{
		{PhraseNorm: "おはよう", PhraseRaw: "おはよう", Pattern: &pattern, Label: models.LabelChat, HitCount: 1, Weight: 1.0},
	}}
	matcher := NewTriggerMatcher(source, zap.NewNop())

	match := matcher.Match(context.Background(), "srv", "おはよう")

	require.NotNil(t, match)
	assert.True(t, match.Exact)
}

func TestTriggerMatchInvalidPatternFallsBackToPhrase(t *testing.T) {
	pattern := `([`
	source := &stubTriggerSource{triggers: []*models.Trigger{
		{PhraseNorm: "おはよう", PhraseRaw: "おはよう", Pattern: &pattern, Label: models.LabelChat, HitCount: 1, Weight: 1.0},
	}}
	matcher := NewTriggerMatcher(source, zap.NewNop())

	match := matcher.Match(context.Background(), "srv", "おはよう")

	require.NotNil(t, match)
	assert.True(t, match.Exact)
}

func TestTriggerMatchBestScoreWins(t *testing.T) {
	source := &stubTriggerSource{triggers: []*models.Trigger{
		{PhraseNorm: "それな", PhraseRaw: "それな", Label: models.LabelAgree, HitCount: 1, Weight: 1.0},
		{PhraseNorm: "それな わかる", PhraseRaw: "それな わかる", Label: models.LabelEmotion, HitCount: 1, Weight: 3.0},
	}}
	matcher := NewTriggerMatcher(source, zap.NewNop())

	match := matcher.Match(context.Background(), "srv", "それな わかる すぎる")

	require.NotNil(t, match)
	assert.Equal(t, models.LabelEmotion, match.Trigger.Label)
}

func TestTriggerMatchStoreErrorDegradesToMiss(t *testing.T) {
	source := &stubTriggerSource{err: errors.New("connection refused")}
	matcher := NewTriggerMatcher(source, zap.NewNop())

	match := matcher.Match(context.Background(), "srv", "それな")

	assert.Nil(t, match)
}

func TestTriggerMatchNoTriggers(t *testing.T) {
	matcher := NewTriggerMatcher(&stubTriggerSource{}, zap.NewNop())

	assert.Nil(t, matcher.Match(context.Background(), "srv", "それな"))
}
