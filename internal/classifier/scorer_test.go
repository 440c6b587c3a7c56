package classifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seseseee/discourse-insight/internal/lexicon"
	"github.com/seseseee/discourse-insight/internal/models"
)

func newTestScorer(lex *lexicon.Lexicon) *Scorer {
	var source LexiconSource
	if lex != nil {
		snap := lexicon.NewSnapshot()
		snap.Swap(lex)
		source = snap
	}
	return NewScorer(DefaultScorerConfig(), source)
}

func TestScoreAgreementCue(t *testing.T) {
	scorer := newTestScorer(nil)

	result := scorer.Score("それはそう")

	assert.Equal(t, models.LabelAgree, result.Label)
	assert.GreaterOrEqual(t, result.Confidence, 0.9)
}

func TestScoreURLIsShare(t *testing.T) {
	scorer := newTestScorer(nil)

	result := scorer.Score("https://example.com/article を共有します")

	assert.Equal(t, models.LabelShare, result.Label)
	assert.GreaterOrEqual(t, result.Confidence, 0.85)
	assert.Equal(t, "information", result.GateFired)
}

func TestScoreQuestionGate(t *testing.T) {
	scorer := newTestScorer(nil)

	result := scorer.Score("なぜそうなるのでしょうか")

	assert.Equal(t, models.LabelQuestion, result.Label)
	assert.GreaterOrEqual(t, result.Confidence, 0.9)
	assert.Equal(t, "question", result.GateFired)
}

func TestScoreRejectionGateOutranksVote(t *testing.T) {
	scorer := newTestScorer(nil)

	// The agreement cue votes AG but the rejection gate overrides.
	result := scorer.Score("たしかに人気だけど、それは違うと思う")

	assert.Equal(t, models.LabelDisagree, result.Label)
	assert.GreaterOrEqual(t, result.Confidence, 0.9)
	assert.Equal(t, "rejection", result.GateFired)
}

func TestScoreFallbackIsChat(t *testing.T) {
	scorer := newTestScorer(nil)

	result := scorer.Score("あの映画みた")

	assert.Equal(t, models.LabelChat, result.Label)
	assert.InDelta(t, 0.2, result.Confidence, 1e-9)
}

func TestScoreEmptyTextIsTotal(t *testing.T) {
	scorer := newTestScorer(nil)

	result := scorer.Score("")

	assert.Equal(t, models.DefaultLabel, result.Label)
	assertCompositionSums(t, result.Composition)
}

func TestScoreLexiconTermContributes(t *testing.T) {
	lex := &lexicon.Lexicon{
		Terms: map[models.Label][]string{
			models.LabelTopic: {"ロードマップ"},
		},
		BuiltAt: time.Now(),
	}
	scorer := newTestScorer(lex)

	result := scorer.Score("ロードマップの件")

	assert.Equal(t, models.LabelTopic, result.Label)
	assert.Greater(t, result.Scores[models.LabelTopic], 0.0)
}

func TestScoreLexiconTermComparableToStaticCue(t *testing.T) {
	lex := &lexicon.Lexicon{
		Terms: map[models.Label][]string{
			models.LabelTopic: {"ロードマップ"},
		},
		BuiltAt: time.Now(),
	}
	scorer := newTestScorer(lex)

	fromLexicon := scorer.Score("ロードマップの件")
	fromRule := scorer.Score("新機能について")

	// A learned term votes at 0.9x a typical hand-authored cue, so a
	// lexicon-only hit must land in the same confidence band as a single
	// static cue instead of hovering just above the fallback floor.
	assert.InDelta(t, 0.9*fromRule.Scores[models.LabelTopic], fromLexicon.Scores[models.LabelTopic], 1e-9)
	assert.GreaterOrEqual(t, fromLexicon.Confidence, 0.7)
}

func TestCompositionAlwaysSumsTo100(t *testing.T) {
	scorer := newTestScorer(nil)

	texts := []string{
		"それはそう",
		"https://example.com ですか？反対です",
		"おはよう",
		"",
		"資料を共有します、参考までに",
	}
	for _, text := range texts {
		result := scorer.Score(text)
		assertCompositionSums(t, result.Composition)
	}
}

func TestCompositionWinnerOnlyTakesAll(t *testing.T) {
	comp := BuildComposition(models.LabelAgree, map[models.Label]float64{
		models.LabelAgree: 4.0,
	})

	require.NotEmpty(t, comp)
	assert.Equal(t, models.LabelAgree, comp[0].Label)
	assert.InDelta(t, 100.0, comp[0].Percent, 1e-9)
	assertCompositionSums(t, comp)
}

func TestCompositionSplitsLosersEvenly(t *testing.T) {
	comp := BuildComposition(models.LabelQuestion, map[models.Label]float64{
		models.LabelQuestion: 3.0,
		models.LabelTopic:    1.0,
		models.LabelShare:    2.0,
	})

	require.Equal(t, models.LabelQuestion, comp[0].Label)
	assert.InDelta(t, 70.0, comp[0].Percent, 1e-9)
	for _, entry := range comp[1:] {
		switch entry.Label {
		case models.LabelTopic, models.LabelShare:
			assert.InDelta(t, 15.0, entry.Percent, 1e-9)
		default:
			assert.Zero(t, entry.Percent)
		}
	}
	assertCompositionSums(t, comp)
}

func TestPickWinnerTieBreaksByPriority(t *testing.T) {
	winner, score := pickWinner(map[models.Label]float64{
		models.LabelEmotion:  2.5,
		models.LabelQuestion: 2.5,
	})

	assert.Equal(t, models.LabelQuestion, winner)
	assert.InDelta(t, 2.5, score, 1e-9)
}

func assertCompositionSums(t *testing.T, comp []CompositionEntry) {
	t.Helper()
	require.Len(t, comp, len(models.AllLabels))
	sum := 0.0
	for _, entry := range comp {
		sum += entry.Percent
	}
	assert.InDelta(t, 100.0, sum, 1e-6)
}
