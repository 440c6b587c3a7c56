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

type stubModelClient struct {
	verdict *models.ModelVerdict
	err     error
	calls   int
}

func (s *stubModelClient) Classify(ctx context.Context, text string) (*models.ModelVerdict, error) {
	s.calls++
	return s.verdict, s.err
}

type stubFeedbackSource struct {
	rows []*models.Feedback
	err  error
}

func (s *stubFeedbackSource) ListByMessage(ctx context.Context, messageID int64) ([]*models.Feedback, error) {
	return s.rows, s.err
}

func newTestCascade(triggers TriggerSource, model ModelClient, fb FeedbackSource) *Cascade {
	scorer := newTestScorer(nil)
	var matcher *TriggerMatcher
	if triggers != nil {
		matcher = NewTriggerMatcher(triggers, zap.NewNop())
	}
	return NewCascade(scorer, matcher, model, fb, DefaultCascadeConfig(), zap.NewNop())
}

func TestCascadeExactTriggerShortCircuits(t *testing.T) {
	triggers := &stubTriggerSource{triggers: []*models.Trigger{
		{PhraseNorm: "それな", PhraseRaw: "それな", Label: models.LabelAgree, HitCount: 3, Weight: 1.3},
	}}
	model := &stubModelClient{}
	cascade := newTestCascade(triggers, model, nil)

	result := cascade.Classify(context.Background(), Request{Text: "それな", ServerID: "srv"})

	assert.Equal(t, models.LabelAgree, result.Label)
	assert.InDelta(t, ExactMatchConfidence, result.Confidence, 1e-9)
	assert.Zero(t, model.calls, "exact trigger must suppress the model pass")
	assertCompositionSums(t, result.Composition)
}

func TestCascadePartialTriggerOutranksWeakRule(t *testing.T) {
	triggers := &stubTriggerSource{triggers: []*models.Trigger{
		{PhraseNorm: "あの映画", PhraseRaw: "あの映画", Label: models.LabelTopic, HitCount: 5, Weight: 2.0},
	}}
	cascade := newTestCascade(triggers, nil, nil)

	// No static cue fires for this text, so the rule pass lands at the
	// default confidence and the partial trigger wins.
	result := cascade.Classify(context.Background(), Request{Text: "あの映画みた", ServerID: "srv"})

	assert.Equal(t, models.LabelTopic, result.Label)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
}

func TestCascadeModelAdoptedWhenMoreConfident(t *testing.T) {
	model := &stubModelClient{verdict: &models.ModelVerdict{
		Label:         "EM",
		Confidence:    0.82,
		Justification: "感情表現",
	}}
	cascade := newTestCascade(nil, model, nil)

	result := cascade.Classify(context.Background(), Request{Text: "あの映画みた", ServerID: "srv"})

	assert.Equal(t, models.LabelEmotion, result.Label)
	assert.InDelta(t, 0.82, result.Confidence, 1e-9)
	assert.Equal(t, 1, model.calls)
}

func TestCascadeModelSkippedAboveThreshold(t *testing.T) {
	model := &stubModelClient{verdict: &models.ModelVerdict{Label: "EM", Confidence: 0.99}}
	cascade := newTestCascade(nil, model, nil)

	result := cascade.Classify(context.Background(), Request{Text: "それはそう", ServerID: "srv"})

	assert.Equal(t, models.LabelAgree, result.Label)
	assert.Zero(t, model.calls)
}

func TestCascadeModelFailureKeepsRuleResult(t *testing.T) {
	model := &stubModelClient{err: errors.New("all providers failed")}
	cascade := newTestCascade(nil, model, nil)

	result := cascade.Classify(context.Background(), Request{Text: "あの映画みた", ServerID: "srv"})

	assert.Equal(t, models.LabelChat, result.Label)
	assert.InDelta(t, 0.2, result.Confidence, 1e-9)
}

func TestCascadeUnknownModelLabelIgnored(t *testing.T) {
	model := &stubModelClient{verdict: &models.ModelVerdict{Label: "XX", Confidence: 0.99}}
	cascade := newTestCascade(nil, model, nil)

	result := cascade.Classify(context.Background(), Request{Text: "あの映画みた", ServerID: "srv"})

	assert.Equal(t, models.LabelChat, result.Label)
}

func TestCascadeFeedbackOverridesEverything(t *testing.T) {
	fb := &stubFeedbackSource{rows: []*models.Feedback{
		{MessageID: 7, UserID: "u1", Label: models.LabelEmotion},
		{MessageID: 7, UserID: "u2", Label: models.LabelQuestion},
	}}
	cascade := newTestCascade(nil, nil, fb)

	result := cascade.Classify(context.Background(), Request{Text: "それはそう", ServerID: "srv", MessageID: 7})

	// Feedback labels are co-equal; the priority order picks the primary.
	assert.Equal(t, models.LabelQuestion, result.Label)
	assert.Equal(t, []models.Label{models.LabelQuestion, models.LabelEmotion}, result.Labels)
	assert.GreaterOrEqual(t, result.Confidence, 0.95)
	assertCompositionSums(t, result.Composition)
}

func TestCascadeFeedbackSkippedForAdHocText(t *testing.T) {
	fb := &stubFeedbackSource{rows: []*models.Feedback{
		{MessageID: 7, UserID: "u1", Label: models.LabelEmotion},
	}}
	cascade := newTestCascade(nil, nil, fb)

	// MessageID zero marks free-text classification; no override possible.
	result := cascade.Classify(context.Background(), Request{Text: "それはそう", ServerID: "srv"})

	assert.Equal(t, models.LabelAgree, result.Label)
}

func TestCascadeFeedbackReadErrorFallsThrough(t *testing.T) {
	fb := &stubFeedbackSource{err: errors.New("db down")}
	cascade := newTestCascade(nil, nil, fb)

	result := cascade.Classify(context.Background(), Request{Text: "それはそう", ServerID: "srv", MessageID: 7})

	assert.Equal(t, models.LabelAgree, result.Label)
}

func TestCascadeIsTotal(t *testing.T) {
	cascade := newTestCascade(nil, nil, nil)

	for _, text := range []string{"", "   ", "🙂", "zzz"} {
		result := cascade.Classify(context.Background(), Request{Text: text, ServerID: "srv"})
		require.True(t, result.Label.Valid(), "text %q must classify", text)
		assert.NotEmpty(t, result.Rationale)
		assertCompositionSums(t, result.Composition)
	}
}

func TestBuildEvenComposition(t *testing.T) {
	comp := BuildEvenComposition([]models.Label{models.LabelQuestion, models.LabelEmotion})

	require.Len(t, comp, len(models.AllLabels))
	assert.InDelta(t, 50.0, comp[0].Percent, 1e-9)
	assert.InDelta(t, 50.0, comp[1].Percent, 1e-9)
	assertCompositionSums(t, comp)
}
