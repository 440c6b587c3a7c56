package classifier

import (
	"github.com/seseseee/discourse-insight/internal/models"
)

// StaticRule is one hand-authored lexical cue mapped to a label.
type StaticRule struct {
	Cue    string
	Label  models.Label
	Weight float64
}

// ScorerConfig carries the full weight configuration for the rule scorer.
// It is constructed once and passed in at construction time so tests can
// run with alternate weight sets.
type ScorerConfig struct {
	Rules []StaticRule
	// LabelBias multiplies every contribution toward a label. Missing
	// entries default to 1.0.
	LabelBias map[models.Label]float64
	// CueMultiplier scales individual cues by their normalized form.
	// Missing entries default to 1.0.
	CueMultiplier map[string]float64
	// LexiconWeight is the score contributed per dynamic-lexicon term hit.
	// Calibrated to 0.9x a representative static cue so learned vocabulary
	// carries a vote comparable to a hand-authored rule without outranking
	// the strongest ones.
	LexiconWeight float64
	// DefaultConfidence is reported when no cue matches at all.
	DefaultConfidence float64
}

// DefaultScorerConfig returns the production cue table.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Rules:             defaultRules(),
		LabelBias:         map[models.Label]float64{},
		CueMultiplier:     map[string]float64{},
		LexiconWeight:     0.9 * 2.5, // 2.5 is the modal static cue weight
		DefaultConfidence: 0.2,
	}
}

func defaultRules() []StaticRule {
	return []StaticRule{
		// 話題提示
		{Cue: "について", Label: models.LabelTopic, Weight: 2.5},
		{Cue: "ところで", Label: models.LabelTopic, Weight: 3.0},
		{Cue: "そういえば", Label: models.LabelTopic, Weight: 3.0},
		{Cue: "提案", Label: models.LabelTopic, Weight: 2.5},
		{Cue: "議題", Label: models.LabelTopic, Weight: 3.0},
		{Cue: "話は変わる", Label: models.LabelTopic, Weight: 3.5},

		// 質問
		{Cue: "?", Label: models.LabelQuestion, Weight: 3.0},
		{Cue: "？", Label: models.LabelQuestion, Weight: 3.0},
		{Cue: "ですか", Label: models.LabelQuestion, Weight: 2.5},
		{Cue: "ますか", Label: models.LabelQuestion, Weight: 2.5},
		{Cue: "どう思う", Label: models.LabelQuestion, Weight: 3.0},
		{Cue: "なぜ", Label: models.LabelQuestion, Weight: 2.0},
		{Cue: "どうやって", Label: models.LabelQuestion, Weight: 2.5},
		{Cue: "教えて", Label: models.LabelQuestion, Weight: 2.5},

		// 否定・反対
		{Cue: "反対", Label: models.LabelDisagree, Weight: 3.0},
		{Cue: "違う", Label: models.LabelDisagree, Weight: 2.5},
		{Cue: "そうじゃない", Label: models.LabelDisagree, Weight: 3.0},
		{Cue: "いやいや", Label: models.LabelDisagree, Weight: 2.5},
		{Cue: "無理", Label: models.LabelDisagree, Weight: 2.0},

		// 情報共有
		{Cue: "http://", Label: models.LabelShare, Weight: 3.5},
		{Cue: "https://", Label: models.LabelShare, Weight: 3.5},
		{Cue: "資料", Label: models.LabelShare, Weight: 2.5},
		{Cue: "共有", Label: models.LabelShare, Weight: 2.5},
		{Cue: "参考", Label: models.LabelShare, Weight: 2.0},
		{Cue: "リンク", Label: models.LabelShare, Weight: 2.5},

		// 応答・同意 (cues from the ingestion bridge heuristic)
		{Cue: "それはそう", Label: models.LabelAgree, Weight: 4.0},
		{Cue: "賛成", Label: models.LabelAgree, Weight: 3.0},
		{Cue: "同意", Label: models.LabelAgree, Weight: 3.0},
		{Cue: "了解", Label: models.LabelAgree, Weight: 2.5},
		{Cue: "たしかに", Label: models.LabelAgree, Weight: 3.0},
		{Cue: "わかる", Label: models.LabelAgree, Weight: 2.5},
		{Cue: "いいね", Label: models.LabelAgree, Weight: 2.5},
		{Cue: "なるほど", Label: models.LabelAgree, Weight: 2.5},

		// 感情表現
		{Cue: "嬉しい", Label: models.LabelEmotion, Weight: 2.5},
		{Cue: "悲しい", Label: models.LabelEmotion, Weight: 2.5},
		{Cue: "怒", Label: models.LabelEmotion, Weight: 2.0},
		{Cue: "楽しい", Label: models.LabelEmotion, Weight: 2.5},
		{Cue: "最高", Label: models.LabelEmotion, Weight: 2.5},
		{Cue: "最悪", Label: models.LabelEmotion, Weight: 2.5},
		{Cue: "草", Label: models.LabelEmotion, Weight: 2.0},
		{Cue: "笑", Label: models.LabelEmotion, Weight: 1.5},

		// 雑談
		{Cue: "おはよう", Label: models.LabelChat, Weight: 2.0},
		{Cue: "おつかれ", Label: models.LabelChat, Weight: 2.0},
		{Cue: "こんにちは", Label: models.LabelChat, Weight: 2.0},
		{Cue: "ひま", Label: models.LabelChat, Weight: 1.5},
	}
}

func (c ScorerConfig) bias(l models.Label) float64 {
	if b, ok := c.LabelBias[l]; ok {
		return b
	}
	return 1.0
}

func (c ScorerConfig) cueMultiplier(cue string) float64 {
	if m, ok := c.CueMultiplier[NormalizePhrase(cue)]; ok {
		return m
	}
	return 1.0
}
