package classifier

import (
	"regexp"
	"strings"

	"github.com/seseseee/discourse-insight/internal/models"
)

// gateDetector is one high-precision override applied after the raw vote.
// Detectors run in a fixed order (rejection > question > empathy >
// surprise > information) and the first hit replaces the raw winner;
// a missed rejection or question costs more than an ordinary mis-vote,
// so these sit above the accumulated score.
type gateDetector struct {
	name       string
	label      models.Label
	confidence float64
	match      func(raw, norm string) bool
}

var urlRe = regexp.MustCompile(`https?://\S+`)

var rejectionCues = []string{
	"そうじゃない", "それは違う", "違うと思う", "反対です", "やめたほうが",
	"ありえない", "納得できない", "同意できない",
}

var questionTails = []string{"?", "？", "か", "かな", "ですか", "ますか", "でしょうか"}

var questionHeads = []string{"なぜ", "どうして", "なんで", "どうやって", "どっち", "どれ"}

var empathyCues = []string{
	"おつかれさま", "お疲れ様", "がんばったね", "つらいね", "大変だったね",
	"よかったね", "無理しないで",
}

var surpriseCues = []string{
	"まじで", "マジか", "えっ", "ええっ", "びっくり", "うそでしょ", "まさか",
}

var infoCues = []string{"詳細はこちら", "参考までに", "共有します"}

func gateDetectors() []gateDetector {
	return []gateDetector{
		{
			name:       "rejection",
			label:      models.LabelDisagree,
			confidence: 0.9,
			match: func(raw, norm string) bool {
				return containsAny(raw, rejectionCues)
			},
		},
		{
			name:       "question",
			label:      models.LabelQuestion,
			confidence: 0.9,
			match: func(raw, norm string) bool {
				trimmed := strings.TrimRight(strings.TrimSpace(raw), "。!！ ")
				for _, tail := range questionTails {
					if strings.HasSuffix(trimmed, tail) {
						return true
					}
				}
				for _, head := range questionHeads {
					if strings.HasPrefix(trimmed, head) {
						return true
					}
				}
				return false
			},
		},
		{
			name:       "empathy",
			label:      models.LabelEmotion,
			confidence: 0.85,
			match: func(raw, norm string) bool {
				return containsAny(raw, empathyCues)
			},
		},
		{
			name:       "surprise",
			label:      models.LabelEmotion,
			confidence: 0.85,
			match: func(raw, norm string) bool {
				return containsAny(raw, surpriseCues)
			},
		},
		{
			name:       "information",
			label:      models.LabelShare,
			confidence: 0.88,
			match: func(raw, norm string) bool {
				return urlRe.MatchString(raw) || containsAny(raw, infoCues)
			},
		},
	}
}

func containsAny(s string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(s, cue) {
			return true
		}
	}
	return false
}
