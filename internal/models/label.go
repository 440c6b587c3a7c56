package models

import "strings"

// Label is one category from the fixed utterance vocabulary.
type Label string

const (
	LabelTopic    Label = "TP" // 話題提示
	LabelQuestion Label = "Q"  // 質問
	LabelDisagree Label = "DI" // 否定・反対
	LabelShare    Label = "S"  // 情報共有
	LabelAgree    Label = "AG" // 応答・同意
	LabelEmotion  Label = "EM" // 感情表現
	LabelChat     Label = "CH" // 雑談
)

// DefaultLabel is the catch-all used when no evidence source produces a vote.
const DefaultLabel = LabelChat

// AllLabels lists the vocabulary in tie-break priority order: an explicit
// topic-introduction cue outranks a question, which outranks a rejection,
// and so on down to small talk. Scoring ties resolve by this order, not
// alphabetically.
var AllLabels = []Label{
	LabelTopic,
	LabelQuestion,
	LabelDisagree,
	LabelShare,
	LabelAgree,
	LabelEmotion,
	LabelChat,
}

var labelNames = map[Label]string{
	LabelTopic:    "話題提示",
	LabelQuestion: "質問",
	LabelDisagree: "否定・反対",
	LabelShare:    "情報共有",
	LabelAgree:    "応答・同意",
	LabelEmotion:  "感情表現",
	LabelChat:     "雑談",
}

// ParseLabel validates a raw token against the vocabulary. Unknown tokens
// return ok=false; callers at external boundaries drop them rather than
// letting raw strings propagate inward.
func ParseLabel(raw string) (Label, bool) {
	l := Label(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := labelNames[l]
	return l, ok
}

// ParseLabels filters a token list down to valid, de-duplicated labels,
// preserving input order.
func ParseLabels(raw []string) []Label {
	seen := make(map[Label]bool, len(raw))
	labels := make([]Label, 0, len(raw))
	for _, tok := range raw {
		l, ok := ParseLabel(tok)
		if !ok || seen[l] {
			continue
		}
		seen[l] = true
		labels = append(labels, l)
	}
	return labels
}

// Name returns the Japanese display name for the label.
func (l Label) Name() string {
	return labelNames[l]
}

// Valid reports whether the label belongs to the vocabulary.
func (l Label) Valid() bool {
	_, ok := labelNames[l]
	return ok
}

// Priority returns the tie-break rank of the label (lower wins). Labels
// outside the vocabulary sort last.
func (l Label) Priority() int {
	for i, candidate := range AllLabels {
		if candidate == l {
			return i
		}
	}
	return len(AllLabels)
}
