package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLabel(t *testing.T) {
	label, ok := ParseLabel("em")
	assert.True(t, ok)
	assert.Equal(t, LabelEmotion, label)

	label, ok = ParseLabel("  Q ")
	assert.True(t, ok)
	assert.Equal(t, LabelQuestion, label)

	_, ok = ParseLabel("XX")
	assert.False(t, ok)

	_, ok = ParseLabel("")
	assert.False(t, ok)
}

func TestParseLabelsFiltersAndDeduplicates(t *testing.T) {
	labels := ParseLabels([]string{"EM", "bogus", "q", "EM", ""})

	assert.Equal(t, []Label{LabelEmotion, LabelQuestion}, labels)
}

func TestPriorityOrder(t *testing.T) {
	assert.Less(t, LabelTopic.Priority(), LabelQuestion.Priority())
	assert.Less(t, LabelQuestion.Priority(), LabelChat.Priority())
	assert.Equal(t, len(AllLabels), Label("XX").Priority())
}

func TestSecondaryLabels(t *testing.T) {
	record := &LabelRecord{Label: LabelQuestion, Labels: "Q,EM"}
	assert.Equal(t, []Label{LabelQuestion, LabelEmotion}, record.SecondaryLabels())

	bare := &LabelRecord{Label: LabelChat}
	assert.Equal(t, []Label{LabelChat}, bare.SecondaryLabels())
}
