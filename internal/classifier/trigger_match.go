package classifier

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/models"
)

// TriggerSource lists learned triggers visible to a scope. Implementations
// return scope-qualified rows before scope-agnostic ones so that ties
// resolve in favor of the qualified match.
type TriggerSource interface {
	ListByScope(ctx context.Context, serverID string) ([]*models.Trigger, error)
}

// TriggerMatch is the best learned-trigger hit for one utterance.
type TriggerMatch struct {
	Trigger    *models.Trigger
	Exact      bool
	Confidence float64
	Score      float64
}

// exactBonus multiplies a trigger's weight when the whole normalized text
// equals the phrase, so full-phrase hits outrank partial containment.
const exactBonus = 1.5

// TriggerMatcher matches normalized text against the learned trigger store
// during classification. Matching is substring-based per normalized text;
// an optional regular-expression pattern, when present and valid, is tried
// before plain containment.
type TriggerMatcher struct {
	source TriggerSource
	logger *zap.Logger
}

func NewTriggerMatcher(source TriggerSource, logger *zap.Logger) *TriggerMatcher {
	return &TriggerMatcher{source: source, logger: logger}
}

// Match returns the strongest trigger hit for the text, or nil when no
// trigger matches. Errors from the store degrade to a miss; a failed
// trigger pass only lowers confidence, it never fails classification.
func (m *TriggerMatcher) Match(ctx context.Context, serverID, text string) *TriggerMatch {
	triggers, err := m.source.ListByScope(ctx, serverID)
	if err != nil {
		m.logger.Error("Failed to list triggers for scope",
			zap.String("server_id", serverID), zap.Error(err))
		return nil
	}
	if len(triggers) == 0 {
		return nil
	}

	norm := NormalizePhrase(text)
	var best *TriggerMatch

	for _, trigger := range triggers {
		matched, exact := m.matchOne(trigger, text, norm)
		if !matched {
			continue
		}

		score := trigger.Weight
		confidence := partialConfidence(trigger.HitCount)
		if exact {
			score *= exactBonus
			confidence = ExactMatchConfidence
		}

		if best == nil || score > best.Score {
			best = &TriggerMatch{
				Trigger:    trigger,
				Exact:      exact,
				Confidence: confidence,
				Score:      score,
			}
		}
	}
	return best
}

func (m *TriggerMatcher) matchOne(trigger *models.Trigger, raw, norm string) (matched, exact bool) {
	if trigger.Pattern != nil && *trigger.Pattern != "" {
		re, err := regexp.Compile(*trigger.Pattern)
		if err == nil {
			if loc := re.FindStringIndex(raw); loc != nil {
				return true, loc[0] == 0 && loc[1] == len(raw)
			}
			return false, false
		}
		// Invalid pattern: fall through to plain containment.
	}

	phrase := trigger.PhraseNorm
	if phrase == "" {
		phrase = NormalizePhrase(trigger.PhraseRaw)
	}
	if phrase == "" {
		return false, false
	}
	if norm == phrase {
		return true, true
	}
	if strings.Contains(norm, phrase) {
		return true, false
	}
	return false, false
}

// ExactMatchConfidence is the confidence assigned to a full-phrase trigger
// hit. It is high enough to suppress every later cascade pass.
const ExactMatchConfidence = 0.98

// partialConfidence grows with historical frequency and saturates below
// the exact-match level.
func partialConfidence(hitCount int) float64 {
	c := 0.6 + 0.04*float64(hitCount)
	if c > 0.93 {
		c = 0.93
	}
	return c
}
