package classifier

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/models"
)

// ModelClient is the external-model contract: prompt text in, a label
// token with confidence and rationale out. The model is advisory; any
// failure keeps the prior cascade result.
type ModelClient interface {
	Classify(ctx context.Context, text string) (*models.ModelVerdict, error)
}

// FeedbackSource reads existing human feedback for an utterance.
type FeedbackSource interface {
	ListByMessage(ctx context.Context, messageID int64) ([]*models.Feedback, error)
}

// CascadeConfig tunes escalation between evidence sources.
type CascadeConfig struct {
	// ModelThreshold: the external model is consulted only when working
	// confidence is below this value.
	ModelThreshold float64
	// ModelTimeout bounds each external-model call.
	ModelTimeout time.Duration
	// MaxModelCalls caps concurrent external-model calls across all
	// in-flight classifications.
	MaxModelCalls int
	// FeedbackConfidence is the floor applied when human feedback exists.
	FeedbackConfidence float64
}

// DefaultCascadeConfig returns the production escalation settings.
func DefaultCascadeConfig() CascadeConfig {
	return CascadeConfig{
		ModelThreshold:     0.75,
		ModelTimeout:       10 * time.Second,
		MaxModelCalls:      4,
		FeedbackConfidence: 0.95,
	}
}

// Request is one classification input. MessageID is zero when classifying
// free text with no persisted utterance (no feedback override possible).
type Request struct {
	Text      string
	ServerID  string
	MessageID int64
}

// Result is the complete cascade outcome. The cascade is total: every
// input yields a label, a confidence, and a composition summing to 100.
type Result struct {
	Label       models.Label       `json:"label"`
	Labels      []models.Label     `json:"labels"`
	Confidence  float64            `json:"confidence"`
	Rationale   string             `json:"rationale"`
	Composition []CompositionEntry `json:"composition"`
}

// Cascade orders the evidence sources: learned triggers, static rules,
// external model, human feedback. Later passes only run while confidence
// is insufficient, except feedback, which always wins.
type Cascade struct {
	scorer   *Scorer
	triggers *TriggerMatcher
	model    ModelClient
	feedback FeedbackSource
	cfg      CascadeConfig
	modelSem chan struct{}
	logger   *zap.Logger
}

// NewCascade wires the cascade. The model client and the feedback source
// may each be nil; the corresponding pass is skipped.
func NewCascade(scorer *Scorer, triggers *TriggerMatcher, model ModelClient, feedback FeedbackSource, cfg CascadeConfig, logger *zap.Logger) *Cascade {
	if cfg.ModelThreshold <= 0 {
		cfg.ModelThreshold = DefaultCascadeConfig().ModelThreshold
	}
	if cfg.ModelTimeout <= 0 {
		cfg.ModelTimeout = DefaultCascadeConfig().ModelTimeout
	}
	if cfg.MaxModelCalls <= 0 {
		cfg.MaxModelCalls = DefaultCascadeConfig().MaxModelCalls
	}
	if cfg.FeedbackConfidence <= 0 {
		cfg.FeedbackConfidence = DefaultCascadeConfig().FeedbackConfidence
	}
	return &Cascade{
		scorer:   scorer,
		triggers: triggers,
		model:    model,
		feedback: feedback,
		cfg:      cfg,
		modelSem: make(chan struct{}, cfg.MaxModelCalls),
		logger:   logger,
	}
}

// Classify runs the full cascade for one utterance. It never fails; a
// failed pass only yields lower confidence and falls through.
func (c *Cascade) Classify(ctx context.Context, req Request) Result {
	var trail []string
	var working Result
	exact := false

	// Trigger pass.
	var match *TriggerMatch
	if c.triggers != nil {
		match = c.triggers.Match(ctx, req.ServerID, req.Text)
	}
	if match != nil {
		kind := "partial"
		if match.Exact {
			kind = "exact"
			exact = true
		}
		trail = append(trail, fmt.Sprintf("trigger:%s 「%s」→%s conf=%.2f",
			kind, match.Trigger.PhraseRaw, match.Trigger.Label, match.Confidence))
	}

	// Rule pass: always runs unless an exact trigger hit already settled
	// the label; human-taught exact phrases outrank the static detectors.
	if exact {
		working = Result{
			Label:       match.Trigger.Label,
			Labels:      []models.Label{match.Trigger.Label},
			Confidence:  match.Confidence,
			Composition: BuildComposition(match.Trigger.Label, nil),
		}
	} else {
		rule := c.scorer.Score(req.Text)
		trail = append(trail, rule.Evidence...)
		trail = append(trail, fmt.Sprintf("rule:%s conf=%.2f", rule.Label, rule.Confidence))

		working = Result{
			Label:       rule.Label,
			Labels:      rule.Labels,
			Confidence:  rule.Confidence,
			Composition: rule.Composition,
		}

		// A partial trigger vote beats a weaker rule vote.
		if match != nil && match.Confidence > working.Confidence {
			working.Label = match.Trigger.Label
			working.Confidence = match.Confidence
			working.Labels = unionLabels([]models.Label{match.Trigger.Label}, working.Labels)
			working.Composition = BuildComposition(match.Trigger.Label, rule.Scores)
			trail = append(trail, fmt.Sprintf("cascade:trigger vote outranks rule (%s)", match.Trigger.Label))
		}

		// External-model pass: advisory, bounded, never required.
		if c.model != nil && working.Confidence < c.cfg.ModelThreshold {
			if verdict := c.consultModel(ctx, req.Text); verdict != nil {
				label, ok := models.ParseLabel(verdict.Label)
				if !ok {
					trail = append(trail, fmt.Sprintf("model:unknown label %q, kept %s", verdict.Label, working.Label))
				} else {
					trail = append(trail, fmt.Sprintf("model:%s conf=%.2f", label, verdict.Confidence))
					working.Labels = unionLabels(working.Labels, []models.Label{label})
					if verdict.Confidence > working.Confidence {
						working.Label = label
						working.Confidence = verdict.Confidence
						working.Composition = BuildComposition(label, rule.Scores)
					}
				}
			} else {
				trail = append(trail, "model:unavailable, kept "+string(working.Label))
			}
		}
	}

	// Feedback override: human corrections always win over the machine
	// passes, co-equal labels split the composition evenly.
	if c.feedback != nil && req.MessageID != 0 {
		rows, err := c.feedback.ListByMessage(ctx, req.MessageID)
		if err != nil {
			c.logger.Error("Failed to read feedback for message",
				zap.Int64("message_id", req.MessageID), zap.Error(err))
		} else if labels := feedbackLabels(rows); len(labels) > 0 {
			working.Label = labels[0]
			working.Labels = labels
			if working.Confidence < c.cfg.FeedbackConfidence {
				working.Confidence = c.cfg.FeedbackConfidence
			}
			working.Composition = BuildEvenComposition(labels)
			trail = append(trail, "feedback:override "+joinLabels(labels))
		}
	}

	// The cascade is total: something always comes out.
	if !working.Label.Valid() {
		working.Label = models.DefaultLabel
		working.Labels = []models.Label{models.DefaultLabel}
		working.Confidence = c.scorer.cfg.DefaultConfidence
		working.Composition = BuildComposition(models.DefaultLabel, nil)
		trail = append(trail, "cascade:no signal, fallback "+string(models.DefaultLabel))
	}

	working.Rationale = strings.Join(trail, "; ")
	return working
}

// consultModel calls the external model under the shared concurrency
// limiter and a hard timeout. Any failure returns nil.
func (c *Cascade) consultModel(ctx context.Context, text string) *models.ModelVerdict {
	select {
	case c.modelSem <- struct{}{}:
		defer func() { <-c.modelSem }()
	case <-ctx.Done():
		return nil
	}

	modelCtx, cancel := context.WithTimeout(ctx, c.cfg.ModelTimeout)
	defer cancel()

	verdict, err := c.model.Classify(modelCtx, text)
	if err != nil {
		c.logger.Warn("External model pass failed, continuing without it", zap.Error(err))
		return nil
	}
	return verdict
}

// BuildEvenComposition splits 100% evenly across co-equal labels, covering
// the full vocabulary with zeros elsewhere.
func BuildEvenComposition(labels []models.Label) []CompositionEntry {
	share := 100.0 / float64(len(labels))
	member := make(map[models.Label]bool, len(labels))
	for _, l := range labels {
		member[l] = true
	}

	entries := make([]CompositionEntry, 0, len(models.AllLabels))
	for _, l := range labels {
		entries = append(entries, CompositionEntry{Label: l, Percent: share})
	}
	for _, l := range models.AllLabels {
		if !member[l] {
			entries = append(entries, CompositionEntry{Label: l, Percent: 0})
		}
	}
	return entries
}

// feedbackLabels collapses feedback rows to distinct labels ordered by the
// vocabulary priority, so the reported primary is deterministic.
func feedbackLabels(rows []*models.Feedback) []models.Label {
	seen := make(map[models.Label]bool, len(rows))
	labels := make([]models.Label, 0, len(rows))
	for _, row := range rows {
		if row.Label.Valid() && !seen[row.Label] {
			seen[row.Label] = true
			labels = append(labels, row.Label)
		}
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Priority() < labels[j].Priority() })
	return labels
}

func unionLabels(primary, rest []models.Label) []models.Label {
	seen := make(map[models.Label]bool, len(primary)+len(rest))
	out := make([]models.Label, 0, len(primary)+len(rest))
	for _, l := range primary {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	for _, l := range rest {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

func joinLabels(labels []models.Label) string {
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = string(l)
	}
	return strings.Join(parts, ",")
}
