package classifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seseseee/discourse-insight/internal/lexicon"
	"github.com/seseseee/discourse-insight/internal/models"
)

// LexiconSource supplies the current dynamic lexicon snapshot. Readers see
// either the old or the new lexicon atomically, never a partial rebuild.
type LexiconSource interface {
	Current() *lexicon.Lexicon
}

// CompositionEntry is one label share of a classification result. Entries
// cover the full vocabulary and sum to 100.
type CompositionEntry struct {
	Label   models.Label `json:"label"`
	Percent float64      `json:"percent"`
}

// RuleResult is the outcome of one rule-scorer pass.
type RuleResult struct {
	Label       models.Label
	Labels      []models.Label
	Confidence  float64
	Composition []CompositionEntry
	Evidence    []string
	GateFired   string
	Scores      map[models.Label]float64
}

// Scorer maps raw text to a per-label score vector using the weighted cue
// table, augmented by dynamic-lexicon terms at reduced weight, then applies
// the post-hoc gate. It never fails: empty or unmatched text falls back to
// the default label at low confidence.
type Scorer struct {
	cfg       ScorerConfig
	lexSource LexiconSource
	gates     []gateDetector
}

// NewScorer builds a scorer from an explicit weight configuration. The
// lexicon source may be nil when no learned vocabulary is available.
func NewScorer(cfg ScorerConfig, lexSource LexiconSource) *Scorer {
	return &Scorer{cfg: cfg, lexSource: lexSource, gates: gateDetectors()}
}

// Score runs the full rule pass: cue accumulation, tie-break, gate, and
// composition construction.
func (s *Scorer) Score(text string) RuleResult {
	norm := NormalizePhrase(text)
	scores := make(map[models.Label]float64, len(models.AllLabels))
	var evidence []string

	for _, rule := range s.cfg.Rules {
		cueNorm := NormalizePhrase(rule.Cue)
		if cueNorm == "" || !strings.Contains(norm, cueNorm) {
			continue
		}
		contribution := rule.Weight * s.cfg.bias(rule.Label) * s.cfg.cueMultiplier(rule.Cue)
		scores[rule.Label] += contribution
		evidence = append(evidence, fmt.Sprintf("rule:%s→%s", rule.Cue, rule.Label))
	}

	if s.lexSource != nil {
		if lex := s.lexSource.Current(); lex != nil {
			for _, label := range models.AllLabels {
				for _, term := range lex.Terms[label] {
					termNorm := NormalizePhrase(term)
					if termNorm == "" || !strings.Contains(norm, termNorm) {
						continue
					}
					scores[label] += s.cfg.LexiconWeight * s.cfg.bias(label)
					evidence = append(evidence, fmt.Sprintf("lexicon:%s→%s", term, label))
				}
			}
		}
	}

	winner, winnerScore := pickWinner(scores)
	confidence := s.cfg.DefaultConfidence
	if winnerScore > 0 {
		confidence = clamp(0.5+0.1*winnerScore, s.cfg.DefaultConfidence, 0.95)
	} else {
		winner = models.DefaultLabel
		evidence = append(evidence, "rule:fallback→"+string(models.DefaultLabel))
	}

	gateFired := ""
	for _, det := range s.gates {
		if det.match(text, norm) {
			if det.label != winner {
				evidence = append(evidence, fmt.Sprintf("gate:%s→%s", det.name, det.label))
			} else {
				evidence = append(evidence, fmt.Sprintf("gate:%s confirms %s", det.name, det.label))
			}
			winner = det.label
			if confidence < det.confidence {
				confidence = det.confidence
			}
			gateFired = det.name
			break
		}
	}

	composition := BuildComposition(winner, scores)

	return RuleResult{
		Label:       winner,
		Labels:      orderedLabels(winner, scores),
		Confidence:  confidence,
		Composition: composition,
		Evidence:    evidence,
		GateFired:   gateFired,
		Scores:      scores,
	}
}

// pickWinner selects the highest-scoring label; ties resolve by the fixed
// vocabulary priority order.
func pickWinner(scores map[models.Label]float64) (models.Label, float64) {
	best := models.DefaultLabel
	bestScore := 0.0
	for _, label := range models.AllLabels {
		score := scores[label]
		if score > bestScore {
			best = label
			bestScore = score
		}
	}
	return best, bestScore
}

// BuildComposition constructs the percentage breakdown: the winner takes a
// fixed 70% share and every other label with a positive raw score splits
// the remainder evenly; zero-score labels stay at 0%. When the winner is
// the only positive label it takes the full 100%, so the entries always
// sum to 100 with the winner first.
func BuildComposition(winner models.Label, scores map[models.Label]float64) []CompositionEntry {
	losers := 0
	for _, label := range models.AllLabels {
		if label != winner && scores[label] > 0 {
			losers++
		}
	}

	winnerShare := 70.0
	loserShare := 0.0
	if losers == 0 {
		winnerShare = 100.0
	} else {
		loserShare = 30.0 / float64(losers)
	}

	entries := make([]CompositionEntry, 0, len(models.AllLabels))
	entries = append(entries, CompositionEntry{Label: winner, Percent: winnerShare})
	for _, label := range models.AllLabels {
		if label == winner {
			continue
		}
		percent := 0.0
		if scores[label] > 0 {
			percent = loserShare
		}
		entries = append(entries, CompositionEntry{Label: label, Percent: percent})
	}
	return entries
}

// orderedLabels lists the winner first, then positive-score labels by
// descending score with priority tie-break.
func orderedLabels(winner models.Label, scores map[models.Label]float64) []models.Label {
	rest := make([]models.Label, 0, len(scores))
	for _, label := range models.AllLabels {
		if label != winner && scores[label] > 0 {
			rest = append(rest, label)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		if scores[rest[i]] != scores[rest[j]] {
			return scores[rest[i]] > scores[rest[j]]
		}
		return rest[i].Priority() < rest[j].Priority()
	})
	return append([]models.Label{winner}, rest...)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
