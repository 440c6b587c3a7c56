package lexicon

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/models"
)

// LabeledText is one feedback-labeled utterance from the trailing window.
type LabeledText struct {
	Text  string
	Label models.Label
}

// HistorySource reads feedback+utterance pairs for aggregation.
type HistorySource interface {
	LabeledTexts(ctx context.Context, since time.Time) ([]LabeledText, error)
}

// Store persists the rebuilt lexicon wholesale.
type Store interface {
	ReplaceLexicon(ctx context.Context, terms map[models.Label][]string) error
}

// BuilderConfig tunes the rebuild job.
type BuilderConfig struct {
	Window    time.Duration // trailing history window
	MinCount  int           // minimum occurrences before a term is admitted
	MinPurity float64       // minimum share of the dominant label
	Interval  time.Duration // rebuild period
}

// DefaultBuilderConfig returns the production rebuild settings.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		Window:    14 * 24 * time.Hour,
		MinCount:  3,
		MinPurity: 0.6,
		Interval:  time.Hour,
	}
}

// Builder rebuilds the dynamic lexicon from feedback history. The rebuild
// is wholesale, not incremental: every run derives a fresh lexicon, writes
// it to storage and swaps the in-memory snapshot.
type Builder struct {
	source   HistorySource
	store    Store
	snapshot *Snapshot
	cfg      BuilderConfig
	logger   *zap.Logger
}

func NewBuilder(source HistorySource, store Store, snapshot *Snapshot, cfg BuilderConfig, logger *zap.Logger) *Builder {
	if cfg.Window <= 0 {
		cfg.Window = DefaultBuilderConfig().Window
	}
	if cfg.MinCount <= 0 {
		cfg.MinCount = DefaultBuilderConfig().MinCount
	}
	if cfg.MinPurity <= 0 {
		cfg.MinPurity = DefaultBuilderConfig().MinPurity
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultBuilderConfig().Interval
	}
	return &Builder{source: source, store: store, snapshot: snapshot, cfg: cfg, logger: logger}
}

// Run starts the periodic rebuild loop. An initial rebuild runs at startup
// so classification does not wait a full interval for learned vocabulary.
func (b *Builder) Run(ctx context.Context) {
	b.logger.Info("Lexicon builder started.", zap.Duration("interval", b.cfg.Interval))

	if err := b.Rebuild(ctx); err != nil {
		b.logger.Error("Initial lexicon rebuild failed", zap.Error(err))
	}

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Lexicon builder stopped.")
			return
		case <-ticker.C:
			if err := b.Rebuild(ctx); err != nil {
				b.logger.Error("Lexicon rebuild failed", zap.Error(err))
			}
		}
	}
}

// Rebuild performs one wholesale rebuild.
func (b *Builder) Rebuild(ctx context.Context) error {
	jobID := uuid.New().String()
	since := time.Now().Add(-b.cfg.Window)

	history, err := b.source.LabeledTexts(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to read labeled history: %w", err)
	}

	terms := b.Aggregate(history)

	if b.store != nil {
		if err := b.store.ReplaceLexicon(ctx, terms); err != nil {
			return fmt.Errorf("failed to persist lexicon: %w", err)
		}
	}

	b.snapshot.Swap(&Lexicon{Terms: terms, BuiltAt: time.Now(), JobID: jobID})

	total := 0
	for _, ts := range terms {
		total += len(ts)
	}
	b.logger.Info("Lexicon rebuilt",
		zap.String("job_id", jobID),
		zap.Int("history_size", len(history)),
		zap.Int("terms", total))
	return nil
}

// Aggregate derives the label→terms mapping from labeled history. A term
// is admitted only when it occurs at least MinCount times and its dominant
// label accounts for at least MinPurity of all its occurrences.
func (b *Builder) Aggregate(history []LabeledText) map[models.Label][]string {
	type counts struct {
		total   int
		byLabel map[models.Label]int
	}
	termCounts := make(map[string]*counts)

	for _, item := range history {
		if !item.Label.Valid() {
			continue
		}
		for _, term := range Tokenize(item.Text) {
			c := termCounts[term]
			if c == nil {
				c = &counts{byLabel: make(map[models.Label]int)}
				termCounts[term] = c
			}
			c.total++
			c.byLabel[item.Label]++
		}
	}

	terms := make(map[models.Label][]string, len(models.AllLabels))
	for term, c := range termCounts {
		if c.total < b.cfg.MinCount {
			continue
		}
		var dominant models.Label
		best := 0
		for _, label := range models.AllLabels {
			if c.byLabel[label] > best {
				dominant = label
				best = c.byLabel[label]
			}
		}
		if float64(best)/float64(c.total) < b.cfg.MinPurity {
			continue
		}
		terms[dominant] = append(terms[dominant], term)
	}

	for label := range terms {
		sort.Strings(terms[label])
	}
	return terms
}

// Tokenize splits text into candidate terms: runs of letters or digits,
// with CJK runs additionally contributing character bigrams so short
// Japanese phrases surface without a morphological analyzer.
func Tokenize(text string) []string {
	var tokens []string
	var run []rune
	cjk := false

	flush := func() {
		if len(run) < 2 {
			run = run[:0]
			return
		}
		word := strings.ToLower(string(run))
		if cjk {
			if len(run) <= 8 {
				tokens = append(tokens, word)
			}
			for i := 0; i+1 < len(run); i++ {
				tokens = append(tokens, string(run[i:i+2]))
			}
		} else {
			tokens = append(tokens, word)
		}
		run = run[:0]
	}

	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			isCJK := unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana)
			if len(run) > 0 && isCJK != cjk {
				flush()
			}
			cjk = isCJK
			run = append(run, r)
		default:
			flush()
		}
	}
	flush()

	seen := make(map[string]bool, len(tokens))
	unique := tokens[:0]
	for _, tok := range tokens {
		if !seen[tok] {
			seen[tok] = true
			unique = append(unique, tok)
		}
	}
	return unique
}
