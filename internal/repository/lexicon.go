package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/lexicon"
	"github.com/seseseee/discourse-insight/internal/models"
)

type LexiconRepository interface {
	// ReplaceLexicon swaps the persisted lexicon for the given term set
	// in a single transaction, so readers never observe a half-built one.
	ReplaceLexicon(ctx context.Context, terms map[models.Label][]string) error
	LoadLexicon(ctx context.Context) (map[models.Label][]string, error)
	// LabeledTexts returns message texts with their effective label since
	// the given time. Human feedback outranks the recorded label.
	LabeledTexts(ctx context.Context, since time.Time) ([]lexicon.LabeledText, error)
}

type lexiconRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewLexiconRepository(db *sqlx.DB, logger *zap.Logger) LexiconRepository {
	return &lexiconRepository{db: db, logger: logger}
}

func (r *lexiconRepository) ReplaceLexicon(ctx context.Context, terms map[models.Label][]string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin lexicon tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM dynamic_lexicon`); err != nil {
		return fmt.Errorf("clear lexicon: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO dynamic_lexicon (label, term) VALUES ($1, $2)`)
	if err != nil {
		return fmt.Errorf("prepare lexicon insert: %w", err)
	}
	defer stmt.Close()

	for label, words := range terms {
		for _, word := range words {
			if _, err := stmt.ExecContext(ctx, label, word); err != nil {
				return fmt.Errorf("insert lexicon term: %w", err)
			}
		}
	}

	return tx.Commit()
}

func (r *lexiconRepository) LoadLexicon(ctx context.Context) (map[models.Label][]string, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT label, term FROM dynamic_lexicon ORDER BY label, term`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	terms := make(map[models.Label][]string)
	for rows.Next() {
		var label models.Label
		var term string
		if err := rows.Scan(&label, &term); err != nil {
			return nil, err
		}
		terms[label] = append(terms[label], term)
	}
	return terms, rows.Err()
}

func (r *lexiconRepository) LabeledTexts(ctx context.Context, since time.Time) ([]lexicon.LabeledText, error) {
	query := `SELECT m.content AS text, COALESCE(fb.label, lr.label) AS label
	          FROM messages m
	          LEFT JOIN LATERAL (
	              SELECT label FROM label_records
	              WHERE message_id = m.id
	              ORDER BY created_at DESC, id DESC LIMIT 1
	          ) lr ON true
	          LEFT JOIN LATERAL (
	              SELECT label FROM feedback
	              WHERE message_id = m.id
	              ORDER BY created_at DESC, id DESC LIMIT 1
	          ) fb ON true
	          WHERE m.timestamp >= $1
	            AND m.author_is_bot = false
	            AND m.excluded = false
	            AND COALESCE(fb.label, lr.label) IS NOT NULL
	          ORDER BY m.timestamp`

	rows, err := r.db.QueryxContext(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var texts []lexicon.LabeledText
	for rows.Next() {
		var text string
		var label models.Label
		if err := rows.Scan(&text, &label); err != nil {
			return nil, err
		}
		if !label.Valid() {
			continue
		}
		texts = append(texts, lexicon.LabeledText{Text: text, Label: label})
	}
	return texts, rows.Err()
}
