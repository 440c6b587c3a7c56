package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/models"
)

type FeedbackRepository interface {
	// Upsert inserts a (message, user, label) row or refreshes its
	// confidence and notes when the same user re-grants the same label.
	// Returns true when a new row was created. Runs on the caller's
	// transaction.
	Upsert(ctx context.Context, q sqlx.ExtContext, fb *models.Feedback) (bool, error)
	// DeleteByUser removes the user's feedback rows for a message,
	// optionally restricted to a label subset, and returns the deleted
	// rows so the caller can mirror the removal onto triggers. Runs on
	// the caller's transaction.
	DeleteByUser(ctx context.Context, q sqlx.ExtContext, messageID int64, userID string, labels []models.Label) ([]*models.Feedback, error)
	ListByMessage(ctx context.Context, messageID int64) ([]*models.Feedback, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

type feedbackRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewFeedbackRepository(db *sqlx.DB, logger *zap.Logger) FeedbackRepository {
	return &feedbackRepository{db: db, logger: logger}
}

func (r *feedbackRepository) Upsert(ctx context.Context, q sqlx.ExtContext, fb *models.Feedback) (bool, error) {
	query := `INSERT INTO feedback (message_id, user_id, label, confidence, notes)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (message_id, user_id, label) DO UPDATE SET
	              confidence = EXCLUDED.confidence,
	              notes      = EXCLUDED.notes
	          RETURNING id, created_at, (xmax = 0) AS inserted`

	var inserted bool
	err := q.QueryRowxContext(ctx, query, fb.MessageID, fb.UserID, fb.Label, fb.Confidence, fb.Notes).
		Scan(&fb.ID, &fb.CreatedAt, &inserted)
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (r *feedbackRepository) DeleteByUser(ctx context.Context, q sqlx.ExtContext, messageID int64, userID string, labels []models.Label) ([]*models.Feedback, error) {
	query := `DELETE FROM feedback
	          WHERE message_id = $1 AND user_id = $2
	            AND ($3::text[] IS NULL OR label = ANY($3))
	          RETURNING id, message_id, user_id, label, confidence, notes, created_at`

	var labelArg interface{}
	if len(labels) > 0 {
		names := make([]string, len(labels))
		for i, l := range labels {
			names[i] = string(l)
		}
		labelArg = pq.Array(names)
	}

	rows, err := q.QueryxContext(ctx, query, messageID, userID, labelArg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deleted []*models.Feedback
	for rows.Next() {
		var fb models.Feedback
		if err := rows.StructScan(&fb); err != nil {
			return nil, err
		}
		deleted = append(deleted, &fb)
	}
	return deleted, rows.Err()
}

func (r *feedbackRepository) ListByMessage(ctx context.Context, messageID int64) ([]*models.Feedback, error) {
	var feedback []*models.Feedback
	query := `SELECT id, message_id, user_id, label, confidence, notes, created_at
	          FROM feedback WHERE message_id = $1 ORDER BY created_at, id`
	err := r.db.SelectContext(ctx, &feedback, query, messageID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return feedback, nil
}

func (r *feedbackRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM feedback WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return count, nil
}
