package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/models"
)

// SurveySummary aggregates fairness ratings for one channel.
type SurveySummary struct {
	ServerID     string  `db:"server_id"`
	ChannelID    string  `db:"channel_id"`
	Ratings      int     `db:"ratings"`
	AverageScore float64 `db:"average_score"`
}

type SurveyRepository interface {
	SaveRating(ctx context.Context, rating *models.SurveyRating) error
	Summary(ctx context.Context, serverID, channelID string) (*SurveySummary, error)
	ListRatings(ctx context.Context, serverID, channelID string, limit int) ([]*models.SurveyRating, error)
}

type surveyRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewSurveyRepository(db *sqlx.DB, logger *zap.Logger) SurveyRepository {
	return &surveyRepository{db: db, logger: logger}
}

func (r *surveyRepository) SaveRating(ctx context.Context, rating *models.SurveyRating) error {
	// A rater's latest score for a channel replaces their previous one.
	query := `INSERT INTO survey_ratings (server_id, channel_id, rater_id, score, note)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (server_id, channel_id, rater_id) DO UPDATE SET
	              score = EXCLUDED.score,
	              note  = EXCLUDED.note
	          RETURNING id, created_at`
	return r.db.QueryRowxContext(ctx, query,
		rating.ServerID, rating.ChannelID, rating.RaterID, rating.Score, rating.Note).
		Scan(&rating.ID, &rating.CreatedAt)
}

func (r *surveyRepository) Summary(ctx context.Context, serverID, channelID string) (*SurveySummary, error) {
	var summary SurveySummary
	query := `SELECT server_id, channel_id, COUNT(*) AS ratings, AVG(score) AS average_score
	          FROM survey_ratings
	          WHERE server_id = $1 AND channel_id = $2
	          GROUP BY server_id, channel_id`
	err := r.db.GetContext(ctx, &summary, query, serverID, channelID)
	if err != nil {
		if err == sql.ErrNoRows {
			return &SurveySummary{ServerID: serverID, ChannelID: channelID}, nil
		}
		return nil, err
	}
	return &summary, nil
}

func (r *surveyRepository) ListRatings(ctx context.Context, serverID, channelID string, limit int) ([]*models.SurveyRating, error) {
	var ratings []*models.SurveyRating
	query := `SELECT id, server_id, channel_id, rater_id, score, note, created_at
	          FROM survey_ratings
	          WHERE server_id = $1 AND channel_id = $2
	          ORDER BY created_at DESC
	          LIMIT $3`
	err := r.db.SelectContext(ctx, &ratings, query, serverID, channelID, limit)
	if err != nil {
		return nil, err
	}
	return ratings, nil
}
