package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/models"
)

type LabelRecordRepository interface {
	// AppendRecord inserts a new record; classification history is
	// append-only and rows are never updated in place.
	AppendRecord(ctx context.Context, record *models.LabelRecord) error
	GetLatestByMessage(ctx context.Context, messageID int64) (*models.LabelRecord, error)
	CountByLabel(ctx context.Context, serverID string, since time.Time) (map[models.Label]int, error)
}

type labelRecordRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewLabelRecordRepository(db *sqlx.DB, logger *zap.Logger) LabelRecordRepository {
	return &labelRecordRepository{db: db, logger: logger}
}

func (r *labelRecordRepository) AppendRecord(ctx context.Context, record *models.LabelRecord) error {
	query := `INSERT INTO label_records (message_id, label, labels, confidence, rationale)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	return r.db.QueryRowxContext(ctx, query, record.MessageID, record.Label, record.Labels,
		record.Confidence, record.Rationale).Scan(&record.ID, &record.CreatedAt)
}

func (r *labelRecordRepository) GetLatestByMessage(ctx context.Context, messageID int64) (*models.LabelRecord, error) {
	var record models.LabelRecord
	query := `SELECT id, message_id, label, labels, confidence, rationale, created_at
	          FROM label_records WHERE message_id = $1
	          ORDER BY created_at DESC, id DESC LIMIT 1`
	err := r.db.GetContext(ctx, &record, query, messageID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// CountByLabel aggregates the most recent label per message for the
// dashboard distribution.
func (r *labelRecordRepository) CountByLabel(ctx context.Context, serverID string, since time.Time) (map[models.Label]int, error) {
	query := `
		SELECT lr.label, COUNT(*) AS count
		FROM messages m
		JOIN LATERAL (
			SELECT label FROM label_records
			WHERE message_id = m.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lr ON true
		WHERE m.server_id = $1 AND m.timestamp >= $2 AND m.excluded = false
		GROUP BY lr.label
	`

	rows, err := r.db.QueryxContext(ctx, query, serverID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.Label]int)
	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			r.logger.Error("Failed to scan label count", zap.Error(err))
			continue
		}
		if l, ok := models.ParseLabel(label); ok {
			counts[l] = count
		}
	}
	return counts, rows.Err()
}
