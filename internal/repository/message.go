package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/activation"
	"github.com/seseseee/discourse-insight/internal/models"
)

type MessageRepository interface {
	SaveMessage(ctx context.Context, msg *models.Message) error
	GetMessageByID(ctx context.Context, id int64) (*models.Message, error)
	GetMessageByPlatformID(ctx context.Context, serverID, messageID string) (*models.Message, error)
	CountMessages(ctx context.Context, serverID string, since time.Time) (int, error)
	ListSamples(ctx context.Context, serverID string, channelID *string, from, to time.Time) ([]activation.Sample, error)
}

type messageRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewMessageRepository(db *sqlx.DB, logger *zap.Logger) MessageRepository {
	return &messageRepository{db: db, logger: logger}
}

func (r *messageRepository) SaveMessage(ctx context.Context, msg *models.Message) error {
	query := `INSERT INTO messages (server_id, channel_id, message_id, author_id, author_is_bot, content, reply_to_id, excluded, timestamp)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	          ON CONFLICT (server_id, message_id) DO UPDATE SET content = messages.content
	          RETURNING id, created_at`
	return r.db.QueryRowxContext(ctx, query, msg.ServerID, msg.ChannelID, msg.MessageID, msg.AuthorID,
		msg.AuthorIsBot, msg.Content, msg.ReplyToID, msg.Excluded, msg.Timestamp).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *messageRepository) GetMessageByID(ctx context.Context, id int64) (*models.Message, error) {
	var msg models.Message
	query := `SELECT id, server_id, channel_id, message_id, author_id, author_is_bot, content, reply_to_id, excluded, timestamp, created_at
	          FROM messages WHERE id = $1`
	err := r.db.GetContext(ctx, &msg, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) GetMessageByPlatformID(ctx context.Context, serverID, messageID string) (*models.Message, error) {
	var msg models.Message
	query := `SELECT id, server_id, channel_id, message_id, author_id, author_is_bot, content, reply_to_id, excluded, timestamp, created_at
	          FROM messages WHERE server_id = $1 AND message_id = $2`
	err := r.db.GetContext(ctx, &msg, query, serverID, messageID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) CountMessages(ctx context.Context, serverID string, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM messages WHERE server_id = $1 AND timestamp >= $2 AND excluded = false`
	err := r.db.GetContext(ctx, &count, query, serverID, since)
	return count, err
}

// ListSamples reads classified, metric-eligible messages for activation
// scoring: bot authors and excluded channels never count.
func (r *messageRepository) ListSamples(ctx context.Context, serverID string, channelID *string, from, to time.Time) ([]activation.Sample, error) {
	query := `
		SELECT
			m.author_id,
			m.timestamp,
			COALESCE(lr.label, '') AS label
		FROM messages m
		LEFT JOIN LATERAL (
			SELECT label FROM label_records
			WHERE message_id = m.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lr ON true
		WHERE m.server_id = $1
		  AND ($2::text IS NULL OR m.channel_id = $2)
		  AND m.timestamp >= $3 AND m.timestamp < $4
		  AND m.author_is_bot = false
		  AND m.excluded = false
		ORDER BY m.timestamp
	`

	rows, err := r.db.QueryxContext(ctx, query, serverID, channelID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []activation.Sample
	for rows.Next() {
		var authorID, label string
		var ts time.Time
		if err := rows.Scan(&authorID, &ts, &label); err != nil {
			r.logger.Error("Failed to scan activation sample", zap.Error(err))
			continue
		}
		samples = append(samples, activation.Sample{
			AuthorID:  authorID,
			Timestamp: ts,
			Label:     models.Label(label),
		})
	}
	return samples, rows.Err()
}
