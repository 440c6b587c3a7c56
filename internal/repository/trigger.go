package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/models"
)

// TriggerUpsert describes one grant-side trigger mutation.
type TriggerUpsert struct {
	ServerID      string
	PhraseRaw     string
	PhraseNorm    string
	Label         models.Label
	InitialWeight float64
	WeightDelta   float64
	MaxWeight     float64
}

// TriggerDecrement describes one revoke-side trigger mutation. Phrase may
// be either the normalized or the raw rendering; scope-qualified rows are
// preferred over scope-agnostic ones.
type TriggerDecrement struct {
	ServerID    string
	Phrase      string
	PhraseNorm  string
	Label       models.Label
	By          int
	WeightDelta float64
}

type TriggerRepository interface {
	ListByScope(ctx context.Context, serverID string) ([]*models.Trigger, error)
	GetByKey(ctx context.Context, serverID, phraseNorm string, label models.Label) (*models.Trigger, error)
	// UpsertOnGrant creates the row with hit count 1, or atomically bumps
	// hit count and weight in a single statement so concurrent grants for
	// the same key never lose updates. Runs on the caller's transaction.
	UpsertOnGrant(ctx context.Context, q sqlx.ExtContext, up TriggerUpsert) (*models.TriggerDelta, error)
	// DecrementOnRevoke symmetrically reduces hit count and weight and
	// deletes the row once the hit count reaches zero or below. A miss is
	// a no-op, not an error. Runs on the caller's transaction.
	DecrementOnRevoke(ctx context.Context, q sqlx.ExtContext, dec TriggerDecrement) (*models.TriggerDelta, error)
	TopTriggers(ctx context.Context, serverID string, limit int) ([]*models.Trigger, error)
}

type triggerRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewTriggerRepository(db *sqlx.DB, logger *zap.Logger) TriggerRepository {
	return &triggerRepository{db: db, logger: logger}
}

func (r *triggerRepository) ListByScope(ctx context.Context, serverID string) ([]*models.Trigger, error) {
	var triggers []*models.Trigger
	query := `SELECT id, server_id, phrase_norm, phrase_raw, pattern, label, hit_count, weight, created_at
	          FROM triggers
	          WHERE server_id = $1 OR server_id = ''
	          ORDER BY (server_id = $1) DESC, id`
	err := r.db.SelectContext(ctx, &triggers, query, serverID)
	if err != nil {
		return nil, err
	}
	return triggers, nil
}

func (r *triggerRepository) GetByKey(ctx context.Context, serverID, phraseNorm string, label models.Label) (*models.Trigger, error) {
	var trigger models.Trigger
	query := `SELECT id, server_id, phrase_norm, phrase_raw, pattern, label, hit_count, weight, created_at
	          FROM triggers WHERE server_id = $1 AND phrase_norm = $2 AND label = $3`
	err := r.db.GetContext(ctx, &trigger, query, serverID, phraseNorm, label)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &trigger, nil
}

func (r *triggerRepository) UpsertOnGrant(ctx context.Context, q sqlx.ExtContext, up TriggerUpsert) (*models.TriggerDelta, error) {
	query := `INSERT INTO triggers (server_id, phrase_norm, phrase_raw, label, hit_count, weight)
	          VALUES ($1, $2, $3, $4, 1, $5)
	          ON CONFLICT (server_id, phrase_norm, label) DO UPDATE SET
	              hit_count = triggers.hit_count + 1,
	              weight    = LEAST(triggers.weight + $6, $7)
	          RETURNING hit_count, weight`

	var hitCount int
	var weight float64
	err := q.QueryRowxContext(ctx, query, up.ServerID, up.PhraseNorm, up.PhraseRaw, up.Label,
		up.InitialWeight, up.WeightDelta, up.MaxWeight).Scan(&hitCount, &weight)
	if err != nil {
		return nil, err
	}

	return &models.TriggerDelta{
		Label:    up.Label,
		Phrase:   up.PhraseRaw,
		HitCount: hitCount,
		Weight:   weight,
	}, nil
}

func (r *triggerRepository) DecrementOnRevoke(ctx context.Context, q sqlx.ExtContext, dec TriggerDecrement) (*models.TriggerDelta, error) {
	// Single conditional update: the target row is located by normalized
	// or raw phrase with scope-qualified rows first, then decremented in
	// place so interleaved revocations cannot lose updates.
	query := `
		UPDATE triggers SET
			hit_count = hit_count - $1,
			weight    = GREATEST(weight - $2, 0)
		WHERE id = (
			SELECT id FROM triggers
			WHERE (phrase_norm = $3 OR phrase_raw = $4)
			  AND label = $5
			  AND (server_id = $6 OR server_id = '')
			ORDER BY (server_id = $6) DESC, id
			LIMIT 1
		)
		RETURNING id, phrase_raw, hit_count, weight`

	var id int64
	var phraseRaw string
	var hitCount int
	var weight float64
	err := q.QueryRowxContext(ctx, query, dec.By, float64(dec.By)*dec.WeightDelta,
		dec.PhraseNorm, dec.Phrase, dec.Label, dec.ServerID).Scan(&id, &phraseRaw, &hitCount, &weight)
	if err != nil {
		if err == sql.ErrNoRows {
			// Revoking feedback that never built a trigger is a no-op.
			return nil, nil
		}
		return nil, err
	}

	delta := &models.TriggerDelta{
		Label:    dec.Label,
		Phrase:   phraseRaw,
		HitCount: hitCount,
		Weight:   weight,
	}

	if hitCount <= 0 {
		if _, err := q.ExecContext(ctx, `DELETE FROM triggers WHERE id = $1`, id); err != nil {
			return nil, err
		}
		delta.HitCount = 0
		delta.Weight = 0
		delta.Deleted = true
	}
	return delta, nil
}

func (r *triggerRepository) TopTriggers(ctx context.Context, serverID string, limit int) ([]*models.Trigger, error) {
	var triggers []*models.Trigger
	query := `SELECT id, server_id, phrase_norm, phrase_raw, pattern, label, hit_count, weight, created_at
	          FROM triggers
	          WHERE server_id = $1 OR server_id = ''
	          ORDER BY hit_count DESC, weight DESC
	          LIMIT $2`
	err := r.db.SelectContext(ctx, &triggers, query, serverID, limit)
	if err != nil {
		return nil, err
	}
	return triggers, nil
}
