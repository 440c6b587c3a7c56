// Package feedback turns human label corrections into durable ledger rows
// and learned trigger phrases. A grant records the labels and strengthens
// the matching triggers; a revoke reverses both, symmetrically.
package feedback

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/classifier"
	"github.com/seseseee/discourse-insight/internal/models"
	"github.com/seseseee/discourse-insight/internal/repository"
)

// ErrNotTrusted is returned when the acting user is not on the trust list.
var ErrNotTrusted = fmt.Errorf("user is not allowed to submit feedback")

type Config struct {
	// MaxLabelsPerGrant caps how many labels one grant may carry.
	MaxLabelsPerGrant int
	// WeightDelta is added to a trigger's weight per repeated grant.
	WeightDelta float64
	// MaxWeight clamps trigger weight growth.
	MaxWeight float64
	// TrustedUsers restricts who may grant or revoke. Empty means open.
	TrustedUsers []string
	// RetryElapsed bounds transaction retries on transient failures.
	RetryElapsed time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxLabelsPerGrant: 3,
		WeightDelta:       0.1,
		MaxWeight:         5.0,
		RetryElapsed:      15 * time.Second,
	}
}

// GrantRequest applies one user's labels to one message.
type GrantRequest struct {
	ServerID  string
	MessageID int64
	UserID    string
	// Labels are raw label tokens; unknown tokens are dropped.
	Labels     []string
	Confidence *float64
	Notes      string
}

type RevokeRequest struct {
	ServerID  string
	MessageID int64
	UserID    string
	// Labels optionally restricts the revoke; empty removes all of the
	// user's labels on the message.
	Labels []string
}

// Receipt reports what a grant or revoke actually changed.
type Receipt struct {
	AppliedLabels []models.Label        `json:"applied_labels"`
	TriggerDeltas []models.TriggerDelta `json:"trigger_deltas"`
}

type Ledger struct {
	cfg      Config
	tx       repository.TxRunner
	feedback repository.FeedbackRepository
	triggers repository.TriggerRepository
	messages repository.MessageRepository
	trusted  map[string]struct{}
	logger   *zap.Logger
}

func NewLedger(
	cfg Config,
	tx repository.TxRunner,
	feedbackRepo repository.FeedbackRepository,
	triggerRepo repository.TriggerRepository,
	messageRepo repository.MessageRepository,
	logger *zap.Logger,
) *Ledger {
	trusted := make(map[string]struct{}, len(cfg.TrustedUsers))
	for _, id := range cfg.TrustedUsers {
		trusted[id] = struct{}{}
	}
	return &Ledger{
		cfg:      cfg,
		tx:       tx,
		feedback: feedbackRepo,
		triggers: triggerRepo,
		messages: messageRepo,
		trusted:  trusted,
		logger:   logger,
	}
}

func (l *Ledger) allowed(userID string) bool {
	if len(l.trusted) == 0 {
		return true
	}
	_, ok := l.trusted[userID]
	return ok
}

// Grant records the user's labels for a message and strengthens one trigger
// per label keyed on the message text. Re-granting the same label refreshes
// the ledger row and still bumps the trigger, so repetition keeps teaching.
func (l *Ledger) Grant(ctx context.Context, req GrantRequest) (*Receipt, error) {
	if !l.allowed(req.UserID) {
		return nil, ErrNotTrusted
	}

	labels := models.ParseLabels(req.Labels)
	if len(labels) == 0 {
		return nil, fmt.Errorf("no valid labels in %v", req.Labels)
	}
	if l.cfg.MaxLabelsPerGrant > 0 && len(labels) > l.cfg.MaxLabelsPerGrant {
		labels = labels[:l.cfg.MaxLabelsPerGrant]
	}

	msg, err := l.messages.GetMessageByID(ctx, req.MessageID)
	if err != nil {
		return nil, fmt.Errorf("load message %d: %w", req.MessageID, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("message %d not found", req.MessageID)
	}

	phraseNorm := classifier.NormalizePhrase(msg.Content)
	// Splitting the grant across k labels keeps the total injected weight
	// independent of how many labels the user attached.
	initialWeight := 1.0 / float64(len(labels))

	receipt := &Receipt{}
	run := func() error {
		receipt.AppliedLabels = receipt.AppliedLabels[:0]
		receipt.TriggerDeltas = receipt.TriggerDeltas[:0]
		return l.tx.RunTx(ctx, func(q sqlx.ExtContext) error {
			for _, label := range labels {
				fb := &models.Feedback{
					MessageID:  req.MessageID,
					UserID:     req.UserID,
					Label:      label,
					Confidence: req.Confidence,
					Notes:      req.Notes,
				}
				if _, err := l.feedback.Upsert(ctx, q, fb); err != nil {
					return fmt.Errorf("record feedback: %w", err)
				}
				delta, err := l.triggers.UpsertOnGrant(ctx, q, repository.TriggerUpsert{
					ServerID:      req.ServerID,
					PhraseRaw:     msg.Content,
					PhraseNorm:    phraseNorm,
					Label:         label,
					InitialWeight: initialWeight,
					WeightDelta:   l.cfg.WeightDelta,
					MaxWeight:     l.cfg.MaxWeight,
				})
				if err != nil {
					return fmt.Errorf("update trigger: %w", err)
				}
				receipt.AppliedLabels = append(receipt.AppliedLabels, label)
				receipt.TriggerDeltas = append(receipt.TriggerDeltas, *delta)
			}
			return nil
		})
	}

	if err := l.retry(ctx, run); err != nil {
		return nil, err
	}

	l.logger.Info("feedback granted",
		zap.Int64("message_id", req.MessageID),
		zap.String("user_id", req.UserID),
		zap.Any("labels", receipt.AppliedLabels))
	return receipt, nil
}

// Revoke removes the user's ledger rows for a message and walks back the
// trigger reinforcement those rows produced. Revoking labels that were
// never granted is a no-op.
func (l *Ledger) Revoke(ctx context.Context, req RevokeRequest) (*Receipt, error) {
	if !l.allowed(req.UserID) {
		return nil, ErrNotTrusted
	}

	subset := models.ParseLabels(req.Labels)

	msg, err := l.messages.GetMessageByID(ctx, req.MessageID)
	if err != nil {
		return nil, fmt.Errorf("load message %d: %w", req.MessageID, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("message %d not found", req.MessageID)
	}
	phraseNorm := classifier.NormalizePhrase(msg.Content)

	receipt := &Receipt{}
	run := func() error {
		receipt.AppliedLabels = receipt.AppliedLabels[:0]
		receipt.TriggerDeltas = receipt.TriggerDeltas[:0]
		return l.tx.RunTx(ctx, func(q sqlx.ExtContext) error {
			deleted, err := l.feedback.DeleteByUser(ctx, q, req.MessageID, req.UserID, subset)
			if err != nil {
				return fmt.Errorf("delete feedback: %w", err)
			}
			removedPerLabel := make(map[models.Label]int)
			for _, fb := range deleted {
				removedPerLabel[fb.Label]++
			}
			for _, label := range models.AllLabels {
				count, ok := removedPerLabel[label]
				if !ok {
					continue
				}
				delta, err := l.triggers.DecrementOnRevoke(ctx, q, repository.TriggerDecrement{
					ServerID:    req.ServerID,
					Phrase:      msg.Content,
					PhraseNorm:  phraseNorm,
					Label:       label,
					By:          count,
					WeightDelta: l.cfg.WeightDelta,
				})
				if err != nil {
					return fmt.Errorf("decrement trigger: %w", err)
				}
				receipt.AppliedLabels = append(receipt.AppliedLabels, label)
				if delta != nil {
					receipt.TriggerDeltas = append(receipt.TriggerDeltas, *delta)
				}
			}
			return nil
		})
	}

	if err := l.retry(ctx, run); err != nil {
		return nil, err
	}

	l.logger.Info("feedback revoked",
		zap.Int64("message_id", req.MessageID),
		zap.String("user_id", req.UserID),
		zap.Any("labels", receipt.AppliedLabels))
	return receipt, nil
}

func (l *Ledger) retry(ctx context.Context, run func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = l.cfg.RetryElapsed
	return backoff.Retry(func() error {
		err := run()
		if err == nil || retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(policy, ctx))
}

// retryable reports whether the transaction failed on transient storage
// contention. Only serialization/deadlock rollbacks and connection
// failures are worth re-running; constraint violations and other input
// errors surface to the caller immediately.
func retryable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		class := pqErr.Code.Class()
		return class == "40" || class == "08"
	}
	return false
}
