package feedback

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/activation"
	"github.com/seseseee/discourse-insight/internal/models"
	"github.com/seseseee/discourse-insight/internal/repository"
)

type fakeTx struct{}

func (fakeTx) RunTx(ctx context.Context, fn func(q sqlx.ExtContext) error) error {
	return fn(nil)
}

type feedbackKey struct {
	messageID int64
	userID    string
	label     models.Label
}

type fakeFeedbackRepo struct {
	rows   map[feedbackKey]*models.Feedback
	nextID int64
}

func newFakeFeedbackRepo() *fakeFeedbackRepo {
	return &fakeFeedbackRepo{rows: make(map[feedbackKey]*models.Feedback)}
}

func (f *fakeFeedbackRepo) Upsert(ctx context.Context, q sqlx.ExtContext, fb *models.Feedback) (bool, error) {
	key := feedbackKey{fb.MessageID, fb.UserID, fb.Label}
	if existing, ok := f.rows[key]; ok {
		existing.Confidence = fb.Confidence
		existing.Notes = fb.Notes
		return false, nil
	}
	f.nextID++
	stored := *fb
	stored.ID = f.nextID
	f.rows[key] = &stored
	return true, nil
}

func (f *fakeFeedbackRepo) DeleteByUser(ctx context.Context, q sqlx.ExtContext, messageID int64, userID string, labels []models.Label) ([]*models.Feedback, error) {
	subset := make(map[models.Label]bool, len(labels))
	for _, l := range labels {
		subset[l] = true
	}
	var deleted []*models.Feedback
	for key, row := range f.rows {
		if key.messageID != messageID || key.userID != userID {
			continue
		}
		if len(subset) > 0 && !subset[key.label] {
			continue
		}
		deleted = append(deleted, row)
		delete(f.rows, key)
	}
	return deleted, nil
}

func (f *fakeFeedbackRepo) ListByMessage(ctx context.Context, messageID int64) ([]*models.Feedback, error) {
	var out []*models.Feedback
	for key, row := range f.rows {
		if key.messageID == messageID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeFeedbackRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	count := 0
	for key := range f.rows {
		if key.userID == userID {
			count++
		}
	}
	return count, nil
}

type triggerKey struct {
	serverID   string
	phraseNorm string
	label      models.Label
}

type fakeTriggerRepo struct {
	rows map[triggerKey]*models.Trigger
}

func newFakeTriggerRepo() *fakeTriggerRepo {
	return &fakeTriggerRepo{rows: make(map[triggerKey]*models.Trigger)}
}

func (f *fakeTriggerRepo) ListByScope(ctx context.Context, serverID string) ([]*models.Trigger, error) {
	var out []*models.Trigger
	for key, row := range f.rows {
		if key.serverID == serverID || key.serverID == "" {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeTriggerRepo) GetByKey(ctx context.Context, serverID, phraseNorm string, label models.Label) (*models.Trigger, error) {
	return f.rows[triggerKey{serverID, phraseNorm, label}], nil
}

func (f *fakeTriggerRepo) UpsertOnGrant(ctx context.Context, q sqlx.ExtContext, up repository.TriggerUpsert) (*models.TriggerDelta, error) {
	key := triggerKey{up.ServerID, up.PhraseNorm, up.Label}
	row, ok := f.rows[key]
	if !ok {
		row = &models.Trigger{
			ServerID:   up.ServerID,
			PhraseNorm: up.PhraseNorm,
			PhraseRaw:  up.PhraseRaw,
			Label:      up.Label,
			HitCount:   1,
			Weight:     up.InitialWeight,
		}
		f.rows[key] = row
	} else {
		row.HitCount++
		row.Weight += up.WeightDelta
		if row.Weight > up.MaxWeight {
			row.Weight = up.MaxWeight
		}
	}
	return &models.TriggerDelta{
		Label:    up.Label,
		Phrase:   up.PhraseNorm,
		HitCount: row.HitCount,
		Weight:   row.Weight,
	}, nil
}

func (f *fakeTriggerRepo) DecrementOnRevoke(ctx context.Context, q sqlx.ExtContext, dec repository.TriggerDecrement) (*models.TriggerDelta, error) {
	key := triggerKey{dec.ServerID, dec.PhraseNorm, dec.Label}
	row, ok := f.rows[key]
	if !ok {
		key = triggerKey{"", dec.PhraseNorm, dec.Label}
		if row, ok = f.rows[key]; !ok {
			return nil, nil
		}
	}
	row.HitCount -= dec.By
	row.Weight -= float64(dec.By) * dec.WeightDelta
	delta := &models.TriggerDelta{
		Label:    dec.Label,
		Phrase:   dec.PhraseNorm,
		HitCount: row.HitCount,
		Weight:   row.Weight,
	}
	if row.HitCount <= 0 {
		delete(f.rows, key)
		delta.HitCount = 0
		delta.Weight = 0
		delta.Deleted = true
	}
	return delta, nil
}

func (f *fakeTriggerRepo) TopTriggers(ctx context.Context, serverID string, limit int) ([]*models.Trigger, error) {
	return f.ListByScope(ctx, serverID)
}

type fakeMessageRepo struct {
	messages map[int64]*models.Message
}

func (f *fakeMessageRepo) SaveMessage(ctx context.Context, msg *models.Message) error {
	f.messages[msg.ID] = msg
	return nil
}

func (f *fakeMessageRepo) GetMessageByID(ctx context.Context, id int64) (*models.Message, error) {
	return f.messages[id], nil
}

func (f *fakeMessageRepo) GetMessageByPlatformID(ctx context.Context, serverID, messageID string) (*models.Message, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeMessageRepo) CountMessages(ctx context.Context, serverID string, since time.Time) (int, error) {
	return len(f.messages), nil
}

func (f *fakeMessageRepo) ListSamples(ctx context.Context, serverID string, channelID *string, from, to time.Time) ([]activation.Sample, error) {
	return nil, nil
}

type ledgerFixture struct {
	ledger   *Ledger
	feedback *fakeFeedbackRepo
	triggers *fakeTriggerRepo
}

func newLedgerFixture(t *testing.T, cfg Config) *ledgerFixture {
	t.Helper()
	if cfg.RetryElapsed == 0 {
		cfg.RetryElapsed = 100 * time.Millisecond
	}
	feedbackRepo := newFakeFeedbackRepo()
	triggerRepo := newFakeTriggerRepo()
	messageRepo := &fakeMessageRepo{messages: map[int64]*models.Message{
		42: {ID: 42, ServerID: "srv", Content: "それな！！"},
	}}
	return &ledgerFixture{
		ledger:   NewLedger(cfg, fakeTx{}, feedbackRepo, triggerRepo, messageRepo, zap.NewNop()),
		feedback: feedbackRepo,
		triggers: triggerRepo,
	}
}

func TestGrantRecordsFeedbackAndTrigger(t *testing.T) {
	fx := newLedgerFixture(t, DefaultConfig())

	receipt, err := fx.ledger.Grant(context.Background(), GrantRequest{
		ServerID:  "srv",
		MessageID: 42,
		UserID:    "u1",
		Labels:    []string{"EM"},
	})

	require.NoError(t, err)
	assert.Equal(t, []models.Label{models.LabelEmotion}, receipt.AppliedLabels)
	require.Len(t, receipt.TriggerDeltas, 1)
	assert.Equal(t, 1, receipt.TriggerDeltas[0].HitCount)
	assert.InDelta(t, 1.0, receipt.TriggerDeltas[0].Weight, 1e-9)
	assert.Len(t, fx.feedback.rows, 1)
	assert.Len(t, fx.triggers.rows, 1)
}

func TestGrantSplitsWeightAcrossLabels(t *testing.T) {
	fx := newLedgerFixture(t, DefaultConfig())

	receipt, err := fx.ledger.Grant(context.Background(), GrantRequest{
		ServerID:  "srv",
		MessageID: 42,
		UserID:    "u1",
		Labels:    []string{"Q", "EM"},
	})

	require.NoError(t, err)
	require.Len(t, receipt.TriggerDeltas, 2)
	for _, delta := range receipt.TriggerDeltas {
		assert.InDelta(t, 0.5, delta.Weight, 1e-9)
	}
}

func TestGrantCapsLabelCount(t *testing.T) {
	fx := newLedgerFixture(t, DefaultConfig())

	receipt, err := fx.ledger.Grant(context.Background(), GrantRequest{
		ServerID:  "srv",
		MessageID: 42,
		UserID:    "u1",
		Labels:    []string{"TP", "Q", "S", "EM"},
	})

	require.NoError(t, err)
	assert.Len(t, receipt.AppliedLabels, 3)
}

func TestGrantRejectsUnknownLabels(t *testing.T) {
	fx := newLedgerFixture(t, DefaultConfig())

	_, err := fx.ledger.Grant(context.Background(), GrantRequest{
		ServerID:  "srv",
		MessageID: 42,
		UserID:    "u1",
		Labels:    []string{"XX", "??"},
	})

	assert.Error(t, err)
	assert.Empty(t, fx.feedback.rows)
}

func TestGrantEnforcesTrustList(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrustedUsers = []string{"alice"}
	fx := newLedgerFixture(t, cfg)

	_, err := fx.ledger.Grant(context.Background(), GrantRequest{
		ServerID:  "srv",
		MessageID: 42,
		UserID:    "bob",
		Labels:    []string{"EM"},
	})

	assert.ErrorIs(t, err, ErrNotTrusted)
}

func TestGrantUnknownMessage(t *testing.T) {
	fx := newLedgerFixture(t, DefaultConfig())

	_, err := fx.ledger.Grant(context.Background(), GrantRequest{
		ServerID:  "srv",
		MessageID: 999,
		UserID:    "u1",
		Labels:    []string{"EM"},
	})

	assert.Error(t, err)
}

func TestRegrantRefreshesRowAndBumpsTrigger(t *testing.T) {
	fx := newLedgerFixture(t, DefaultConfig())
	req := GrantRequest{ServerID: "srv", MessageID: 42, UserID: "u1", Labels: []string{"EM"}}

	_, err := fx.ledger.Grant(context.Background(), req)
	require.NoError(t, err)
	receipt, err := fx.ledger.Grant(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, fx.feedback.rows, 1)
	require.Len(t, receipt.TriggerDeltas, 1)
	assert.Equal(t, 2, receipt.TriggerDeltas[0].HitCount)
	assert.InDelta(t, 1.1, receipt.TriggerDeltas[0].Weight, 1e-9)
}

func TestRevokeReversesGrant(t *testing.T) {
	fx := newLedgerFixture(t, DefaultConfig())
	_, err := fx.ledger.Grant(context.Background(), GrantRequest{
		ServerID: "srv", MessageID: 42, UserID: "u1", Labels: []string{"EM"},
	})
	require.NoError(t, err)

	receipt, err := fx.ledger.Revoke(context.Background(), RevokeRequest{
		ServerID: "srv", MessageID: 42, UserID: "u1",
	})

	require.NoError(t, err)
	assert.Equal(t, []models.Label{models.LabelEmotion}, receipt.AppliedLabels)
	require.Len(t, receipt.TriggerDeltas, 1)
	assert.True(t, receipt.TriggerDeltas[0].Deleted)
	assert.Empty(t, fx.feedback.rows)
	assert.Empty(t, fx.triggers.rows)
}

func TestRevokeSubsetLeavesOtherLabels(t *testing.T) {
	fx := newLedgerFixture(t, DefaultConfig())
	_, err := fx.ledger.Grant(context.Background(), GrantRequest{
		ServerID: "srv", MessageID: 42, UserID: "u1", Labels: []string{"Q", "EM"},
	})
	require.NoError(t, err)

	receipt, err := fx.ledger.Revoke(context.Background(), RevokeRequest{
		ServerID: "srv", MessageID: 42, UserID: "u1", Labels: []string{"EM"},
	})

	require.NoError(t, err)
	assert.Equal(t, []models.Label{models.LabelEmotion}, receipt.AppliedLabels)
	assert.Len(t, fx.feedback.rows, 1)
	assert.Len(t, fx.triggers.rows, 1)
}

func TestRevokeNeverGrantedIsNoOp(t *testing.T) {
	fx := newLedgerFixture(t, DefaultConfig())

	receipt, err := fx.ledger.Revoke(context.Background(), RevokeRequest{
		ServerID: "srv", MessageID: 42, UserID: "u1",
	})

	require.NoError(t, err)
	assert.Empty(t, receipt.AppliedLabels)
	assert.Empty(t, receipt.TriggerDeltas)
}

// failingFeedbackRepo fails Upsert with a scripted error sequence (errs,
// consumed one per call) or unconditionally (failWith), counting attempts.
type failingFeedbackRepo struct {
	*fakeFeedbackRepo
	failWith error
	errs     []error
	upserts  int
}

func (f *failingFeedbackRepo) Upsert(ctx context.Context, q sqlx.ExtContext, fb *models.Feedback) (bool, error) {
	f.upserts++
	if f.failWith != nil {
		return false, f.failWith
	}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return false, err
		}
	}
	return f.fakeFeedbackRepo.Upsert(ctx, q, fb)
}

func newRetryLedger(feedbackRepo repository.FeedbackRepository) *Ledger {
	cfg := DefaultConfig()
	cfg.RetryElapsed = 2 * time.Second
	messageRepo := &fakeMessageRepo{messages: map[int64]*models.Message{
		42: {ID: 42, ServerID: "srv", Content: "それな！！"},
	}}
	return NewLedger(cfg, fakeTx{}, feedbackRepo, newFakeTriggerRepo(), messageRepo, zap.NewNop())
}

func TestGrantDoesNotRetryConstraintViolations(t *testing.T) {
	repo := &failingFeedbackRepo{
		fakeFeedbackRepo: newFakeFeedbackRepo(),
		// foreign_key_violation: re-running the transaction can never
		// make it succeed
		failWith: &pq.Error{Code: "23503"},
	}
	ledger := newRetryLedger(repo)

	_, err := ledger.Grant(context.Background(), GrantRequest{
		ServerID: "srv", MessageID: 42, UserID: "u1", Labels: []string{"EM"},
	})

	assert.Error(t, err)
	assert.Equal(t, 1, repo.upserts)
}

func TestGrantRetriesSerializationFailure(t *testing.T) {
	repo := &failingFeedbackRepo{
		fakeFeedbackRepo: newFakeFeedbackRepo(),
		// serialization_failure on the first attempt, clean on the retry
		errs: []error{&pq.Error{Code: "40001"}},
	}
	ledger := newRetryLedger(repo)

	receipt, err := ledger.Grant(context.Background(), GrantRequest{
		ServerID: "srv", MessageID: 42, UserID: "u1", Labels: []string{"EM"},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, repo.upserts)
	assert.Equal(t, []models.Label{models.LabelEmotion}, receipt.AppliedLabels)
	assert.Len(t, repo.rows, 1)
}

func TestRetryableClassification(t *testing.T) {
	assert.True(t, retryable(&pq.Error{Code: "40P01"})) // deadlock_detected
	assert.True(t, retryable(fmt.Errorf("record feedback: %w", &pq.Error{Code: "08006"})))
	assert.False(t, retryable(&pq.Error{Code: "23505"})) // unique_violation
	assert.False(t, retryable(fmt.Errorf("plain failure")))
}

func TestRevokeOtherUsersFeedbackSurvives(t *testing.T) {
	fx := newLedgerFixture(t, DefaultConfig())
	for _, user := range []string{"u1", "u2"} {
		_, err := fx.ledger.Grant(context.Background(), GrantRequest{
			ServerID: "srv", MessageID: 42, UserID: user, Labels: []string{"EM"},
		})
		require.NoError(t, err)
	}

	_, err := fx.ledger.Revoke(context.Background(), RevokeRequest{
		ServerID: "srv", MessageID: 42, UserID: "u1",
	})

	require.NoError(t, err)
	assert.Len(t, fx.feedback.rows, 1)
	require.Len(t, fx.triggers.rows, 1)
	for _, row := range fx.triggers.rows {
		assert.Equal(t, 1, row.HitCount)
	}
}
