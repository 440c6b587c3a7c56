package activation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seseseee/discourse-insight/internal/models"
)

// MessageSource reads classified messages for activation scoring. Bot
// authors and excluded channels never appear in the returned samples.
type MessageSource interface {
	ListSamples(ctx context.Context, serverID string, channelID *string, from, to time.Time) ([]Sample, error)
}

// Service computes the composite activation metric over scopes and
// windows. Computation is a pure function of its inputs and may run fully
// in parallel across buckets.
type Service struct {
	source MessageSource
	cfg    Config
	logger *zap.Logger
}

func NewService(source MessageSource, cfg Config, logger *zap.Logger) *Service {
	if cfg.SaturationPerMinute <= 0 {
		cfg.SaturationPerMinute = DefaultConfig().SaturationPerMinute
	}
	if cfg.BucketSize <= 0 {
		cfg.BucketSize = DefaultConfig().BucketSize
	}
	return &Service{source: source, cfg: cfg, logger: logger}
}

// Compute scores a single window as one bucket.
func (s *Service) Compute(ctx context.Context, serverID string, channelID *string, from, to time.Time) (*models.ActivationPoint, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("invalid window: from %s is not before to %s", from, to)
	}
	samples, err := s.source.ListSamples(ctx, serverID, channelID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load activation samples: %w", err)
	}
	point := ComputePoint(from, to.Sub(from), samples, s.cfg)
	return &point, nil
}

// Series scores a dense bucket series over the window. Buckets with zero
// messages are emitted as zero-filled points, never omitted; chart
// consumers rely on gap-free series.
func (s *Service) Series(ctx context.Context, serverID string, channelID *string, from, to time.Time, bucket time.Duration) ([]models.ActivationPoint, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("invalid window: from %s is not before to %s", from, to)
	}
	if bucket <= 0 {
		bucket = s.cfg.BucketSize
	}

	samples, err := s.source.ListSamples(ctx, serverID, channelID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load activation samples: %w", err)
	}

	byBucket := make(map[time.Time][]Sample)
	for _, sample := range samples {
		start := sample.Timestamp.Truncate(bucket)
		byBucket[start] = append(byBucket[start], sample)
	}

	var points []models.ActivationPoint
	for start := from.Truncate(bucket); start.Before(to); start = start.Add(bucket) {
		points = append(points, ComputePoint(start, bucket, byBucket[start], s.cfg))
	}

	s.logger.Debug("Activation series computed",
		zap.String("server_id", serverID),
		zap.Int("buckets", len(points)),
		zap.Int("messages", len(samples)))
	return points, nil
}
