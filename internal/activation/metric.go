package activation

import (
	"math"
	"sort"
	"time"

	"github.com/seseseee/discourse-insight/internal/models"
)

// Sample is one message reduced to the fields activation scoring needs.
type Sample struct {
	AuthorID  string
	Timestamp time.Time
	Label     models.Label
}

// Weights for the five sub-signals. Message rate and user diversity carry
// the most; burst-inverse the least. They sum to 1.0.
const (
	weightMsgRate        = 0.30
	weightUserDiversity  = 0.25
	weightTurnTaking     = 0.20
	weightBurstInverse   = 0.10
	weightTopicalVariety = 0.15
)

// Config tunes activation scoring.
type Config struct {
	// SaturationPerMinute is the message rate at which msg_rate clamps
	// to 1.
	SaturationPerMinute float64
	// BucketSize is the default series bucket.
	BucketSize time.Duration
}

// DefaultConfig returns the production activation settings.
func DefaultConfig() Config {
	return Config{
		SaturationPerMinute: 10,
		BucketSize:          time.Hour,
	}
}

// ComputePoint scores one bucket of samples. Empty buckets yield all-zero
// sub-metrics and a zero composite, never NaN.
func ComputePoint(bucketStart time.Time, window time.Duration, samples []Sample, cfg Config) models.ActivationPoint {
	point := models.ActivationPoint{BucketStart: bucketStart}
	point.Messages = len(samples)
	point.Users = distinctAuthors(samples)
	if len(samples) == 0 {
		return point
	}

	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	sub := models.SubMetrics{
		MsgRate:        msgRate(len(sorted), window, cfg.SaturationPerMinute),
		UserDiversity:  userDiversity(sorted),
		TurnTaking:     turnTaking(sorted),
		BurstInverse:   burstInverse(sorted),
		TopicalVariety: topicalVariety(sorted),
	}

	composite := weightMsgRate*sub.MsgRate +
		weightUserDiversity*sub.UserDiversity +
		weightTurnTaking*sub.TurnTaking +
		weightBurstInverse*sub.BurstInverse +
		weightTopicalVariety*sub.TopicalVariety

	point.SubMetrics = sub
	point.SAI = math.Round(composite*1000) / 10
	return point
}

// msgRate scales messages per minute linearly against the saturation
// point and clamps to 1.
func msgRate(count int, window time.Duration, saturation float64) float64 {
	minutes := window.Minutes()
	if minutes <= 0 || saturation <= 0 {
		return 0
	}
	rate := float64(count) / minutes / saturation
	if rate > 1 {
		return 1
	}
	return rate
}

// userDiversity is the normalized Shannon entropy of the per-author
// message distribution: 0 when one author dominates entirely, approaching
// 1 as authorship evens out across many participants.
func userDiversity(samples []Sample) float64 {
	counts := make(map[string]int)
	for _, s := range samples {
		counts[s.AuthorID]++
	}
	return normalizedEntropy(counts, len(samples))
}

// turnTaking is the fraction of consecutive message pairs authored by
// different people.
func turnTaking(sorted []Sample) float64 {
	if len(sorted) < 2 {
		return 0
	}
	switches := 0
	for i := 1; i < len(sorted); i++ {
		if sorted[i].AuthorID != sorted[i-1].AuthorID {
			switches++
		}
	}
	return float64(switches) / float64(len(sorted)-1)
}

// burstInverse is the median/mean ratio of consecutive inter-message gaps.
// Near 1 the pacing is steady; near 0 a single rapid-fire burst dominates.
// Fewer than two gaps yields 0.
func burstInverse(sorted []Sample) float64 {
	if len(sorted) < 3 {
		return 0
	}
	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, sorted[i].Timestamp.Sub(sorted[i-1].Timestamp).Seconds())
	}

	mean := 0.0
	for _, g := range gaps {
		mean += g
	}
	mean /= float64(len(gaps))
	if mean <= 0 {
		return 0
	}

	sort.Float64s(gaps)
	var median float64
	mid := len(gaps) / 2
	if len(gaps)%2 == 0 {
		median = (gaps[mid-1] + gaps[mid]) / 2
	} else {
		median = gaps[mid]
	}

	ratio := median / mean
	if ratio > 1 {
		return 1
	}
	return ratio
}

// topicalVariety is the normalized Shannon entropy of the label
// distribution within the bucket, using each message's most recent label.
func topicalVariety(samples []Sample) float64 {
	counts := make(map[string]int)
	total := 0
	for _, s := range samples {
		if !s.Label.Valid() {
			continue
		}
		counts[string(s.Label)]++
		total++
	}
	return normalizedEntropy(counts, total)
}

// normalizedEntropy returns H/H_max over the count distribution, 0 for
// degenerate single-bucket cases.
func normalizedEntropy[K comparable](counts map[K]int, total int) float64 {
	if total == 0 || len(counts) <= 1 {
		return 0
	}
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy / math.Log2(float64(len(counts)))
}

func distinctAuthors(samples []Sample) int {
	authors := make(map[string]bool, len(samples))
	for _, s := range samples {
		authors[s.AuthorID] = true
	}
	return len(authors)
}
