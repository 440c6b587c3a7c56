package models

import "time"

// SubMetrics holds the five independently normalized activation signals,
// each in [0,1].
type SubMetrics struct {
	MsgRate        float64 `json:"msg_rate"`
	UserDiversity  float64 `json:"user_diversity"`
	TurnTaking     float64 `json:"turn_taking"`
	BurstInverse   float64 `json:"burst_inverse"`
	TopicalVariety float64 `json:"topical_variety"`
}

// ActivationPoint is one time bucket of the composite activation metric.
// Points are computed on demand from message and label history, not stored.
type ActivationPoint struct {
	BucketStart time.Time  `json:"bucket_start"`
	SAI         float64    `json:"sai"` // 0-100 composite
	SubMetrics  SubMetrics `json:"sub_metrics"`
	Messages    int        `json:"messages"`
	Users       int        `json:"users"`
}
