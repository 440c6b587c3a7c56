package models

import "time"

// Trigger is a learned (scope, phrase, label) association stored in the
// 'triggers' table. Hit count and weight move together under feedback:
// every grant applies a fixed weight delta upward, every revoke the same
// delta downward, and the row is deleted once the hit count reaches zero.
type Trigger struct {
	ID         int64     `db:"id"`
	ServerID   string    `db:"server_id"` // empty for scope-agnostic triggers
	PhraseNorm string    `db:"phrase_norm"`
	PhraseRaw  string    `db:"phrase_raw"`
	Pattern    *string   `db:"pattern"` // optional regular expression, tried before substring
	Label      Label     `db:"label"`
	HitCount   int       `db:"hit_count"`
	Weight     float64   `db:"weight"`
	CreatedAt  time.Time `db:"created_at"`
}

// TriggerDelta reports one trigger mutation applied by a feedback event.
type TriggerDelta struct {
	Label    Label   `json:"label"`
	Phrase   string  `json:"phrase"`
	HitCount int     `json:"hit_count"`
	Weight   float64 `json:"weight"`
	Deleted  bool    `json:"deleted"`
}
