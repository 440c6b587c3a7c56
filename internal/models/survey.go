package models

import "time"

// SurveyRating is one fairness rating (1-5) submitted from the chat bridge.
type SurveyRating struct {
	ID        int64     `db:"id"`
	ServerID  string    `db:"server_id"`
	ChannelID string    `db:"channel_id"`
	RaterID   string    `db:"rater_id"`
	Score     int       `db:"score"`
	Note      string    `db:"note"`
	CreatedAt time.Time `db:"created_at"`
}
