package models

import "time"

// Feedback is one human-asserted (message, user, label) vote stored in the
// 'feedback' table. A user casts at most one vote per label per message;
// repeat grants for the same key update confidence and notes instead of
// duplicating the row.
type Feedback struct {
	ID         int64     `db:"id"`
	MessageID  int64     `db:"message_id"`
	UserID     string    `db:"user_id"`
	Label      Label     `db:"label"`
	Confidence *float64  `db:"confidence"`
	Notes      string    `db:"notes"`
	CreatedAt  time.Time `db:"created_at"`
}
