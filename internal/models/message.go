package models

import (
	"strings"
	"time"
)

// Message represents one ingested utterance stored in the 'messages' table.
// Messages are immutable once ingested; the classifier only reads them.
type Message struct {
	ID          int64     `db:"id"`
	ServerID    string    `db:"server_id"`
	ChannelID   string    `db:"channel_id"`
	MessageID   string    `db:"message_id"` // platform-side id
	AuthorID    string    `db:"author_id"`
	AuthorIsBot bool      `db:"author_is_bot"`
	Content     string    `db:"content"`
	ReplyToID   *string   `db:"reply_to_id"`
	Excluded    bool      `db:"excluded"` // true for channels that never count toward metrics
	Timestamp   time.Time `db:"timestamp"`
	CreatedAt   time.Time `db:"created_at"`
}

// LabelRecord is one classification result appended per classification
// event. Records are never updated in place; consumers read the most
// recent by creation time.
type LabelRecord struct {
	ID         int64     `db:"id"`
	MessageID  int64     `db:"message_id"`
	Label      Label     `db:"label"`
	Labels     string    `db:"labels"` // comma-joined secondary labels, primary first
	Confidence float64   `db:"confidence"`
	Rationale  string    `db:"rationale"`
	CreatedAt  time.Time `db:"created_at"`
}

// SecondaryLabels splits the stored label list back into the vocabulary.
func (r *LabelRecord) SecondaryLabels() []Label {
	if r.Labels == "" {
		return []Label{r.Label}
	}
	return ParseLabels(strings.Split(r.Labels, ","))
}
