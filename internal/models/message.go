package models

import "time"

// Message is a single direct message between two users. The field layout
// matches the persisted record: ids are opaque server-assigned strings and
// timestamps serialize as ISO-8601. A message is never edited or deleted;
// its only mutation is the one-way read flip, which bumps UpdatedAt.
type Message struct {
	ID          string    `json:"id"`
	SenderID    string    `json:"sender_id"`
	RecipientID string    `json:"recipient_id"`
	Content     string    `json:"content"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OtherParty returns the endpoint of the message that is not userID.
func (m *Message) OtherParty(userID string) string {
	if m.SenderID == userID {
		return m.RecipientID
	}
	return m.SenderID
}

// ConversationSummary is the derived per-thread preview shown in a
// conversation list: the other party's profile, the most recent message,
// and how many messages addressed to the viewer are still unread.
type ConversationSummary struct {
	Profile        *Profile `json:"profile"`
	LastMessage    *Message `json:"last_message"`
	UnreadCount    int      `json:"unread_count"`
	LastFromViewer bool     `json:"last_from_viewer"`
}
