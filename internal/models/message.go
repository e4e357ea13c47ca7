package models

import "time"

// MessageType separates user-authored messages from machine-generated ones.
type MessageType string

const (
	MessageRegular MessageType = "regular"
	MessageSystem  MessageType = "system"
)

// Message is an entry in a chat's append-only log. SenderID references a
// Member, not a User; it is null for some system messages.
type Message struct {
	ID                   int64       `db:"id" json:"id"`
	UUID                 string      `db:"uuid" json:"uuid"`
	ChatID               int64       `db:"chat_id" json:"chat_id"`
	SenderID             *int64      `db:"sender_id" json:"sender_id,omitempty"`
	Type                 MessageType `db:"type" json:"type"`
	Text                 *string     `db:"text" json:"text,omitempty"`
	ContactAttachmentID  *int64      `db:"contact_attachment_id" json:"contact_attachment_id,omitempty"`
	EventAttachmentID    *int64      `db:"event_attachment_id" json:"event_attachment_id,omitempty"`
	LocationAttachmentID *int64      `db:"location_attachment_id" json:"location_attachment_id,omitempty"`
	ReplayToID           *int64      `db:"replay_to_id" json:"replay_to_id,omitempty"`
	PinnedAt             *time.Time  `db:"pinned_at" json:"pinned_at,omitempty"`
	PinnedBy             *int64      `db:"pinned_by" json:"pinned_by,omitempty"`
	CreatedAt            time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at" json:"updated_at"`
	DeletedAt            *time.Time  `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Pinned reports whether the message is currently pinned in its chat.
func (m Message) Pinned() bool {
	return m.PinnedAt != nil
}

// HasContent reports whether a regular message carries anything to deliver.
func (m Message) HasContent() bool {
	if m.Text != nil && *m.Text != "" {
		return true
	}
	return m.ContactAttachmentID != nil || m.EventAttachmentID != nil || m.LocationAttachmentID != nil
}

// Link is a URL extracted from a message's text.
type Link struct {
	ID        int64  `db:"id" json:"id"`
	MessageID int64  `db:"message_id" json:"message_id"`
	URL       string `db:"url" json:"url"`
}
