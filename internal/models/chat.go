package models

import "time"

// ChatType distinguishes direct, group and event-bound chats.
type ChatType string

const (
	ChatDirect ChatType = "direct"
	ChatGroup  ChatType = "group"
	ChatEvent  ChatType = "event"
)

// Chat is a conversation. Title, description and cover are only set for group
// chats; event chats resolve them from the linked event.
type Chat struct {
	ID              int64      `db:"id" json:"id"`
	ChatType        ChatType   `db:"chat_type" json:"chat_type"`
	Title           *string    `db:"title" json:"title,omitempty"`
	Description     *string    `db:"description" json:"description,omitempty"`
	CoverURL        *string    `db:"cover_url" json:"cover_url,omitempty"`
	EventID         *int64     `db:"event_id" json:"event_id,omitempty"`
	LastMessageID   *int64     `db:"last_message_id" json:"last_message_id,omitempty"`
	PinnedMessageID *int64     `db:"pinned_message_id" json:"pinned_message_id,omitempty"`
	CreatedBy       *int64     `db:"created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Deleted reports whether the chat carries a tombstone.
func (c Chat) Deleted() bool {
	return c.DeletedAt != nil
}

// ChatState is the API projection of a chat for one user.
type ChatState struct {
	Chat
	Member      *Member  `json:"member,omitempty"`
	LastMessage *Message `json:"last_message,omitempty"`
	UnreadCount int      `json:"unread_count"`
	Muted       bool     `json:"muted"`
	Archived    bool     `json:"archived"`
	Pinned      bool     `json:"pinned"`
}
