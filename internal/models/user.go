package models

import "time"

// User is the minimal account projection the messenger core works with.
// Account management itself lives outside this service.
type User struct {
	ID         int64      `db:"id" json:"id"`
	Username   string     `db:"username" json:"username"`
	Phone      string     `db:"phone" json:"phone,omitempty"`
	IsOnline   bool       `db:"is_online" json:"is_online"`
	LastOnline *time.Time `db:"last_online" json:"last_online,omitempty"`
}

// Event is an immutable calendar event referenced by event chats and
// event attachments. Only read here; the calendar subsystem owns it.
type Event struct {
	ID          int64      `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Description *string    `db:"description" json:"description,omitempty"`
	CoverURL    *string    `db:"cover_url" json:"cover_url,omitempty"`
	StartsAt    *time.Time `db:"starts_at" json:"starts_at,omitempty"`
	EndsAt      *time.Time `db:"ends_at" json:"ends_at,omitempty"`
	AuthorID    int64      `db:"author_id" json:"author_id"`
	ChatID      *int64     `db:"chat_id" json:"chat_id,omitempty"`
}
