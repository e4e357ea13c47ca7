package models

import "time"

// AttachmentType classifies media attachments.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "IMAGE"
	AttachmentVideo AttachmentType = "VIDEO"
	AttachmentFile  AttachmentType = "FILE"
)

// ValidAttachmentType reports whether t is a known media attachment type.
func ValidAttachmentType(t AttachmentType) bool {
	return t == AttachmentImage || t == AttachmentVideo || t == AttachmentFile
}

// Attachment is a media file attached to a message.
type Attachment struct {
	ID             int64          `db:"id" json:"id"`
	AttachmentType AttachmentType `db:"attachment_type" json:"attachment_type"`
	FileURL        string         `db:"file_url" json:"file_url"`
	MessageID      *int64         `db:"message_id" json:"message_id,omitempty"`
	Size           *int64         `db:"size" json:"size,omitempty"`
	Duration       *int64         `db:"duration" json:"duration,omitempty"`
	Width          *int64         `db:"width" json:"width,omitempty"`
	Height         *int64         `db:"height" json:"height,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	DeletedAt      *time.Time     `db:"deleted_at" json:"deleted_at,omitempty"`
}

// ContactAttachment shares a contact card. User is null when the contact is
// not registered in the app.
type ContactAttachment struct {
	ID        int64      `db:"id" json:"id"`
	UserID    *int64     `db:"user_id" json:"user_id,omitempty"`
	Name      string     `db:"name" json:"name"`
	Phone     string     `db:"phone" json:"phone"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// EventAttachment shares a calendar event.
type EventAttachment struct {
	ID        int64      `db:"id" json:"id"`
	EventID   int64      `db:"event_id" json:"event_id"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// LocationAttachment shares a geographic point.
type LocationAttachment struct {
	ID        int64      `db:"id" json:"id"`
	Latitude  *float64   `db:"latitude" json:"latitude,omitempty"`
	Longitude *float64   `db:"longitude" json:"longitude,omitempty"`
	Address   string     `db:"address" json:"address"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}
