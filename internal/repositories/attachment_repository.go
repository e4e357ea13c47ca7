package repositories

import (
	"context"
	"strconv"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

// AttachmentRepository persists media attachments, shared contacts/events/
// locations and the links parsed out of message text.
type AttachmentRepository interface {
	CreateMedia(ctx context.Context, a models.Attachment) (models.Attachment, error)
	SoftDeleteMedia(ctx context.Context, attachmentID int64) error
	ListMedia(ctx context.Context, chatID int64, attachmentType models.AttachmentType, fromID, toID *int64, limit int) ([]models.Attachment, error)
	CreateContact(ctx context.Context, c models.ContactAttachment) (models.ContactAttachment, error)
	CreateEventAttachment(ctx context.Context, eventID int64) (models.EventAttachment, error)
	CreateLocation(ctx context.Context, l models.LocationAttachment) (models.LocationAttachment, error)
	ListLinks(ctx context.Context, chatID int64, fromID, toID *int64, limit int) ([]models.Link, error)
}

// AttachmentRepo is a sqlx implementation of AttachmentRepository.
type AttachmentRepo struct {
	db *sqlx.DB
}

// NewAttachmentRepo constructs an AttachmentRepo.
func NewAttachmentRepo(db *sqlx.DB) *AttachmentRepo {
	return &AttachmentRepo{db: db}
}

// CreateMedia stores a media attachment record.
func (r *AttachmentRepo) CreateMedia(ctx context.Context, a models.Attachment) (models.Attachment, error) {
	var out models.Attachment
	err := r.db.GetContext(ctx, &out,
		`INSERT INTO attachments (attachment_type, file_url, message_id, size, duration, width, height)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         RETURNING id, attachment_type, file_url, message_id, size, duration, width, height, created_at, deleted_at`,
		a.AttachmentType, a.FileURL, a.MessageID, a.Size, a.Duration, a.Width, a.Height)
	return out, err
}

// SoftDeleteMedia tombstones one media attachment.
func (r *AttachmentRepo) SoftDeleteMedia(ctx context.Context, attachmentID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE attachments SET deleted_at=NOW() WHERE id=$1 AND deleted_at IS NULL`, attachmentID)
	return err
}

// ListMedia pages a chat's media attachments of one type by descending id.
func (r *AttachmentRepo) ListMedia(ctx context.Context, chatID int64, attachmentType models.AttachmentType, fromID, toID *int64, limit int) ([]models.Attachment, error) {
	if limit <= 0 {
		limit = 30
	}
	args := []interface{}{chatID, attachmentType}
	query := `SELECT a.id, a.attachment_type, a.file_url, a.message_id, a.size, a.duration, a.width, a.height,
            a.created_at, a.deleted_at
        FROM attachments a
        JOIN messages m ON m.id = a.message_id
        WHERE m.chat_id=$1 AND a.attachment_type=$2 AND a.deleted_at IS NULL`
	if fromID != nil {
		args = append(args, *fromID)
		query += " AND a.id > $" + strconv.Itoa(len(args))
	}
	if toID != nil {
		args = append(args, *toID)
		query += " AND a.id < $" + strconv.Itoa(len(args))
	}
	args = append(args, limit)
	query += " ORDER BY a.id DESC LIMIT $" + strconv.Itoa(len(args))

	var attachments []models.Attachment
	err := r.db.SelectContext(ctx, &attachments, query, args...)
	return attachments, err
}

// CreateContact stores a shared contact card.
func (r *AttachmentRepo) CreateContact(ctx context.Context, c models.ContactAttachment) (models.ContactAttachment, error) {
	var out models.ContactAttachment
	err := r.db.GetContext(ctx, &out,
		`INSERT INTO contact_attachments (user_id, name, phone) VALUES ($1, $2, $3)
         RETURNING id, user_id, name, phone, deleted_at`,
		c.UserID, c.Name, c.Phone)
	return out, err
}

// CreateEventAttachment stores a shared event reference.
func (r *AttachmentRepo) CreateEventAttachment(ctx context.Context, eventID int64) (models.EventAttachment, error) {
	var out models.EventAttachment
	err := r.db.GetContext(ctx, &out,
		`INSERT INTO event_attachments (event_id) VALUES ($1) RETURNING id, event_id, deleted_at`,
		eventID)
	return out, err
}

// CreateLocation stores a shared location.
func (r *AttachmentRepo) CreateLocation(ctx context.Context, l models.LocationAttachment) (models.LocationAttachment, error) {
	var out models.LocationAttachment
	err := r.db.GetContext(ctx, &out,
		`INSERT INTO location_attachments (latitude, longitude, address) VALUES ($1, $2, $3)
         RETURNING id, latitude, longitude, address, deleted_at`,
		l.Latitude, l.Longitude, l.Address)
	return out, err
}

// ListLinks pages links parsed from a chat's messages by descending id.
func (r *AttachmentRepo) ListLinks(ctx context.Context, chatID int64, fromID, toID *int64, limit int) ([]models.Link, error) {
	if limit <= 0 {
		limit = 30
	}
	args := []interface{}{chatID}
	query := `SELECT l.id, l.message_id, l.url
        FROM links l
        JOIN messages m ON m.id = l.message_id
        WHERE m.chat_id=$1`
	if fromID != nil {
		args = append(args, *fromID)
		query += " AND l.id > $" + strconv.Itoa(len(args))
	}
	if toID != nil {
		args = append(args, *toID)
		query += " AND l.id < $" + strconv.Itoa(len(args))
	}
	args = append(args, limit)
	query += " ORDER BY l.id DESC LIMIT $" + strconv.Itoa(len(args))

	var links []models.Link
	err := r.db.SelectContext(ctx, &links, query, args...)
	return links, err
}
