package repositories

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

const messageColumns = `id, uuid, chat_id, sender_id, type, text, contact_attachment_id,
    event_attachment_id, location_attachment_id, replay_to_id, pinned_at, pinned_by,
    created_at, updated_at, deleted_at`

var linkPattern = regexp.MustCompile(`https?://\S+`)

// AppendParams describes a message to append to a chat's log.
type AppendParams struct {
	ChatID               int64
	SenderID             *int64
	UUID                 string
	Type                 models.MessageType
	Text                 *string
	ContactAttachmentID  *int64
	EventAttachmentID    *int64
	LocationAttachmentID *int64
	ReplayToID           *int64
}

// ListQuery bounds a windowed message listing for one member.
type ListQuery struct {
	ChatID        int64
	MemberID      int64
	Cutoff        *time.Time
	FromMessageID *int64
	ToMessageID   *int64
	PinnedOnly    bool
	Limit         int
}

// MessageRepository defines the append-only message log and its queries.
type MessageRepository interface {
	Append(ctx context.Context, p AppendParams) (models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	SoftDeleteForAll(ctx context.Context, messageID int64) (models.Message, error)
	DeleteForMember(ctx context.Context, messageID, memberID int64) error
	Pin(ctx context.Context, messageID, byMemberID int64) (models.Message, error)
	Unpin(ctx context.Context, messageID int64) (models.Message, error)
	List(ctx context.Context, q ListQuery) ([]models.Message, error)
	CountVisible(ctx context.Context, chatID, memberID int64) (int, error)
	CountVisibleAfter(ctx context.Context, chatID, memberID int64, after time.Time) (int, error)
	LatestVisibleAt(ctx context.Context, chatID, memberID int64) (*time.Time, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append inserts a message in one transaction and advances the denormalized
// last_message pointers on the chat and on every currently active member.
// Members who already left or were kicked are not advanced; that is what makes
// messages sent while away count as unread on return. The client uuid makes
// the append idempotent per chat.
func (r *MessageRepo) Append(ctx context.Context, p AppendParams) (models.Message, error) {
	if p.Type == models.MessageRegular {
		probe := models.Message{
			Text:                 p.Text,
			ContactAttachmentID:  p.ContactAttachmentID,
			EventAttachmentID:    p.EventAttachmentID,
			LocationAttachmentID: p.LocationAttachmentID,
		}
		if !probe.HasContent() {
			return models.Message{}, ErrEmptyMessage
		}
	}
	if p.UUID == "" {
		p.UUID = uuid.NewString()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var existing models.Message
	err = tx.GetContext(ctx, &existing,
		`SELECT `+messageColumns+` FROM messages WHERE chat_id=$1 AND uuid=$2`, p.ChatID, p.UUID)
	if err == nil {
		return existing, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, err
	}

	var msg models.Message
	if err := tx.GetContext(ctx, &msg,
		`INSERT INTO messages (uuid, chat_id, sender_id, type, text, contact_attachment_id,
            event_attachment_id, location_attachment_id, replay_to_id)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING `+messageColumns,
		p.UUID, p.ChatID, p.SenderID, p.Type, p.Text, p.ContactAttachmentID,
		p.EventAttachmentID, p.LocationAttachmentID, p.ReplayToID); err != nil {
		// A concurrent retry can slip past the select; the unique index on
		// (chat_id, uuid) catches it, and the winner's row is the answer.
		if isUniqueViolation(err) {
			_ = tx.Rollback()
			var winner models.Message
			if selErr := r.db.GetContext(ctx, &winner,
				`SELECT `+messageColumns+` FROM messages WHERE chat_id=$1 AND uuid=$2`,
				p.ChatID, p.UUID); selErr == nil {
				return winner, nil
			}
		}
		return models.Message{}, err
	}

	if p.Text != nil {
		for _, link := range linkPattern.FindAllString(*p.Text, -1) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO links (message_id, url) VALUES ($1, $2)`, msg.ID, link); err != nil {
				return models.Message{}, err
			}
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chats SET last_message_id=$2, updated_at=NOW() WHERE id=$1`, p.ChatID, msg.ID); err != nil {
		return models.Message{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE members SET last_message_id=$2 WHERE chat_id=$1 AND status='Active'`,
		p.ChatID, msg.ID); err != nil {
		return models.Message{}, err
	}

	return msg, tx.Commit()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// GetMessage retrieves a single message, tombstoned or not. Soft-deleted
// messages stay addressable for system-message backlinks.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SoftDeleteForAll tombstones a message for every member.
func (r *MessageRepo) SoftDeleteForAll(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`UPDATE messages SET deleted_at=NOW(), updated_at=NOW() WHERE id=$1 RETURNING `+messageColumns,
		messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// DeleteForMember hides a message for one member only. Idempotent.
func (r *MessageRepo) DeleteForMember(ctx context.Context, messageID, memberID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO deleted_messages (message_id, member_id) VALUES ($1, $2)
         ON CONFLICT (message_id, member_id) DO NOTHING`,
		messageID, memberID)
	return err
}

// Pin pins a message, enforcing the per-chat cap of 3 pinned messages, and
// points the chat's pinned_message at it.
func (r *MessageRepo) Pin(ctx context.Context, messageID, byMemberID int64) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var msg models.Message
	err = tx.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1 FOR UPDATE`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	if msg.Pinned() {
		return models.Message{}, ErrAlreadyPinned
	}

	var pinned int
	if err := tx.GetContext(ctx, &pinned,
		`SELECT COUNT(*) FROM messages WHERE chat_id=$1 AND pinned_at IS NOT NULL`, msg.ChatID); err != nil {
		return models.Message{}, err
	}
	if pinned >= 3 {
		return models.Message{}, ErrPinLimitExceeded
	}

	if err := tx.GetContext(ctx, &msg,
		`UPDATE messages SET pinned_at=NOW(), pinned_by=$2, updated_at=NOW()
         WHERE id=$1 RETURNING `+messageColumns,
		messageID, byMemberID); err != nil {
		return models.Message{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE chats SET pinned_message_id=$2, updated_at=NOW() WHERE id=$1`,
		msg.ChatID, msg.ID); err != nil {
		return models.Message{}, err
	}
	return msg, tx.Commit()
}

// Unpin clears the pin fields and the chat pointer when it referenced this message.
func (r *MessageRepo) Unpin(ctx context.Context, messageID int64) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var msg models.Message
	err = tx.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1 FOR UPDATE`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	if !msg.Pinned() {
		return models.Message{}, ErrAlreadyUnpinned
	}

	if err := tx.GetContext(ctx, &msg,
		`UPDATE messages SET pinned_at=NULL, pinned_by=NULL, updated_at=NOW()
         WHERE id=$1 RETURNING `+messageColumns, messageID); err != nil {
		return models.Message{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE chats SET pinned_message_id=NULL, updated_at=NOW()
         WHERE id=$1 AND pinned_message_id=$2`,
		msg.ChatID, msg.ID); err != nil {
		return models.Message{}, err
	}
	return msg, tx.Commit()
}

// List returns messages visible to the member, newest first. The chat branch
// is bounded by the id window and the member's visibility cutoff; the second
// branch lets members page back to their own authored messages below the
// window's lower edge. Chat-wide tombstones and per-member deletions are
// excluded in both branches.
func (r *MessageRepo) List(ctx context.Context, q ListQuery) ([]models.Message, error) {
	if q.Limit <= 0 {
		q.Limit = 30
	}

	args := []interface{}{q.ChatID, q.MemberID}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	chatBranch := []string{"m.chat_id=$1"}
	ownBranch := []string{"m.chat_id=$1", "m.sender_id=$2"}

	if q.FromMessageID != nil {
		ph := arg(*q.FromMessageID)
		chatBranch = append(chatBranch, "m.id > "+ph)
		ownBranch = append(ownBranch, "m.id < "+ph)
	}
	if q.ToMessageID != nil {
		ph := arg(*q.ToMessageID)
		chatBranch = append(chatBranch, "m.id < "+ph)
	}
	if q.Cutoff != nil {
		ph := arg(*q.Cutoff)
		chatBranch = append(chatBranch, "m.created_at > "+ph)
		ownBranch = append(ownBranch, "m.created_at > "+ph)
	}

	where := "((" + strings.Join(chatBranch, " AND ") + ") OR (" + strings.Join(ownBranch, " AND ") + "))" +
		` AND m.deleted_at IS NULL
          AND NOT EXISTS (SELECT 1 FROM deleted_messages dm WHERE dm.message_id=m.id AND dm.member_id=$2)`
	if q.PinnedOnly {
		where += " AND m.pinned_at IS NOT NULL"
	}

	query := `SELECT m.id, m.uuid, m.chat_id, m.sender_id, m.type, m.text, m.contact_attachment_id,
            m.event_attachment_id, m.location_attachment_id, m.replay_to_id, m.pinned_at, m.pinned_by,
            m.created_at, m.updated_at, m.deleted_at
        FROM messages m
        WHERE ` + where + `
        ORDER BY m.created_at DESC
        LIMIT ` + arg(q.Limit)

	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, args...)
	return msgs, err
}

// CountVisible counts live messages the member has not individually deleted.
// Unread counting deliberately ignores the visibility cutoff.
func (r *MessageRepo) CountVisible(ctx context.Context, chatID, memberID int64) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages m
         WHERE m.chat_id=$1 AND m.deleted_at IS NULL
           AND NOT EXISTS (SELECT 1 FROM deleted_messages dm WHERE dm.message_id=m.id AND dm.member_id=$2)`,
		chatID, memberID)
	return count, err
}

// CountVisibleAfter counts visible messages created strictly after the instant.
func (r *MessageRepo) CountVisibleAfter(ctx context.Context, chatID, memberID int64, after time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages m
         WHERE m.chat_id=$1 AND m.deleted_at IS NULL AND m.created_at > $3
           AND NOT EXISTS (SELECT 1 FROM deleted_messages dm WHERE dm.message_id=m.id AND dm.member_id=$2)`,
		chatID, memberID, after)
	return count, err
}

// LatestVisibleAt returns the created_at of the newest visible message, or nil.
func (r *MessageRepo) LatestVisibleAt(ctx context.Context, chatID, memberID int64) (*time.Time, error) {
	var at time.Time
	err := r.db.GetContext(ctx, &at,
		`SELECT m.created_at FROM messages m
         WHERE m.chat_id=$1 AND m.deleted_at IS NULL
           AND NOT EXISTS (SELECT 1 FROM deleted_messages dm WHERE dm.message_id=m.id AND dm.member_id=$2)
         ORDER BY m.created_at DESC LIMIT 1`,
		chatID, memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &at, nil
}
