package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

const chatColumns = `id, chat_type, title, description, cover_url, event_id, last_message_id,
    pinned_message_id, created_by, created_at, updated_at, deleted_at`

// CreateChatParams carries the optional fields of a new chat.
type CreateChatParams struct {
	ChatType    models.ChatType
	Title       *string
	Description *string
	CoverURL    *string
	EventID     *int64
	CreatedBy   *int64
}

// GroupInfoUpdate holds the mutable group chat attributes; nil fields are kept.
type GroupInfoUpdate struct {
	Title       *string
	Description *string
	CoverURL    *string
}

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	CreateChat(ctx context.Context, p CreateChatParams) (models.Chat, error)
	GetChat(ctx context.Context, chatID int64) (models.Chat, error)
	FindDirectChat(ctx context.Context, userID, otherUserID int64) (models.Chat, bool, error)
	ListChatsForUser(ctx context.Context, userID int64) ([]models.Chat, error)
	UpdateGroupInfo(ctx context.Context, chatID int64, upd GroupInfoUpdate) (models.Chat, error)
	SoftDelete(ctx context.Context, chatID int64) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateChat inserts a chat row.
func (r *ChatRepo) CreateChat(ctx context.Context, p CreateChatParams) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat,
		`INSERT INTO chats (chat_type, title, description, cover_url, event_id, created_by)
         VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+chatColumns,
		p.ChatType, p.Title, p.Description, p.CoverURL, p.EventID, p.CreatedBy)
	return chat, err
}

// GetChat fetches a chat by id, tombstoned or not.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int64) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// FindDirectChat looks up the direct chat shared by two users, if any.
func (r *ChatRepo) FindDirectChat(ctx context.Context, userID, otherUserID int64) (models.Chat, bool, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat,
		`SELECT c.id, c.chat_type, c.title, c.description, c.cover_url, c.event_id,
            c.last_message_id, c.pinned_message_id, c.created_by, c.created_at, c.updated_at, c.deleted_at
         FROM chats c
         WHERE c.chat_type='direct' AND c.deleted_at IS NULL
           AND EXISTS (SELECT 1 FROM members m WHERE m.chat_id=c.id AND m.user_id=$1)
           AND EXISTS (SELECT 1 FROM members m WHERE m.chat_id=c.id AND m.user_id=$2)
         ORDER BY c.id LIMIT 1`,
		userID, otherUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, false, nil
	}
	if err != nil {
		return models.Chat{}, false, err
	}
	return chat, true, nil
}

// ListChatsForUser returns live chats with at least one message the user is a
// member of, newest conversation first.
func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID int64) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.SelectContext(ctx, &chats,
		`SELECT c.id, c.chat_type, c.title, c.description, c.cover_url, c.event_id,
            c.last_message_id, c.pinned_message_id, c.created_by, c.created_at, c.updated_at, c.deleted_at
         FROM chats c
         JOIN members mb ON mb.chat_id = c.id AND mb.user_id = $1
         JOIN messages lm ON lm.id = mb.last_message_id
         WHERE c.deleted_at IS NULL
         ORDER BY lm.created_at DESC`,
		userID)
	return chats, err
}

// UpdateGroupInfo applies the non-nil fields and returns the updated row.
func (r *ChatRepo) UpdateGroupInfo(ctx context.Context, chatID int64, upd GroupInfoUpdate) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat,
		`UPDATE chats SET
            title = COALESCE($2, title),
            description = COALESCE($3, description),
            cover_url = COALESCE($4, cover_url),
            updated_at = NOW()
         WHERE id=$1 RETURNING `+chatColumns,
		chatID, upd.Title, upd.Description, upd.CoverURL)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// SoftDelete tombstones the whole chat.
func (r *ChatRepo) SoftDelete(ctx context.Context, chatID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chats SET deleted_at=$2, updated_at=$2 WHERE id=$1 AND deleted_at IS NULL`,
		chatID, time.Now().UTC())
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrChatNotFound
	}
	return nil
}
