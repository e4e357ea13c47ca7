package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

const actionColumns = `id, message_id, action_type, target_member_id, target_message_id,
    target_chat_id, changed_from, changed_to`

// SystemMessageRepository records structural chat events as system messages.
type SystemMessageRepository interface {
	Emit(ctx context.Context, chatID int64, actingMemberID *int64, actionType models.SystemActionType, p models.SystemActionPayload) (models.Message, models.SystemMessageAction, error)
	GetActionByMessage(ctx context.Context, messageID int64) (models.SystemMessageAction, bool, error)
}

// SystemMessageRepo appends system messages through the message store and
// attaches the action row.
type SystemMessageRepo struct {
	db       *sqlx.DB
	messages MessageRepository
}

// NewSystemMessageRepo constructs a SystemMessageRepo.
func NewSystemMessageRepo(db *sqlx.DB, messages MessageRepository) *SystemMessageRepo {
	return &SystemMessageRepo{db: db, messages: messages}
}

// Emit creates a system message with empty text and the one-to-one action row.
// The populated target field must match the action type's prefix; chat.*
// actions default their target to the emitting chat.
func (r *SystemMessageRepo) Emit(ctx context.Context, chatID int64, actingMemberID *int64, actionType models.SystemActionType, p models.SystemActionPayload) (models.Message, models.SystemMessageAction, error) {
	switch actionType.Category() {
	case "chat":
		if p.TargetChatID == nil {
			p.TargetChatID = &chatID
		}
		p.TargetMemberID, p.TargetMessageID = nil, nil
	case "member":
		if p.TargetMemberID == nil {
			return models.Message{}, models.SystemMessageAction{}, fmt.Errorf("action %s requires a target member", actionType)
		}
		p.TargetChatID, p.TargetMessageID = nil, nil
	case "message":
		if p.TargetMessageID == nil {
			return models.Message{}, models.SystemMessageAction{}, fmt.Errorf("action %s requires a target message", actionType)
		}
		p.TargetChatID, p.TargetMemberID = nil, nil
	default:
		return models.Message{}, models.SystemMessageAction{}, fmt.Errorf("unknown action type %s", actionType)
	}

	msg, err := r.messages.Append(ctx, AppendParams{
		ChatID:   chatID,
		SenderID: actingMemberID,
		Type:     models.MessageSystem,
	})
	if err != nil {
		return models.Message{}, models.SystemMessageAction{}, err
	}

	var action models.SystemMessageAction
	err = r.db.GetContext(ctx, &action,
		`INSERT INTO system_message_actions
            (message_id, action_type, target_member_id, target_message_id, target_chat_id, changed_from, changed_to)
         VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+actionColumns,
		msg.ID, actionType, p.TargetMemberID, p.TargetMessageID, p.TargetChatID, p.ChangedFrom, p.ChangedTo)
	if err != nil {
		return models.Message{}, models.SystemMessageAction{}, err
	}
	return msg, action, nil
}

// GetActionByMessage looks up the action attached to a system message.
func (r *SystemMessageRepo) GetActionByMessage(ctx context.Context, messageID int64) (models.SystemMessageAction, bool, error) {
	var action models.SystemMessageAction
	err := r.db.GetContext(ctx, &action,
		`SELECT `+actionColumns+` FROM system_message_actions WHERE message_id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SystemMessageAction{}, false, nil
	}
	if err != nil {
		return models.SystemMessageAction{}, false, err
	}
	return action, true, nil
}
