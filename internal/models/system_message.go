package models

import "strings"

// SystemActionType enumerates the structural chat events recorded as system
// messages. The prefix decides which target field the action carries:
// chat.* -> target chat, member.* -> target member, message.* -> target message.
type SystemActionType string

const (
	ActionChatCreated        SystemActionType = "chat.new"
	ActionTitleChanged       SystemActionType = "chat.title_changed"
	ActionDescriptionChanged SystemActionType = "chat.description_changed"
	ActionCoverChanged       SystemActionType = "chat.cover_changed"
	ActionMemberJoined       SystemActionType = "member.joined"
	ActionMemberAdded        SystemActionType = "member.added"
	ActionMemberLeft         SystemActionType = "member.left"
	ActionMemberKicked       SystemActionType = "member.kicked"
	ActionMemberRoleChanged  SystemActionType = "member.role_changed"
	ActionMessagePinned      SystemActionType = "message.pinned"
	ActionMessageUnpinned    SystemActionType = "message.unpinned"
)

// Category returns the action prefix ("chat", "member" or "message").
func (t SystemActionType) Category() string {
	if i := strings.IndexByte(string(t), '.'); i > 0 {
		return string(t)[:i]
	}
	return string(t)
}

// SystemMessageAction is the one-to-one payload of a system message.
type SystemMessageAction struct {
	ID              int64            `db:"id" json:"id"`
	MessageID       int64            `db:"message_id" json:"message_id"`
	ActionType      SystemActionType `db:"action_type" json:"action_type"`
	TargetMemberID  *int64           `db:"target_member_id" json:"target_member_id,omitempty"`
	TargetMessageID *int64           `db:"target_message_id" json:"target_message_id,omitempty"`
	TargetChatID    *int64           `db:"target_chat_id" json:"target_chat_id,omitempty"`
	ChangedFrom     *string          `db:"changed_from" json:"changed_from,omitempty"`
	ChangedTo       *string          `db:"changed_to" json:"changed_to,omitempty"`
}

// SystemActionPayload carries the optional fields for Emit. Exactly one target
// is expected, matching the action type's category.
type SystemActionPayload struct {
	TargetMemberID  *int64
	TargetMessageID *int64
	TargetChatID    *int64
	ChangedFrom     *string
	ChangedTo       *string
}
