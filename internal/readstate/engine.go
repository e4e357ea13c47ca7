// Package readstate derives unread counts and read markers for chat members.
package readstate

import (
	"context"
	"time"

	"messenger-service/internal/models"
)

// MessageSource is the slice of the message store the engine needs.
type MessageSource interface {
	CountVisible(ctx context.Context, chatID, memberID int64) (int, error)
	CountVisibleAfter(ctx context.Context, chatID, memberID int64, after time.Time) (int, error)
	LatestVisibleAt(ctx context.Context, chatID, memberID int64) (*time.Time, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
}

// MemberSource writes the read marker back to the membership row.
type MemberSource interface {
	SetLastReadAt(ctx context.Context, memberID int64, at time.Time) error
}

// Engine computes unread state on demand; it holds no state of its own.
type Engine struct {
	messages MessageSource
	members  MemberSource
}

// NewEngine constructs an Engine.
func NewEngine(messages MessageSource, members MemberSource) *Engine {
	return &Engine{messages: messages, members: members}
}

// UnreadCount counts messages the member has not read yet. A nil last_read_at
// means the member never opened the chat, so everything visible is unread;
// a set marker counts only messages created strictly after it. The asymmetry
// is intentional and must not be collapsed into a single query with a zero
// default marker.
func (e *Engine) UnreadCount(ctx context.Context, member models.Member) (int, error) {
	if member.LastReadAt == nil {
		return e.messages.CountVisible(ctx, member.ChatID, member.ID)
	}

	latest, err := e.messages.LatestVisibleAt(ctx, member.ChatID, member.ID)
	if err != nil {
		return 0, err
	}
	if latest == nil || !latest.After(*member.LastReadAt) {
		return 0, nil
	}
	return e.messages.CountVisibleAfter(ctx, member.ChatID, member.ID, *member.LastReadAt)
}

// MarkRead advances the member's read marker to the given message's creation
// time, or to now when uptoMessageID is zero.
func (e *Engine) MarkRead(ctx context.Context, member models.Member, uptoMessageID int64) error {
	if uptoMessageID == 0 {
		return e.members.SetLastReadAt(ctx, member.ID, time.Now().UTC())
	}
	msg, err := e.messages.GetMessage(ctx, uptoMessageID)
	if err != nil {
		return err
	}
	return e.members.SetLastReadAt(ctx, member.ID, msg.CreatedAt)
}
