package ws

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/notify"
)

// MemberSource resolves chat membership for recipient selection.
type MemberSource interface {
	ListActiveMembers(ctx context.Context, chatID int64) ([]models.Member, error)
	GetMemberByID(ctx context.Context, memberID int64) (models.Member, error)
}

// ActionSource looks up the system action attached to a message.
type ActionSource interface {
	GetActionByMessage(ctx context.Context, messageID int64) (models.SystemMessageAction, bool, error)
}

// Fanout routes chat events to the live connections of every resolved member.
type Fanout struct {
	hub      *Hub
	members  MemberSource
	actions  ActionSource
	notifier notify.Dispatcher
	log      *zap.Logger
}

// NewFanout constructs a Fanout.
func NewFanout(hub *Hub, members MemberSource, actions ActionSource, notifier notify.Dispatcher, log *zap.Logger) *Fanout {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fanout{hub: hub, members: members, actions: actions, notifier: notifier, log: log}
}

// envelope builds the outbound frame with the shared created_at stamp.
func envelope(event string, fields map[string]interface{}) []byte {
	out := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		out[k] = v
	}
	out["type"] = event
	out["created_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	payload, _ := json.Marshal(out)
	return payload
}

// resolveRecipients selects the active members of the message's chat plus the
// target of an attached system action even when that member is no longer
// active: a just-kicked member still receives their own kick event.
func (f *Fanout) resolveRecipients(ctx context.Context, msg models.Message) ([]models.Member, error) {
	members, err := f.members.ListActiveMembers(ctx, msg.ChatID)
	if err != nil {
		return nil, err
	}

	if msg.Type != models.MessageSystem {
		return members, nil
	}
	action, ok, err := f.actions.GetActionByMessage(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	if !ok || action.TargetMemberID == nil {
		return members, nil
	}
	for _, m := range members {
		if m.ID == *action.TargetMemberID {
			return members, nil
		}
	}
	target, err := f.members.GetMemberByID(ctx, *action.TargetMemberID)
	if err != nil {
		return nil, err
	}
	return append(members, target), nil
}

// BroadcastMessage delivers a new or changed message to every resolved member
// except excludeUserID (0 means nobody is excluded), then hands the push
// notification off best-effort.
func (f *Fanout) BroadcastMessage(ctx context.Context, msg models.Message, event string, excludeUserID int64, push *notify.Notification) error {
	recipients, err := f.resolveRecipients(ctx, msg)
	if err != nil {
		return err
	}

	payload := envelope(event, map[string]interface{}{
		"chat_id": msg.ChatID,
		"message": msg,
	})

	userIDs := make([]int64, 0, len(recipients))
	for _, member := range recipients {
		if member.UserID == excludeUserID {
			continue
		}
		userIDs = append(userIDs, member.UserID)
		f.hub.SendToUser(member.UserID, payload)
	}

	if push != nil && f.notifier != nil {
		push.UserIDs = userIDs
		go func(n notify.Notification) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := f.notifier.Send(ctx, n); err != nil {
				f.log.Warn("push dispatch failed", zap.Error(err))
			}
		}(*push)
	}
	return nil
}

// SendToMembers delivers an ad-hoc event to an explicit member list, e.g.
// chat_muted back to the acting member only.
func (f *Fanout) SendToMembers(event string, fields map[string]interface{}, members []models.Member) {
	payload := envelope(event, fields)
	for _, member := range members {
		f.hub.SendToUser(member.UserID, payload)
	}
}

// RelayToChat delivers an ad-hoc event to every active member of a chat,
// optionally excluding one user. Used by the websocket consumer's inbound
// frame handling.
func (f *Fanout) RelayToChat(ctx context.Context, chatID int64, event string, fields map[string]interface{}, excludeUserID int64) error {
	members, err := f.members.ListActiveMembers(ctx, chatID)
	if err != nil {
		return err
	}
	payload := envelope(event, fields)
	for _, member := range members {
		if member.UserID == excludeUserID {
			continue
		}
		f.hub.SendToUser(member.UserID, payload)
	}
	return nil
}
