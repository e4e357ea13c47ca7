package models

import "encoding/json"

// InboundFrame is the envelope clients send over the user websocket.
type InboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound frame types.
const (
	InChatMessage    = "chat_message"
	InMessageDeleted = "message_deleted"
	InChatDeleted    = "chat_deleted"
	InStartTyping    = "start_typing"
	InStopTyping     = "stop_typing"
	InMessageRead    = "message_read"
	InChatArchived   = "chat_archived"
)

// Outbound event types mirrored to clients.
const (
	EventMessageNew     = "message.new"
	EventMessageDeleted = "message.deleted"
	EventChatDeleted    = "chat_deleted"
	EventChatArchived   = "chat.archived"
	EventChatMuted      = "chat_muted"
	EventChatPinned     = "chat_pinned"
	EventStartTyping    = "START_TYPING"
	EventStopTyping     = "STOP_TYPING"
	EventMessageRead    = "MESSAGE_READ"
)
