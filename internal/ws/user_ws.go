package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"messenger-service/internal/middleware"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
	"messenger-service/internal/readstate"
	"messenger-service/internal/repositories"
)

// PresenceStore flips the advisory online flag on connect/disconnect.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID int64, online bool) error
}

// UserWebSocketHandler owns the single per-user websocket: one connection
// carries events for every chat the user belongs to.
type UserWebSocketHandler struct {
	hub      *Hub
	sessions middleware.SessionValidator
	members  repositories.MemberRepository
	presence PresenceStore
	engine   *readstate.Engine
	fanout   *Fanout
	log      *zap.Logger
}

// NewUserWebSocketHandler constructs a UserWebSocketHandler.
func NewUserWebSocketHandler(
	hub *Hub,
	sessions middleware.SessionValidator,
	members repositories.MemberRepository,
	presence PresenceStore,
	engine *readstate.Engine,
	fanout *Fanout,
	log *zap.Logger,
) *UserWebSocketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserWebSocketHandler{
		hub:      hub,
		sessions: sessions,
		members:  members,
		presence: presence,
		engine:   engine,
		fanout:   fanout,
		log:      log,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection, registers it under the owning user and
// serves inbound frames until the peer goes away.
func (h *UserWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messenger-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := observability.TokenFromRequest(c.Request)
	userID, err := h.sessions.ValidateToken(ctx, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(userID, conn, info)

	if err := h.presence.SetOnline(ctx, userID, true); err != nil {
		h.log.Warn("set online failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	observability.IncWSActive("user")
	observability.IncWSEvent("user", "ws_connect")
	h.publishLifecycleEvent(ctx, "ws_connect", info, "", requestID, traceID)

	go h.readLoop(conn, info, requestID, traceID)
}

func (h *UserWebSocketHandler) readLoop(conn *websocket.Conn, info ConnInfo, requestID, traceID string) {
	var closeReason string
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.hub.RemoveClient(info.UserID, conn)
		// Presence follows the last connection, not each one.
		if h.hub.Connections(info.UserID) == 0 {
			if err := h.presence.SetOnline(ctx, info.UserID, false); err != nil {
				h.log.Warn("set offline failed", zap.Int64("user_id", info.UserID), zap.Error(err))
			}
		}
		observability.DecWSActive("user")
		observability.IncWSEvent("user", "ws_disconnect")
		h.publishLifecycleEvent(ctx, "ws_disconnect", info, closeReason, requestID, traceID)
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("user", "ws_error")
			}
			return
		}

		var frame models.InboundFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			h.log.Debug("dropping malformed frame", zap.String("conn_id", info.ConnID), zap.Error(err))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := h.dispatch(ctx, info, frame); err != nil {
			h.log.Warn("inbound frame failed",
				zap.String("type", frame.Type),
				zap.Int64("user_id", info.UserID),
				zap.Error(err))
		}
		cancel()
	}
}

type framePayload struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id,omitempty"`
}

// relayFields mirrors the client's frame data verbatim onto the outbound
// event, stamping the sending user. Used for frames that carry a payload the
// other members need as-is, like the message body of a chat_message relay.
func relayFields(frame models.InboundFrame, userID int64) map[string]interface{} {
	fields := map[string]interface{}{}
	if len(frame.Data) > 0 {
		_ = json.Unmarshal(frame.Data, &fields)
	}
	fields["user_id"] = userID
	return fields
}

// dispatch routes one inbound frame. Frames relay client-side events to the
// rest of the chat; the REST API remains the write path for messages.
func (h *UserWebSocketHandler) dispatch(ctx context.Context, info ConnInfo, frame models.InboundFrame) error {
	var payload framePayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		return err
	}

	member, err := h.members.GetMember(ctx, payload.ChatID, info.UserID)
	if err != nil {
		return err
	}
	if !member.Active() {
		return repositories.ErrForbidden
	}

	fields := map[string]interface{}{
		"chat_id": payload.ChatID,
		"user_id": info.UserID,
	}
	if payload.MessageID != 0 {
		fields["message_id"] = payload.MessageID
	}

	switch frame.Type {
	case models.InStartTyping:
		return h.fanout.RelayToChat(ctx, payload.ChatID, models.EventStartTyping, fields, info.UserID)
	case models.InStopTyping:
		return h.fanout.RelayToChat(ctx, payload.ChatID, models.EventStopTyping, fields, info.UserID)
	case models.InMessageRead:
		if err := h.engine.MarkRead(ctx, member, payload.MessageID); err != nil {
			return err
		}
		return h.fanout.RelayToChat(ctx, payload.ChatID, models.EventMessageRead, fields, info.UserID)
	case models.InChatMessage:
		return h.fanout.RelayToChat(ctx, payload.ChatID, models.EventMessageNew, relayFields(frame, info.UserID), info.UserID)
	case models.InMessageDeleted:
		return h.fanout.RelayToChat(ctx, payload.ChatID, models.EventMessageDeleted, relayFields(frame, info.UserID), info.UserID)
	case models.InChatDeleted:
		return h.fanout.RelayToChat(ctx, payload.ChatID, models.EventChatDeleted, fields, info.UserID)
	case models.InChatArchived:
		// Archive state is per-member; mirror it to the user's other devices only.
		h.fanout.SendToMembers(models.EventChatArchived, fields, []models.Member{member})
		return nil
	default:
		h.log.Debug("unknown frame type", zap.String("type", frame.Type))
		return nil
	}
}

func (h *UserWebSocketHandler) publishLifecycleEvent(ctx context.Context, event string, info ConnInfo, reason, requestID, traceID string) {
	_ = observability.PublishEvent(ctx, "ws_events.users", observability.NewEventEnvelope("ws_events", event, map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "user",
			"resource_id": info.UserID,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}), observability.BuildHeaders(requestID, traceID))
}
