package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/notify"
	"messenger-service/internal/observability"
	"messenger-service/internal/readstate"
	"messenger-service/internal/repositories"
	"messenger-service/internal/ws"
)

// MessageHandler manages the message endpoints: send, list, pin, mark-read
// and the two deletion flavors.
type MessageHandler struct {
	members     repositories.MemberRepository
	messages    repositories.MessageRepository
	attachments repositories.AttachmentRepository
	events      repositories.EventRepository
	system      repositories.SystemMessageRepository
	engine      *readstate.Engine
	fanout      *ws.Fanout
	log         *zap.Logger
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(
	members repositories.MemberRepository,
	messages repositories.MessageRepository,
	attachments repositories.AttachmentRepository,
	events repositories.EventRepository,
	system repositories.SystemMessageRepository,
	engine *readstate.Engine,
	fanout *ws.Fanout,
	log *zap.Logger,
) *MessageHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &MessageHandler{
		members:     members,
		messages:    messages,
		attachments: attachments,
		events:      events,
		system:      system,
		engine:      engine,
		fanout:      fanout,
		log:         log,
	}
}

func (h *MessageHandler) activeMember(c *gin.Context, chatID int64) (models.Member, bool) {
	userID := c.GetInt64("userID")
	member, err := h.members.GetMember(c.Request.Context(), chatID, userID)
	if err != nil {
		writeError(c, err)
		return models.Member{}, false
	}
	if !member.Active() {
		forbidden(c, "not an active member")
		return models.Member{}, false
	}
	return member, true
}

func messageIDParam(c *gin.Context) (int64, bool) {
	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil || messageID <= 0 {
		badRequest(c, "invalid message id")
		return 0, false
	}
	return messageID, true
}

type mediaRequest struct {
	Type     models.AttachmentType `json:"type"`
	FileURL  string                `json:"file_url"`
	Size     *int64                `json:"size"`
	Duration *int64                `json:"duration"`
	Width    *int64                `json:"width"`
	Height   *int64                `json:"height"`
}

type sendMessageRequest struct {
	UUID      string  `json:"uuid"`
	Text      *string `json:"text"`
	ReplyToID *int64  `json:"reply_to_id"`
	Contact   *struct {
		UserID *int64 `json:"user_id"`
		Name   string `json:"name" binding:"required"`
		Phone  string `json:"phone" binding:"required"`
	} `json:"contact"`
	EventID  *int64 `json:"event_id"`
	Location *struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Address   string   `json:"address" binding:"required"`
	} `json:"location"`
	Media []mediaRequest `json:"media"`
}

// Send appends a message to the chat and fans it out. The client uuid makes
// retried sends idempotent per chat.
func (h *MessageHandler) Send(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	member, ok := h.activeMember(c, chatID)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	for _, media := range req.Media {
		if !models.ValidAttachmentType(media.Type) || media.FileURL == "" {
			badRequest(c, "invalid media attachment")
			return
		}
	}

	params := repositories.AppendParams{
		ChatID:     chatID,
		SenderID:   &member.ID,
		UUID:       req.UUID,
		Type:       models.MessageRegular,
		Text:       req.Text,
		ReplayToID: req.ReplyToID,
	}

	if req.Contact != nil {
		contact, err := h.attachments.CreateContact(c.Request.Context(), models.ContactAttachment{
			UserID: req.Contact.UserID,
			Name:   req.Contact.Name,
			Phone:  req.Contact.Phone,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		params.ContactAttachmentID = &contact.ID
	}
	if req.EventID != nil {
		if _, err := h.events.GetEvent(c.Request.Context(), *req.EventID); err != nil {
			writeError(c, err)
			return
		}
		shared, err := h.attachments.CreateEventAttachment(c.Request.Context(), *req.EventID)
		if err != nil {
			writeError(c, err)
			return
		}
		params.EventAttachmentID = &shared.ID
	}
	if req.Location != nil {
		location, err := h.attachments.CreateLocation(c.Request.Context(), models.LocationAttachment{
			Latitude:  req.Location.Latitude,
			Longitude: req.Location.Longitude,
			Address:   req.Location.Address,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		params.LocationAttachmentID = &location.ID
	}

	if params.Text == nil && params.ContactAttachmentID == nil && params.EventAttachmentID == nil &&
		params.LocationAttachmentID == nil && len(req.Media) == 0 {
		writeError(c, repositories.ErrEmptyMessage)
		return
	}
	if params.Text == nil && len(req.Media) > 0 {
		// Media-only messages carry no text; satisfy the content check with
		// an empty string and let the attachment rows carry the payload.
		empty := ""
		params.Text = &empty
	}

	msg, err := h.messages.Append(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}

	for _, media := range req.Media {
		if _, err := h.attachments.CreateMedia(c.Request.Context(), models.Attachment{
			AttachmentType: media.Type,
			FileURL:        media.FileURL,
			MessageID:      &msg.ID,
			Size:           media.Size,
			Duration:       media.Duration,
			Width:          media.Width,
			Height:         media.Height,
		}); err != nil {
			writeError(c, err)
			return
		}
	}

	observability.IncMessage(string(msg.Type))

	body := ""
	if msg.Text != nil {
		body = *msg.Text
	}
	push := &notify.Notification{
		ChatID:    chatID,
		MessageID: msg.ID,
		Title:     "New message",
		Body:      body,
		Data:      map[string]string{"chat_id": strconv.FormatInt(chatID, 10)},
	}
	_ = h.fanout.BroadcastMessage(c.Request.Context(), msg, models.EventMessageNew, member.UserID, push)

	c.JSON(http.StatusCreated, msg)
}

// List returns the member's visible window of the chat log, newest first.
// Messages at or before the member's visibility cutoff stay hidden unless the
// member authored them.
func (h *MessageHandler) List(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt64("userID")
	member, err := h.members.GetMember(c.Request.Context(), chatID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	query := repositories.ListQuery{
		ChatID:     chatID,
		MemberID:   member.ID,
		Cutoff:     member.VisibilityCutoff(),
		PinnedOnly: c.Query("pinned") == "true",
	}
	if raw := c.Query("from_message_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			query.FromMessageID = &id
		}
	}
	if raw := c.Query("to_message_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			query.ToMessageID = &id
		}
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			query.Limit = limit
		}
	}

	msgs, err := h.messages.List(c.Request.Context(), query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Pin pins a message (admin only, at most 3 per chat) and records the
// message.pinned system message.
func (h *MessageHandler) Pin(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}
	member, ok := h.activeMember(c, chatID)
	if !ok {
		return
	}
	if !member.CanManage() {
		forbidden(c, "only admins can pin messages")
		return
	}

	target, err := h.messages.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		writeError(c, err)
		return
	}
	if target.ChatID != chatID {
		badRequest(c, "message does not belong to chat")
		return
	}

	pinned, err := h.messages.Pin(c.Request.Context(), messageID, member.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	msg, _, err := h.system.Emit(c.Request.Context(), chatID, &member.ID, models.ActionMessagePinned,
		models.SystemActionPayload{TargetMessageID: &pinned.ID})
	if err != nil {
		writeError(c, err)
		return
	}
	_ = h.fanout.BroadcastMessage(c.Request.Context(), msg, models.EventMessageNew, 0, nil)

	c.JSON(http.StatusOK, pinned)
}

// Unpin clears a message's pin and records message.unpinned.
func (h *MessageHandler) Unpin(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}
	member, ok := h.activeMember(c, chatID)
	if !ok {
		return
	}
	if !member.CanManage() {
		forbidden(c, "only admins can unpin messages")
		return
	}

	target, err := h.messages.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		writeError(c, err)
		return
	}
	if target.ChatID != chatID {
		badRequest(c, "message does not belong to chat")
		return
	}

	unpinned, err := h.messages.Unpin(c.Request.Context(), messageID)
	if err != nil {
		writeError(c, err)
		return
	}

	msg, _, err := h.system.Emit(c.Request.Context(), chatID, &member.ID, models.ActionMessageUnpinned,
		models.SystemActionPayload{TargetMessageID: &unpinned.ID})
	if err != nil {
		writeError(c, err)
		return
	}
	_ = h.fanout.BroadcastMessage(c.Request.Context(), msg, models.EventMessageNew, 0, nil)

	c.JSON(http.StatusOK, unpinned)
}

// MarkRead advances the caller's read marker, to a specific message's
// created_at or to now when message_id is omitted.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	var req struct {
		MessageID int64 `json:"message_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	userID := c.GetInt64("userID")
	member, err := h.members.GetMember(c.Request.Context(), chatID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := h.engine.MarkRead(c.Request.Context(), member, req.MessageID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteForAll tombstones a message for everyone. Allowed for the sender and
// for admins.
func (h *MessageHandler) DeleteForAll(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}
	member, ok := h.activeMember(c, chatID)
	if !ok {
		return
	}

	target, err := h.messages.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		writeError(c, err)
		return
	}
	if target.ChatID != chatID {
		badRequest(c, "message does not belong to chat")
		return
	}

	isSender := target.SenderID != nil && *target.SenderID == member.ID
	if !isSender && !member.CanManage() {
		forbidden(c, "only the sender or an admin can delete for all")
		return
	}

	deleted, err := h.messages.SoftDeleteForAll(c.Request.Context(), messageID)
	if err != nil {
		writeError(c, err)
		return
	}

	_ = h.fanout.BroadcastMessage(c.Request.Context(), deleted, models.EventMessageDeleted, 0, nil)
	c.Status(http.StatusNoContent)
}

// DeleteForMe hides a message for the caller only. Idempotent.
func (h *MessageHandler) DeleteForMe(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt64("userID")
	member, err := h.members.GetMember(c.Request.Context(), chatID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	target, err := h.messages.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		writeError(c, err)
		return
	}
	if target.ChatID != chatID {
		badRequest(c, "message does not belong to chat")
		return
	}

	if err := h.messages.DeleteForMember(c.Request.Context(), messageID, member.ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
