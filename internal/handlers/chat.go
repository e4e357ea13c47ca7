package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/readstate"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

// ChatHandler manages chat lifecycle endpoints.
type ChatHandler struct {
	chats    repositories.ChatRepository
	members  repositories.MemberRepository
	messages repositories.MessageRepository
	users    repositories.UserRepository
	events   repositories.EventRepository
	system   repositories.SystemMessageRepository
	engine   *readstate.Engine
	fanout   *ws.Fanout
	audit    *telemetry.AuditEmitter
	log      *zap.Logger
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(
	chats repositories.ChatRepository,
	members repositories.MemberRepository,
	messages repositories.MessageRepository,
	users repositories.UserRepository,
	events repositories.EventRepository,
	system repositories.SystemMessageRepository,
	engine *readstate.Engine,
	fanout *ws.Fanout,
	audit *telemetry.AuditEmitter,
	log *zap.Logger,
) *ChatHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatHandler{
		chats:    chats,
		members:  members,
		messages: messages,
		users:    users,
		events:   events,
		system:   system,
		engine:   engine,
		fanout:   fanout,
		audit:    audit,
		log:      log,
	}
}

func chatIDParam(c *gin.Context) (int64, bool) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil || chatID <= 0 {
		badRequest(c, "invalid chat id")
		return 0, false
	}
	return chatID, true
}

// chatState assembles the per-user projection of one chat.
func (h *ChatHandler) chatState(c *gin.Context, chat models.Chat, member models.Member) (models.ChatState, error) {
	state := models.ChatState{
		Chat:     chat,
		Member:   &member,
		Muted:    member.MutedAt != nil,
		Archived: member.ArchivedAt != nil,
		Pinned:   member.PinnedAt != nil,
	}

	unread, err := h.engine.UnreadCount(c.Request.Context(), member)
	if err != nil {
		return models.ChatState{}, err
	}
	state.UnreadCount = unread

	if member.LastMessageID != nil {
		last, err := h.messages.GetMessage(c.Request.Context(), *member.LastMessageID)
		if err == nil {
			state.LastMessage = &last
		}
	}
	return state, nil
}

// ListChats returns the chats visible to the authenticated user, newest
// conversation first, each with its unread count and per-member flags.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetInt64("userID")

	chats, err := h.chats.ListChatsForUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	// One membership fetch for the whole page, not one per chat.
	memberships, err := h.members.ListMembershipsForUser(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	byChat := make(map[int64]models.Member, len(memberships))
	for _, m := range memberships {
		byChat[m.ChatID] = m
	}

	states := make([]models.ChatState, 0, len(chats))
	for _, chat := range chats {
		member, ok := byChat[chat.ID]
		if !ok {
			continue
		}
		state, err := h.chatState(c, chat, member)
		if err != nil {
			writeError(c, err)
			return
		}
		states = append(states, state)
	}

	c.JSON(http.StatusOK, gin.H{"chats": states})
}

// CreateDirectChat creates the direct chat between the caller and another
// user, or returns the existing one. Idempotent.
func (h *ChatHandler) CreateDirectChat(c *gin.Context) {
	var req struct {
		UserID int64 `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	userID := c.GetInt64("userID")
	if userID == req.UserID {
		badRequest(c, "cannot chat with yourself")
		return
	}
	if _, err := h.users.GetUser(c.Request.Context(), req.UserID); err != nil {
		writeError(c, err)
		return
	}

	if chat, found, err := h.chats.FindDirectChat(c.Request.Context(), userID, req.UserID); err != nil {
		writeError(c, err)
		return
	} else if found {
		member, err := h.members.GetMember(c.Request.Context(), chat.ID, userID)
		if err != nil {
			writeError(c, err)
			return
		}
		state, err := h.chatState(c, chat, member)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
		return
	}

	chat, err := h.chats.CreateChat(c.Request.Context(), repositories.CreateChatParams{
		ChatType:  models.ChatDirect,
		CreatedBy: &userID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	member, err := h.members.AddMember(c.Request.Context(), chat.ID, userID, models.RoleParticipant)
	if err != nil {
		writeError(c, err)
		return
	}
	if _, err := h.members.AddMember(c.Request.Context(), chat.ID, req.UserID, models.RoleParticipant); err != nil {
		writeError(c, err)
		return
	}

	state, err := h.chatState(c, chat, member)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, state)
}

// CreateGroupChat creates a group chat with the caller as owner, adds the
// initial members and records the chat.new system message.
func (h *ChatHandler) CreateGroupChat(c *gin.Context) {
	var req struct {
		Title       string  `json:"title" binding:"required"`
		Description *string `json:"description"`
		CoverURL    *string `json:"cover_url"`
		MemberIDs   []int64 `json:"member_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	userID := c.GetInt64("userID")
	chat, err := h.chats.CreateChat(c.Request.Context(), repositories.CreateChatParams{
		ChatType:    models.ChatGroup,
		Title:       &req.Title,
		Description: req.Description,
		CoverURL:    req.CoverURL,
		CreatedBy:   &userID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	owner, err := h.members.AddMember(c.Request.Context(), chat.ID, userID, models.RoleOwner)
	if err != nil {
		writeError(c, err)
		return
	}

	msg, _, err := h.system.Emit(c.Request.Context(), chat.ID, &owner.ID, models.ActionChatCreated, models.SystemActionPayload{})
	if err != nil {
		writeError(c, err)
		return
	}

	for _, memberUserID := range req.MemberIDs {
		if memberUserID == userID {
			continue
		}
		added, err := h.members.AddMember(c.Request.Context(), chat.ID, memberUserID, models.RoleParticipant)
		if err != nil {
			h.log.Warn("adding initial member failed",
				zap.Int64("chat_id", chat.ID),
				zap.Int64("user_id", memberUserID),
				zap.Error(err))
			continue
		}
		if addMsg, _, err := h.system.Emit(c.Request.Context(), chat.ID, &owner.ID, models.ActionMemberAdded,
			models.SystemActionPayload{TargetMemberID: &added.ID}); err == nil {
			_ = h.fanout.BroadcastMessage(c.Request.Context(), addMsg, models.EventMessageNew, 0, nil)
		}
	}

	_ = h.fanout.BroadcastMessage(c.Request.Context(), msg, models.EventMessageNew, 0, nil)

	state, err := h.chatState(c, chat, owner)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, state)
}

// CreateEventChat creates the chat bound to a calendar event and enrolls the
// event author plus everyone who accepted the invite. Idempotent per event.
func (h *ChatHandler) CreateEventChat(c *gin.Context) {
	var req struct {
		EventID int64 `json:"event_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	userID := c.GetInt64("userID")
	event, err := h.events.GetEvent(c.Request.Context(), req.EventID)
	if err != nil {
		writeError(c, err)
		return
	}

	if event.ChatID != nil {
		chat, err := h.chats.GetChat(c.Request.Context(), *event.ChatID)
		if err != nil {
			writeError(c, err)
			return
		}
		member, err := h.members.GetMember(c.Request.Context(), chat.ID, userID)
		if err != nil {
			writeError(c, err)
			return
		}
		state, err := h.chatState(c, chat, member)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
		return
	}

	if event.AuthorID != userID {
		forbidden(c, "only the event author can create the event chat")
		return
	}

	chat, err := h.chats.CreateChat(c.Request.Context(), repositories.CreateChatParams{
		ChatType:    models.ChatEvent,
		Title:       &event.Title,
		Description: event.Description,
		CoverURL:    event.CoverURL,
		EventID:     &event.ID,
		CreatedBy:   &userID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	owner, err := h.members.AddMember(c.Request.Context(), chat.ID, userID, models.RoleOwner)
	if err != nil {
		writeError(c, err)
		return
	}

	invited, err := h.events.ListAcceptedInvites(c.Request.Context(), event.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	for _, invite := range invited {
		if invite.UserID == userID {
			continue
		}
		if _, err := h.members.AddMember(c.Request.Context(), chat.ID, invite.UserID, models.RoleParticipant); err != nil {
			h.log.Warn("enrolling invited user failed",
				zap.Int64("chat_id", chat.ID),
				zap.Int64("user_id", invite.UserID),
				zap.Error(err))
		}
	}

	if err := h.events.SetChat(c.Request.Context(), event.ID, &chat.ID); err != nil {
		writeError(c, err)
		return
	}

	msg, _, err := h.system.Emit(c.Request.Context(), chat.ID, &owner.ID, models.ActionChatCreated, models.SystemActionPayload{})
	if err != nil {
		writeError(c, err)
		return
	}
	_ = h.fanout.BroadcastMessage(c.Request.Context(), msg, models.EventMessageNew, 0, nil)

	state, err := h.chatState(c, chat, owner)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, state)
}

// GetChat returns the caller's projection of one chat.
func (h *ChatHandler) GetChat(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	userID := c.GetInt64("userID")

	chat, err := h.chats.GetChat(c.Request.Context(), chatID)
	if err != nil {
		writeError(c, err)
		return
	}
	if chat.Deleted() {
		writeError(c, repositories.ErrChatNotFound)
		return
	}
	member, err := h.members.GetMember(c.Request.Context(), chatID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	state, err := h.chatState(c, chat, member)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// emptyIfNil keeps changed_from/changed_to as empty strings, never null, so a
// cleared value stays distinguishable from one that was never set.
func emptyIfNil(s *string) *string {
	if s == nil {
		empty := ""
		return &empty
	}
	return s
}

// UpdateGroupChat changes title, description or cover and records one system
// message per changed attribute.
func (h *ChatHandler) UpdateGroupChat(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		CoverURL    *string `json:"cover_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	userID := c.GetInt64("userID")
	chat, err := h.chats.GetChat(c.Request.Context(), chatID)
	if err != nil {
		writeError(c, err)
		return
	}
	if chat.Deleted() || chat.ChatType == models.ChatDirect {
		badRequest(c, "chat cannot be edited")
		return
	}

	actor, err := h.members.GetMember(c.Request.Context(), chatID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !actor.Active() || !actor.CanManage() {
		forbidden(c, "only admins can edit the chat")
		return
	}

	updated, err := h.chats.UpdateGroupInfo(c.Request.Context(), chatID, repositories.GroupInfoUpdate{
		Title:       req.Title,
		Description: req.Description,
		CoverURL:    req.CoverURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	type change struct {
		action   models.SystemActionType
		from, to *string
	}
	var changes []change
	if req.Title != nil && (chat.Title == nil || *chat.Title != *req.Title) {
		changes = append(changes, change{models.ActionTitleChanged, chat.Title, req.Title})
	}
	if req.Description != nil && (chat.Description == nil || *chat.Description != *req.Description) {
		changes = append(changes, change{models.ActionDescriptionChanged, chat.Description, req.Description})
	}
	if req.CoverURL != nil && (chat.CoverURL == nil || *chat.CoverURL != *req.CoverURL) {
		changes = append(changes, change{models.ActionCoverChanged, chat.CoverURL, req.CoverURL})
	}

	for _, ch := range changes {
		msg, _, err := h.system.Emit(c.Request.Context(), chatID, &actor.ID, ch.action, models.SystemActionPayload{
			ChangedFrom: emptyIfNil(ch.from),
			ChangedTo:   emptyIfNil(ch.to),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		_ = h.fanout.BroadcastMessage(c.Request.Context(), msg, models.EventMessageNew, 0, nil)
	}

	state, err := h.chatState(c, updated, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// DeleteChat removes the chat from the caller's view. What that means depends
// on the chat type and the delete_for_all flag:
//   - direct: truncate the caller's history, or both members' with
//     delete_for_all (the chat row itself survives);
//   - group/event: the owner with delete_for_all tombstones the whole chat
//     (releasing the event backlink); anyone else leaves with truncation and a
//     member.left system message.
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	var req struct {
		DeleteForAll bool `json:"delete_for_all"`
	}
	// Body is optional; absent means delete for me only.
	_ = c.ShouldBindJSON(&req)

	userID := c.GetInt64("userID")
	chat, err := h.chats.GetChat(c.Request.Context(), chatID)
	if err != nil {
		writeError(c, err)
		return
	}
	if chat.Deleted() {
		writeError(c, repositories.ErrChatNotFound)
		return
	}
	member, err := h.members.GetMember(c.Request.Context(), chatID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	deletedEvent := map[string]interface{}{"chat_id": chatID}

	if chat.ChatType == models.ChatDirect {
		now := time.Now().UTC()
		if req.DeleteForAll {
			members, err := h.members.ListAllMembers(c.Request.Context(), chatID)
			if err != nil {
				writeError(c, err)
				return
			}
			for _, m := range members {
				if err := h.members.SetFlag(c.Request.Context(), m.ID, models.FlagTruncated, &now); err != nil {
					writeError(c, err)
					return
				}
			}
			h.fanout.SendToMembers(models.EventChatDeleted, deletedEvent, members)
		} else {
			if err := h.members.SetFlag(c.Request.Context(), member.ID, models.FlagTruncated, &now); err != nil {
				writeError(c, err)
				return
			}
			h.fanout.SendToMembers(models.EventChatDeleted, deletedEvent, []models.Member{member})
		}
		c.Status(http.StatusNoContent)
		return
	}

	if member.Role == models.RoleOwner && req.DeleteForAll {
		// Event chats release the backlink so the event can get a fresh chat.
		if chat.EventID != nil {
			if err := h.events.SetChat(c.Request.Context(), *chat.EventID, nil); err != nil {
				writeError(c, err)
				return
			}
		}
		members, err := h.members.ListAllMembers(c.Request.Context(), chatID)
		if err != nil {
			writeError(c, err)
			return
		}
		if err := h.chats.SoftDelete(c.Request.Context(), chatID); err != nil {
			writeError(c, err)
			return
		}
		h.fanout.SendToMembers(models.EventChatDeleted, deletedEvent, members)
		h.audit.Emit(c.Request.Context(), "INFO", "chat deleted", requestIDFromContext(c), userID, chatID)
		c.Status(http.StatusNoContent)
		return
	}

	if !member.Active() {
		writeError(c, repositories.ErrMemberNotFound)
		return
	}
	left, err := h.members.Leave(c.Request.Context(), member.ID, true)
	if err != nil {
		writeError(c, err)
		return
	}
	msg, _, err := h.system.Emit(c.Request.Context(), chatID, &left.ID, models.ActionMemberLeft,
		models.SystemActionPayload{TargetMemberID: &left.ID})
	if err != nil {
		writeError(c, err)
		return
	}
	_ = h.fanout.BroadcastMessage(c.Request.Context(), msg, models.EventMessageNew, 0, nil)

	c.Status(http.StatusNoContent)
}

// TruncateChat hides the chat's history for the caller from this moment back.
// The chat stays listed; other members are unaffected.
func (h *ChatHandler) TruncateChat(c *gin.Context) {
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

	now := time.Now().UTC()
	if err := h.members.SetFlag(c.Request.Context(), member.ID, models.FlagTruncated, &now); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ChatAction toggles the caller's per-member chat flags: mute/unmute,
// archive/unarchive, pin/unpin. Pinning honors the 3-chat cap per user.
func (h *ChatHandler) ChatAction(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	var req struct {
		Action string `json:"action" binding:"required"`
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
	if !member.Active() {
		forbidden(c, "not an active member")
		return
	}

	now := time.Now().UTC()
	var flag models.MemberFlag
	var at *time.Time
	var event string
	switch req.Action {
	case "mute":
		flag, at, event = models.FlagMuted, &now, models.EventChatMuted
	case "unmute":
		flag, at, event = models.FlagMuted, nil, models.EventChatMuted
	case "archive":
		flag, at, event = models.FlagArchived, &now, models.EventChatArchived
	case "unarchive":
		flag, at, event = models.FlagArchived, nil, models.EventChatArchived
	case "pin":
		flag, at, event = models.FlagPinned, &now, models.EventChatPinned
	case "unpin":
		flag, at, event = models.FlagPinned, nil, models.EventChatPinned
	default:
		badRequest(c, "unknown action")
		return
	}

	if err := h.members.SetFlag(c.Request.Context(), member.ID, flag, at); err != nil {
		writeError(c, err)
		return
	}

	// Flag state is private to the member; mirror it to their other devices.
	h.fanout.SendToMembers(event, map[string]interface{}{
		"chat_id": chatID,
		"user_id": userID,
		"active":  at != nil,
	}, []models.Member{member})

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
