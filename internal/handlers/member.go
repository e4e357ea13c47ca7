package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

// MemberHandler manages membership endpoints: join, invite, leave, kick and
// role changes.
type MemberHandler struct {
	chats   repositories.ChatRepository
	members repositories.MemberRepository
	users   repositories.UserRepository
	system  repositories.SystemMessageRepository
	fanout  *ws.Fanout
	audit   *telemetry.AuditEmitter
	log     *zap.Logger
}

// NewMemberHandler builds a MemberHandler.
func NewMemberHandler(
	chats repositories.ChatRepository,
	members repositories.MemberRepository,
	users repositories.UserRepository,
	system repositories.SystemMessageRepository,
	fanout *ws.Fanout,
	audit *telemetry.AuditEmitter,
	log *zap.Logger,
) *MemberHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &MemberHandler{
		chats:   chats,
		members: members,
		users:   users,
		system:  system,
		fanout:  fanout,
		audit:   audit,
		log:     log,
	}
}

// liveGroupChat loads the chat and rejects tombstoned or direct ones, which
// have fixed membership.
func (h *MemberHandler) liveGroupChat(c *gin.Context, chatID int64) (models.Chat, bool) {
	chat, err := h.chats.GetChat(c.Request.Context(), chatID)
	if err != nil {
		writeError(c, err)
		return models.Chat{}, false
	}
	if chat.Deleted() {
		writeError(c, repositories.ErrChatNotFound)
		return models.Chat{}, false
	}
	if chat.ChatType == models.ChatDirect {
		badRequest(c, "direct chats have fixed membership")
		return models.Chat{}, false
	}
	return chat, true
}

// Join adds the caller to a group or event chat as participant.
func (h *MemberHandler) Join(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	if _, ok := h.liveGroupChat(c, chatID); !ok {
		return
	}

	userID := c.GetInt64("userID")
	member, err := h.members.AddMember(c.Request.Context(), chatID, userID, models.RoleParticipant)
	if err != nil {
		writeError(c, err)
		return
	}

	msg, _, err := h.system.Emit(c.Request.Context(), chatID, &member.ID, models.ActionMemberJoined,
		models.SystemActionPayload{TargetMemberID: &member.ID})
	if err != nil {
		writeError(c, err)
		return
	}
	_ = h.fanout.BroadcastMessage(c.Request.Context(), msg, models.EventMessageNew, 0, nil)

	c.JSON(http.StatusCreated, member)
}

// Invite bulk-adds users as participants. Admin only. Users who are already
// active members are skipped, not an error for the batch.
func (h *MemberHandler) Invite(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	var req struct {
		UserIDs []int64 `json:"user_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if _, ok := h.liveGroupChat(c, chatID); !ok {
		return
	}

	userID := c.GetInt64("userID")
	actor, err := h.members.GetMember(c.Request.Context(), chatID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !actor.Active() || !actor.CanManage() {
		forbidden(c, "only admins can invite")
		return
	}

	added := make([]models.Member, 0, len(req.UserIDs))
	for _, inviteeID := range req.UserIDs {
		member, err := h.members.AddMember(c.Request.Context(), chatID, inviteeID, models.RoleParticipant)
		if err != nil {
			h.log.Debug("invite skipped",
				zap.Int64("chat_id", chatID),
				zap.Int64("user_id", inviteeID),
				zap.Error(err))
			continue
		}
		added = append(added, member)

		msg, _, err := h.system.Emit(c.Request.Context(), chatID, &actor.ID, models.ActionMemberAdded,
			models.SystemActionPayload{TargetMemberID: &member.ID})
		if err != nil {
			writeError(c, err)
			return
		}
		_ = h.fanout.BroadcastMessage(c.Request.Context(), msg, models.EventMessageNew, 0, nil)
	}

	c.JSON(http.StatusOK, gin.H{"members": added})
}

// Leave removes the caller from the chat. An owner cannot leave their own
// chat; they delete it instead.
func (h *MemberHandler) Leave(c *gin.Context) {
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
	if !member.Active() {
		writeError(c, repositories.ErrMemberNotFound)
		return
	}
	if member.Role == models.RoleOwner {
		forbidden(c, "owner cannot leave; delete the chat instead")
		return
	}

	left, err := h.members.Leave(c.Request.Context(), member.ID, false)
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

// Kick removes another member. Role rules: owners are untouchable, admins
// cannot kick admins. The kicked member is still delivered the kick event as
// the system action's target.
func (h *MemberHandler) Kick(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	memberID, err := strconv.ParseInt(c.Param("member_id"), 10, 64)
	if err != nil || memberID <= 0 {
		badRequest(c, "invalid member id")
		return
	}

	userID := c.GetInt64("userID")
	actor, err := h.members.GetMember(c.Request.Context(), chatID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	target, err := h.members.GetMemberByID(c.Request.Context(), memberID)
	if err != nil {
		writeError(c, err)
		return
	}
	if target.ChatID != chatID {
		badRequest(c, "member does not belong to chat")
		return
	}
	if !target.Active() {
		writeError(c, repositories.ErrMemberNotFound)
		return
	}
	if !actor.Active() || !models.CanKick(actor, target) {
		forbidden(c, "not allowed to kick this member")
		return
	}

	kicked, err := h.members.Kick(c.Request.Context(), target.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	msg, _, err := h.system.Emit(c.Request.Context(), chatID, &actor.ID, models.ActionMemberKicked,
		models.SystemActionPayload{TargetMemberID: &kicked.ID})
	if err != nil {
		writeError(c, err)
		return
	}
	_ = h.fanout.BroadcastMessage(c.Request.Context(), msg, models.EventMessageNew, 0, nil)
	h.audit.Emit(c.Request.Context(), "WARN", "member kicked", requestIDFromContext(c), userID, chatID)

	c.Status(http.StatusNoContent)
}

// ChangeRole promotes or demotes a member between Admin and Participant.
func (h *MemberHandler) ChangeRole(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	memberID, err := strconv.ParseInt(c.Param("member_id"), 10, 64)
	if err != nil || memberID <= 0 {
		badRequest(c, "invalid member id")
		return
	}
	var req struct {
		Role models.MemberRole `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !models.ValidAssignableRole(req.Role) {
		badRequest(c, "role must be Admin or Participant")
		return
	}

	userID := c.GetInt64("userID")
	actor, err := h.members.GetMember(c.Request.Context(), chatID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	target, err := h.members.GetMemberByID(c.Request.Context(), memberID)
	if err != nil {
		writeError(c, err)
		return
	}
	if target.ChatID != chatID {
		badRequest(c, "member does not belong to chat")
		return
	}
	if !actor.Active() || !models.CanChangeRole(actor, target) {
		forbidden(c, "not allowed to change this member's role")
		return
	}
	if target.Role == req.Role {
		c.JSON(http.StatusOK, target)
		return
	}

	updated, err := h.members.ChangeRole(c.Request.Context(), target.ID, req.Role)
	if err != nil {
		writeError(c, err)
		return
	}

	from := string(target.Role)
	to := string(updated.Role)
	msg, _, err := h.system.Emit(c.Request.Context(), chatID, &actor.ID, models.ActionMemberRoleChanged,
		models.SystemActionPayload{TargetMemberID: &updated.ID, ChangedFrom: &from, ChangedTo: &to})
	if err != nil {
		writeError(c, err)
		return
	}
	_ = h.fanout.BroadcastMessage(c.Request.Context(), msg, models.EventMessageNew, 0, nil)

	c.JSON(http.StatusOK, updated)
}

// ListMembers pages a chat's members with their user projections.
func (h *MemberHandler) ListMembers(c *gin.Context) {
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt64("userID")
	if _, err := h.members.GetMember(c.Request.Context(), chatID, userID); err != nil {
		writeError(c, err)
		return
	}

	fromID, _ := strconv.ParseInt(c.Query("from_member_id"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))

	members, err := h.members.ListMembers(c.Request.Context(), chatID, fromID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	userIDs := make([]int64, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, m.UserID)
	}
	users, err := h.users.BulkUsers(c.Request.Context(), userIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	byID := make(map[int64]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	type memberResponse struct {
		models.Member
		User *models.User `json:"user,omitempty"`
	}
	resp := make([]memberResponse, 0, len(members))
	for _, m := range members {
		entry := memberResponse{Member: m}
		if u, ok := byID[m.UserID]; ok {
			entry.User = &u
		}
		resp = append(resp, entry)
	}

	c.JSON(http.StatusOK, gin.H{"members": resp})
}
