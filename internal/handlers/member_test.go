package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/ws"
)

type memberHandlerDeps struct {
	chats   *mocks.ChatRepositoryMock
	members *mocks.MemberRepositoryMock
	users   *mocks.UserRepositoryMock
	system  *mocks.SystemMessageRepositoryMock
}

func newMemberHandler() (*MemberHandler, memberHandlerDeps) {
	deps := memberHandlerDeps{
		chats:   new(mocks.ChatRepositoryMock),
		members: new(mocks.MemberRepositoryMock),
		users:   new(mocks.UserRepositoryMock),
		system:  new(mocks.SystemMessageRepositoryMock),
	}
	fanout := ws.NewFanout(ws.NewHub(nil), deps.members, deps.system, nil, nil)
	handler := NewMemberHandler(deps.chats, deps.members, deps.users, deps.system, fanout, nil, nil)
	return handler, deps
}

func setupMemberRouter(handler *MemberHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Next()
	})
	r.POST("/chats/:chat_id/join", handler.Join)
	r.POST("/chats/:chat_id/leave", handler.Leave)
	r.DELETE("/chats/:chat_id/members/:member_id", handler.Kick)
	r.PATCH("/chats/:chat_id/members/:member_id/role", handler.ChangeRole)
	r.GET("/chats/:chat_id/members", handler.ListMembers)
	return r
}

func TestKickRecordsSystemMessageWithTarget(t *testing.T) {
	handler, deps := newMemberHandler()
	router := setupMemberRouter(handler)

	actor := models.Member{ID: 7, ChatID: 5, UserID: 1, Role: models.RoleOwner, Status: models.StatusActive}
	target := models.Member{ID: 8, ChatID: 5, UserID: 2, Role: models.RoleParticipant, Status: models.StatusActive}
	kicked := target
	kicked.Status = models.StatusKicked
	sysMsg := models.Message{ID: 100, ChatID: 5, Type: models.MessageSystem}
	targetID := target.ID

	deps.members.On("GetMember", mock.Anything, int64(5), int64(1)).Return(actor, nil).Once()
	deps.members.On("GetMemberByID", mock.Anything, int64(8)).Return(target, nil).Once()
	deps.members.On("Kick", mock.Anything, int64(8)).Return(kicked, nil).Once()
	deps.system.On("Emit", mock.Anything, int64(5), &actor.ID, models.ActionMemberKicked,
		models.SystemActionPayload{TargetMemberID: &targetID}).
		Return(sysMsg, models.SystemMessageAction{MessageID: 100, ActionType: models.ActionMemberKicked, TargetMemberID: &targetID}, nil).Once()

	// The kicked member is no longer active but still resolves as a recipient.
	deps.members.On("ListActiveMembers", mock.Anything, int64(5)).Return([]models.Member{actor}, nil).Once()
	deps.system.On("GetActionByMessage", mock.Anything, int64(100)).
		Return(models.SystemMessageAction{MessageID: 100, ActionType: models.ActionMemberKicked, TargetMemberID: &targetID}, true, nil).Once()
	deps.members.On("GetMemberByID", mock.Anything, int64(8)).Return(kicked, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/5/members/8", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	deps.members.AssertExpectations(t)
	deps.system.AssertExpectations(t)
}

func TestAdminCannotKickAdmin(t *testing.T) {
	handler, deps := newMemberHandler()
	router := setupMemberRouter(handler)

	actor := models.Member{ID: 7, ChatID: 5, UserID: 1, Role: models.RoleAdmin, Status: models.StatusActive}
	target := models.Member{ID: 8, ChatID: 5, UserID: 2, Role: models.RoleAdmin, Status: models.StatusActive}

	deps.members.On("GetMember", mock.Anything, int64(5), int64(1)).Return(actor, nil).Once()
	deps.members.On("GetMemberByID", mock.Anything, int64(8)).Return(target, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/5/members/8", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	deps.members.AssertNotCalled(t, "Kick", mock.Anything, mock.Anything)
}

func TestNobodyKicksOwner(t *testing.T) {
	handler, deps := newMemberHandler()
	router := setupMemberRouter(handler)

	actor := models.Member{ID: 7, ChatID: 5, UserID: 1, Role: models.RoleAdmin, Status: models.StatusActive}
	target := models.Member{ID: 8, ChatID: 5, UserID: 2, Role: models.RoleOwner, Status: models.StatusActive}

	deps.members.On("GetMember", mock.Anything, int64(5), int64(1)).Return(actor, nil).Once()
	deps.members.On("GetMemberByID", mock.Anything, int64(8)).Return(target, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/5/members/8", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	deps.members.AssertNotCalled(t, "Kick", mock.Anything, mock.Anything)
}

func TestOwnerCannotLeave(t *testing.T) {
	handler, deps := newMemberHandler()
	router := setupMemberRouter(handler)

	owner := models.Member{ID: 7, ChatID: 5, UserID: 1, Role: models.RoleOwner, Status: models.StatusActive}
	deps.members.On("GetMember", mock.Anything, int64(5), int64(1)).Return(owner, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/leave", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	deps.members.AssertNotCalled(t, "Leave", mock.Anything, mock.Anything, mock.Anything)
}

func TestJoinGroupChat(t *testing.T) {
	handler, deps := newMemberHandler()
	router := setupMemberRouter(handler)

	chat := models.Chat{ID: 5, ChatType: models.ChatGroup}
	member := models.Member{ID: 7, ChatID: 5, UserID: 1, Role: models.RoleParticipant, Status: models.StatusActive}
	sysMsg := models.Message{ID: 100, ChatID: 5, Type: models.MessageSystem}
	memberID := member.ID

	deps.chats.On("GetChat", mock.Anything, int64(5)).Return(chat, nil).Once()
	deps.members.On("AddMember", mock.Anything, int64(5), int64(1), models.RoleParticipant).Return(member, nil).Once()
	deps.system.On("Emit", mock.Anything, int64(5), &member.ID, models.ActionMemberJoined,
		models.SystemActionPayload{TargetMemberID: &memberID}).
		Return(sysMsg, models.SystemMessageAction{MessageID: 100, ActionType: models.ActionMemberJoined, TargetMemberID: &memberID}, nil).Once()
	deps.members.On("ListActiveMembers", mock.Anything, int64(5)).Return([]models.Member{member}, nil).Once()
	deps.system.On("GetActionByMessage", mock.Anything, int64(100)).
		Return(models.SystemMessageAction{MessageID: 100, ActionType: models.ActionMemberJoined, TargetMemberID: &memberID}, true, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/join", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	deps.members.AssertExpectations(t)
	deps.system.AssertExpectations(t)
}

func TestJoinDirectChatRejected(t *testing.T) {
	handler, deps := newMemberHandler()
	router := setupMemberRouter(handler)

	chat := models.Chat{ID: 5, ChatType: models.ChatDirect}
	deps.chats.On("GetChat", mock.Anything, int64(5)).Return(chat, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/join", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	deps.members.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChangeRoleRejectsOwnerRole(t *testing.T) {
	handler, deps := newMemberHandler()
	router := setupMemberRouter(handler)

	req := httptest.NewRequest(http.MethodPatch, "/chats/5/members/8/role",
		bytes.NewBufferString(`{"role":"Owner"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	deps.members.AssertNotCalled(t, "ChangeRole", mock.Anything, mock.Anything, mock.Anything)
}
