package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/readstate"
	"messenger-service/internal/repositories"
	"messenger-service/internal/ws"
)

type chatHandlerDeps struct {
	chats    *mocks.ChatRepositoryMock
	members  *mocks.MemberRepositoryMock
	messages *mocks.MessageRepositoryMock
	users    *mocks.UserRepositoryMock
	events   *mocks.EventRepositoryMock
	system   *mocks.SystemMessageRepositoryMock
}

func newChatHandler() (*ChatHandler, chatHandlerDeps) {
	deps := chatHandlerDeps{
		chats:    new(mocks.ChatRepositoryMock),
		members:  new(mocks.MemberRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		users:    new(mocks.UserRepositoryMock),
		events:   new(mocks.EventRepositoryMock),
		system:   new(mocks.SystemMessageRepositoryMock),
	}
	engine := readstate.NewEngine(deps.messages, deps.members)
	fanout := ws.NewFanout(ws.NewHub(nil), deps.members, deps.system, nil, nil)
	handler := NewChatHandler(deps.chats, deps.members, deps.messages, deps.users,
		deps.events, deps.system, engine, fanout, nil, nil)
	return handler, deps
}

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Next()
	})
	r.GET("/chats", handler.ListChats)
	r.POST("/chats/direct", handler.CreateDirectChat)
	r.POST("/chats/group", handler.CreateGroupChat)
	r.GET("/chats/:chat_id", handler.GetChat)
	r.DELETE("/chats/:chat_id", handler.DeleteChat)
	r.POST("/chats/:chat_id/actions", handler.ChatAction)
	return r
}

func TestListChatsWithUnreadCount(t *testing.T) {
	handler, deps := newChatHandler()
	router := setupChatRouter(handler)

	chat := models.Chat{ID: 5, ChatType: models.ChatGroup}
	member := models.Member{ID: 7, ChatID: 5, UserID: 1, Status: models.StatusActive}

	deps.chats.On("ListChatsForUser", mock.Anything, int64(1)).Return([]models.Chat{chat}, nil).Once()
	deps.members.On("ListMembershipsForUser", mock.Anything, int64(1)).Return([]models.Member{member}, nil).Once()
	deps.messages.On("CountVisible", mock.Anything, int64(5), int64(7)).Return(2, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Chats []models.ChatState `json:"chats"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Chats, 1)
	require.Equal(t, 2, resp.Chats[0].UnreadCount)

	deps.chats.AssertExpectations(t)
	deps.members.AssertExpectations(t)
	deps.messages.AssertExpectations(t)
}

func TestCreateDirectChatReturnsExisting(t *testing.T) {
	handler, deps := newChatHandler()
	router := setupChatRouter(handler)

	chat := models.Chat{ID: 9, ChatType: models.ChatDirect}
	member := models.Member{ID: 3, ChatID: 9, UserID: 1, Status: models.StatusActive}

	deps.users.On("GetUser", mock.Anything, int64(2)).Return(models.User{ID: 2}, nil).Once()
	deps.chats.On("FindDirectChat", mock.Anything, int64(1), int64(2)).Return(chat, true, nil).Once()
	deps.members.On("GetMember", mock.Anything, int64(9), int64(1)).Return(member, nil).Once()
	deps.messages.On("CountVisible", mock.Anything, int64(9), int64(3)).Return(0, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/direct", bytes.NewBufferString(`{"user_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	deps.chats.AssertNotCalled(t, "CreateChat", mock.Anything, mock.Anything)
	deps.chats.AssertExpectations(t)
}

func TestCreateDirectChatWithSelf(t *testing.T) {
	handler, _ := newChatHandler()
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/chats/direct", bytes.NewBufferString(`{"user_id":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateGroupChatRecordsCreation(t *testing.T) {
	handler, deps := newChatHandler()
	router := setupChatRouter(handler)

	title := "weekend plans"
	chat := models.Chat{ID: 5, ChatType: models.ChatGroup, Title: &title}
	owner := models.Member{ID: 7, ChatID: 5, UserID: 1, Role: models.RoleOwner, Status: models.StatusActive}
	sysMsg := models.Message{ID: 100, ChatID: 5, Type: models.MessageSystem}
	chatID := chat.ID

	deps.chats.On("CreateChat", mock.Anything, mock.Anything).Return(chat, nil).Once()
	deps.members.On("AddMember", mock.Anything, int64(5), int64(1), models.RoleOwner).Return(owner, nil).Once()
	deps.system.On("Emit", mock.Anything, int64(5), &owner.ID, models.ActionChatCreated, mock.Anything).
		Return(sysMsg, models.SystemMessageAction{MessageID: 100, ActionType: models.ActionChatCreated, TargetChatID: &chatID}, nil).Once()
	deps.members.On("ListActiveMembers", mock.Anything, int64(5)).Return([]models.Member{owner}, nil)
	deps.system.On("GetActionByMessage", mock.Anything, int64(100)).
		Return(models.SystemMessageAction{MessageID: 100, ActionType: models.ActionChatCreated, TargetChatID: &chatID}, true, nil)
	deps.messages.On("CountVisible", mock.Anything, int64(5), int64(7)).Return(1, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/group", bytes.NewBufferString(`{"title":"weekend plans"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	deps.chats.AssertExpectations(t)
	deps.system.AssertExpectations(t)
}

func TestDeleteDirectChatTruncatesCallerOnly(t *testing.T) {
	handler, deps := newChatHandler()
	router := setupChatRouter(handler)

	chat := models.Chat{ID: 9, ChatType: models.ChatDirect}
	member := models.Member{ID: 3, ChatID: 9, UserID: 1, Role: models.RoleParticipant, Status: models.StatusActive}

	deps.chats.On("GetChat", mock.Anything, int64(9)).Return(chat, nil).Once()
	deps.members.On("GetMember", mock.Anything, int64(9), int64(1)).Return(member, nil).Once()
	deps.members.On("SetFlag", mock.Anything, int64(3), models.FlagTruncated, mock.Anything).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	deps.members.AssertExpectations(t)
	deps.members.AssertNotCalled(t, "Leave", mock.Anything, mock.Anything, mock.Anything)
	deps.chats.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
}

func TestDeleteDirectChatForAllTruncatesBoth(t *testing.T) {
	handler, deps := newChatHandler()
	router := setupChatRouter(handler)

	chat := models.Chat{ID: 9, ChatType: models.ChatDirect}
	mine := models.Member{ID: 3, ChatID: 9, UserID: 1, Role: models.RoleParticipant, Status: models.StatusActive}
	theirs := models.Member{ID: 4, ChatID: 9, UserID: 2, Role: models.RoleParticipant, Status: models.StatusActive}

	deps.chats.On("GetChat", mock.Anything, int64(9)).Return(chat, nil).Once()
	deps.members.On("GetMember", mock.Anything, int64(9), int64(1)).Return(mine, nil).Once()
	deps.members.On("ListAllMembers", mock.Anything, int64(9)).Return([]models.Member{mine, theirs}, nil).Once()
	deps.members.On("SetFlag", mock.Anything, int64(3), models.FlagTruncated, mock.Anything).Return(nil).Once()
	deps.members.On("SetFlag", mock.Anything, int64(4), models.FlagTruncated, mock.Anything).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/9",
		bytes.NewBufferString(`{"delete_for_all":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	deps.members.AssertExpectations(t)
	deps.chats.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
}

func TestDeleteGroupChatNonOwnerLeavesWithTruncation(t *testing.T) {
	handler, deps := newChatHandler()
	router := setupChatRouter(handler)

	chat := models.Chat{ID: 5, ChatType: models.ChatGroup}
	member := models.Member{ID: 7, ChatID: 5, UserID: 1, Role: models.RoleParticipant, Status: models.StatusActive}
	left := member
	left.Status = models.StatusLeft
	sysMsg := models.Message{ID: 100, ChatID: 5, Type: models.MessageSystem}
	leftID := left.ID

	deps.chats.On("GetChat", mock.Anything, int64(5)).Return(chat, nil).Once()
	deps.members.On("GetMember", mock.Anything, int64(5), int64(1)).Return(member, nil).Once()
	deps.members.On("Leave", mock.Anything, int64(7), true).Return(left, nil).Once()
	deps.system.On("Emit", mock.Anything, int64(5), &leftID, models.ActionMemberLeft,
		models.SystemActionPayload{TargetMemberID: &leftID}).
		Return(sysMsg, models.SystemMessageAction{MessageID: 100, ActionType: models.ActionMemberLeft, TargetMemberID: &leftID}, nil).Once()
	deps.members.On("ListActiveMembers", mock.Anything, int64(5)).Return([]models.Member{}, nil).Once()
	deps.system.On("GetActionByMessage", mock.Anything, int64(100)).
		Return(models.SystemMessageAction{MessageID: 100, ActionType: models.ActionMemberLeft, TargetMemberID: &leftID}, true, nil).Once()
	deps.members.On("GetMemberByID", mock.Anything, int64(7)).Return(left, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	deps.members.AssertExpectations(t)
	deps.system.AssertExpectations(t)
	deps.chats.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
}

func TestDeleteGroupChatOwnerForAllTombstones(t *testing.T) {
	handler, deps := newChatHandler()
	router := setupChatRouter(handler)

	chat := models.Chat{ID: 5, ChatType: models.ChatGroup}
	owner := models.Member{ID: 7, ChatID: 5, UserID: 1, Role: models.RoleOwner, Status: models.StatusActive}

	deps.chats.On("GetChat", mock.Anything, int64(5)).Return(chat, nil).Once()
	deps.members.On("GetMember", mock.Anything, int64(5), int64(1)).Return(owner, nil).Once()
	deps.members.On("ListAllMembers", mock.Anything, int64(5)).Return([]models.Member{owner}, nil).Once()
	deps.chats.On("SoftDelete", mock.Anything, int64(5)).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/5",
		bytes.NewBufferString(`{"delete_for_all":true}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	deps.chats.AssertExpectations(t)
	deps.members.AssertNotCalled(t, "Leave", mock.Anything, mock.Anything, mock.Anything)
}

func TestChatActionPinCapExceeded(t *testing.T) {
	handler, deps := newChatHandler()
	router := setupChatRouter(handler)

	member := models.Member{ID: 7, ChatID: 5, UserID: 1, Status: models.StatusActive}
	deps.members.On("GetMember", mock.Anything, int64(5), int64(1)).Return(member, nil).Once()
	deps.members.On("SetFlag", mock.Anything, int64(7), models.FlagPinned, mock.Anything).
		Return(repositories.ErrPinLimitExceeded).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/actions", bytes.NewBufferString(`{"action":"pin"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	deps.members.AssertExpectations(t)
}

func TestChatActionUnknown(t *testing.T) {
	handler, deps := newChatHandler()
	router := setupChatRouter(handler)

	member := models.Member{ID: 7, ChatID: 5, UserID: 1, Status: models.StatusActive}
	deps.members.On("GetMember", mock.Anything, int64(5), int64(1)).Return(member, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/actions", bytes.NewBufferString(`{"action":"shout"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
