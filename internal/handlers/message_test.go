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
	"messenger-service/internal/readstate"
	"messenger-service/internal/repositories"
	"messenger-service/internal/ws"
)

type messageHandlerDeps struct {
	members     *mocks.MemberRepositoryMock
	messages    *mocks.MessageRepositoryMock
	attachments *mocks.AttachmentRepositoryMock
	events      *mocks.EventRepositoryMock
	system      *mocks.SystemMessageRepositoryMock
}

func newMessageHandler() (*MessageHandler, messageHandlerDeps) {
	deps := messageHandlerDeps{
		members:     new(mocks.MemberRepositoryMock),
		messages:    new(mocks.MessageRepositoryMock),
		attachments: new(mocks.AttachmentRepositoryMock),
		events:      new(mocks.EventRepositoryMock),
		system:      new(mocks.SystemMessageRepositoryMock),
	}
	engine := readstate.NewEngine(deps.messages, deps.members)
	fanout := ws.NewFanout(ws.NewHub(nil), deps.members, deps.system, nil, nil)
	handler := NewMessageHandler(deps.members, deps.messages, deps.attachments,
		deps.events, deps.system, engine, fanout, nil)
	return handler, deps
}

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", int64(1))
		c.Next()
	})
	r.POST("/chats/:chat_id/messages", handler.Send)
	r.GET("/chats/:chat_id/messages", handler.List)
	r.POST("/chats/:chat_id/messages/:message_id/pin", handler.Pin)
	r.DELETE("/chats/:chat_id/messages/:message_id/pin", handler.Unpin)
	r.POST("/chats/:chat_id/read", handler.MarkRead)
	r.DELETE("/chats/:chat_id/messages/:message_id/all", handler.DeleteForAll)
	r.DELETE("/chats/:chat_id/messages/:message_id/me", handler.DeleteForMe)
	return r
}

func activeTestMember() models.Member {
	return models.Member{ID: 7, ChatID: 5, UserID: 1, Role: models.RoleParticipant, Status: models.StatusActive}
}

func TestSendEmptyMessageRejected(t *testing.T) {
	handler, deps := newMessageHandler()
	router := setupMessageRouter(handler)

	deps.members.On("GetMember", mock.Anything, int64(5), int64(1)).Return(activeTestMember(), nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/messages", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	deps.messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestSendMessageBroadcasts(t *testing.T) {
	handler, deps := newMessageHandler()
	router := setupMessageRouter(handler)

	member := activeTestMember()
	text := "hi"
	msg := models.Message{ID: 42, ChatID: 5, SenderID: &member.ID, Type: models.MessageRegular, Text: &text}

	deps.members.On("GetMember", mock.Anything, int64(5), int64(1)).Return(member, nil).Once()
	deps.messages.On("Append", mock.Anything, mock.MatchedBy(func(p repositories.AppendParams) bool {
		return p.ChatID == 5 && p.Text != nil && *p.Text == "hi" && p.UUID == "u1"
	})).Return(msg, nil).Once()
	deps.members.On("ListActiveMembers", mock.Anything, int64(5)).Return([]models.Member{member}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/messages",
		bytes.NewBufferString(`{"uuid":"u1","text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	deps.messages.AssertExpectations(t)
	deps.members.AssertExpectations(t)
}

func TestSendFromKickedMemberForbidden(t *testing.T) {
	handler, deps := newMessageHandler()
	router := setupMessageRouter(handler)

	kicked := activeTestMember()
	kicked.Status = models.StatusKicked
	deps.members.On("GetMember", mock.Anything, int64(5), int64(1)).Return(kicked, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/messages",
		bytes.NewBufferString(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	deps.messages.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestPinFourthMessageConflict(t *testing.T) {
	handler, deps := newMessageHandler()
	router := setupMessageRouter(handler)

	admin := activeTestMember()
	admin.Role = models.RoleAdmin
	target := models.Message{ID: 42, ChatID: 5, Type: models.MessageRegular}

	deps.members.On("GetMember", mock.Anything, int64(5), int64(1)).Return(admin, nil).Once()
	deps.messages.On("GetMessage", mock.Anything, int64(42)).Return(target, nil).Once()
	deps.messages.On("Pin", mock.Anything, int64(42), int64(7)).
		Return(models.Message{}, repositories.ErrPinLimitExceeded).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/messages/42/pin", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	deps.messages.AssertExpectations(t)
}

func TestPinRequiresAdmin(t *testing.T) {
	handler, deps := newMessageHandler()
	router := setupMessageRouter(handler)

	deps.members.On("GetMember", mock.Anything, int64(5), int64(1)).Return(activeTestMember(), nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/messages/42/pin", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	deps.messages.AssertNotCalled(t, "Pin", mock.Anything, mock.Anything, mock.Anything)
}

func TestListPassesVisibilityCutoff(t *testing.T) {
	handler, deps := newMessageHandler()
	router := setupMessageRouter(handler)

	member := activeTestMember()
	cutoff := member.CreatedAt
	member.TruncatedAt = &cutoff

	deps.members.On("GetMember", mock.Anything, int64(5), int64(1)).Return(member, nil).Once()
	deps.messages.On("List", mock.Anything, mock.MatchedBy(func(q repositories.ListQuery) bool {
		return q.ChatID == 5 && q.MemberID == 7 && q.Cutoff != nil && q.Cutoff.Equal(cutoff)
	})).Return([]models.Message{}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	deps.messages.AssertExpectations(t)
}

func TestMarkReadNow(t *testing.T) {
	handler, deps := newMessageHandler()
	router := setupMessageRouter(handler)

	deps.members.On("GetMember", mock.Anything, int64(5), int64(1)).Return(activeTestMember(), nil).Once()
	deps.members.On("SetLastReadAt", mock.Anything, int64(7), mock.AnythingOfType("time.Time")).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/read", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	deps.members.AssertExpectations(t)
}

func TestDeleteForMeIdempotent(t *testing.T) {
	handler, deps := newMessageHandler()
	router := setupMessageRouter(handler)

	member := activeTestMember()
	target := models.Message{ID: 42, ChatID: 5, Type: models.MessageRegular}

	deps.members.On("GetMember", mock.Anything, int64(5), int64(1)).Return(member, nil).Twice()
	deps.messages.On("GetMessage", mock.Anything, int64(42)).Return(target, nil).Twice()
	deps.messages.On("DeleteForMember", mock.Anything, int64(42), int64(7)).Return(nil).Twice()

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodDelete, "/chats/5/messages/42/me", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
	}
	deps.messages.AssertExpectations(t)
}

func TestDeleteForAllRequiresSenderOrAdmin(t *testing.T) {
	handler, deps := newMessageHandler()
	router := setupMessageRouter(handler)

	member := activeTestMember()
	otherSender := int64(99)
	target := models.Message{ID: 42, ChatID: 5, SenderID: &otherSender, Type: models.MessageRegular}

	deps.members.On("GetMember", mock.Anything, int64(5), int64(1)).Return(member, nil).Once()
	deps.messages.On("GetMessage", mock.Anything, int64(42)).Return(target, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chats/5/messages/42/all", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	deps.messages.AssertNotCalled(t, "SoftDeleteForAll", mock.Anything, mock.Anything)
}
