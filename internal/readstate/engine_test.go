package readstate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/models"
)

type messageSourceMock struct {
	mock.Mock
}

func (m *messageSourceMock) CountVisible(ctx context.Context, chatID, memberID int64) (int, error) {
	args := m.Called(ctx, chatID, memberID)
	return args.Int(0), args.Error(1)
}

func (m *messageSourceMock) CountVisibleAfter(ctx context.Context, chatID, memberID int64, after time.Time) (int, error) {
	args := m.Called(ctx, chatID, memberID, after)
	return args.Int(0), args.Error(1)
}

func (m *messageSourceMock) LatestVisibleAt(ctx context.Context, chatID, memberID int64) (*time.Time, error) {
	args := m.Called(ctx, chatID, memberID)
	var at *time.Time
	if val := args.Get(0); val != nil {
		at = val.(*time.Time)
	}
	return at, args.Error(1)
}

func (m *messageSourceMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

type memberSourceMock struct {
	mock.Mock
}

func (m *memberSourceMock) SetLastReadAt(ctx context.Context, memberID int64, at time.Time) error {
	args := m.Called(ctx, memberID, at)
	return args.Error(0)
}

func TestUnreadCountNeverRead(t *testing.T) {
	messages := new(messageSourceMock)
	engine := NewEngine(messages, nil)

	member := models.Member{ID: 7, ChatID: 3}
	messages.On("CountVisible", mock.Anything, int64(3), int64(7)).Return(2, nil).Once()

	count, err := engine.UnreadCount(context.Background(), member)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	messages.AssertExpectations(t)
}

func TestUnreadCountUpToDate(t *testing.T) {
	messages := new(messageSourceMock)
	engine := NewEngine(messages, nil)

	lastRead := time.Now()
	latest := lastRead.Add(-time.Minute)
	member := models.Member{ID: 7, ChatID: 3, LastReadAt: &lastRead}
	messages.On("LatestVisibleAt", mock.Anything, int64(3), int64(7)).Return(&latest, nil).Once()

	count, err := engine.UnreadCount(context.Background(), member)
	require.NoError(t, err)
	require.Equal(t, 0, count)
	messages.AssertExpectations(t)
}

func TestUnreadCountEmptyChatWithMarker(t *testing.T) {
	messages := new(messageSourceMock)
	engine := NewEngine(messages, nil)

	lastRead := time.Now()
	member := models.Member{ID: 7, ChatID: 3, LastReadAt: &lastRead}
	messages.On("LatestVisibleAt", mock.Anything, int64(3), int64(7)).Return((*time.Time)(nil), nil).Once()

	count, err := engine.UnreadCount(context.Background(), member)
	require.NoError(t, err)
	require.Equal(t, 0, count)
	messages.AssertExpectations(t)
}

func TestUnreadCountNewerMessages(t *testing.T) {
	messages := new(messageSourceMock)
	engine := NewEngine(messages, nil)

	lastRead := time.Now().Add(-time.Hour)
	latest := time.Now()
	member := models.Member{ID: 7, ChatID: 3, LastReadAt: &lastRead}
	messages.On("LatestVisibleAt", mock.Anything, int64(3), int64(7)).Return(&latest, nil).Once()
	messages.On("CountVisibleAfter", mock.Anything, int64(3), int64(7), lastRead).Return(1, nil).Once()

	count, err := engine.UnreadCount(context.Background(), member)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	messages.AssertExpectations(t)
}

func TestMarkReadNow(t *testing.T) {
	members := new(memberSourceMock)
	engine := NewEngine(nil, members)

	members.On("SetLastReadAt", mock.Anything, int64(7), mock.AnythingOfType("time.Time")).Return(nil).Once()

	require.NoError(t, engine.MarkRead(context.Background(), models.Member{ID: 7}, 0))
	members.AssertExpectations(t)
}

func TestMarkReadUpToMessage(t *testing.T) {
	messages := new(messageSourceMock)
	members := new(memberSourceMock)
	engine := NewEngine(messages, members)

	createdAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	messages.On("GetMessage", mock.Anything, int64(42)).Return(models.Message{ID: 42, CreatedAt: createdAt}, nil).Once()
	members.On("SetLastReadAt", mock.Anything, int64(7), createdAt).Return(nil).Once()

	require.NoError(t, engine.MarkRead(context.Background(), models.Member{ID: 7}, 42))
	messages.AssertExpectations(t)
	members.AssertExpectations(t)
}
