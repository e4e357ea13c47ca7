package ws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/models"
)

type memberSourceMock struct {
	mock.Mock
}

func (m *memberSourceMock) ListActiveMembers(ctx context.Context, chatID int64) ([]models.Member, error) {
	args := m.Called(ctx, chatID)
	var members []models.Member
	if val := args.Get(0); val != nil {
		members = val.([]models.Member)
	}
	return members, args.Error(1)
}

func (m *memberSourceMock) GetMemberByID(ctx context.Context, memberID int64) (models.Member, error) {
	args := m.Called(ctx, memberID)
	var member models.Member
	if val := args.Get(0); val != nil {
		member = val.(models.Member)
	}
	return member, args.Error(1)
}

type actionSourceMock struct {
	mock.Mock
}

func (m *actionSourceMock) GetActionByMessage(ctx context.Context, messageID int64) (models.SystemMessageAction, bool, error) {
	args := m.Called(ctx, messageID)
	var action models.SystemMessageAction
	if val := args.Get(0); val != nil {
		action = val.(models.SystemMessageAction)
	}
	return action, args.Bool(1), args.Error(2)
}

func TestResolveRecipientsRegularMessage(t *testing.T) {
	members := new(memberSourceMock)
	actions := new(actionSourceMock)
	fanout := NewFanout(NewHub(nil), members, actions, nil, nil)

	active := []models.Member{{ID: 1, UserID: 10}, {ID: 2, UserID: 20}}
	members.On("ListActiveMembers", mock.Anything, int64(5)).Return(active, nil).Once()

	got, err := fanout.resolveRecipients(context.Background(), models.Message{ID: 100, ChatID: 5, Type: models.MessageRegular})
	require.NoError(t, err)
	require.Len(t, got, 2)
	members.AssertExpectations(t)
	actions.AssertNotCalled(t, "GetActionByMessage", mock.Anything, mock.Anything)
}

func TestResolveRecipientsIncludesKickedTarget(t *testing.T) {
	members := new(memberSourceMock)
	actions := new(actionSourceMock)
	fanout := NewFanout(NewHub(nil), members, actions, nil, nil)

	active := []models.Member{{ID: 1, UserID: 10}}
	kicked := models.Member{ID: 2, UserID: 20, Status: models.StatusKicked}
	targetID := kicked.ID

	members.On("ListActiveMembers", mock.Anything, int64(5)).Return(active, nil).Once()
	actions.On("GetActionByMessage", mock.Anything, int64(100)).
		Return(models.SystemMessageAction{MessageID: 100, ActionType: models.ActionMemberKicked, TargetMemberID: &targetID}, true, nil).Once()
	members.On("GetMemberByID", mock.Anything, int64(2)).Return(kicked, nil).Once()

	got, err := fanout.resolveRecipients(context.Background(), models.Message{ID: 100, ChatID: 5, Type: models.MessageSystem})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(20), got[1].UserID)
	members.AssertExpectations(t)
	actions.AssertExpectations(t)
}

func TestResolveRecipientsTargetAlreadyActive(t *testing.T) {
	members := new(memberSourceMock)
	actions := new(actionSourceMock)
	fanout := NewFanout(NewHub(nil), members, actions, nil, nil)

	active := []models.Member{{ID: 1, UserID: 10}, {ID: 2, UserID: 20}}
	targetID := int64(2)

	members.On("ListActiveMembers", mock.Anything, int64(5)).Return(active, nil).Once()
	actions.On("GetActionByMessage", mock.Anything, int64(100)).
		Return(models.SystemMessageAction{MessageID: 100, ActionType: models.ActionMemberRoleChanged, TargetMemberID: &targetID}, true, nil).Once()

	got, err := fanout.resolveRecipients(context.Background(), models.Message{ID: 100, ChatID: 5, Type: models.MessageSystem})
	require.NoError(t, err)
	require.Len(t, got, 2)
	members.AssertNotCalled(t, "GetMemberByID", mock.Anything, mock.Anything)
}

func TestResolveRecipientsActionWithoutTarget(t *testing.T) {
	members := new(memberSourceMock)
	actions := new(actionSourceMock)
	fanout := NewFanout(NewHub(nil), members, actions, nil, nil)

	active := []models.Member{{ID: 1, UserID: 10}}
	chatID := int64(5)

	members.On("ListActiveMembers", mock.Anything, chatID).Return(active, nil).Once()
	actions.On("GetActionByMessage", mock.Anything, int64(100)).
		Return(models.SystemMessageAction{MessageID: 100, ActionType: models.ActionTitleChanged, TargetChatID: &chatID}, true, nil).Once()

	got, err := fanout.resolveRecipients(context.Background(), models.Message{ID: 100, ChatID: 5, Type: models.MessageSystem})
	require.NoError(t, err)
	require.Len(t, got, 1)
}
