package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/models"
	"messenger-service/internal/notify"
	"messenger-service/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateChat(ctx context.Context, p repositories.CreateChatParams) (models.Chat, error) {
	args := m.Called(ctx, p)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int64) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) FindDirectChat(ctx context.Context, userID, otherUserID int64) (models.Chat, bool, error) {
	args := m.Called(ctx, userID, otherUserID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Bool(1), args.Error(2)
}

func (m *ChatRepositoryMock) ListChatsForUser(ctx context.Context, userID int64) ([]models.Chat, error) {
	args := m.Called(ctx, userID)
	var chats []models.Chat
	if val := args.Get(0); val != nil {
		chats = val.([]models.Chat)
	}
	return chats, args.Error(1)
}

func (m *ChatRepositoryMock) UpdateGroupInfo(ctx context.Context, chatID int64, upd repositories.GroupInfoUpdate) (models.Chat, error) {
	args := m.Called(ctx, chatID, upd)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) SoftDelete(ctx context.Context, chatID int64) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

type MemberRepositoryMock struct {
	mock.Mock
}

func (m *MemberRepositoryMock) AddMember(ctx context.Context, chatID, userID int64, role models.MemberRole) (models.Member, error) {
	args := m.Called(ctx, chatID, userID, role)
	var member models.Member
	if val := args.Get(0); val != nil {
		member = val.(models.Member)
	}
	return member, args.Error(1)
}

func (m *MemberRepositoryMock) GetMember(ctx context.Context, chatID, userID int64) (models.Member, error) {
	args := m.Called(ctx, chatID, userID)
	var member models.Member
	if val := args.Get(0); val != nil {
		member = val.(models.Member)
	}
	return member, args.Error(1)
}

func (m *MemberRepositoryMock) GetMemberByID(ctx context.Context, memberID int64) (models.Member, error) {
	args := m.Called(ctx, memberID)
	var member models.Member
	if val := args.Get(0); val != nil {
		member = val.(models.Member)
	}
	return member, args.Error(1)
}

func (m *MemberRepositoryMock) ListMembers(ctx context.Context, chatID int64, fromMemberID int64, limit int) ([]models.Member, error) {
	args := m.Called(ctx, chatID, fromMemberID, limit)
	var members []models.Member
	if val := args.Get(0); val != nil {
		members = val.([]models.Member)
	}
	return members, args.Error(1)
}

func (m *MemberRepositoryMock) ListActiveMembers(ctx context.Context, chatID int64) ([]models.Member, error) {
	args := m.Called(ctx, chatID)
	var members []models.Member
	if val := args.Get(0); val != nil {
		members = val.([]models.Member)
	}
	return members, args.Error(1)
}

func (m *MemberRepositoryMock) ListAllMembers(ctx context.Context, chatID int64) ([]models.Member, error) {
	args := m.Called(ctx, chatID)
	var members []models.Member
	if val := args.Get(0); val != nil {
		members = val.([]models.Member)
	}
	return members, args.Error(1)
}

func (m *MemberRepositoryMock) ListMembershipsForUser(ctx context.Context, userID int64) ([]models.Member, error) {
	args := m.Called(ctx, userID)
	var members []models.Member
	if val := args.Get(0); val != nil {
		members = val.([]models.Member)
	}
	return members, args.Error(1)
}

func (m *MemberRepositoryMock) Kick(ctx context.Context, memberID int64) (models.Member, error) {
	args := m.Called(ctx, memberID)
	var member models.Member
	if val := args.Get(0); val != nil {
		member = val.(models.Member)
	}
	return member, args.Error(1)
}

func (m *MemberRepositoryMock) Leave(ctx context.Context, memberID int64, truncate bool) (models.Member, error) {
	args := m.Called(ctx, memberID, truncate)
	var member models.Member
	if val := args.Get(0); val != nil {
		member = val.(models.Member)
	}
	return member, args.Error(1)
}

func (m *MemberRepositoryMock) ChangeRole(ctx context.Context, memberID int64, role models.MemberRole) (models.Member, error) {
	args := m.Called(ctx, memberID, role)
	var member models.Member
	if val := args.Get(0); val != nil {
		member = val.(models.Member)
	}
	return member, args.Error(1)
}

func (m *MemberRepositoryMock) SetFlag(ctx context.Context, memberID int64, flag models.MemberFlag, at *time.Time) error {
	args := m.Called(ctx, memberID, flag, at)
	return args.Error(0)
}

func (m *MemberRepositoryMock) CountPinnedChats(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MemberRepositoryMock) SetLastReadAt(ctx context.Context, memberID int64, at time.Time) error {
	args := m.Called(ctx, memberID, at)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, p repositories.AppendParams) (models.Message, error) {
	args := m.Called(ctx, p)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDeleteForAll(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) DeleteForMember(ctx context.Context, messageID, memberID int64) error {
	args := m.Called(ctx, messageID, memberID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) Pin(ctx context.Context, messageID, byMemberID int64) (models.Message, error) {
	args := m.Called(ctx, messageID, byMemberID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Unpin(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) List(ctx context.Context, q repositories.ListQuery) ([]models.Message, error) {
	args := m.Called(ctx, q)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) CountVisible(ctx context.Context, chatID, memberID int64) (int, error) {
	args := m.Called(ctx, chatID, memberID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) CountVisibleAfter(ctx context.Context, chatID, memberID int64, after time.Time) (int, error) {
	args := m.Called(ctx, chatID, memberID, after)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) LatestVisibleAt(ctx context.Context, chatID, memberID int64) (*time.Time, error) {
	args := m.Called(ctx, chatID, memberID)
	var at *time.Time
	if val := args.Get(0); val != nil {
		at = val.(*time.Time)
	}
	return at, args.Error(1)
}

type SystemMessageRepositoryMock struct {
	mock.Mock
}

func (m *SystemMessageRepositoryMock) Emit(ctx context.Context, chatID int64, actingMemberID *int64, actionType models.SystemActionType, p models.SystemActionPayload) (models.Message, models.SystemMessageAction, error) {
	args := m.Called(ctx, chatID, actingMemberID, actionType, p)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	var action models.SystemMessageAction
	if val := args.Get(1); val != nil {
		action = val.(models.SystemMessageAction)
	}
	return msg, action, args.Error(2)
}

func (m *SystemMessageRepositoryMock) GetActionByMessage(ctx context.Context, messageID int64) (models.SystemMessageAction, bool, error) {
	args := m.Called(ctx, messageID)
	var action models.SystemMessageAction
	if val := args.Get(0); val != nil {
		action = val.(models.SystemMessageAction)
	}
	return action, args.Bool(1), args.Error(2)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int64) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) BulkUsers(ctx context.Context, ids []int64) ([]models.User, error) {
	args := m.Called(ctx, ids)
	var users []models.User
	if val := args.Get(0); val != nil {
		users = val.([]models.User)
	}
	return users, args.Error(1)
}

func (m *UserRepositoryMock) SetOnline(ctx context.Context, userID int64, online bool) error {
	args := m.Called(ctx, userID, online)
	return args.Error(0)
}

type EventRepositoryMock struct {
	mock.Mock
}

func (m *EventRepositoryMock) GetEvent(ctx context.Context, eventID int64) (models.Event, error) {
	args := m.Called(ctx, eventID)
	var event models.Event
	if val := args.Get(0); val != nil {
		event = val.(models.Event)
	}
	return event, args.Error(1)
}

func (m *EventRepositoryMock) SetChat(ctx context.Context, eventID int64, chatID *int64) error {
	args := m.Called(ctx, eventID, chatID)
	return args.Error(0)
}

func (m *EventRepositoryMock) ListAcceptedInvites(ctx context.Context, eventID int64) ([]repositories.InvitedUser, error) {
	args := m.Called(ctx, eventID)
	var invited []repositories.InvitedUser
	if val := args.Get(0); val != nil {
		invited = val.([]repositories.InvitedUser)
	}
	return invited, args.Error(1)
}

type AttachmentRepositoryMock struct {
	mock.Mock
}

func (m *AttachmentRepositoryMock) CreateMedia(ctx context.Context, a models.Attachment) (models.Attachment, error) {
	args := m.Called(ctx, a)
	var out models.Attachment
	if val := args.Get(0); val != nil {
		out = val.(models.Attachment)
	}
	return out, args.Error(1)
}

func (m *AttachmentRepositoryMock) SoftDeleteMedia(ctx context.Context, attachmentID int64) error {
	args := m.Called(ctx, attachmentID)
	return args.Error(0)
}

func (m *AttachmentRepositoryMock) ListMedia(ctx context.Context, chatID int64, attachmentType models.AttachmentType, fromID, toID *int64, limit int) ([]models.Attachment, error) {
	args := m.Called(ctx, chatID, attachmentType, fromID, toID, limit)
	var attachments []models.Attachment
	if val := args.Get(0); val != nil {
		attachments = val.([]models.Attachment)
	}
	return attachments, args.Error(1)
}

func (m *AttachmentRepositoryMock) CreateContact(ctx context.Context, c models.ContactAttachment) (models.ContactAttachment, error) {
	args := m.Called(ctx, c)
	var out models.ContactAttachment
	if val := args.Get(0); val != nil {
		out = val.(models.ContactAttachment)
	}
	return out, args.Error(1)
}

func (m *AttachmentRepositoryMock) CreateEventAttachment(ctx context.Context, eventID int64) (models.EventAttachment, error) {
	args := m.Called(ctx, eventID)
	var out models.EventAttachment
	if val := args.Get(0); val != nil {
		out = val.(models.EventAttachment)
	}
	return out, args.Error(1)
}

func (m *AttachmentRepositoryMock) CreateLocation(ctx context.Context, l models.LocationAttachment) (models.LocationAttachment, error) {
	args := m.Called(ctx, l)
	var out models.LocationAttachment
	if val := args.Get(0); val != nil {
		out = val.(models.LocationAttachment)
	}
	return out, args.Error(1)
}

func (m *AttachmentRepositoryMock) ListLinks(ctx context.Context, chatID int64, fromID, toID *int64, limit int) ([]models.Link, error) {
	args := m.Called(ctx, chatID, fromID, toID, limit)
	var links []models.Link
	if val := args.Get(0); val != nil {
		links = val.([]models.Link)
	}
	return links, args.Error(1)
}

type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MemberRepository = (*MemberRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.SystemMessageRepository = (*SystemMessageRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ repositories.EventRepository = (*EventRepositoryMock)(nil)
var _ repositories.AttachmentRepository = (*AttachmentRepositoryMock)(nil)
var _ notify.Publisher = (*PublisherMock)(nil)
