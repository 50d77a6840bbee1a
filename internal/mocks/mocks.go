package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-client/internal/models"
	"chat-client/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) ListChats(ctx context.Context, tenantCode string) repositories.Result[models.ConversationSummary] {
	args := m.Called(ctx, tenantCode)
	var res repositories.Result[models.ConversationSummary]
	if val := args.Get(0); val != nil {
		res = val.(repositories.Result[models.ConversationSummary])
	}
	return res
}

func (m *ChatRepositoryMock) History(ctx context.Context, tenantCode string, otherUserID string) repositories.Result[models.Message] {
	args := m.Called(ctx, tenantCode, otherUserID)
	var res repositories.Result[models.Message]
	if val := args.Get(0); val != nil {
		res = val.(repositories.Result[models.Message])
	}
	return res
}

func (m *ChatRepositoryMock) MarkSeen(ctx context.Context, chatID string, userID string) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) ListUsers(ctx context.Context) repositories.Result[models.UserSummary] {
	args := m.Called(ctx)
	var res repositories.Result[models.UserSummary]
	if val := args.Get(0); val != nil {
		res = val.(repositories.Result[models.UserSummary])
	}
	return res
}

// SocketMock stands in for the connection manager's outbound side.
type SocketMock struct {
	mock.Mock
}

func (m *SocketMock) Send(senderID, receiverID, content, tenantCode, kind string) error {
	args := m.Called(senderID, receiverID, content, tenantCode, kind)
	return args.Error(0)
}

func (m *SocketMock) SendSeen(chatID, userID string) error {
	args := m.Called(chatID, userID)
	return args.Error(0)
}

func (m *SocketMock) Disconnect() {
	m.Called()
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
