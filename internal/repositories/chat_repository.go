package repositories

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"chat-client/internal/models"
)

// ChatRepository is the REST collaborator of the chat core.
type ChatRepository interface {
	ListChats(ctx context.Context, tenantCode string) Result[models.ConversationSummary]
	History(ctx context.Context, tenantCode string, otherUserID string) Result[models.Message]
	MarkSeen(ctx context.Context, chatID string, userID string) error
	ListUsers(ctx context.Context) Result[models.UserSummary]
}

// ChatRepo is an HTTP implementation of ChatRepository.
type ChatRepo struct {
	api *apiClient
}

// NewChatRepo constructs a ChatRepo against baseURL.
func NewChatRepo(baseURL string, tokens TokenSource, timeout time.Duration) (*ChatRepo, error) {
	api, err := newAPIClient(baseURL, tokens, timeout)
	if err != nil {
		return nil, err
	}
	return &ChatRepo{api: api}, nil
}

// ListChats returns the conversation list of the tenant.
func (r *ChatRepo) ListChats(ctx context.Context, tenantCode string) Result[models.ConversationSummary] {
	var chats []models.ConversationSummary
	err := r.api.do(ctx, http.MethodGet, "list_chats", "chats/myChats", url.Values{"companyCode": {tenantCode}}, &chats)
	if err != nil {
		return failed[models.ConversationSummary](err)
	}
	return okOrEmpty(chats)
}

// MarkSeen marks the conversation seen by userID on the backend.
func (r *ChatRepo) MarkSeen(ctx context.Context, chatID string, userID string) error {
	return r.api.do(ctx, http.MethodPut, "mark_seen", "chats/seen/"+url.PathEscape(chatID), url.Values{"userId": {userID}}, nil)
}

var _ ChatRepository = (*ChatRepo)(nil)
