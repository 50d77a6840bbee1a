package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/chatsync"
	"chat-client/internal/logging"
	"chat-client/internal/mocks"
	"chat-client/internal/models"
	"chat-client/internal/repositories"
	"chat-client/internal/telemetry"
	"chat-client/internal/ws"
)

var (
	alice = models.UserSummary{ID: "A", Name: "Alice"}
	bob   = models.UserSummary{ID: "B", Name: "Bob"}
)

func setupChatRouter(t *testing.T) (*gin.Engine, *chatsync.Coordinator, *mocks.ChatRepositoryMock, *mocks.SocketMock, *mocks.PublisherMock) {
	t.Helper()
	repo := new(mocks.ChatRepositoryMock)
	sock := new(mocks.SocketMock)
	pub := new(mocks.PublisherMock)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	coord := chatsync.NewCoordinator("A", "ACME", chatsync.Deps{Repo: repo, Logger: logging.Discard()})
	coord.AttachSocket(sock)
	handler := NewChatHandler(coord, telemetry.NewAuditEmitter(pub, "audit", "chat-client", "test", "ACME"))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/chats", handler.ListChats)
	r.GET("/chats/watch", handler.WatchChats)
	r.POST("/chats/refresh", handler.RefreshChats)
	r.GET("/chats/:chat_id/messages", handler.GetChatMessages)
	r.POST("/conversations/:user_id/open", handler.OpenConversation)
	r.DELETE("/conversations/focus", handler.CloseConversation)
	r.POST("/messages", handler.PostMessage)
	r.GET("/users", handler.ListUsers)
	r.POST("/session/reset", handler.ResetSession)
	return r, coord, repo, sock, pub
}

func serve(r *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func live(id, chatID string, from, to models.UserSummary, content string) models.Message {
	return models.Message{ID: id, ChatID: chatID, Sender: from, Receiver: to, Content: content, Status: models.StatusDelivered}
}

func TestListChatsResolvesParticipants(t *testing.T) {
	router, coord, _, _, _ := setupChatRouter(t)
	coord.OnIncomingMessage(live("m1", "c1", bob, alice, "hi"))

	rec := serve(router, http.MethodGet, "/chats", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Chats []models.ConversationView `json:"chats"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Chats, 1)
	assert.Equal(t, "A", resp.Chats[0].Self.ID)
	assert.Equal(t, "B", resp.Chats[0].Other.ID)
	assert.Equal(t, "hi", resp.Chats[0].LastMessage)
}

func TestRefreshChatsTransportError(t *testing.T) {
	router, _, repo, _, _ := setupChatRouter(t)
	repo.On("ListChats", mock.Anything, "ACME").Return(repositories.Result[models.ConversationSummary]{Kind: repositories.ResultTransportError, Err: errors.New("boom")}).Once()

	rec := serve(router, http.MethodPost, "/chats/refresh", nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "transport_error", resp["result"])
}

func TestRefreshChatsEmpty(t *testing.T) {
	router, _, repo, _, _ := setupChatRouter(t)
	repo.On("ListChats", mock.Anything, "ACME").Return(repositories.Result[models.ConversationSummary]{Kind: repositories.ResultEmpty}).Once()

	rec := serve(router, http.MethodPost, "/chats/refresh", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"result":"empty"`)
}

func TestGetChatMessagesUnknownChat(t *testing.T) {
	router, _, _, _, _ := setupChatRouter(t)

	rec := serve(router, http.MethodGet, "/chats/nope/messages", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chat_id":"nope","messages":[]}`, rec.Body.String())
}

func TestOpenConversation(t *testing.T) {
	router, coord, repo, sock, pub := setupChatRouter(t)
	repo.On("History", mock.Anything, "ACME", "B").Return(repositories.Result[models.Message]{
		Items: []models.Message{live("h1", "c1", bob, alice, "hello")},
		Kind:  repositories.ResultOK,
	}).Once()
	repo.On("MarkSeen", mock.Anything, "c1", "A").Return(nil).Once()
	sock.On("SendSeen", "c1", "A").Return(nil).Once()

	rec := serve(router, http.MethodPost, "/conversations/B/open", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		ChatID   string           `json:"chat_id"`
		Result   string           `json:"result"`
		Acked    bool             `json:"acked"`
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "c1", resp.ChatID)
	assert.Equal(t, "ok", resp.Result)
	assert.True(t, resp.Acked)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, models.StatusSeen, resp.Messages[0].Status)

	focus, ok := coord.Focus()
	assert.True(t, ok)
	assert.Equal(t, "B", focus)
	pub.AssertCalled(t, "Publish", mock.Anything, "audit", mock.Anything)

	rec = serve(router, http.MethodDelete, "/conversations/focus", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	_, ok = coord.Focus()
	assert.False(t, ok)
}

func TestOpenConversationFetchFailure(t *testing.T) {
	router, _, repo, _, _ := setupChatRouter(t)
	repo.On("History", mock.Anything, "ACME", "B").Return(repositories.Result[models.Message]{Kind: repositories.ResultTransportError, Err: errors.New("timeout")}).Once()

	rec := serve(router, http.MethodPost, "/conversations/B/open", nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"result":"transport_error"`)
}

func TestPostMessage(t *testing.T) {
	router, _, _, sock, _ := setupChatRouter(t)
	sock.On("Send", "A", "B", "hello", "ACME", "TEXT").Return(nil).Once()

	rec := serve(router, http.MethodPost, "/messages", []byte(`{"receiver_id":"B","content":"hello"}`))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	sock.AssertExpectations(t)
}

func TestPostMessageErrors(t *testing.T) {
	router, _, _, sock, _ := setupChatRouter(t)
	sock.On("Send", "A", "B", "hello", "ACME", "TEXT").Return(ws.ErrNotConnected).Once()

	rec := serve(router, http.MethodPost, "/messages", []byte(`{"receiver_id":"B"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodPost, "/messages", []byte(`{"receiver_id":"B","content":"   "}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodPost, "/messages", []byte(`{"receiver_id":"B","content":"hello"}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListUsers(t *testing.T) {
	router, _, repo, _, _ := setupChatRouter(t)
	repo.On("ListUsers", mock.Anything).Return(repositories.Result[models.UserSummary]{Items: []models.UserSummary{alice, bob}, Kind: repositories.ResultOK}).Once()
	repo.On("ListUsers", mock.Anything).Return(repositories.Result[models.UserSummary]{Kind: repositories.ResultTransportError, Err: errors.New("down")}).Once()

	rec := serve(router, http.MethodGet, "/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Bob"`)

	rec = serve(router, http.MethodGet, "/users", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Bob"`)
}

func TestWatchChats(t *testing.T) {
	router, coord, _, _, _ := setupChatRouter(t)
	coord.OnIncomingMessage(live("m1", "c1", bob, alice, "hi"))

	rec := serve(router, http.MethodGet, "/chats/watch?since=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Mark  uint64                    `json:"mark"`
		Chats []models.ConversationView `json:"chats"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Chats, 1)
	assert.Equal(t, uint64(coord.Mark()), resp.Mark)

	since := strconv.FormatUint(resp.Mark, 10)
	rec = serve(router, http.MethodGet, "/chats/watch?wait=20ms&since="+since, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	go func() {
		time.Sleep(20 * time.Millisecond)
		coord.OnIncomingMessage(live("m2", "c1", bob, alice, "again"))
	}()
	rec = serve(router, http.MethodGet, "/chats/watch?wait=2s&since="+since, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"lastMessage":"again"`)

	rec = serve(router, http.MethodGet, "/chats/watch?since=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetSession(t *testing.T) {
	router, coord, _, _, pub := setupChatRouter(t)
	coord.OnIncomingMessage(live("m1", "c1", bob, alice, "hi"))

	rec := serve(router, http.MethodPost, "/session/reset", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, coord.Conversations())
	assert.Empty(t, coord.History("c1"))
	_, pending := coord.Notifications().Peek()
	assert.False(t, pending)
	pub.AssertCalled(t, "Publish", mock.Anything, "audit", mock.Anything)
}
