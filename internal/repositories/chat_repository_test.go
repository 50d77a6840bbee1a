package repositories

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/models"
)

func newRepo(t *testing.T, handler http.HandlerFunc) *ChatRepo {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	repo, err := NewChatRepo(srv.URL+"/api", StaticToken("tkn"), time.Second)
	require.NoError(t, err)
	return repo
}

func TestListChats(t *testing.T) {
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chats/myChats", r.URL.Path)
		assert.Equal(t, "ACME", r.URL.Query().Get("companyCode"))
		assert.Equal(t, "Bearer tkn", r.Header.Get("Authorization"))
		w.Write([]byte(`[{"id":"c1","companyCode":"ACME","lastMessage":"hi","lastMessageStatus":"SEEN","lastMessageSender":"A","user1":{"id":"A"},"user2":{"id":"B"}}]`))
	})

	res := repo.ListChats(context.Background(), "ACME")
	require.NoError(t, res.Err)
	assert.Equal(t, ResultOK, res.Kind)
	require.Len(t, res.Items, 1)
	assert.Equal(t, models.StatusSeen, res.Items[0].LastMessageStatus)
	assert.Equal(t, "B", res.Items[0].User2.ID)
}

func TestListChatsEmptyVersusFailure(t *testing.T) {
	empty := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	res := empty.ListChats(context.Background(), "ACME")
	assert.Equal(t, ResultEmpty, res.Kind)
	assert.NoError(t, res.Err)

	broken := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	res = broken.ListChats(context.Background(), "ACME")
	assert.Equal(t, ResultTransportError, res.Kind)
	assert.Empty(t, res.Items)
	var statusErr *StatusError
	require.ErrorAs(t, res.Err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
}

func TestHistoryDefaultsStatus(t *testing.T) {
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chats/history", r.URL.Path)
		assert.Equal(t, "B", r.URL.Query().Get("otherUserId"))
		w.Write([]byte(`[{"id":"m1","chatId":"c1","sender":{"id":"B"},"receiver":{"id":"A"},"content":"hi"}]`))
	})

	res := repo.History(context.Background(), "ACME", "B")
	require.Equal(t, ResultOK, res.Kind)
	assert.Equal(t, models.StatusDelivered, res.Items[0].Status)
}

func TestHistoryMalformedBody(t *testing.T) {
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"a list"`))
	})
	res := repo.History(context.Background(), "ACME", "B")
	assert.Equal(t, ResultTransportError, res.Kind)
	assert.Error(t, res.Err)
}

func TestMarkSeen(t *testing.T) {
	called := false
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/chats/seen/c1", r.URL.Path)
		assert.Equal(t, "A", r.URL.Query().Get("userId"))
		w.Write([]byte(`{"message":"ok"}`))
	})
	require.NoError(t, repo.MarkSeen(context.Background(), "c1", "A"))
	assert.True(t, called)
}

func TestListUsers(t *testing.T) {
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/companies/everybody", r.URL.Path)
		w.Write([]byte(`[{"id":"A","name":"Alice","email":"a@acme.test"},{"id":"B","name":"Bob","email":"b@acme.test","imageUrl":"https://img/b.png"}]`))
	})
	res := repo.ListUsers(context.Background())
	require.Len(t, res.Items, 2)
	require.NotNil(t, res.Items[1].ImageURL)
	assert.Equal(t, "https://img/b.png", *res.Items[1].ImageURL)
}

func TestMissingToken(t *testing.T) {
	repo, err := NewChatRepo("http://127.0.0.1:1", StaticToken(""), time.Second)
	require.NoError(t, err)
	res := repo.ListChats(context.Background(), "ACME")
	assert.Equal(t, ResultTransportError, res.Kind)
	assert.ErrorIs(t, res.Err, ErrUnauthorized)
}

func TestResultKindString(t *testing.T) {
	assert.Equal(t, "ok", ResultOK.String())
	assert.Equal(t, "empty", ResultEmpty.String())
	assert.Equal(t, "transport_error", ResultTransportError.String())
}
