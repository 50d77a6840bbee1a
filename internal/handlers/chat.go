package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"chat-client/internal/chatsync"
	"chat-client/internal/logging"
	"chat-client/internal/models"
	"chat-client/internal/repositories"
	"chat-client/internal/store"
	"chat-client/internal/telemetry"
	"chat-client/internal/ws"
)

// ChatHandler exposes the chat core to the UI collaborator.
type ChatHandler struct {
	coord *chatsync.Coordinator
	audit *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(coord *chatsync.Coordinator, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{coord: coord, audit: audit}
}

// ListChats returns the cached conversation list.
func (h *ChatHandler) ListChats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"chats": h.coord.Conversations()})
}

const maxWatchWait = 30 * time.Second

// WatchChats long-polls for conversation changes. since is the mark returned by the
// previous call; a newer store mark answers right away. Times out with 204.
func (h *ChatHandler) WatchChats(c *gin.Context) {
	since, err := strconv.ParseUint(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since"})
		return
	}
	wait, err := time.ParseDuration(c.DefaultQuery("wait", "25s"))
	if err != nil || wait <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wait"})
		return
	}
	if wait > maxWatchWait {
		wait = maxWatchWait
	}

	changes, cancel := h.coord.Watch()
	defer cancel()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		if mark := h.coord.Mark(); mark > store.Mark(since) {
			c.JSON(http.StatusOK, gin.H{"mark": uint64(mark), "chats": h.coord.Conversations()})
			return
		}
		select {
		case <-changes:
		case <-timer.C:
			c.Status(http.StatusNoContent)
			return
		case <-c.Request.Context().Done():
			c.Status(http.StatusNoContent)
			return
		}
	}
}

// RefreshChats fetches the conversation list and returns the merged result.
func (h *ChatHandler) RefreshChats(c *gin.Context) {
	res := h.coord.RefreshConversations(c.Request.Context())
	body := gin.H{"result": res.Kind.String(), "chats": h.coord.Conversations()}
	if res.Kind == repositories.ResultTransportError {
		body["error"] = "failed to refresh chats"
		c.JSON(http.StatusBadGateway, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// GetChatMessages returns the cached history of a conversation.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID := c.Param("chat_id")
	messages := h.coord.History(chatID)
	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "messages": messages})
}

// OpenConversation focuses the conversation with a user and returns its history.
func (h *ChatHandler) OpenConversation(c *gin.Context) {
	otherUserID := c.Param("user_id")

	opened, err := h.coord.OpenConversation(c.Request.Context(), otherUserID)
	if errors.Is(err, chatsync.ErrNoPartner) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id required"})
		return
	}

	messages := []models.Message{}
	if opened.ChatID != "" {
		if cached := h.coord.History(opened.ChatID); cached != nil {
			messages = cached
		}
	}
	body := gin.H{
		"chat_id":  opened.ChatID,
		"result":   opened.Fetch.String(),
		"acked":    opened.Acked,
		"messages": messages,
	}

	h.audit.Emit(c.Request.Context(), "INFO", "conversation opened", requestIDFromContext(c), h.coord.SelfID(), map[string]any{
		"chat_id":       opened.ChatID,
		"other_user_id": otherUserID,
	})

	if err != nil {
		logging.FromContext(c.Request.Context()).Warn("open conversation fetch failed", logging.User(otherUserID), logging.Err(err))
		body["error"] = "failed to load history"
		c.JSON(http.StatusBadGateway, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// CloseConversation clears the focused conversation.
func (h *ChatHandler) CloseConversation(c *gin.Context) {
	h.coord.CloseConversation()
	c.Status(http.StatusNoContent)
}

// ResetSession drops all cached session state, as on logout.
func (h *ChatHandler) ResetSession(c *gin.Context) {
	h.coord.Reset()
	h.audit.Emit(c.Request.Context(), "INFO", "session reset", requestIDFromContext(c), h.coord.SelfID(), nil)
	c.Status(http.StatusNoContent)
}

type postMessageRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
	Content    string `json:"content" binding:"required"`
}

// PostMessage sends a text message over the socket.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := h.coord.SendMessage(req.ReceiverID, req.Content)
	switch {
	case errors.Is(err, chatsync.ErrEmptyMessage), errors.Is(err, chatsync.ErrNoRecipient):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ws.ErrNotConnected), errors.Is(err, chatsync.ErrNoSocket):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "not connected"})
		return
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO", "message sent", requestIDFromContext(c), h.coord.SelfID(), map[string]any{
		"receiver_id": req.ReceiverID,
	})
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

// ListUsers returns the tenant's user directory.
func (h *ChatHandler) ListUsers(c *gin.Context) {
	res := h.coord.ListUsers(c.Request.Context())
	if res.Kind == repositories.ResultTransportError {
		c.JSON(http.StatusBadGateway, gin.H{"result": res.Kind.String(), "users": nonNilUsers(h.coord.Users()), "error": "failed to load users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res.Kind.String(), "users": nonNilUsers(res.Items)})
}

func nonNilUsers(users []models.UserSummary) []models.UserSummary {
	if users == nil {
		return []models.UserSummary{}
	}
	return users
}
