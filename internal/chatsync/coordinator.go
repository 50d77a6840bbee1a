package chatsync

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chat-client/internal/logging"
	"chat-client/internal/models"
	"chat-client/internal/notify"
	"chat-client/internal/observability"
	"chat-client/internal/presence"
	"chat-client/internal/repositories"
	"chat-client/internal/store"
	"chat-client/internal/ws"
)

var (
	ErrEmptyMessage = errors.New("message content is empty")
	ErrNoRecipient  = errors.New("message recipient is empty")
	ErrNoSocket     = errors.New("no socket attached")
	ErrNoPartner    = errors.New("conversation partner is empty")
)

const catchUpTimeout = 15 * time.Second

// Socket is the outbound side of the connection manager.
type Socket interface {
	Send(senderID, receiverID, content, tenantCode, kind string) error
	SendSeen(chatID, userID string) error
	Disconnect()
}

// Deps are the collaborators of a Coordinator.
type Deps struct {
	Store    *store.Store
	Focus    *presence.Tracker
	Notifier *notify.Emitter
	Repo     repositories.ChatRepository
	Logger   *slog.Logger
}

// Coordinator routes socket events and REST results into the store and decides when
// to notify.
type Coordinator struct {
	selfID   string
	tenant   string
	store    *store.Store
	focus    *presence.Tracker
	notifier *notify.Emitter
	repo     repositories.ChatRepository
	logger   *slog.Logger
	tracer   trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	socket Socket
	users  []models.UserSummary
}

// NewCoordinator builds a Coordinator for the local user selfID within tenantCode.
func NewCoordinator(selfID, tenantCode string, deps Deps) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	st := deps.Store
	if st == nil {
		st = store.New(selfID)
	}
	focus := deps.Focus
	if focus == nil {
		focus = presence.NewTracker()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.NewEmitter()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		selfID:   selfID,
		tenant:   tenantCode,
		store:    st,
		focus:    focus,
		notifier: notifier,
		repo:     deps.Repo,
		logger:   logger.With(slog.String("component", "chatsync"), logging.User(selfID)),
		tracer:   otel.Tracer("chat-client/chatsync"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// AttachSocket sets the socket used for outbound frames.
func (c *Coordinator) AttachSocket(s Socket) {
	c.mu.Lock()
	c.socket = s
	c.mu.Unlock()
}

// Handlers returns the inbound callbacks to register with the connection manager.
func (c *Coordinator) Handlers() ws.Handlers {
	return ws.Handlers{
		OnMessage:   c.OnIncomingMessage,
		OnSeen:      c.OnSeenAck,
		OnConnected: c.OnConnected,
	}
}

func (c *Coordinator) SelfID() string {
	return c.selfID
}

func (c *Coordinator) Notifications() *notify.Emitter {
	return c.notifier
}

// Focus returns the partner whose conversation is open, if any.
func (c *Coordinator) Focus() (string, bool) {
	return c.focus.Focus()
}

// OnIncomingMessage stores a live message and posts a notification unless the local
// user sent it or its sender's conversation is open.
func (c *Coordinator) OnIncomingMessage(m models.Message) {
	if !m.Involves(c.selfID) {
		c.logger.Debug("dropping message for other users", logging.Message(m.ID), logging.Conversation(m.ChatID))
		return
	}

	if !c.store.UpsertMessage(m) {
		c.logger.Debug("duplicate message", logging.Message(m.ID), logging.Conversation(m.ChatID))
		return
	}

	if m.SentBy(c.selfID) {
		return
	}
	if c.focus.IsFocused(m.Sender.ID) {
		observability.IncNotification("suppressed")
		c.ackFocused(m.ChatID)
		return
	}

	title := m.Sender.Name
	if title == "" {
		title = m.Sender.ID
	}
	if replaced := c.notifier.Post(title, m.Content); replaced {
		observability.IncNotification("superseded")
	}
	observability.IncNotification("posted")
}

// OnSeenAck applies a conversation-wide seen acknowledgement.
func (c *Coordinator) OnSeenAck(ack models.SeenAck) {
	var changed int
	if ack.UserID == c.selfID {
		changed = c.store.MarkConversationReadBySelf(ack.ChatID)
	} else {
		changed = c.store.MarkConversationSeenBySelf(ack.ChatID)
	}
	c.logger.Debug("seen ack applied", logging.Conversation(ack.ChatID), slog.String("ack_user", ack.UserID), slog.Int("changed", changed))
}

// Opened describes the outcome of OpenConversation.
type Opened struct {
	ChatID string
	Fetch  repositories.ResultKind
	Acked  bool
}

// OpenConversation focuses the conversation with otherUserID, merges its history and
// acknowledges it. The returned error is the history fetch error, if any; the
// conversation stays focused either way.
func (c *Coordinator) OpenConversation(ctx context.Context, otherUserID string) (Opened, error) {
	if otherUserID == "" {
		return Opened{}, ErrNoPartner
	}
	c.focus.SetFocus(otherUserID)

	ctx, span := c.tracer.Start(ctx, "chatsync.open_conversation", trace.WithAttributes(attribute.String("other_user_id", otherUserID)))
	defer span.End()

	res := c.repo.History(ctx, c.tenant, otherUserID)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "history fetch failed")
		c.logger.Warn("history fetch failed", logging.User(otherUserID), logging.Err(res.Err))
	}

	chatID := c.resolveChatID(otherUserID, res.Items)
	out := Opened{ChatID: chatID, Fetch: res.Kind}
	if chatID == "" {
		return out, res.Err
	}
	span.SetAttributes(attribute.String("chat_id", chatID))

	if len(res.Items) > 0 {
		c.store.ReplaceHistory(chatID, res.Items)
		observability.IncStoreMerge("history")
	}

	if !c.focus.IsFocused(otherUserID) {
		c.logger.Debug("focus moved before history arrived, skipping ack", logging.Conversation(chatID))
		return out, res.Err
	}

	if sock := c.currentSocket(); sock != nil {
		if err := sock.SendSeen(chatID, c.selfID); err != nil {
			c.logger.Warn("seen frame not sent", logging.Conversation(chatID), logging.Err(err))
		}
	}
	if err := c.repo.MarkSeen(ctx, chatID, c.selfID); err != nil {
		c.logger.Warn("mark seen request failed", logging.Conversation(chatID), logging.Err(err))
	}
	c.store.MarkConversationReadBySelf(chatID)
	out.Acked = true

	c.publish(ctx, span, "conversation_opened", map[string]any{
		"chat_id":       chatID,
		"other_user_id": otherUserID,
		"fetch":         res.Kind.String(),
	})
	return out, res.Err
}

// CloseConversation clears the focus. In-flight fetches are not cancelled.
func (c *Coordinator) CloseConversation() {
	c.focus.Clear()
}

// RefreshConversations fetches the conversation list and merges it into the store.
func (c *Coordinator) RefreshConversations(ctx context.Context) repositories.Result[models.ConversationSummary] {
	ctx, span := c.tracer.Start(ctx, "chatsync.refresh_conversations")
	defer span.End()

	mark := c.store.Mark()
	res := c.repo.ListChats(ctx, c.tenant)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "list fetch failed")
		c.logger.Warn("conversation list fetch failed", logging.Err(res.Err))
	}
	if len(res.Items) > 0 {
		c.store.ReplaceSummaryList(res.Items, mark)
		observability.IncStoreMerge("summaries")
	}
	span.SetAttributes(attribute.Int("conversations", len(res.Items)))

	c.publish(ctx, span, "conversations_refreshed", map[string]any{
		"result": res.Kind.String(),
		"count":  len(res.Items),
	})
	return res
}

// ListUsers fetches the tenant's user directory. The last successful snapshot is kept.
func (c *Coordinator) ListUsers(ctx context.Context) repositories.Result[models.UserSummary] {
	res := c.repo.ListUsers(ctx)
	if res.Err != nil {
		c.logger.Warn("user directory fetch failed", logging.Err(res.Err))
		return res
	}
	c.mu.Lock()
	c.users = append([]models.UserSummary(nil), res.Items...)
	c.mu.Unlock()
	return res
}

// Users returns the last fetched user directory.
func (c *Coordinator) Users() []models.UserSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.UserSummary(nil), c.users...)
}

// SendMessage emits a text message from the local user to receiverID.
func (c *Coordinator) SendMessage(receiverID, content string) error {
	if receiverID == "" {
		return ErrNoRecipient
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	sock := c.currentSocket()
	if sock == nil {
		return ErrNoSocket
	}
	return sock.Send(c.selfID, receiverID, content, c.tenant, models.MessageKindText)
}

// Conversations returns the summary list resolved for the local user.
func (c *Coordinator) Conversations() []models.ConversationView {
	sums := c.store.Summaries()
	out := make([]models.ConversationView, 0, len(sums))
	for _, s := range sums {
		out = append(out, s.View(c.selfID))
	}
	return out
}

// Mark returns the store's current change position.
func (c *Coordinator) Mark() store.Mark {
	return c.store.Mark()
}

// Watch signals after every store change until cancel is called.
func (c *Coordinator) Watch() (<-chan struct{}, func()) {
	return c.store.Watch()
}

// History returns the cached history of chatID.
func (c *Coordinator) History(chatID string) []models.Message {
	return c.store.History(chatID)
}

// OnConnected catches up on whatever the socket missed while it was down.
func (c *Coordinator) OnConnected() {
	ctx, cancel := context.WithTimeout(c.ctx, catchUpTimeout)
	defer cancel()

	c.RefreshConversations(ctx)

	other, ok := c.focus.Focus()
	if !ok {
		return
	}
	res := c.repo.History(ctx, c.tenant, other)
	if res.Err != nil {
		c.logger.Warn("catch-up history fetch failed", logging.User(other), logging.Err(res.Err))
		return
	}
	if chatID := c.resolveChatID(other, res.Items); chatID != "" {
		c.store.ReplaceHistory(chatID, res.Items)
		observability.IncStoreMerge("history")
	}
}

// Reset drops all session state: cached conversations, focus, pending notification
// and user directory.
func (c *Coordinator) Reset() {
	c.store.Reset()
	c.focus.Clear()
	c.notifier.Clear()
	c.mu.Lock()
	c.users = nil
	c.mu.Unlock()
}

// Close stops background catch-up and disconnects the socket.
func (c *Coordinator) Close() {
	c.cancel()
	if sock := c.currentSocket(); sock != nil {
		sock.Disconnect()
	}
}

// ackFocused acknowledges a message that arrived in the open conversation.
func (c *Coordinator) ackFocused(chatID string) {
	if sock := c.currentSocket(); sock != nil {
		if err := sock.SendSeen(chatID, c.selfID); err != nil {
			c.logger.Warn("seen frame not sent", logging.Conversation(chatID), logging.Err(err))
		}
	}
	c.store.MarkConversationReadBySelf(chatID)
}

func (c *Coordinator) currentSocket() Socket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.socket
}

// resolveChatID prefers the cached summary shared with otherUserID and falls back to
// the chat id carried by the fetched history.
func (c *Coordinator) resolveChatID(otherUserID string, fetched []models.Message) string {
	if id, ok := c.store.ConversationWith(otherUserID); ok {
		return id
	}
	for _, m := range fetched {
		if m.ChatID != "" && m.Involves(otherUserID) {
			return m.ChatID
		}
	}
	return ""
}

func (c *Coordinator) publish(ctx context.Context, span trace.Span, name string, payload map[string]any) {
	env := observability.NewEnvelope("sync_event", name, span, payload)
	if err := observability.PublishEvent(context.WithoutCancel(ctx), observability.RoutingKeySync, env); err != nil {
		c.logger.Warn("sync event publish failed", slog.String("event", name), logging.Err(err))
	}
}
