package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"chat-client/internal/logging"
	"chat-client/internal/models"
	"chat-client/internal/observability"
)

var (
	ErrNotConnected     = errors.New("websocket not connected")
	ErrAlreadyConnected = errors.New("websocket session already running")
	ErrClosed           = errors.New("websocket session closed")
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 1 << 20
)

// Handlers receive decoded inbound events. They run on the read loop, one at a time,
// in arrival order.
type Handlers struct {
	OnMessage   func(models.Message)
	OnSeen      func(models.SeenAck)
	OnConnected func()
}

// BackoffOptions bounds the reconnect schedule.
type BackoffOptions struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64
	MaxRetries      uint64
}

func (o BackoffOptions) policy() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if o.InitialInterval > 0 {
		exp.InitialInterval = o.InitialInterval
	}
	if o.MaxInterval > 0 {
		exp.MaxInterval = o.MaxInterval
	}
	if o.Multiplier > 1 {
		exp.Multiplier = o.Multiplier
	}
	if o.Jitter >= 0 && o.Jitter < 1 {
		exp.RandomizationFactor = o.Jitter
	}
	exp.MaxElapsedTime = 0
	exp.Reset()
	if o.MaxRetries > 0 {
		return backoff.WithMaxRetries(exp, o.MaxRetries)
	}
	return exp
}

// Options configures a Client.
type Options struct {
	URL          string
	Header       http.Header
	PingInterval time.Duration
	Backoff      BackoffOptions
	Dialer       *websocket.Dialer
	Logger       *slog.Logger
}

// Client owns the single socket of a logged-in session and keeps it connected.
type Client struct {
	opts     Options
	handlers Handlers
	dialer   *websocket.Dialer
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	info    ConnInfo
	cancel  context.CancelFunc
	done    chan struct{}
	subs    map[int]chan State
	nextSub int

	writeMu sync.Mutex
}

// NewClient constructs a disconnected Client.
func NewClient(opts Options, handlers Handlers) *Client {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		opts:     opts,
		handlers: handlers,
		dialer:   dialer,
		logger:   logger.With(slog.String("component", "ws")),
		subs:     make(map[int]chan State),
	}
}

// Connect starts the session for userID. It returns once the supervisor is running;
// use State, Subscribe or WaitForState to observe the outcome. The session ends when
// ctx is cancelled, Disconnect is called, or reconnect attempts are exhausted.
func (c *Client) Connect(ctx context.Context, userID string) error {
	target, err := c.sessionURL(userID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.done != nil {
		select {
		case <-c.done:
			// Previous supervisor gave up; a fresh session may start.
			if c.cancel != nil {
				c.cancel()
			}
		default:
			c.mu.Unlock()
			return ErrAlreadyConnected
		}
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.info = ConnInfo{UserID: userID}
	c.mu.Unlock()

	go c.run(runCtx, target, userID, done)
	return nil
}

// Disconnect ends the session and releases the socket. It is idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	c.closeConn()
	<-done
	c.setState(StateDisconnected)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Info returns the current session description.
func (c *Client) Info() ConnInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

// Subscribe streams state transitions. Slow subscribers miss intermediate states.
func (c *Client) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan State, 16)
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// WaitForState blocks until the client reaches want or ctx is done.
func (c *Client) WaitForState(ctx context.Context, want State) error {
	ch, cancel := c.Subscribe()
	defer cancel()
	if c.State() == want {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s := <-ch:
			if s == want {
				return nil
			}
		}
	}
}

// Send emits an outbound chat frame. Delivery is not confirmed.
func (c *Client) Send(senderID, receiverID, content, tenantCode, kind string) error {
	if kind == "" {
		kind = models.MessageKindText
	}
	return c.writeJSON("message", models.OutboundMessage{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Content:     content,
		CompanyCode: tenantCode,
		Type:        kind,
	})
}

// SendSeen emits an outbound seen frame. Delivery is not confirmed.
func (c *Client) SendSeen(chatID, userID string) error {
	return c.writeJSON("seen", models.OutboundSeen{ChatID: chatID, UserID: userID})
}

func (c *Client) writeJSON(kind string, v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		observability.IncWSFrame("out", kind, "not_connected")
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(v); err != nil {
		observability.IncWSFrame("out", kind, "error")
		return fmt.Errorf("write %s frame: %w", kind, err)
	}
	observability.IncWSFrame("out", kind, "sent")
	return nil
}

func (c *Client) sessionURL(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", fmt.Errorf("parse websocket url: %w", err)
	}
	q := u.Query()
	q.Set("userId", userID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) run(ctx context.Context, target, userID string, done chan struct{}) {
	defer close(done)

	policy := c.opts.Backoff.policy()
	attempt := 0
	for {
		attempt++
		c.setState(StateConnecting)
		connected, err := c.session(ctx, target, userID, attempt)
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}
		if connected {
			policy.Reset()
		}

		c.setState(StateFailed)
		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			c.logger.Error("websocket reconnect attempts exhausted", logging.User(userID), logging.Err(err))
			return
		}
		c.logger.Warn("websocket session ended, reconnecting",
			logging.User(userID), logging.Err(err), slog.Duration("backoff", wait))
		observability.IncWSReconnect()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.setState(StateDisconnected)
			return
		case <-timer.C:
		}
	}
}

// session dials once and reads until the socket fails. connected reports whether the
// dial succeeded.
func (c *Client) session(ctx context.Context, target, userID string, attempt int) (connected bool, err error) {
	dialCtx, span := otel.Tracer("chat-client/ws").Start(ctx, "ws.dial")
	span.SetAttributes(attribute.String("user_id", userID), attribute.Int("attempt", attempt))
	conn, resp, err := c.dialer.DialContext(dialCtx, target, c.opts.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		span.End()
		c.publish(ctx, "ws_error", ConnInfo{UserID: userID, Attempt: attempt}, err.Error())
		return false, fmt.Errorf("dial: %w", err)
	}

	info := ConnInfo{ConnID: uuid.NewString(), UserID: userID, Attempt: attempt, ConnectedAt: time.Now()}
	c.mu.Lock()
	c.conn = conn
	c.info = info
	c.mu.Unlock()

	c.setState(StateConnected)
	c.publish(ctx, "ws_connect", info, "")
	span.End()

	if c.handlers.OnConnected != nil {
		go c.handlers.OnConnected()
	}

	stop := make(chan struct{})
	go c.keepalive(ctx, conn, stop)
	err = c.readLoop(conn)
	close(stop)

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()

	reason := ""
	if err != nil {
		reason = err.Error()
	}
	c.publish(ctx, "ws_disconnect", info, reason)
	return true, err
}

// keepalive pings the server and closes conn when ctx ends so the read loop unblocks.
func (c *Client) keepalive(ctx context.Context, conn *websocket.Conn, stop <-chan struct{}) {
	var tick <-chan time.Time
	if c.opts.PingInterval > 0 {
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			conn.Close()
			return
		case <-tick:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("websocket ping failed", logging.Err(err))
			}
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	conn.SetReadLimit(maxFrameSize)
	if c.opts.PingInterval > 0 {
		pongWait := 2 * c.opts.PingInterval
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if c.opts.PingInterval > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(2 * c.opts.PingInterval))
		}

		event, err := DecodeFrame(data)
		if err != nil {
			c.logger.Warn("dropping websocket frame", logging.Err(err), slog.Int("bytes", len(data)))
			observability.IncWSFrame("in", "unknown", "dropped")
			continue
		}
		observability.IncWSFrame("in", event.Kind.String(), "accepted")
		c.dispatch(event)
	}
}

func (c *Client) dispatch(event Event) {
	switch event.Kind {
	case EventMessage:
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(event.Message)
		}
	case EventSeen:
		if c.handlers.OnSeen != nil {
			c.handlers.OnSeen(event.Seen)
		}
	}
}

func (c *Client) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	conn.Close()
}

func (c *Client) setState(state State) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	subs := make([]chan State, 0, len(c.subs))
	for _, ch := range c.subs {
		subs = append(subs, ch)
	}
	c.mu.Unlock()

	observability.SetWSState(state.String())
	c.logger.Info("websocket state changed", logging.State(state.String()))
	for _, ch := range subs {
		select {
		case ch <- state:
		default:
		}
	}
}

func (c *Client) publish(ctx context.Context, event string, info ConnInfo, reason string) {
	duration := int64(0)
	if !info.ConnectedAt.IsZero() {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	envelope := observability.NewEnvelope("ws_events", event, nil, map[string]any{
		"ws": map[string]any{
			"event":       event,
			"conn_id":     info.ConnID,
			"attempt":     info.Attempt,
			"duration_ms": duration,
			"reason":      reason,
		},
		"identity": map[string]any{
			"user_id": info.UserID,
		},
	})
	// Lifecycle events outlive the session context that produced them.
	_ = observability.PublishEvent(context.WithoutCancel(ctx), observability.RoutingKeyConnection, envelope)
}
