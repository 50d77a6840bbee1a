package notify

import "sync"

// Notification is a pending system notification for the UI to display.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Emitter is a single-slot pending notification. Post overwrites an unconsumed value;
// Consume hands the value out exactly once.
type Emitter struct {
	mu         sync.Mutex
	pending    *Notification
	signal     chan struct{}
	superseded uint64
}

// NewEmitter returns an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{signal: make(chan struct{}, 1)}
}

// Post makes (title, body) the pending notification. It reports whether an unconsumed
// notification was overwritten.
func (e *Emitter) Post(title, body string) bool {
	e.mu.Lock()
	replaced := e.pending != nil
	e.pending = &Notification{Title: title, Body: body}
	if replaced {
		e.superseded++
	}
	e.mu.Unlock()

	select {
	case e.signal <- struct{}{}:
	default:
	}
	return replaced
}

// Consume returns and clears the pending notification.
func (e *Emitter) Consume() (Notification, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return Notification{}, false
	}
	n := *e.pending
	e.pending = nil
	return n, true
}

// Peek returns the pending notification without clearing it.
func (e *Emitter) Peek() (Notification, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return Notification{}, false
	}
	return *e.pending, true
}

// Clear drops any pending notification.
func (e *Emitter) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = nil
}

// Superseded returns how many notifications were overwritten before being consumed.
func (e *Emitter) Superseded() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.superseded
}

// Ready is signalled after Post. The signal is coalesced; always drain with Consume.
func (e *Emitter) Ready() <-chan struct{} {
	return e.signal
}
