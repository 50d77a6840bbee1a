package presence

import "sync"

// Tracker holds the partner id of the conversation currently open in the UI.
// The zero value has no focus.
type Tracker struct {
	mu      sync.RWMutex
	userID  string
	focused bool
}

// NewTracker returns a tracker with no focus.
func NewTracker() *Tracker {
	return &Tracker{}
}

// SetFocus records userID as the open conversation partner. Last write wins.
func (t *Tracker) SetFocus(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.userID = userID
	t.focused = userID != ""
}

// Clear removes any focus.
func (t *Tracker) Clear() {
	t.SetFocus("")
}

// Focus returns the focused partner id, if any.
func (t *Tracker) Focus() (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.userID, t.focused
}

// IsFocused reports whether userID is the focused partner.
func (t *Tracker) IsFocused(userID string) bool {
	current, ok := t.Focus()
	return ok && current == userID
}
