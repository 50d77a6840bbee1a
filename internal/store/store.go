package store

import (
	"sync"

	"chat-client/internal/models"
)

// Mark is a position in the store's mutation sequence. A REST fetch captures a Mark
// before it is issued so the merge can tell which local state is newer than the snapshot.
type Mark uint64

// Store is the in-memory conversation cache for one logged-in user.
// Every mutation takes the write lock for its whole duration; readers receive copies.
type Store struct {
	mu        sync.RWMutex
	selfID    string
	seq       uint64
	histories map[string][]models.Message
	positions map[string]map[string]int
	summaries []models.ConversationSummary
	summaryAt map[string]int
	touched   map[string]uint64
	watchers  map[int]chan struct{}
	nextWatch int
}

// New creates an empty store for the local user selfID.
func New(selfID string) *Store {
	s := &Store{selfID: selfID, watchers: make(map[int]chan struct{})}
	s.resetLocked()
	return s
}

func (s *Store) resetLocked() {
	s.histories = make(map[string][]models.Message)
	s.positions = make(map[string]map[string]int)
	s.summaries = nil
	s.summaryAt = make(map[string]int)
	s.touched = make(map[string]uint64)
}

// SelfID returns the local user id.
func (s *Store) SelfID() string {
	return s.selfID
}

// Mark returns the current mutation position.
func (s *Store) Mark() Mark {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Mark(s.seq)
}

// UpsertMessage appends m to its conversation history unless a message with the same id
// is already cached, then projects it onto the conversation summary (creating the summary
// when absent). It reports whether the message was new.
func (s *Store) UpsertMessage(m models.Message) bool {
	if m.ID == "" || m.ChatID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.positions[m.ChatID]
	if pos == nil {
		pos = make(map[string]int)
		s.positions[m.ChatID] = pos
	}
	if i, dup := pos[m.ID]; dup {
		// Every cached history has a summary, even when the duplicate is a no-op.
		if _, ok := s.summaryAt[m.ChatID]; !ok {
			s.putSummaryLocked(models.SummaryFromMessage(s.histories[m.ChatID][i]))
			s.bumpLocked(m.ChatID)
		}
		return false
	}

	pos[m.ID] = len(s.histories[m.ChatID])
	s.histories[m.ChatID] = append(s.histories[m.ChatID], m)

	if i, ok := s.summaryAt[m.ChatID]; ok {
		s.summaries[i] = s.summaries[i].WithLastMessage(m)
	} else {
		s.putSummaryLocked(models.SummaryFromMessage(m))
	}
	s.bumpLocked(m.ChatID)
	return true
}

// MarkConversationSeenBySelf sets every cached message of chatID sent by the local user
// to SEEN, and the summary status when its last message was sent by the local user.
// It returns the number of messages whose status changed.
func (s *Store) MarkConversationSeenBySelf(chatID string) int {
	return s.markSeen(chatID, func(senderID string) bool { return senderID == s.selfID })
}

// MarkConversationReadBySelf sets every cached message of chatID received by the local
// user to SEEN. It is the local counterpart of the seen frame the local user sends.
func (s *Store) MarkConversationReadBySelf(chatID string) int {
	return s.markSeen(chatID, func(senderID string) bool { return senderID != s.selfID })
}

func (s *Store) markSeen(chatID string, match func(senderID string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	history := s.histories[chatID]
	for i, m := range history {
		if match(m.Sender.ID) && m.Status != models.StatusSeen {
			history[i] = m.WithStatus(models.StatusSeen)
			changed++
		}
	}

	summaryChanged := false
	if i, ok := s.summaryAt[chatID]; ok {
		sum := s.summaries[i]
		if match(sum.LastMessageSender) && sum.LastMessageStatus != models.StatusSeen {
			s.summaries[i] = sum.WithLastStatus(models.StatusSeen)
			summaryChanged = true
		}
	}

	if changed > 0 || summaryChanged {
		s.bumpLocked(chatID)
	}
	return changed
}

// ReplaceHistory merges a fetched history snapshot into chatID's cached history.
// Messages only known locally are preserved; an empty snapshot is a no-op.
func (s *Store) ReplaceHistory(chatID string, fetched []models.Message) {
	if chatID == "" {
		return
	}
	scoped := make([]models.Message, 0, len(fetched))
	for _, m := range fetched {
		if m.ChatID == "" {
			m.ChatID = chatID
		}
		if m.ChatID == chatID {
			scoped = append(scoped, m)
		}
	}
	if len(scoped) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := MergeHistory(s.histories[chatID], scoped)
	last := merged[len(merged)-1]
	// A tail that was not cached before this merge is newer than what the summary shows.
	_, tailKnown := s.positions[chatID][last.ID]
	pos := make(map[string]int, len(merged))
	for i, m := range merged {
		pos[m.ID] = i
	}
	s.histories[chatID] = merged
	s.positions[chatID] = pos

	if i, ok := s.summaryAt[chatID]; ok {
		sum := s.summaries[i]
		switch {
		case !tailKnown:
			s.summaries[i] = sum.WithLastMessage(last)
		case sum.LastMessageSender == last.Sender.ID && sum.LastUpdated == last.Timestamp:
			s.summaries[i] = sum.WithLastStatus(sum.LastMessageStatus.Max(last.Status))
		}
	} else {
		s.putSummaryLocked(models.SummaryFromMessage(last))
	}
	s.bumpLocked(chatID)
}

// ReplaceSummaryList merges a fetched conversation list. since is the Mark captured
// before the fetch was issued: summaries updated locally after it keep their local state,
// and summaries absent from the snapshot are kept.
func (s *Store) ReplaceSummaryList(fetched []models.ConversationSummary, since Mark) {
	if len(fetched) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := MergeSummaries(s.summaries, fetched, func(id string) bool {
		return s.touched[id] > uint64(since)
	})
	s.summaries = merged
	s.summaryAt = make(map[string]int, len(merged))
	for i, sum := range merged {
		s.summaryAt[sum.ID] = i
	}
	s.seq++
	s.notifyLocked()
}

// Reset drops every cached conversation.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.seq++
	s.notifyLocked()
}

// History returns a copy of chatID's ordered history.
func (s *Store) History(chatID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.histories[chatID])
}

// Message looks up a cached message.
func (s *Store) Message(chatID, messageID string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.positions[chatID][messageID]
	if !ok {
		return models.Message{}, false
	}
	return s.histories[chatID][i], true
}

// Summary returns the summary of chatID.
func (s *Store) Summary(chatID string) (models.ConversationSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.summaryAt[chatID]
	if !ok {
		return models.ConversationSummary{}, false
	}
	return s.summaries[i], true
}

// Summaries returns a copy of the conversation list in its stored order.
func (s *Store) Summaries() []models.ConversationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ConversationSummary, len(s.summaries))
	copy(out, s.summaries)
	return out
}

// ConversationWith returns the id of the conversation the local user shares with userID.
func (s *Store) ConversationWith(userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sum := range s.summaries {
		if sum.HasParticipant(userID) {
			return sum.ID, true
		}
	}
	return "", false
}

// Watch returns a channel signalled (coalesced) after every mutation, and a cancel func.
func (s *Store) Watch() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextWatch
	s.nextWatch++
	ch := make(chan struct{}, 1)
	s.watchers[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}
}

func (s *Store) putSummaryLocked(sum models.ConversationSummary) {
	s.summaryAt[sum.ID] = len(s.summaries)
	s.summaries = append(s.summaries, sum)
}

func (s *Store) bumpLocked(chatID string) {
	s.seq++
	s.touched[chatID] = s.seq
	s.notifyLocked()
}

func (s *Store) notifyLocked() {
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
