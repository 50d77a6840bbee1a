package store

import "chat-client/internal/models"

// MergeHistory unions a fetched snapshot with the locally cached history by message id.
// Fetched messages keep the backend order; local-only messages follow in their arrival
// order. On conflict the fetched fields win but status never regresses from SEEN.
func MergeHistory(local, fetched []models.Message) []models.Message {
	if len(fetched) == 0 {
		return cloneMessages(local)
	}

	localByID := make(map[string]models.Message, len(local))
	for _, m := range local {
		localByID[m.ID] = m
	}

	merged := make([]models.Message, 0, len(local)+len(fetched))
	seen := make(map[string]struct{}, len(local)+len(fetched))
	for _, m := range fetched {
		if m.ID == "" {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		if prev, ok := localByID[m.ID]; ok {
			m = m.WithStatus(m.Status.Max(prev.Status))
		}
		merged = append(merged, m)
	}
	for _, m := range local {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	return merged
}

// MergeSummaries reconciles a fetched conversation list with the local one.
// Summaries touched locally after the fetch was issued (keepLocal) retain their local
// last-message fields; local summaries missing from the snapshot are appended.
func MergeSummaries(local, fetched []models.ConversationSummary, keepLocal func(id string) bool) []models.ConversationSummary {
	localByID := make(map[string]models.ConversationSummary, len(local))
	for _, s := range local {
		localByID[s.ID] = s
	}

	merged := make([]models.ConversationSummary, 0, len(local)+len(fetched))
	seen := make(map[string]struct{}, len(local)+len(fetched))
	for _, s := range fetched {
		if s.ID == "" {
			continue
		}
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		if prev, ok := localByID[s.ID]; ok {
			switch {
			case keepLocal != nil && keepLocal(s.ID):
				s = prev
			case sameLastMessage(prev, s):
				s = s.WithLastStatus(s.LastMessageStatus.Max(prev.LastMessageStatus))
			}
		}
		merged = append(merged, s)
	}
	for _, s := range local {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		merged = append(merged, s)
	}
	return merged
}

func sameLastMessage(a, b models.ConversationSummary) bool {
	return a.LastMessageSender == b.LastMessageSender &&
		a.LastUpdated == b.LastUpdated &&
		a.LastMessage == b.LastMessage
}

func cloneMessages(in []models.Message) []models.Message {
	if in == nil {
		return nil
	}
	out := make([]models.Message, len(in))
	copy(out, in)
	return out
}
