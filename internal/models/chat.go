package models

// ConversationSummary is the conversation list projection of the latest message in a chat.
// User1 and User2 follow the backend ordering, not the local identity.
type ConversationSummary struct {
	ID                string      `json:"id"`
	CompanyCode       string      `json:"companyCode"`
	LastMessage       string      `json:"lastMessage"`
	LastMessageStatus Status      `json:"lastMessageStatus"`
	LastMessageType   string      `json:"lastMessageType"`
	LastMessageSender string      `json:"lastMessageSender"`
	LastUpdated       string      `json:"lastUpdated"`
	User1             UserSummary `json:"user1"`
	User2             UserSummary `json:"user2"`
}

// SummaryFromMessage builds a new summary whose participants are the message's sender and receiver.
func SummaryFromMessage(m Message) ConversationSummary {
	return ConversationSummary{
		ID:                m.ChatID,
		CompanyCode:       m.CompanyCode,
		LastMessage:       m.Content,
		LastMessageStatus: m.Status,
		LastMessageType:   m.MessageType,
		LastMessageSender: m.Sender.ID,
		LastUpdated:       m.Timestamp,
		User1:             m.Sender,
		User2:             m.Receiver,
	}
}

// WithLastMessage returns a copy of s whose last-message fields reflect m.
func (s ConversationSummary) WithLastMessage(m Message) ConversationSummary {
	s.LastMessage = m.Content
	s.LastMessageStatus = m.Status
	s.LastMessageType = m.MessageType
	s.LastMessageSender = m.Sender.ID
	s.LastUpdated = m.Timestamp
	if s.CompanyCode == "" {
		s.CompanyCode = m.CompanyCode
	}
	return s
}

// WithLastStatus returns a copy of s with the last-message status set.
func (s ConversationSummary) WithLastStatus(status Status) ConversationSummary {
	s.LastMessageStatus = status
	return s
}

// HasParticipant reports whether userID is one of the two participants.
func (s ConversationSummary) HasParticipant(userID string) bool {
	return s.User1.ID == userID || s.User2.ID == userID
}

// Participants resolves the positional user1/user2 pair into the local user and the partner.
// When selfID matches neither participant, User1 is treated as self.
func (s ConversationSummary) Participants(selfID string) (self UserSummary, other UserSummary) {
	if s.User2.ID == selfID && s.User1.ID != selfID {
		return s.User2, s.User1
	}
	return s.User1, s.User2
}

// ConversationView is a summary with participants resolved against the local user.
type ConversationView struct {
	ConversationSummary
	Self  UserSummary `json:"self"`
	Other UserSummary `json:"other"`
}

// View resolves s for selfID.
func (s ConversationSummary) View(selfID string) ConversationView {
	self, other := s.Participants(selfID)
	return ConversationView{ConversationSummary: s, Self: self, Other: other}
}
