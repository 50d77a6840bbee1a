package models

import (
	"encoding/json"
	"strings"
)

// Status is the delivery status of a chat message.
type Status string

const (
	StatusDelivered Status = "DELIVERED"
	StatusSeen      Status = "SEEN"
)

// MessageKindText is the only message kind the backend currently emits.
const MessageKindText = "TEXT"

// ParseStatus normalizes a wire status. Anything other than SEEN is DELIVERED.
func ParseStatus(s string) Status {
	if strings.EqualFold(strings.TrimSpace(s), string(StatusSeen)) {
		return StatusSeen
	}
	return StatusDelivered
}

// Max returns the further-advanced of two statuses. SEEN is terminal.
func (s Status) Max(other Status) Status {
	if s == StatusSeen || other == StatusSeen {
		return StatusSeen
	}
	return StatusDelivered
}

// UnmarshalJSON accepts any casing and treats unknown values as DELIVERED.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseStatus(raw)
	return nil
}

// Message represents a chat message as delivered by the backend.
type Message struct {
	ID          string      `json:"id"`
	ChatID      string      `json:"chatId"`
	Sender      UserSummary `json:"sender"`
	Receiver    UserSummary `json:"receiver"`
	Content     string      `json:"content"`
	MessageType string      `json:"messageType"`
	CompanyCode string      `json:"companyCode"`
	Timestamp   string      `json:"timestamp"`
	Status      Status      `json:"messageStatus"`
}

// WithStatus returns a copy of m with the given status.
func (m Message) WithStatus(status Status) Message {
	m.Status = status
	return m
}

// SentBy reports whether userID authored the message.
func (m Message) SentBy(userID string) bool {
	return m.Sender.ID == userID
}

// Involves reports whether userID is the sender or the receiver.
func (m Message) Involves(userID string) bool {
	return m.Sender.ID == userID || m.Receiver.ID == userID
}

// SeenAck is a transient seen acknowledgement for a whole conversation.
type SeenAck struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// OutboundMessage is the frame emitted to send a chat message.
type OutboundMessage struct {
	SenderID    string `json:"senderId"`
	ReceiverID  string `json:"receiverId"`
	Content     string `json:"content"`
	CompanyCode string `json:"companyCode"`
	Type        string `json:"type"`
}

// OutboundSeen is the frame emitted to acknowledge a conversation.
type OutboundSeen struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}
