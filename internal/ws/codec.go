package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"chat-client/internal/models"
)

var ErrMalformedFrame = errors.New("malformed frame")

// EventKind distinguishes the two inbound event shapes.
type EventKind int

const (
	EventMessage EventKind = iota + 1
	EventSeen
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventSeen:
		return "seen"
	default:
		return "unknown"
	}
}

// Event is a decoded inbound frame.
type Event struct {
	Kind    EventKind
	Message models.Message
	Seen    models.SeenAck
}

// probe captures just enough of a frame to classify it. Frames may be flat records or
// wrapped as {"type": "...", "message": {...}}.
type probe struct {
	Type    string              `json:"type"`
	ID      string              `json:"id"`
	ChatID  string              `json:"chatId"`
	UserID  string              `json:"userId"`
	Sender  *models.UserSummary `json:"sender"`
	Message json.RawMessage     `json:"message"`
}

// DecodeFrame parses a raw socket frame. Any frame it cannot classify or that lacks
// required identifiers yields an error wrapping ErrMalformedFrame.
func DecodeFrame(data []byte) (Event, error) {
	var p probe
	if err := json.Unmarshal(data, &p); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	if len(p.Message) > 0 && string(p.Message) != "null" {
		return decodeMessage(p.Message)
	}

	switch strings.ToLower(p.Type) {
	case "message", "chat":
		return decodeMessage(data)
	case "seen":
		return decodeSeen(p)
	case "":
	default:
		return Event{}, fmt.Errorf("%w: unknown type %q", ErrMalformedFrame, p.Type)
	}

	switch {
	case p.ID != "" && p.Sender != nil:
		return decodeMessage(data)
	case p.ChatID != "" && p.UserID != "":
		return decodeSeen(p)
	default:
		return Event{}, fmt.Errorf("%w: unrecognized shape", ErrMalformedFrame)
	}
}

func decodeMessage(data []byte) (Event, error) {
	var m models.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if m.ID == "" || m.ChatID == "" || m.Sender.ID == "" {
		return Event{}, fmt.Errorf("%w: message missing id, chatId or sender", ErrMalformedFrame)
	}
	if m.Status == "" {
		m.Status = models.StatusDelivered
	}
	if m.MessageType == "" {
		m.MessageType = models.MessageKindText
	}
	return Event{Kind: EventMessage, Message: m}, nil
}

func decodeSeen(p probe) (Event, error) {
	if p.ChatID == "" || p.UserID == "" {
		return Event{}, fmt.Errorf("%w: seen missing chatId or userId", ErrMalformedFrame)
	}
	return Event{Kind: EventSeen, Seen: models.SeenAck{ChatID: p.ChatID, UserID: p.UserID}}, nil
}
