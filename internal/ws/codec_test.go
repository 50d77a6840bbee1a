package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/models"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		kind    EventKind
		wantErr bool
	}{
		{name: "flat message", frame: `{"id":"m1","chatId":"c1","sender":{"id":"B","name":"Bob"},"receiver":{"id":"A"},"content":"hi","messageStatus":"DELIVERED"}`, kind: EventMessage},
		{name: "typed message", frame: `{"type":"message","id":"m1","chatId":"c1","sender":{"id":"B"}}`, kind: EventMessage},
		{name: "wrapped message", frame: `{"type":"message","message":{"id":"m1","chatId":"c1","sender":{"id":"B"}}}`, kind: EventMessage},
		{name: "flat seen", frame: `{"chatId":"c1","userId":"B"}`, kind: EventSeen},
		{name: "typed seen", frame: `{"type":"SEEN","chatId":"c1","userId":"B"}`, kind: EventSeen},
		{name: "not json", frame: `hello`, wantErr: true},
		{name: "empty object", frame: `{}`, wantErr: true},
		{name: "message without chat", frame: `{"id":"m1","sender":{"id":"B"}}`, wantErr: true},
		{name: "message without sender id", frame: `{"type":"message","id":"m1","chatId":"c1","sender":{}}`, wantErr: true},
		{name: "seen without user", frame: `{"type":"seen","chatId":"c1"}`, wantErr: true},
		{name: "unknown type", frame: `{"type":"typing","chatId":"c1","userId":"B"}`, wantErr: true},
		{name: "wrong field type", frame: `{"id":5,"chatId":"c1","sender":{"id":"B"}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := DecodeFrame([]byte(tt.frame))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedFrame)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, event.Kind)
		})
	}
}

func TestDecodeFrameDefaults(t *testing.T) {
	event, err := DecodeFrame([]byte(`{"id":"m1","chatId":"c1","sender":{"id":"B"},"content":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, event.Message.Status)
	assert.Equal(t, models.MessageKindText, event.Message.MessageType)
	assert.Equal(t, "hi", event.Message.Content)

	event, err = DecodeFrame([]byte(`{"id":"m1","chatId":"c1","sender":{"id":"B"},"messageStatus":"SEEN"}`))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSeen, event.Message.Status)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "CONNECTED", StateConnected.String())
	text, err := StateFailed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "FAILED", string(text))
	assert.Equal(t, "UNKNOWN", State(42).String())
}
