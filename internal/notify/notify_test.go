package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumeOnce(t *testing.T) {
	e := NewEmitter()
	_, ok := e.Consume()
	assert.False(t, ok)

	assert.False(t, e.Post("Bob", "hi"))
	n, ok := e.Consume()
	require.True(t, ok)
	assert.Equal(t, Notification{Title: "Bob", Body: "hi"}, n)

	_, ok = e.Consume()
	assert.False(t, ok)
}

func TestPostOverwritesPending(t *testing.T) {
	e := NewEmitter()
	e.Post("Bob", "first")
	assert.True(t, e.Post("Carol", "second"))

	n, ok := e.Consume()
	require.True(t, ok)
	assert.Equal(t, "Carol", n.Title)
	assert.Equal(t, uint64(1), e.Superseded())
}

func TestReadySignalAndPeek(t *testing.T) {
	e := NewEmitter()
	e.Post("Bob", "a")
	e.Post("Bob", "b")

	select {
	case <-e.Ready():
	default:
		t.Fatal("expected ready signal")
	}

	n, ok := e.Peek()
	require.True(t, ok)
	assert.Equal(t, "b", n.Body)

	e.Clear()
	_, ok = e.Peek()
	assert.False(t, ok)
}
