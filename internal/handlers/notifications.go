package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chat-client/internal/notify"
)

const maxNotificationWait = 30 * time.Second

// NotificationHandler lets the UI drain the pending notification.
type NotificationHandler struct {
	emitter *notify.Emitter
}

func NewNotificationHandler(emitter *notify.Emitter) *NotificationHandler {
	return &NotificationHandler{emitter: emitter}
}

// Next consumes the pending notification. With ?wait=<duration> it long-polls until one
// is posted; otherwise it answers 204 right away when the slot is empty.
func (h *NotificationHandler) Next(c *gin.Context) {
	if n, ok := h.emitter.Consume(); ok {
		c.JSON(http.StatusOK, n)
		return
	}

	wait, err := time.ParseDuration(c.DefaultQuery("wait", "0s"))
	if err != nil || wait < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wait"})
		return
	}
	if wait > maxNotificationWait {
		wait = maxNotificationWait
	}
	if wait == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case <-h.emitter.Ready():
			if n, ok := h.emitter.Consume(); ok {
				c.JSON(http.StatusOK, n)
				return
			}
		case <-timer.C:
			c.Status(http.StatusNoContent)
			return
		case <-c.Request.Context().Done():
			c.Status(http.StatusNoContent)
			return
		}
	}
}
