package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/ws"
)

// ConnectionStatus is the observable side of the connection manager.
type ConnectionStatus interface {
	State() ws.State
	Info() ws.ConnInfo
}

// ConnectionHandler reports the socket state.
type ConnectionHandler struct {
	status ConnectionStatus
}

func NewConnectionHandler(status ConnectionStatus) *ConnectionHandler {
	return &ConnectionHandler{status: status}
}

func (h *ConnectionHandler) Get(c *gin.Context) {
	state := h.status.State()
	body := gin.H{"state": state}
	if state == ws.StateConnected {
		body["session"] = h.status.Info()
	}
	c.JSON(http.StatusOK, body)
}
