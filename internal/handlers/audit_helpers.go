package handlers

import (
	"github.com/gin-gonic/gin"

	"chat-client/internal/middleware"
	"chat-client/internal/observability"
)

func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}

	requestID := observability.RequestIDFromRequest(c.Request)
	c.Set(middleware.RequestIDKey, requestID)
	return requestID
}
