package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"chat-client/internal/logging"
	"chat-client/internal/observability"
)

const RequestIDKey = "request_id"

// RequestLogger tags each request with an id, attaches a request-scoped logger to the
// request context and logs the outcome.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := observability.RequestIDFromRequest(c.Request)
		c.Set(RequestIDKey, requestID)
		c.Header("X-Request-Id", requestID)

		reqLogger := logger.With(logging.RequestID(requestID))
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), reqLogger))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", observability.IPFromRequest(c.Request)),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("error", c.Errors.String()))
		}
		if c.Writer.Status() >= 500 {
			reqLogger.Error("bridge request", attrs...)
			return
		}
		reqLogger.Info("bridge request", attrs...)
	}
}
