package telemetry

import (
	"context"
	"log/slog"
	"time"

	"chat-client/internal/logging"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// AuditEmitter publishes audit envelopes describing actions taken through the bridge.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	tenant      string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	TenantCode    string       `json:"tenant_code,omitempty"`
	RequestID     string       `json:"request_id"`
	UserID        string       `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string         `json:"level"`
	Text   string         `json:"text"`
	Fields map[string]any `json:"fields,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment, tenant string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		tenant:      tenant,
	}
}

// Emit publishes one audit record. Publish failures are logged and otherwise ignored.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID, userID string, fields map[string]any) {
	if e == nil || e.publisher == nil {
		return
	}

	logger := logging.FromContext(ctx)
	logger.Debug("audit emit", slog.String("level", level), logging.RequestID(requestID), logging.User(userID), slog.String("text", text))
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		TenantCode:    e.tenant,
		RequestID:     requestID,
		UserID:        userID,
		Payload: AuditPayload{
			Level:  level,
			Text:   text,
			Fields: fields,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		logger.Warn("audit publish failed", logging.Err(err))
	}
}
