package observability

import (
	"time"

	"go.opentelemetry.io/otel/trace"
)

const (
	RoutingKeyConnection = "ws_events.connection"
	RoutingKeySync       = "sync_events.conversations"
)

type EventEnvelope struct {
	EventType  string         `json:"event_type"`
	EventName  string         `json:"event_name"`
	OccurredAt string         `json:"occurred_at"`
	TraceID    string         `json:"trace_id,omitempty"`
	Payload    map[string]any `json:"payload"`
}

// NewEnvelope stamps an event with the current time and the trace id of span, if any.
func NewEnvelope(eventType, eventName string, span trace.Span, payload map[string]any) EventEnvelope {
	env := EventEnvelope{
		EventType:  eventType,
		EventName:  eventName,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:    payload,
	}
	if span != nil && span.SpanContext().HasTraceID() {
		env.TraceID = span.SpanContext().TraceID().String()
	}
	return env
}
