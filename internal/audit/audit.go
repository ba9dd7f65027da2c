package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Event records a security relevant action: an apply request, a denied
// request, a catalog read.
type Event struct {
	Action     string
	EntityType string
	EntityID   string
	Payload    map[string]any
}

// LogEvent writes the event as a single structured "audit" log line and
// returns its id.
func LogEvent(ctx context.Context, logger Logger, event Event) (uuid.UUID, error) {
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		if logger != nil {
			logger.Error("audit log failed", "action", event.Action, "error", err)
		}
		return uuid.Nil, fmt.Errorf("marshal audit payload: %w", err)
	}

	id := uuid.New()
	if logger == nil {
		return id, nil
	}
	args := []any{
		"event_id", id.String(),
		"action", event.Action,
		"entity_type", event.EntityType,
		"payload", json.RawMessage(body),
	}
	if event.EntityID != "" {
		args = append(args, "entity_id", event.EntityID)
	}
	if reqID := requestID(ctx); reqID != "" {
		args = append(args, "request_id", reqID)
	}
	logger.Info("audit", args...)
	return id, nil
}

type contextKey struct{}

// WithRequestID attaches a request id that LogEvent copies onto each event.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
