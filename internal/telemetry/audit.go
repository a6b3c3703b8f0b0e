package telemetry

import (
	"context"
	"fmt"
	"time"

	"project-hub/internal/logger"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Audit event types.
const (
	EventAuditLog           = "audit_log"
	EventMessageHardDeleted = "message_hard_deleted"
	EventFilesMaterialized  = "ai_files_materialized"
)

// AuditEmitter publishes audit records for actions that change shared
// project state: hard deletes and AI file materialization.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	now         func() time.Time
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	ProjectID     string       `json:"project_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level     string   `json:"level"`
	Text      string   `json:"text"`
	MessageID string   `json:"message_id,omitempty"`
	Files     []string `json:"files,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		now:         time.Now,
	}
}

// Emit records a free-form audit line.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID string, userID *string) {
	e.emit(ctx, EventAuditLog, requestID, userID, "", AuditPayload{Level: level, Text: text})
}

// MessageHardDeleted records a delete-for-everyone by its author.
func (e *AuditEmitter) MessageHardDeleted(ctx context.Context, projectID, messageID, userID string) {
	e.emit(ctx, EventMessageHardDeleted, "", &userID, projectID, AuditPayload{
		Level:     "INFO",
		Text:      "message deleted for everyone",
		MessageID: messageID,
	})
}

// FilesMaterialized records the files an AI reply wrote into a project.
func (e *AuditEmitter) FilesMaterialized(ctx context.Context, projectID string, files []string, requested int) {
	level := "INFO"
	if len(files) < requested {
		level = "WARN"
	}
	e.emit(ctx, EventFilesMaterialized, "", nil, projectID, AuditPayload{
		Level: level,
		Text:  fmt.Sprintf("ai materialized %d of %d files", len(files), requested),
		Files: files,
	})
}

// emit is fire-and-forget: publish failures are logged, never returned.
func (e *AuditEmitter) emit(ctx context.Context, eventType, requestID string, userID *string, projectID string, payload AuditPayload) {
	if e == nil || e.publisher == nil {
		return
	}

	logger.Debug().Str("event", eventType).Str("request_id", requestID).Str("project_id", projectID).Str("text", payload.Text).Msg("[Audit] emit")
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		ProjectID:     projectID,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		logger.Warn().Err(err).Str("event", eventType).Msg("[Audit] publish failed")
	}
}
