package ws

import (
	"context"
	"time"

	"github.com/google/uuid"

	"project-hub/internal/observability"
)

func newConnID() string {
	return uuid.NewString()
}

// publishLifecycle records a connection lifecycle event as a metric and an
// AMQP event. projectID is empty for events that are not room scoped.
func publishLifecycle(ctx context.Context, info ConnInfo, event, projectID, reason string) {
	observability.IncWSEvent("project", event)
	var duration int64
	if !info.ConnectedAt.IsZero() {
		duration = time.Since(info.ConnectedAt).Milliseconds()
	}
	_ = observability.PublishEvent(ctx, observability.RoutingKeyWSProjects,
		observability.WSEvent(event, info.ConnID, info.UserID, projectID, info.IP, info.DeviceID, reason, duration),
		observability.BuildHeaders(info.RequestID, info.TraceID))
}
