package observability

const (
	// RoutingKeyWSProjects carries websocket lifecycle events of project rooms.
	RoutingKeyWSProjects = "ws_events.projects"
	// RoutingKeyAudit carries audit logs.
	RoutingKeyAudit = "audit.project_hub"
)

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// WSEvent builds the envelope for one websocket lifecycle event.
func WSEvent(event, connID, userID, projectID, ip, deviceID, reason string, durationMS int64) EventEnvelope {
	return EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        "project",
				"resource_id": projectID,
				"event":       event,
				"conn_id":     connID,
				"duration_ms": durationMS,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   userID,
				"device_id": deviceID,
				"ip":        ip,
			},
		},
	}
}
