package ws

import (
	"context"
	"encoding/json"
	"strings"

	"project-hub/internal/ai"
	"project-hub/internal/logger"
	"project-hub/internal/models"
	"project-hub/internal/services"
)

// ChatActions is the chat behaviour the broadcaster drives.
type ChatActions interface {
	Authorize(ctx context.Context, userID, projectID string) error
	Send(ctx context.Context, p models.Principal, projectID, content string) (models.ChatMessage, error)
	DeleteMessage(ctx context.Context, p models.Principal, projectID, messageID string, forEveryone bool) (models.MessageDeletion, error)
}

// AIDispatcher starts an assistant request without waiting for it.
type AIDispatcher interface {
	Dispatch(ctx context.Context, projectID, request string)
}

// Broadcaster applies inbound room events. Fan-out itself happens in the
// chat store's append path through the hub, so events leave in append
// order without any locking here.
type Broadcaster struct {
	hub  *Hub
	chat ChatActions
	ai   AIDispatcher
}

func NewBroadcaster(hub *Hub, chat ChatActions, dispatcher AIDispatcher) *Broadcaster {
	return &Broadcaster{hub: hub, chat: chat, ai: dispatcher}
}

// HandleFrame decodes and applies one inbound frame from c. Failures are
// reported to c alone as an error event.
func (b *Broadcaster) HandleFrame(ctx context.Context, c *Client, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		b.fail(c, "", "", services.CodeValidation, "malformed frame")
		return
	}
	if c.limiter != nil && !c.limiter.Allow() {
		b.fail(c, frame.Event, "", CodeRateLimited, "too many events, slow down")
		return
	}

	switch frame.Event {
	case EventJoinProject:
		var in projectPayload
		if !b.decode(c, frame, &in) {
			return
		}
		b.join(ctx, c, in.ProjectID)
	case EventLeaveProject:
		var in projectPayload
		if !b.decode(c, frame, &in) {
			return
		}
		b.hub.Leave(c, in.ProjectID)
		publishLifecycle(ctx, c.info, "ws_leave", in.ProjectID, "")
	case EventSendMessage:
		var in sendPayload
		if !b.decode(c, frame, &in) {
			return
		}
		b.sendMessage(ctx, c, in)
	case EventDeleteMessage:
		var in deletePayload
		if !b.decode(c, frame, &in) {
			return
		}
		if _, err := b.chat.DeleteMessage(ctx, c.principal, in.ProjectID, in.MessageID, in.DeleteForEveryone); err != nil {
			b.failErr(c, frame.Event, in.ProjectID, err)
		}
	default:
		b.fail(c, frame.Event, "", services.CodeValidation, "unknown event")
	}
}

func (b *Broadcaster) join(ctx context.Context, c *Client, projectID string) {
	if err := b.chat.Authorize(ctx, c.principal.ID, projectID); err != nil {
		b.failErr(c, EventJoinProject, projectID, err)
		return
	}
	b.hub.Join(c, projectID)
	logger.Debug().Str("conn_id", c.ConnID()).Str("project_id", projectID).Msg("[Room] joined")
	publishLifecycle(ctx, c.info, "ws_join", projectID, "")
}

// sendMessage stores and echoes the message first. An AI request runs
// afterwards in the background and lands as a separate new-message.
func (b *Broadcaster) sendMessage(ctx context.Context, c *Client, in sendPayload) {
	msg, err := b.chat.Send(ctx, c.principal, in.ProjectID, in.Content)
	if err != nil {
		b.failErr(c, EventSendMessage, in.ProjectID, err)
		return
	}
	if b.ai != nil && ai.HasTrigger(msg.Content) {
		logger.Info().Str("project_id", in.ProjectID).Str("message_id", msg.ID).Msg("[Room] dispatching AI request")
		b.ai.Dispatch(ctx, in.ProjectID, msg.Content)
	}
}

func (b *Broadcaster) decode(c *Client, frame Frame, dst any) bool {
	if len(frame.Data) == 0 {
		b.fail(c, frame.Event, "", services.CodeValidation, "missing data")
		return false
	}
	if err := json.Unmarshal(frame.Data, dst); err != nil {
		b.fail(c, frame.Event, "", services.CodeValidation, "invalid data")
		return false
	}
	if p, ok := dst.(interface{ project() string }); ok && strings.TrimSpace(p.project()) == "" {
		b.fail(c, frame.Event, "", services.CodeValidation, "projectId is required")
		return false
	}
	return true
}

func (b *Broadcaster) failErr(c *Client, event, projectID string, err error) {
	code := services.ErrorCode(err)
	text := err.Error()
	if code == services.CodeInternal {
		logger.Error().Err(err).Str("event", event).Str("project_id", projectID).Msg("[Room] action failed")
		text = "internal error"
	}
	b.fail(c, event, projectID, code, text)
}

func (b *Broadcaster) fail(c *Client, event, projectID, code, text string) {
	b.hub.sendTo(c, outFrame{Event: EventError, Data: ErrorPayload{
		Event:     event,
		ProjectID: projectID,
		Code:      code,
		Error:     text,
	}})
}

func (p *projectPayload) project() string { return p.ProjectID }
func (p *sendPayload) project() string    { return p.ProjectID }
func (p *deletePayload) project() string  { return p.ProjectID }
