package ws

import (
	"encoding/json"
	"time"

	"project-hub/internal/models"
)

// Event names on the wire. They are shared with the browser client and
// must not change.
const (
	EventJoinProject    = "join-project"
	EventLeaveProject   = "leave-project"
	EventSendMessage    = "send-message"
	EventDeleteMessage  = "delete-message"
	EventNewMessage     = "new-message"
	EventMessageDeleted = "message-deleted"
	EventError          = "error"
)

// CodeRateLimited is sent when a connection exceeds its inbound event rate.
const CodeRateLimited = "rate_limited"

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type projectPayload struct {
	ProjectID string `json:"projectId"`
}

// sendPayload carries sender fields for compatibility; they are ignored in
// favour of the authenticated principal.
type sendPayload struct {
	ProjectID  string `json:"projectId"`
	Content    string `json:"content"`
	Sender     string `json:"sender"`
	SenderName string `json:"senderName"`
}

type deletePayload struct {
	ProjectID         string `json:"projectId"`
	MessageID         string `json:"messageId"`
	DeleteForEveryone bool   `json:"deleteForEveryone"`
}

type NewMessage struct {
	ProjectID  string    `json:"projectId"`
	MessageID  string    `json:"messageId"`
	Content    string    `json:"content"`
	Sender     string    `json:"sender"`
	SenderName string    `json:"senderName"`
	Timestamp  time.Time `json:"timestamp"`
}

type MessageDeleted struct {
	ProjectID         string `json:"projectId"`
	MessageID         string `json:"messageId"`
	DeleteForEveryone bool   `json:"deleteForEveryone"`
	UserID            string `json:"userId"`
}

// ErrorPayload is sent only to the connection whose action failed.
type ErrorPayload struct {
	Event     string `json:"event"`
	ProjectID string `json:"projectId,omitempty"`
	Code      string `json:"code"`
	Error     string `json:"error"`
}

func newMessageFrame(msg models.ChatMessage) outFrame {
	return outFrame{Event: EventNewMessage, Data: NewMessage{
		ProjectID:  msg.ProjectID,
		MessageID:  msg.ID,
		Content:    msg.Content,
		Sender:     msg.SenderID,
		SenderName: msg.SenderName,
		Timestamp:  msg.CreatedAt,
	}}
}

func messageDeletedFrame(ev models.MessageDeletion) outFrame {
	return outFrame{Event: EventMessageDeleted, Data: MessageDeleted{
		ProjectID:         ev.ProjectID,
		MessageID:         ev.MessageID,
		DeleteForEveryone: ev.DeleteForEveryone,
		UserID:            ev.UserID,
	}}
}
