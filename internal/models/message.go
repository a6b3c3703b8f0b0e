package models

import (
	"slices"
	"time"
)

const (
	// AISenderID is the sentinel sender of assistant messages.
	AISenderID = "ai"
	// AISenderName is the display name stored with assistant messages.
	AISenderName = "AI Assistant"
)

// ChatMessage represents one message in a project chat.
// SenderName is denormalized at write time and never re-resolved.
type ChatMessage struct {
	ID         string    `db:"id" json:"_id"`
	ProjectID  string    `db:"project_id" json:"projectId"`
	Seq        int64     `db:"seq" json:"seq"`
	SenderID   string    `db:"sender_id" json:"sender"`
	SenderName string    `db:"sender_name" json:"senderName"`
	Content    string    `db:"content" json:"content"`
	CreatedAt  time.Time `db:"created_at" json:"timestamp"`
	DeletedFor []string  `db:"-" json:"deletedFor"`
}

// IsAI reports whether the message was written by the assistant.
func (m ChatMessage) IsAI() bool {
	return m.SenderID == AISenderID
}

// DeletedForUser reports whether userID soft-deleted the message.
func (m ChatMessage) DeletedForUser(userID string) bool {
	return slices.Contains(m.DeletedFor, userID)
}

// VisibleTo filters out messages the user has soft-deleted.
func VisibleTo(msgs []ChatMessage, userID string) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if !m.DeletedForUser(userID) {
			out = append(out, m)
		}
	}
	return out
}

// MessageDeletion describes a completed delete. UserID is the actor; for a
// per-user delete only that user's view changes.
type MessageDeletion struct {
	ProjectID         string `json:"projectId"`
	MessageID         string `json:"messageId"`
	DeleteForEveryone bool   `json:"deleteForEveryone"`
	UserID            string `json:"userId"`
}
