package models

import "time"

// Chat is the persisted message log of one project.
// Participants is a snapshot taken when the chat was first created.
type Chat struct {
	ID            string    `db:"id" json:"id"`
	ProjectID     string    `db:"project_id" json:"projectId"`
	Participants  []string  `db:"-" json:"participants"`
	LastMessageAt time.Time `db:"last_message_at" json:"lastMessage"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// ChatView is the API-friendly view of a chat for one viewer.
type ChatView struct {
	Chat
	Messages []ChatMessage `json:"messages"`
}
