package repositories

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"project-hub/internal/locks"
	"project-hub/internal/models"
)

// MemoryChatRepo keeps chats in process memory. It backs local runs without
// Postgres and the package tests of its callers.
type MemoryChatRepo struct {
	mu      sync.RWMutex
	chats   map[string]*memoryChat
	appends *locks.Keyed
	now     func() time.Time
}

type memoryChat struct {
	chat     models.Chat
	seq      int64
	messages []models.ChatMessage
}

// NewMemoryChatRepo constructs an empty MemoryChatRepo.
func NewMemoryChatRepo() *MemoryChatRepo {
	return &MemoryChatRepo{
		chats:   make(map[string]*memoryChat),
		appends: locks.NewKeyed(),
		now:     time.Now,
	}
}

func (r *MemoryChatRepo) GetOrCreate(ctx context.Context, projectID string, participants []string) (models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.chats[projectID]; ok {
		return cloneChat(c.chat), nil
	}
	now := r.now()
	c := &memoryChat{chat: models.Chat{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		Participants:  append([]string{}, participants...),
		LastMessageAt: now,
		CreatedAt:     now,
	}}
	r.chats[projectID] = c
	return cloneChat(c.chat), nil
}

func (r *MemoryChatRepo) Append(ctx context.Context, projectID string, msg models.ChatMessage, onAppended func(models.ChatMessage)) (models.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return models.ChatMessage{}, err
	}

	unlock := r.appends.Lock(projectID)
	defer unlock()

	r.mu.Lock()
	c, ok := r.chats[projectID]
	if !ok {
		r.mu.Unlock()
		return models.ChatMessage{}, ErrChatNotFound
	}
	now := r.now()
	if now.Before(c.chat.LastMessageAt) {
		now = c.chat.LastMessageAt
	}
	c.seq++
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.ProjectID = projectID
	msg.Seq = c.seq
	msg.CreatedAt = now
	msg.DeletedFor = []string{}
	c.messages = append(c.messages, msg)
	c.chat.LastMessageAt = now
	r.mu.Unlock()

	if onAppended != nil {
		onAppended(msg)
	}
	return msg, nil
}

func (r *MemoryChatRepo) Recent(ctx context.Context, projectID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.chats[projectID]
	if !ok {
		return []models.ChatMessage{}, nil
	}

	msgs := make([]models.ChatMessage, 0, len(c.messages))
	for _, m := range c.messages {
		msgs = append(msgs, cloneMessage(m))
	}
	sort.SliceStable(msgs, func(i, j int) bool { return newer(msgs[i], msgs[j]) })
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	sort.SliceStable(msgs, func(i, j int) bool { return newer(msgs[j], msgs[i]) })
	return msgs, nil
}

func (r *MemoryChatRepo) GetMessage(ctx context.Context, projectID, messageID string) (models.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.chats[projectID]
	if !ok {
		return models.ChatMessage{}, ErrMessageNotFound
	}
	i := c.find(messageID)
	if i < 0 {
		return models.ChatMessage{}, ErrMessageNotFound
	}
	return cloneMessage(c.messages[i]), nil
}

func (r *MemoryChatRepo) SoftDelete(ctx context.Context, projectID, messageID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.chats[projectID]
	if !ok {
		return ErrChatNotFound
	}
	i := c.find(messageID)
	if i < 0 {
		return ErrMessageNotFound
	}
	if !slices.Contains(c.messages[i].DeletedFor, userID) {
		c.messages[i].DeletedFor = append(c.messages[i].DeletedFor, userID)
	}
	return nil
}

func (r *MemoryChatRepo) HardDelete(ctx context.Context, projectID, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.chats[projectID]
	if !ok {
		return ErrChatNotFound
	}
	i := c.find(messageID)
	if i < 0 {
		return ErrMessageNotFound
	}
	c.messages = slices.Delete(c.messages, i, i+1)
	return nil
}

func (c *memoryChat) find(messageID string) int {
	return slices.IndexFunc(c.messages, func(m models.ChatMessage) bool { return m.ID == messageID })
}

// newer orders by timestamp, then by sequence for equal timestamps.
func newer(a, b models.ChatMessage) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.Seq > b.Seq
}

func cloneChat(c models.Chat) models.Chat {
	c.Participants = append([]string{}, c.Participants...)
	return c
}

func cloneMessage(m models.ChatMessage) models.ChatMessage {
	m.DeletedFor = append([]string{}, m.DeletedFor...)
	return m
}

var (
	_ ChatRepository = (*ChatRepo)(nil)
	_ ChatRepository = (*MemoryChatRepo)(nil)
)
