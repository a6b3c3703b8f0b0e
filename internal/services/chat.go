// Package services holds the chat rules shared by the websocket and HTTP
// surfaces: validation, access checks, delete permissions and fan-out.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"project-hub/internal/access"
	"project-hub/internal/logger"
	"project-hub/internal/models"
	"project-hub/internal/observability"
	"project-hub/internal/repositories"
	"project-hub/internal/telemetry"
)

// MaxMessageLength bounds user-written messages, in characters.
const MaxMessageLength = 1000

// MessagePublisher fans chat events out to a project room. Both methods
// must return without waiting on slow connections.
type MessagePublisher interface {
	PublishMessage(msg models.ChatMessage)
	PublishDeletion(ev models.MessageDeletion)
}

type ChatService struct {
	repo      repositories.ChatRepository
	access    access.Checker
	publisher MessagePublisher
	audit     *telemetry.AuditEmitter
}

func NewChatService(repo repositories.ChatRepository, checker access.Checker, publisher MessagePublisher, audit *telemetry.AuditEmitter) *ChatService {
	return &ChatService{repo: repo, access: checker, publisher: publisher, audit: audit}
}

// Authorize fails with ErrPermissionDenied unless userID may use the project.
func (s *ChatService) Authorize(ctx context.Context, userID, projectID string) error {
	if strings.TrimSpace(projectID) == "" {
		return invalid("projectId", "is required")
	}
	ok, err := s.access.HasAccess(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}

// OpenChat returns the project chat, creating it on first access, with the
// recent messages the caller has not hidden.
func (s *ChatService) OpenChat(ctx context.Context, p models.Principal, projectID string) (models.ChatView, error) {
	if err := s.Authorize(ctx, p.ID, projectID); err != nil {
		return models.ChatView{}, err
	}
	chat, err := s.ensureChat(ctx, projectID)
	if err != nil {
		return models.ChatView{}, err
	}
	msgs, err := s.repo.Recent(ctx, projectID, repositories.DefaultRecentLimit)
	if err != nil {
		return models.ChatView{}, err
	}
	return models.ChatView{Chat: chat, Messages: models.VisibleTo(msgs, p.ID)}, nil
}

// Recent lists up to 50 recent messages visible to the caller, oldest first.
func (s *ChatService) Recent(ctx context.Context, p models.Principal, projectID string) ([]models.ChatMessage, error) {
	if err := s.Authorize(ctx, p.ID, projectID); err != nil {
		return nil, err
	}
	msgs, err := s.repo.Recent(ctx, projectID, repositories.DefaultRecentLimit)
	if err != nil {
		return nil, err
	}
	return models.VisibleTo(msgs, p.ID), nil
}

// Send stores a user message and publishes it to the room, sender included.
func (s *ChatService) Send(ctx context.Context, p models.Principal, projectID, content string) (models.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.ChatMessage{}, invalid("content", "is required")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return models.ChatMessage{}, invalid("content", "must be at most 1000 characters")
	}
	if err := s.Authorize(ctx, p.ID, projectID); err != nil {
		return models.ChatMessage{}, err
	}

	name := p.Name
	if name == "" {
		name = p.ID
	}
	msg, err := s.append(ctx, projectID, models.ChatMessage{SenderID: p.ID, SenderName: name, Content: content})
	if err != nil {
		return models.ChatMessage{}, err
	}
	observability.IncChatMessage("user")
	return msg, nil
}

// AppendAI stores an assistant message and publishes it to the room. AI
// content has no length limit.
func (s *ChatService) AppendAI(ctx context.Context, projectID, content string) (models.ChatMessage, error) {
	msg, err := s.append(ctx, projectID, models.ChatMessage{
		SenderID:   models.AISenderID,
		SenderName: models.AISenderName,
		Content:    content,
	})
	if err != nil {
		return models.ChatMessage{}, err
	}
	observability.IncChatMessage("ai")
	return msg, nil
}

// Publish delivers a message to the room without storing it.
func (s *ChatService) Publish(msg models.ChatMessage) {
	s.publisher.PublishMessage(msg)
}

// DeleteMessage hides a message for the caller, or removes it for everyone
// when forEveryone is set and the caller wrote it. The room is told only
// after the store accepted the change.
func (s *ChatService) DeleteMessage(ctx context.Context, p models.Principal, projectID, messageID string, forEveryone bool) (models.MessageDeletion, error) {
	if strings.TrimSpace(messageID) == "" {
		return models.MessageDeletion{}, invalid("messageId", "is required")
	}
	if err := s.Authorize(ctx, p.ID, projectID); err != nil {
		return models.MessageDeletion{}, err
	}

	msg, err := s.repo.GetMessage(ctx, projectID, messageID)
	if err != nil {
		return models.MessageDeletion{}, err
	}

	if forEveryone {
		if msg.SenderID != p.ID {
			return models.MessageDeletion{}, ErrPermissionDenied
		}
		err = s.repo.HardDelete(ctx, projectID, messageID)
	} else {
		err = s.repo.SoftDelete(ctx, projectID, messageID, p.ID)
	}
	if err != nil {
		return models.MessageDeletion{}, err
	}

	ev := models.MessageDeletion{ProjectID: projectID, MessageID: messageID, DeleteForEveryone: forEveryone, UserID: p.ID}
	if forEveryone {
		s.audit.MessageHardDeleted(ctx, projectID, messageID, p.ID)
	}
	s.publisher.PublishDeletion(ev)
	return ev, nil
}

// append stores msg, creating the chat on first use. Publishing runs inside
// the store's append so room delivery follows append order.
func (s *ChatService) append(ctx context.Context, projectID string, msg models.ChatMessage) (models.ChatMessage, error) {
	stored, err := s.repo.Append(ctx, projectID, msg, s.publisher.PublishMessage)
	if errors.Is(err, repositories.ErrChatNotFound) {
		if _, err = s.ensureChat(ctx, projectID); err != nil {
			return models.ChatMessage{}, err
		}
		stored, err = s.repo.Append(ctx, projectID, msg, s.publisher.PublishMessage)
	}
	if err != nil {
		logger.Error().Err(err).Str("project_id", projectID).Msg("[Chat] append failed")
		return models.ChatMessage{}, err
	}
	return stored, nil
}

// ensureChat creates the chat with the current participant snapshot.
func (s *ChatService) ensureChat(ctx context.Context, projectID string) (models.Chat, error) {
	participants, err := s.access.Participants(ctx, projectID)
	if err != nil && !errors.Is(err, access.ErrProjectNotFound) {
		return models.Chat{}, err
	}
	return s.repo.GetOrCreate(ctx, projectID, participants)
}
