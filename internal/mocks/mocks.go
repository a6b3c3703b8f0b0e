package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"project-hub/internal/access"
	"project-hub/internal/models"
	"project-hub/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) GetOrCreate(ctx context.Context, projectID string, participants []string) (models.Chat, error) {
	args := m.Called(ctx, projectID, participants)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

// Append invokes onAppended with the returned message when the call succeeds.
func (m *ChatRepositoryMock) Append(ctx context.Context, projectID string, msg models.ChatMessage, onAppended func(models.ChatMessage)) (models.ChatMessage, error) {
	args := m.Called(ctx, projectID, msg)
	var stored models.ChatMessage
	if val := args.Get(0); val != nil {
		stored = val.(models.ChatMessage)
	}
	if err := args.Error(1); err != nil {
		return models.ChatMessage{}, err
	}
	if onAppended != nil {
		onAppended(stored)
	}
	return stored, nil
}

func (m *ChatRepositoryMock) Recent(ctx context.Context, projectID string, limit int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, projectID, limit)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

func (m *ChatRepositoryMock) GetMessage(ctx context.Context, projectID, messageID string) (models.ChatMessage, error) {
	args := m.Called(ctx, projectID, messageID)
	var msg models.ChatMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChatMessage)
	}
	return msg, args.Error(1)
}

func (m *ChatRepositoryMock) SoftDelete(ctx context.Context, projectID, messageID, userID string) error {
	args := m.Called(ctx, projectID, messageID, userID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) HardDelete(ctx context.Context, projectID, messageID string) error {
	args := m.Called(ctx, projectID, messageID)
	return args.Error(0)
}

type AccessCheckerMock struct {
	mock.Mock
}

func (m *AccessCheckerMock) HasAccess(ctx context.Context, userID, projectID string) (bool, error) {
	args := m.Called(ctx, userID, projectID)
	return args.Bool(0), args.Error(1)
}

func (m *AccessCheckerMock) Participants(ctx context.Context, projectID string) ([]string, error) {
	args := m.Called(ctx, projectID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

// MessagePublisherMock records room fan-out calls.
type MessagePublisherMock struct {
	mock.Mock
}

func (m *MessagePublisherMock) PublishMessage(msg models.ChatMessage) {
	m.Called(msg)
}

func (m *MessagePublisherMock) PublishDeletion(ev models.MessageDeletion) {
	m.Called(ev)
}

type GeneratorMock struct {
	mock.Mock
}

func (m *GeneratorMock) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *GeneratorMock) Name() string {
	return "mock"
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ access.Checker = (*AccessCheckerMock)(nil)
var _ interface {
	PublishMessage(models.ChatMessage)
	PublishDeletion(models.MessageDeletion)
} = (*MessagePublisherMock)(nil)
var _ interface {
	Generate(context.Context, string) (string, error)
	Name() string
} = (*GeneratorMock)(nil)
