package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"project-hub/internal/ai"
	"project-hub/internal/models"
)

// ChatService is the chat behaviour behind /api/chat.
type ChatService interface {
	Authorize(ctx context.Context, userID, projectID string) error
	OpenChat(ctx context.Context, p models.Principal, projectID string) (models.ChatView, error)
	Recent(ctx context.Context, p models.Principal, projectID string) ([]models.ChatMessage, error)
	Send(ctx context.Context, p models.Principal, projectID, content string) (models.ChatMessage, error)
	DeleteMessage(ctx context.Context, p models.Principal, projectID, messageID string, forEveryone bool) (models.MessageDeletion, error)
}

// AIDispatcher starts an assistant request in the background.
type AIDispatcher interface {
	Dispatch(ctx context.Context, projectID, request string)
}

// ChatHandler serves the project chat over HTTP. Writes are broadcast to
// the websocket room exactly like socket events.
type ChatHandler struct {
	chat ChatService
	ai   AIDispatcher
}

func NewChatHandler(chat ChatService, dispatcher AIDispatcher) *ChatHandler {
	return &ChatHandler{chat: chat, ai: dispatcher}
}

func (h *ChatHandler) Register(r gin.IRouter) {
	r.GET("/project/:projectId", h.GetProjectChat)
	r.POST("/send-message", h.SendMessage)
	r.GET("/recent/:projectId", h.GetRecentMessages)
	r.DELETE("/delete-message", h.DeleteMessage)
}

// GetProjectChat returns the chat of a project, creating it on first access.
func (h *ChatHandler) GetProjectChat(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	view, err := h.chat.OpenChat(c.Request.Context(), p, c.Param("projectId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": view})
}

// SendMessage stores a message. A message addressed to @ai also starts an
// assistant request whose answer arrives on the websocket.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req struct {
		ProjectID string `json:"projectId"`
		Content   string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	msg, err := h.chat.Send(c.Request.Context(), p, req.ProjectID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	if h.ai != nil && ai.HasTrigger(msg.Content) {
		h.ai.Dispatch(c.Request.Context(), req.ProjectID, msg.Content)
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": msg})
}

// GetRecentMessages lists up to 50 messages, oldest first.
func (h *ChatHandler) GetRecentMessages(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	msgs, err := h.chat.Recent(c.Request.Context(), p, c.Param("projectId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req struct {
		ProjectID         string `json:"projectId"`
		MessageID         string `json:"messageId"`
		DeleteForEveryone bool   `json:"deleteForEveryone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ev, err := h.chat.DeleteMessage(c.Request.Context(), p, req.ProjectID, req.MessageID, req.DeleteForEveryone)
	if err != nil {
		respondError(c, err)
		return
	}
	text := "Message deleted for you"
	if ev.DeleteForEveryone {
		text = "Message deleted for everyone"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": text, "deletedMessageId": ev.MessageID})
}
