package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"project-hub/internal/ai"
)

// AIRunner runs an assistant request to completion.
type AIRunner interface {
	Handle(ctx context.Context, projectID, request string) ai.Result
}

type AIHandler struct {
	runner AIRunner
	access Authorizer
}

func NewAIHandler(runner AIRunner, access Authorizer) *AIHandler {
	return &AIHandler{runner: runner, access: access}
}

// AskAI runs the assistant synchronously. The answer is also posted to the
// project chat, so the room sees it like any other AI reply.
func (h *AIHandler) AskAI(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req struct {
		ProjectID string `json:"projectId"`
		Prompt    string `json:"prompt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		badRequest(c, "Prompt is required")
		return
	}
	if err := h.access.Authorize(c.Request.Context(), p.ID, req.ProjectID); err != nil {
		respondError(c, err)
		return
	}

	res := h.runner.Handle(c.Request.Context(), req.ProjectID, req.Prompt)
	c.JSON(http.StatusOK, gin.H{
		"success": res.State != ai.StateFailed,
		"message": res.Message,
		"files":   res.Files,
		"state":   res.State,
	})
}
