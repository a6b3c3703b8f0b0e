package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"project-hub/internal/files"
)

// Authorizer checks project access for the caller.
type Authorizer interface {
	Authorize(ctx context.Context, userID, projectID string) error
}

// FileHandler serves the project file tree.
type FileHandler struct {
	files  *files.Service
	access Authorizer
}

func NewFileHandler(svc *files.Service, access Authorizer) *FileHandler {
	return &FileHandler{files: svc, access: access}
}

func (h *FileHandler) Register(r gin.IRouter) {
	r.GET("/project/:projectId", h.List)
	r.GET("/project/:projectId/tree", h.Tree)
	r.GET("/project/:projectId/file/*path", h.Get)
	r.POST("/project/:projectId/file", h.Create)
	r.PUT("/project/:projectId/file/*path", h.Update)
	r.PUT("/project/:projectId/rename", h.Rename)
	r.DELETE("/project/:projectId/file/*path", h.Delete)
}

// project returns the authorized project id, or writes the error.
func (h *FileHandler) project(c *gin.Context) (string, bool) {
	p, ok := principal(c)
	if !ok {
		return "", false
	}
	projectID := c.Param("projectId")
	if err := h.access.Authorize(c.Request.Context(), p.ID, projectID); err != nil {
		respondError(c, err)
		return "", false
	}
	return projectID, true
}

func wildcardPath(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("path"), "/")
}

func (h *FileHandler) List(c *gin.Context) {
	projectID, ok := h.project(c)
	if !ok {
		return
	}
	list, err := h.files.List(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "files": list})
}

func (h *FileHandler) Tree(c *gin.Context) {
	projectID, ok := h.project(c)
	if !ok {
		return
	}
	tree, err := h.files.Tree(c.Request.Context(), projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "fileTree": tree})
}

func (h *FileHandler) Get(c *gin.Context) {
	projectID, ok := h.project(c)
	if !ok {
		return
	}
	f, err := h.files.Get(c.Request.Context(), projectID, wildcardPath(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "file": f})
}

// Create writes a file. An existing file at the same path is overwritten.
func (h *FileHandler) Create(c *gin.Context) {
	projectID, ok := h.project(c)
	if !ok {
		return
	}
	var req struct {
		FilePath string `json:"filePath"`
		Content  string `json:"content"`
		Language string `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(req.FilePath) == "" {
		badRequest(c, "File path is required")
		return
	}

	f, err := h.files.Create(c.Request.Context(), projectID, req.FilePath, req.Content, req.Language)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "file": f})
}

func (h *FileHandler) Update(c *gin.Context) {
	projectID, ok := h.project(c)
	if !ok {
		return
	}
	var req struct {
		Content *string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Content == nil {
		badRequest(c, "Content is required")
		return
	}

	f, err := h.files.Update(c.Request.Context(), projectID, wildcardPath(c), *req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "file": f})
}

func (h *FileHandler) Rename(c *gin.Context) {
	projectID, ok := h.project(c)
	if !ok {
		return
	}
	var req struct {
		OldPath string `json:"oldPath"`
		NewPath string `json:"newPath"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.OldPath == "" || req.NewPath == "" {
		badRequest(c, "Old path and new path are required")
		return
	}

	n, err := h.files.Rename(c.Request.Context(), projectID, req.OldPath, req.NewPath)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "renamedCount": n})
}

// Delete removes a file, or a whole directory when the path ends in "/".
func (h *FileHandler) Delete(c *gin.Context) {
	projectID, ok := h.project(c)
	if !ok {
		return
	}
	res, err := h.files.Delete(c.Request.Context(), projectID, wildcardPath(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if !res.Found() {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "File not found", "filePath": res.Path, "deletedCount": 0})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "filePath": res.Path, "deletedCount": res.Deleted})
}
