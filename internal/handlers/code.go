package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"project-hub/internal/execution"
)

type language struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Extension string `json:"extension"`
	Iframe    bool   `json:"iframe"`
	JudgeID   int    `json:"judgeId,omitempty"`
}

var supportedLanguages = []language{
	{ID: "html", Name: "HTML", Extension: ".html", Iframe: true},
	{ID: "css", Name: "CSS", Extension: ".css", Iframe: true},
	{ID: "javascript", Name: "JavaScript", Extension: ".js", Iframe: true},
	{ID: "typescript", Name: "TypeScript", Extension: ".ts"},
	{ID: "python", Name: "Python", Extension: ".py"},
	{ID: "java", Name: "Java", Extension: ".java"},
	{ID: "cpp", Name: "C++", Extension: ".cpp"},
	{ID: "c", Name: "C", Extension: ".c"},
	{ID: "csharp", Name: "C#", Extension: ".cs"},
	{ID: "php", Name: "PHP", Extension: ".php"},
	{ID: "ruby", Name: "Ruby", Extension: ".rb"},
	{ID: "go", Name: "Go", Extension: ".go"},
	{ID: "rust", Name: "Rust", Extension: ".rs"},
	{ID: "swift", Name: "Swift", Extension: ".swift"},
	{ID: "kotlin", Name: "Kotlin", Extension: ".kt"},
	{ID: "scala", Name: "Scala", Extension: ".scala"},
	{ID: "r", Name: "R", Extension: ".r"},
	{ID: "dart", Name: "Dart", Extension: ".dart"},
	{ID: "perl", Name: "Perl", Extension: ".pl"},
	{ID: "haskell", Name: "Haskell", Extension: ".hs"},
	{ID: "lua", Name: "Lua", Extension: ".lua"},
	{ID: "bash", Name: "Bash", Extension: ".sh"},
	{ID: "sql", Name: "SQL", Extension: ".sql"},
}

// CodeHandler runs editor snippets.
type CodeHandler struct {
	runner *execution.Runner
	queue  execution.Queue
}

func NewCodeHandler(runner *execution.Runner, queue execution.Queue) *CodeHandler {
	return &CodeHandler{runner: runner, queue: queue}
}

func (h *CodeHandler) Register(r gin.IRouter) {
	r.POST("/execute", h.Execute)
	r.POST("/execute-async", h.Enqueue)
	r.GET("/status/:id", h.Status)
	r.GET("/languages", h.Languages)
	r.GET("/health", h.Health)
}

func bindSnippet(c *gin.Context) (execution.Request, bool) {
	var req execution.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return req, false
	}
	if req.SourceCode == "" || strings.TrimSpace(req.Language) == "" {
		badRequest(c, "Source code and language are required")
		return req, false
	}
	return req, true
}

func (h *CodeHandler) Execute(c *gin.Context) {
	req, ok := bindSnippet(c)
	if !ok {
		return
	}
	out, err := h.runner.Run(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "type": out.Type, "content": out.Content, "result": out.Result})
}

func (h *CodeHandler) Enqueue(c *gin.Context) {
	req, ok := bindSnippet(c)
	if !ok {
		return
	}
	id, err := h.queue.Enqueue(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "jobId": id})
}

func (h *CodeHandler) Status(c *gin.Context) {
	st, err := h.queue.Status(c.Request.Context(), c.Param("id"))
	if errors.Is(err, execution.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Job not found"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "state": st.State, "result": st.Result, "error": st.Error})
}

func (h *CodeHandler) Languages(c *gin.Context) {
	out := make([]language, len(supportedLanguages))
	for i, l := range supportedLanguages {
		l.JudgeID = execution.LanguageID(l.ID)
		out[i] = l
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "languages": out})
}

func (h *CodeHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Code execution service is running",
		"async":     h.queue.IsAsync(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
