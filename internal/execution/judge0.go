// Package execution runs code snippets for the editor, either remotely on
// Judge0 or as a browser preview for web languages.
package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"project-hub/internal/logger"
)

// ErrTimeout is returned when a submission does not finish in time.
var ErrTimeout = errors.New("execution timeout")

// languageIDs maps editor language names to Judge0 language ids.
var languageIDs = map[string]int{
	"python":     71,
	"python3":    71,
	"py":         71,
	"javascript": 63,
	"js":         63,
	"java":       62,
	"cpp":        54,
	"c++":        54,
	"c":          50,
	"csharp":     51,
	"cs":         51,
	"php":        68,
	"ruby":       72,
	"go":         60,
	"rust":       73,
	"swift":      83,
	"kotlin":     78,
	"scala":      81,
	"r":          80,
	"dart":       87,
	"typescript": 74,
	"ts":         74,
	"perl":       85,
	"haskell":    61,
	"lua":        64,
	"bash":       46,
	"sh":         46,
	"sql":        82,
	"mysql":      82,
	"postgresql": 82,
}

// LanguageID resolves a language name. Unknown names run as JavaScript.
func LanguageID(language string) int {
	if id, ok := languageIDs[strings.ToLower(language)]; ok {
		return id
	}
	return languageIDs["javascript"]
}

// LanguageIDs returns a copy of the language table.
func LanguageIDs() map[string]int {
	out := make(map[string]int, len(languageIDs))
	for k, v := range languageIDs {
		out[k] = v
	}
	return out
}

// Result is the normalized outcome of a Judge0 submission.
type Result struct {
	Success       bool   `json:"success"`
	Output        string `json:"output"`
	Error         string `json:"error"`
	ExecutionTime string `json:"executionTime"`
	Memory        string `json:"memory"`
	Status        string `json:"status"`
}

type Judge0Client struct {
	baseURL      string
	apiKey       string
	host         string
	http         *http.Client
	pollInterval time.Duration
	maxAttempts  int
}

func NewJudge0Client(baseURL, apiKey, host string) *Judge0Client {
	return &Judge0Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		host:         host,
		http:         &http.Client{Timeout: 15 * time.Second},
		pollInterval: time.Second,
		maxAttempts:  30,
	}
}

type submission struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
	Stdin      string `json:"stdin"`
}

type submissionStatus struct {
	Token         string          `json:"token"`
	Stdout        *string         `json:"stdout"`
	Stderr        *string         `json:"stderr"`
	CompileOutput *string         `json:"compile_output"`
	Time          *string         `json:"time"`
	Memory        json.RawMessage `json:"memory"`
	Status        *struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
}

// Execute submits source and polls until Judge0 reports a final status.
func (c *Judge0Client) Execute(ctx context.Context, source, language, stdin string) (Result, error) {
	var created submissionStatus
	err := c.do(ctx, http.MethodPost, "/submissions", submission{
		SourceCode: source,
		LanguageID: LanguageID(language),
		Stdin:      stdin,
	}, &created)
	if err != nil {
		return Result{}, fmt.Errorf("create submission: %w", err)
	}
	if created.Token == "" {
		return Result{}, errors.New("create submission: no token returned")
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-ticker.C:
		}

		var st submissionStatus
		if err := c.do(ctx, http.MethodGet, "/submissions/"+created.Token, nil, &st); err != nil {
			return Result{}, fmt.Errorf("poll submission: %w", err)
		}
		// 1 and 2 are "In Queue" and "Processing".
		if st.Status != nil && st.Status.ID > 2 {
			logger.Debug().Str("token", created.Token).Int("status", st.Status.ID).Msg("[Exec] submission finished")
			return normalize(st), nil
		}
	}
	return Result{}, ErrTimeout
}

func (c *Judge0Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.apiKey)
	}
	if c.host != "" {
		req.Header.Set("X-RapidAPI-Host", c.host)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("judge0 returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func normalize(st submissionStatus) Result {
	stdout, stderr := deref(st.Stdout), deref(st.Stderr)
	memory := strings.Trim(string(st.Memory), `"`)
	if memory == "null" {
		memory = ""
	}

	switch st.Status.ID {
	case 3:
		return Result{Success: true, Status: "Success", Output: stdout, ExecutionTime: deref(st.Time), Memory: memory}
	case 4:
		return Result{Status: "Wrong Answer", Output: stdout, Error: stderr, ExecutionTime: deref(st.Time), Memory: memory}
	case 5:
		return Result{Status: "Time Limit Exceeded", Error: "Execution took too long"}
	case 6:
		return Result{Status: "Compilation Error", Error: firstNonEmpty(deref(st.CompileOutput), stderr, "Compilation failed")}
	case 7:
		return Result{Status: "Runtime Error", Output: stdout, Error: firstNonEmpty(stderr, "Runtime error occurred")}
	default:
		return Result{Status: firstNonEmpty(st.Status.Description, "Unknown Error"), Output: stdout, Error: firstNonEmpty(stderr, "Execution failed")}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
