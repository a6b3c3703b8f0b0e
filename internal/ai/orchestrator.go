package ai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"project-hub/internal/aiparse"
	"project-hub/internal/logger"
	"project-hub/internal/models"
	"project-hub/internal/observability"
	"project-hub/internal/telemetry"
)

// State is a step of one AI request.
type State string

const (
	StateReceived     State = "received"
	StatePrompted     State = "prompted"
	StateAwaitingAI   State = "awaiting_ai"
	StateParsed       State = "parsed"
	StateMaterialized State = "materialized"
	StateDelivered    State = "delivered"
	StateFailed       State = "failed"
)

// Trigger is the marker that routes a chat message to the assistant.
const Trigger = "@ai"

var triggerRe = regexp.MustCompile(`(?i)(^|[^\w@])` + regexp.QuoteMeta(Trigger) + `\b`)

// HasTrigger reports whether content addresses the assistant.
func HasTrigger(content string) bool {
	return triggerRe.MatchString(content)
}

// StripTrigger removes every trigger marker from content.
func StripTrigger(content string) string {
	return strings.TrimSpace(triggerRe.ReplaceAllString(content, "${1}"))
}

// BuildPrompt wraps a user request in the fixed instruction template.
func BuildPrompt(request string) string {
	return fmt.Sprintf(`Request: "%s". Provide a detailed response with code examples and file structure. Create a complete implementation with proper folder organization.`, request)
}

// FilesManifest renders the list appended to a reply that created files.
func FilesManifest(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n**Files Created:**")
	for _, p := range paths {
		b.WriteString("\n- ")
		b.WriteString(p)
	}
	return b.String()
}

// ChatWriter stores and fans out assistant messages.
type ChatWriter interface {
	AppendAI(ctx context.Context, projectID, content string) (models.ChatMessage, error)
	// Publish delivers a message that could not be stored.
	Publish(msg models.ChatMessage)
}

// Materializer writes parsed file specs into a project.
type Materializer interface {
	ApplyAIFileSpecs(ctx context.Context, projectID string, specs []aiparse.FileSpec) []string
}

// Result is the outcome of one request. Message is always set.
type Result struct {
	Message   models.ChatMessage `json:"message"`
	Files     []string           `json:"files"`
	State     State              `json:"state"`
	Persisted bool               `json:"persisted"`
}

// Orchestrator runs AI requests end to end. It never returns an error: a
// failed request still produces a clearly marked chat message.
type Orchestrator struct {
	gen     Generator
	files   Materializer
	chat    ChatWriter
	audit   *telemetry.AuditEmitter
	timeout time.Duration

	mu       sync.Mutex
	stopping bool
	wg       sync.WaitGroup
	now      func() time.Time
}

func NewOrchestrator(gen Generator, files Materializer, chat ChatWriter, audit *telemetry.AuditEmitter, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Orchestrator{gen: gen, files: files, chat: chat, audit: audit, timeout: timeout, now: time.Now}
}

// Dispatch runs the request in the background. The request outlives the
// caller's connection. Requests arriving after Shutdown are dropped.
func (o *Orchestrator) Dispatch(ctx context.Context, projectID, request string) {
	ctx = context.WithoutCancel(ctx)
	o.mu.Lock()
	if o.stopping {
		o.mu.Unlock()
		logger.Warn().Str("project_id", projectID).Msg("[AI] shutting down, request dropped")
		return
	}
	o.wg.Add(1)
	o.mu.Unlock()
	go func() {
		defer o.wg.Done()
		o.Handle(ctx, projectID, request)
	}()
}

// Wait blocks until every dispatched request has been delivered.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown stops accepting dispatches and waits for the running ones until
// ctx is done.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.stopping = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle runs one request synchronously and delivers the resulting message
// to the project chat.
func (o *Orchestrator) Handle(ctx context.Context, projectID, request string) Result {
	ctx = context.WithoutCancel(ctx)
	ctx, span := otel.Tracer("project-hub/ai").Start(ctx, "ai.request")
	defer span.End()
	span.SetAttributes(attribute.String("project.id", projectID))

	start := o.now()
	req := &aiRun{projectID: projectID, state: StateReceived}
	content := o.respond(ctx, req, StripTrigger(request))

	res := Result{Files: req.files}
	msg, err := o.chat.AppendAI(ctx, projectID, content)
	if err != nil {
		logger.Error().Err(err).Str("project_id", projectID).Msg("[AI] storing reply failed, delivering unsaved")
		msg = models.ChatMessage{
			ID:         uuid.NewString(),
			ProjectID:  projectID,
			SenderID:   models.AISenderID,
			SenderName: models.AISenderName,
			Content:    content,
			CreatedAt:  o.now(),
			DeletedFor: []string{},
		}
		o.chat.Publish(msg)
	} else {
		res.Persisted = true
	}
	res.Message = msg

	if req.state != StateFailed {
		req.advance(StateDelivered)
	}
	res.State = req.state
	span.SetAttributes(attribute.String("ai.state", string(res.State)), attribute.Int("ai.files", len(res.Files)))
	observability.ObserveAIRequest(string(res.State), o.now().Sub(start))
	return res
}

// respond produces the chat text for prompt, advancing req as it goes.
func (o *Orchestrator) respond(ctx context.Context, req *aiRun, prompt string) string {
	if prompt == "" {
		req.fail(errors.New("empty prompt"))
		return emptyPromptMessage
	}
	if o.gen == nil {
		req.fail(ErrNotConfigured)
		return fallbackMessage(ErrNotConfigured, o.timeout)
	}

	text := BuildPrompt(prompt)
	req.advance(StatePrompted)

	genCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	req.advance(StateAwaitingAI)
	reply, err := o.gen.Generate(genCtx, text)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty reply")
	}
	if err != nil {
		if genCtx.Err() == context.DeadlineExceeded {
			err = context.DeadlineExceeded
		}
		req.fail(err)
		return fallbackMessage(err, o.timeout)
	}

	specs := aiparse.Parse(reply)
	req.advance(StateParsed)

	req.files = o.files.ApplyAIFileSpecs(ctx, req.projectID, specs)
	req.advance(StateMaterialized)
	if n := len(req.files); n > 0 {
		observability.AddFilesMaterialized(n)
		o.audit.FilesMaterialized(ctx, req.projectID, req.files, len(specs))
	}

	return reply + FilesManifest(req.files)
}

const emptyPromptMessage = "**AI Assistant:** please add a request after @ai, for example `@ai create a todo app in React`."

func fallbackMessage(err error, timeout time.Duration) string {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return "**AI Assistant unavailable:** the AI service is not configured on this server, so your request was not processed."
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("**AI Assistant error:** no response within %s. Please try again.", timeout)
	default:
		return "**AI Assistant error:** the request could not be completed. Please try again."
	}
}

// aiRun tracks the state of one request for logging.
type aiRun struct {
	projectID string
	state     State
	files     []string
}

func (r *aiRun) advance(next State) {
	logger.Debug().Str("project_id", r.projectID).Str("from", string(r.state)).Str("to", string(next)).Msg("[AI] state")
	r.state = next
}

func (r *aiRun) fail(err error) {
	logger.Warn().Err(err).Str("project_id", r.projectID).Str("at", string(r.state)).Msg("[AI] request failed")
	r.state = StateFailed
}
