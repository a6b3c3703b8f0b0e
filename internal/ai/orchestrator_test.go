package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"project-hub/internal/files"
	"project-hub/internal/mocks"
	"project-hub/internal/models"
)

type recordingChat struct {
	mu        sync.Mutex
	appendErr error
	stored    []models.ChatMessage
	published []models.ChatMessage
}

func (c *recordingChat) AppendAI(_ context.Context, projectID, content string) (models.ChatMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.appendErr != nil {
		return models.ChatMessage{}, c.appendErr
	}
	msg := models.ChatMessage{
		ID:         "ai-" + projectID,
		ProjectID:  projectID,
		SenderID:   models.AISenderID,
		SenderName: models.AISenderName,
		Content:    content,
	}
	c.stored = append(c.stored, msg)
	c.published = append(c.published, msg)
	return msg, nil
}

func (c *recordingChat) Publish(msg models.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, msg)
}

func newOrchestrator(t *testing.T, gen Generator, chat ChatWriter, timeout time.Duration) (*Orchestrator, *files.Service) {
	t.Helper()
	fs := files.NewService(files.NewMemoryStore())
	return NewOrchestrator(gen, fs, chat, nil, timeout), fs
}

func TestTriggerHelpers(t *testing.T) {
	assert.True(t, HasTrigger(Trigger))
	assert.True(t, HasTrigger("@ai build a todo app"))
	assert.True(t, HasTrigger("hey @AI, help"))
	assert.False(t, HasTrigger("mail me at bob@ai.com"))
	assert.False(t, HasTrigger("@aide is here"))
	assert.False(t, HasTrigger("no trigger"))

	assert.Equal(t, "build a todo app", StripTrigger("@ai build a todo app"))
	assert.Equal(t, "hey , help", StripTrigger("hey @AI, help"))
	assert.Equal(t, "", StripTrigger("  @ai  "))
}

func TestBuildPromptWrapsRequest(t *testing.T) {
	assert.Equal(t,
		`Request: "create a todo app". Provide a detailed response with code examples and file structure. Create a complete implementation with proper folder organization.`,
		BuildPrompt("create a todo app"))
}

func TestHandleMaterializesFilesAndAppendsManifest(t *testing.T) {
	gen := new(mocks.GeneratorMock)
	reply := "Here you go.\n\n```html:index.html\n<h1>Hi</h1>\n```\n\n```css:styles/main.css\nh1 { color: red; }\n```\n"
	gen.On("Generate", mock.Anything, BuildPrompt("create a page")).Return(reply, nil).Once()

	chat := &recordingChat{}
	o, fs := newOrchestrator(t, gen, chat, time.Second)

	res := o.Handle(context.Background(), "p1", "@ai create a page")

	assert.Equal(t, StateDelivered, res.State)
	assert.True(t, res.Persisted)
	assert.Equal(t, []string{"index.html", "styles/main.css"}, res.Files)
	assert.True(t, strings.HasPrefix(res.Message.Content, reply))
	assert.True(t, strings.HasSuffix(res.Message.Content, "\n\n**Files Created:**\n- index.html\n- styles/main.css"))
	require.Len(t, chat.published, 1)

	f, err := fs.Get(context.Background(), "p1", "styles/main.css")
	require.NoError(t, err)
	assert.Equal(t, "css", f.Language)
	assert.Equal(t, "h1 { color: red; }", f.Content)
	gen.AssertExpectations(t)
}

func TestHandleWithoutFilesHasNoManifest(t *testing.T) {
	gen := new(mocks.GeneratorMock)
	gen.On("Generate", mock.Anything, mock.Anything).Return("Just prose.", nil)

	chat := &recordingChat{}
	o, _ := newOrchestrator(t, gen, chat, time.Second)

	res := o.Handle(context.Background(), "p1", "@ai explain closures")
	assert.Equal(t, "Just prose.", res.Message.Content)
	assert.Empty(t, res.Files)
	assert.Equal(t, StateDelivered, res.State)
}

func TestHandleGeneratorErrorPublishesFallbackOnce(t *testing.T) {
	gen := new(mocks.GeneratorMock)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))

	chat := &recordingChat{}
	o, fs := newOrchestrator(t, gen, chat, time.Second)

	res := o.Handle(context.Background(), "p1", "@ai build it")

	assert.Equal(t, StateFailed, res.State)
	assert.NotEmpty(t, res.Message.Content)
	assert.Contains(t, res.Message.Content, "AI Assistant error")
	assert.True(t, res.Message.IsAI())
	require.Len(t, chat.published, 1)

	list, err := fs.List(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHandleNotConfigured(t *testing.T) {
	chat := &recordingChat{}
	o, _ := newOrchestrator(t, unconfigured{provider: "gemini"}, chat, time.Second)

	res := o.Handle(context.Background(), "p1", "@ai hello")
	assert.Equal(t, StateFailed, res.State)
	assert.Contains(t, res.Message.Content, "not configured")
	assert.Len(t, chat.published, 1)
}

func TestHandleTimeout(t *testing.T) {
	gen := new(mocks.GeneratorMock)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", context.DeadlineExceeded).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		})

	chat := &recordingChat{}
	o, _ := newOrchestrator(t, gen, chat, 20*time.Millisecond)

	res := o.Handle(context.Background(), "p1", "@ai slow")
	assert.Equal(t, StateFailed, res.State)
	assert.Contains(t, res.Message.Content, "no response within")
}

func TestHandleEmptyPromptSkipsGenerator(t *testing.T) {
	gen := new(mocks.GeneratorMock)
	chat := &recordingChat{}
	o, _ := newOrchestrator(t, gen, chat, time.Second)

	res := o.Handle(context.Background(), "p1", "@ai")
	assert.Equal(t, StateFailed, res.State)
	assert.NotEmpty(t, res.Message.Content)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestHandleStoreFailureStillDelivers(t *testing.T) {
	gen := new(mocks.GeneratorMock)
	gen.On("Generate", mock.Anything, mock.Anything).Return("ok", nil)

	chat := &recordingChat{appendErr: errors.New("db down")}
	o, _ := newOrchestrator(t, gen, chat, time.Second)

	res := o.Handle(context.Background(), "p1", "@ai hi")
	assert.False(t, res.Persisted)
	assert.NotEmpty(t, res.Message.ID)
	require.Len(t, chat.published, 1)
	assert.Equal(t, "ok", chat.published[0].Content)
	assert.Empty(t, chat.stored)
}

func TestDispatchSurvivesCallerCancellation(t *testing.T) {
	gen := new(mocks.GeneratorMock)
	gen.On("Generate", mock.Anything, mock.Anything).Return("done", nil).
		Run(func(args mock.Arguments) {
			time.Sleep(10 * time.Millisecond)
			assert.NoError(t, args.Get(0).(context.Context).Err())
		})

	chat := &recordingChat{}
	o, _ := newOrchestrator(t, gen, chat, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	o.Dispatch(ctx, "p1", "@ai go")
	cancel()
	o.Wait()

	require.Len(t, chat.published, 1)
	assert.Equal(t, "done", chat.published[0].Content)
}

func TestShutdownIsBoundedAndDropsLateDispatch(t *testing.T) {
	release := make(chan struct{})
	gen := new(mocks.GeneratorMock)
	gen.On("Generate", mock.Anything, mock.Anything).Return("slow", nil).
		Run(func(mock.Arguments) { <-release })

	chat := &recordingChat{}
	o, _ := newOrchestrator(t, gen, chat, 5*time.Second)
	o.Dispatch(context.Background(), "p1", "@ai first")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, o.Shutdown(ctx), context.DeadlineExceeded)

	o.Dispatch(context.Background(), "p1", "@ai late")
	close(release)
	require.NoError(t, o.Shutdown(context.Background()))

	gen.AssertNumberOfCalls(t, "Generate", 1)
	require.Len(t, chat.published, 1)
	assert.Equal(t, "slow", chat.published[0].Content)
}
