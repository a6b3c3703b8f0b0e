package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"project-hub/internal/access"
	"project-hub/internal/ai"
	"project-hub/internal/files"
	"project-hub/internal/mocks"
	"project-hub/internal/repositories"
	"project-hub/internal/services"
)

type roomFixture struct {
	hub   *Hub
	repo  *repositories.MemoryChatRepo
	gen   *mocks.GeneratorMock
	orch  *ai.Orchestrator
	files *files.Service
	b     *Broadcaster
}

func newRoomFixture(checker access.Checker) *roomFixture {
	f := &roomFixture{
		hub:   NewHub(),
		repo:  repositories.NewMemoryChatRepo(),
		gen:   new(mocks.GeneratorMock),
		files: files.NewService(files.NewMemoryStore()),
	}
	chat := services.NewChatService(f.repo, checker, f.hub, nil)
	f.orch = ai.NewOrchestrator(f.gen, f.files, chat, nil, time.Second)
	f.b = NewBroadcaster(f.hub, chat, f.orch)
	return f
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"event": event, "data": data})
	require.NoError(t, err)
	return raw
}

func (f *roomFixture) do(t *testing.T, c *Client, event string, data any) {
	t.Helper()
	f.b.HandleFrame(context.Background(), c, frame(t, event, data))
}

func decodeData[T any](t *testing.T, fr Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(fr.Data, &v))
	return v
}

func TestSendFansOutToJoinedRoomOnly(t *testing.T) {
	f := newRoomFixture(access.AllowAll{})
	a, b, sender, other := testClient("a"), testClient("b"), testClient("s"), testClient("o")
	for _, c := range []*Client{a, b, sender} {
		f.do(t, c, EventJoinProject, map[string]string{"projectId": "P1"})
	}
	f.do(t, other, EventJoinProject, map[string]string{"projectId": "P2"})

	f.do(t, sender, EventSendMessage, map[string]string{"projectId": "P1", "content": "hello", "sender": "spoofed"})

	for _, c := range []*Client{a, b, sender} {
		frames := drain(t, c)
		require.Len(t, frames, 1)
		assert.Equal(t, EventNewMessage, frames[0].Event)
		msg := decodeData[NewMessage](t, frames[0])
		assert.Equal(t, "hello", msg.Content)
		assert.Equal(t, "s", msg.Sender)
		assert.NotEmpty(t, msg.MessageID)
	}
	assert.Empty(t, drain(t, other))
}

func TestAIFailureDeliversOneFallbackAfterEcho(t *testing.T) {
	f := newRoomFixture(access.AllowAll{})
	f.gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("upstream 500"))
	a, sender := testClient("a"), testClient("s")
	f.do(t, a, EventJoinProject, map[string]string{"projectId": "P1"})
	f.do(t, sender, EventJoinProject, map[string]string{"projectId": "P1"})

	f.do(t, sender, EventSendMessage, map[string]string{"projectId": "P1", "content": "@ai build a todo app"})
	f.orch.Wait()

	frames := drain(t, a)
	require.Len(t, frames, 2)
	first := decodeData[NewMessage](t, frames[0])
	second := decodeData[NewMessage](t, frames[1])
	assert.Equal(t, "@ai build a todo app", first.Content)
	assert.Equal(t, "ai", second.Sender)
	assert.Equal(t, "AI Assistant", second.SenderName)
	assert.NotEmpty(t, second.Content)

	recent, err := f.repo.Recent(context.Background(), "P1", 50)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestAIResponseMaterializesFiles(t *testing.T) {
	f := newRoomFixture(access.AllowAll{})
	f.gen.On("Generate", mock.Anything, ai.BuildPrompt("make a page")).Return("```html:index.html\n<p>x</p>\n```", nil)
	sender := testClient("s")
	f.do(t, sender, EventJoinProject, map[string]string{"projectId": "P1"})

	f.do(t, sender, EventSendMessage, map[string]string{"projectId": "P1", "content": "@ai make a page"})
	f.orch.Wait()

	frames := drain(t, sender)
	require.Len(t, frames, 2)
	assert.Contains(t, decodeData[NewMessage](t, frames[1]).Content, "**Files Created:**\n- index.html")

	file, err := f.files.Get(context.Background(), "P1", "index.html")
	require.NoError(t, err)
	assert.Equal(t, "<p>x</p>", file.Content)
}

func TestMessageWithoutTriggerSkipsAI(t *testing.T) {
	f := newRoomFixture(access.AllowAll{})
	sender := testClient("s")
	f.do(t, sender, EventJoinProject, map[string]string{"projectId": "P1"})

	f.do(t, sender, EventSendMessage, map[string]string{"projectId": "P1", "content": "email me at x@ai.dev"})
	f.orch.Wait()

	assert.Len(t, drain(t, sender), 1)
	f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestJoinRequiresAccess(t *testing.T) {
	checker := new(mocks.AccessCheckerMock)
	checker.On("HasAccess", mock.Anything, "s", "P1").Return(false, nil)
	f := newRoomFixture(checker)
	sender := testClient("s")

	f.do(t, sender, EventJoinProject, map[string]string{"projectId": "P1"})

	assert.Empty(t, f.hub.MembersOf("P1"))
	frames := drain(t, sender)
	require.Len(t, frames, 1)
	assert.Equal(t, EventError, frames[0].Event)
	payload := decodeData[ErrorPayload](t, frames[0])
	assert.Equal(t, services.CodePermissionDenied, payload.Code)
	assert.Equal(t, EventJoinProject, payload.Event)
}

func TestSendValidationErrorGoesToSenderOnly(t *testing.T) {
	f := newRoomFixture(access.AllowAll{})
	a, sender := testClient("a"), testClient("s")
	f.do(t, a, EventJoinProject, map[string]string{"projectId": "P1"})
	f.do(t, sender, EventJoinProject, map[string]string{"projectId": "P1"})

	f.do(t, sender, EventSendMessage, map[string]string{"projectId": "P1", "content": "   "})

	assert.Empty(t, drain(t, a))
	frames := drain(t, sender)
	require.Len(t, frames, 1)
	assert.Equal(t, services.CodeValidation, decodeData[ErrorPayload](t, frames[0]).Code)
}

func TestDeleteForEveryone(t *testing.T) {
	f := newRoomFixture(access.AllowAll{})
	a, sender := testClient("a"), testClient("s")
	f.do(t, a, EventJoinProject, map[string]string{"projectId": "P1"})
	f.do(t, sender, EventJoinProject, map[string]string{"projectId": "P1"})
	f.do(t, sender, EventSendMessage, map[string]string{"projectId": "P1", "content": "oops"})
	id := decodeData[NewMessage](t, drain(t, a)[0]).MessageID
	drain(t, sender)

	// Only the sender may delete for everyone.
	f.do(t, a, EventDeleteMessage, map[string]any{"projectId": "P1", "messageId": id, "deleteForEveryone": true})
	errFrames := drain(t, a)
	require.Len(t, errFrames, 1)
	assert.Equal(t, EventError, errFrames[0].Event)
	assert.Empty(t, drain(t, sender))

	f.do(t, sender, EventDeleteMessage, map[string]any{"projectId": "P1", "messageId": id, "deleteForEveryone": true})
	for _, c := range []*Client{a, sender} {
		frames := drain(t, c)
		require.Len(t, frames, 1)
		assert.Equal(t, EventMessageDeleted, frames[0].Event)
		ev := decodeData[MessageDeleted](t, frames[0])
		assert.Equal(t, id, ev.MessageID)
		assert.True(t, ev.DeleteForEveryone)
	}

	_, err := f.repo.GetMessage(context.Background(), "P1", id)
	assert.ErrorIs(t, err, repositories.ErrMessageNotFound)
}

func TestDeleteUnknownMessageReportsNotFound(t *testing.T) {
	f := newRoomFixture(access.AllowAll{})
	sender := testClient("s")
	f.do(t, sender, EventJoinProject, map[string]string{"projectId": "P1"})
	f.do(t, sender, EventSendMessage, map[string]string{"projectId": "P1", "content": "x"})
	drain(t, sender)

	f.do(t, sender, EventDeleteMessage, map[string]any{"projectId": "P1", "messageId": "missing"})

	frames := drain(t, sender)
	require.Len(t, frames, 1)
	assert.Equal(t, services.CodeNotFound, decodeData[ErrorPayload](t, frames[0]).Code)
}

func TestLeaveStopsDelivery(t *testing.T) {
	f := newRoomFixture(access.AllowAll{})
	a, sender := testClient("a"), testClient("s")
	f.do(t, a, EventJoinProject, map[string]string{"projectId": "P1"})
	f.do(t, sender, EventJoinProject, map[string]string{"projectId": "P1"})
	f.do(t, a, EventLeaveProject, map[string]string{"projectId": "P1"})

	f.do(t, sender, EventSendMessage, map[string]string{"projectId": "P1", "content": "anyone?"})

	assert.Empty(t, drain(t, a))
	assert.Len(t, drain(t, sender), 1)
}

func TestMalformedFrames(t *testing.T) {
	f := newRoomFixture(access.AllowAll{})
	c := testClient("a")

	f.b.HandleFrame(context.Background(), c, []byte("not json"))
	f.do(t, c, "dance", map[string]string{})
	f.do(t, c, EventJoinProject, map[string]string{"projectId": " "})

	frames := drain(t, c)
	require.Len(t, frames, 3)
	for _, fr := range frames {
		assert.Equal(t, EventError, fr.Event)
		assert.Equal(t, services.CodeValidation, decodeData[ErrorPayload](t, fr).Code)
	}
}

func TestInboundRateLimit(t *testing.T) {
	f := newRoomFixture(access.AllowAll{})
	c := testClient("a")

	for i := 0; i < inboundBurst+5; i++ {
		f.do(t, c, EventLeaveProject, map[string]string{"projectId": "P1"})
	}

	frames := drain(t, c)
	require.NotEmpty(t, frames)
	assert.Equal(t, CodeRateLimited, decodeData[ErrorPayload](t, frames[len(frames)-1]).Code)
}

func TestDisconnectedSenderStillGetsAIDeliveredToRoom(t *testing.T) {
	f := newRoomFixture(access.AllowAll{})
	release := make(chan struct{})
	f.gen.On("Generate", mock.Anything, mock.Anything).Return("late answer", nil).
		Run(func(mock.Arguments) { <-release })
	a, sender := testClient("a"), testClient("s")
	f.do(t, a, EventJoinProject, map[string]string{"projectId": "P1"})
	f.do(t, sender, EventJoinProject, map[string]string{"projectId": "P1"})

	f.do(t, sender, EventSendMessage, map[string]string{"projectId": "P1", "content": "@ai explain"})
	f.hub.Disconnect(sender)
	sender.close()
	close(release)
	f.orch.Wait()

	frames := drain(t, a)
	require.Len(t, frames, 2)
	assert.Equal(t, "late answer", decodeData[NewMessage](t, frames[1]).Content)
}
