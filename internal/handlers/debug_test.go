package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"project-hub/internal/mocks"
	"project-hub/internal/telemetry"
)

type fixedStats struct{ rooms, clients int }

func (s fixedStats) Rooms() int   { return s.rooms }
func (s fixedStats) Clients() int { return s.clients }

func TestDebugAuditRoute(t *testing.T) {
	pub := new(mocks.PublisherMock)
	pub.On("Publish", mock.Anything, "audit.project_hub", mock.MatchedBy(func(e telemetry.AuditEnvelope) bool {
		return e.UserID != nil && *e.UserID == "u1" && e.Payload.Text == "audit test"
	})).Return(nil).Once()
	emitter := telemetry.NewAuditEmitter(pub, "audit.project_hub", "project-hub", "test")

	r := newRouter(ada)
	RegisterDebugRoutes(r, emitter, fixedStats{rooms: 2, clients: 3}, true)

	rec := doJSON(t, r, http.MethodGet, "/debug/audit-test", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	pub.AssertExpectations(t)

	rec = doJSON(t, r, http.MethodGet, "/debug/rooms", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"rooms":2,"clients":3}`, rec.Body.String())
}

func TestDebugRoutesDisabled(t *testing.T) {
	r := newRouter(ada)
	RegisterDebugRoutes(r, nil, fixedStats{}, false)
	assert.Equal(t, http.StatusNotFound, doJSON(t, r, http.MethodGet, "/debug/audit-test", nil).Code)

	r = newRouter(ada)
	RegisterDebugRoutes(r, nil, fixedStats{}, true)
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(t, r, http.MethodGet, "/debug/audit-test", nil).Code)
}
