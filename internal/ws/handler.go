package ws

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"project-hub/internal/logger"
	"project-hub/internal/middleware"
	"project-hub/internal/observability"
)

// Handler upgrades authenticated requests to room connections.
type Handler struct {
	hub         *Hub
	broadcaster *Broadcaster
	validator   middleware.TokenValidator
	upgrader    websocket.Upgrader
}

// NewHandler builds the /ws handler. An empty origin list accepts any origin.
func NewHandler(hub *Hub, broadcaster *Broadcaster, validator middleware.TokenValidator, allowedOrigins []string) *Handler {
	return &Handler{
		hub:         hub,
		broadcaster: broadcaster,
		validator:   validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// Handle authenticates the request, upgrades it and serves the connection
// until it closes.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("project-hub/ws").Start(c.Request.Context(), "ws.handshake")
	c.Request = c.Request.WithContext(ctx)

	token := bearer(c)
	if token == "" {
		span.End()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	principal, err := h.validator.Validate(token)
	if err != nil {
		span.End()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.End()
		logger.Warn().Err(err).Msg("[Room] upgrade failed")
		return
	}
	info := newConnInfo(c.Request, principal.ID, span.SpanContext().TraceID().String())
	span.End()

	client := newClient(conn, principal, info)
	h.hub.Register(client)
	observability.IncWSActive("project")
	publishLifecycle(ctx, info, "ws_connect", "", "")
	logger.Info().Str("conn_id", info.ConnID).Str("user_id", info.UserID).Msg("[Room] connected")

	// Actions outlive the upgrade request.
	connCtx := context.WithoutCancel(ctx)
	go client.writePump()
	go h.serve(connCtx, client)
}

func (h *Handler) serve(ctx context.Context, client *Client) {
	err := client.readPump(func(raw []byte) {
		h.broadcaster.HandleFrame(ctx, client, raw)
	})

	reason := ""
	if err != nil {
		reason = err.Error()
		if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			publishLifecycle(ctx, client.info, "ws_error", "", reason)
		}
	}
	left := h.hub.Disconnect(client)
	client.close()
	observability.DecWSActive("project")
	publishLifecycle(ctx, client.info, "ws_disconnect", strings.Join(left, ","), reason)
	logger.Info().Str("conn_id", client.ConnID()).Strs("rooms", left).Msg("[Room] disconnected")
}

func bearer(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return strings.TrimSpace(c.Query("token"))
}
