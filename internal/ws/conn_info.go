package ws

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConnInfo identifies a websocket connection in lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// newConnInfo collects the connection metadata of an upgrade request.
// Browsers cannot set headers on a websocket handshake, so the device and
// request ids may also arrive as query parameters.
func newConnInfo(r *http.Request, userID, traceID string) ConnInfo {
	requestID := headerOrQuery(r, "X-Request-Id", "requestId")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    headerOrQuery(r, "X-Device-Id", "deviceId"),
		IP:          clientIP(r),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
}

func headerOrQuery(r *http.Request, header, param string) string {
	if v := r.Header.Get(header); v != "" {
		return v
	}
	return r.URL.Query().Get(param)
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
