package observability

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_hub_http_requests_total",
			Help: "Total number of HTTP requests processed.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "project_hub_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	grpcServerHandledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_server_handled_total",
			Help: "Total number of gRPC requests handled by the server.",
		},
		[]string{"grpc_service", "grpc_method", "grpc_code"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "project_hub_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
		[]string{"kind"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_hub_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"kind", "event"},
	)
	wsRoomFanout = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "project_hub_ws_room_fanout",
			Help:    "Connections a room event was queued for.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"event"},
	)
	wsEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "project_hub_ws_evictions_total",
			Help: "Connections dropped because their send buffer was full.",
		},
	)
	chatMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_hub_chat_messages_total",
			Help: "Chat messages appended, by sender kind.",
		},
		[]string{"sender"},
	)
	aiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_hub_ai_requests_total",
			Help: "AI requests by terminal state.",
		},
		[]string{"state"},
	)
	aiRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "project_hub_ai_request_duration_seconds",
			Help:    "End-to-end AI request latency in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
	filesMaterializedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "project_hub_files_materialized_total",
			Help: "Files written from AI responses.",
		},
	)
	codeExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_hub_code_executions_total",
			Help: "Code executions by language and result status.",
		},
		[]string{"language", "status"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "project_hub_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		grpcServerHandledTotal,
		wsActiveConnections,
		wsEventsTotal,
		wsRoomFanout,
		wsEvictionsTotal,
		chatMessagesTotal,
		aiRequestsTotal,
		aiRequestDuration,
		filesMaterializedTotal,
		codeExecutionsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func GRPCServerMetricsUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		statusInfo := status.Convert(err)
		service, method := splitFullMethod(info.FullMethod)
		grpcServerHandledTotal.WithLabelValues(service, method, statusInfo.Code().String()).Inc()
		return resp, err
	}
}

func splitFullMethod(fullMethod string) (string, string) {
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 3 {
		return "unknown", "unknown"
	}
	return parts[1], parts[2]
}

func IncWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Inc()
}

func DecWSActive(kind string) {
	wsActiveConnections.WithLabelValues(kind).Dec()
}

func IncWSEvent(kind, event string) {
	wsEventsTotal.WithLabelValues(kind, event).Inc()
}

// ObserveRoomFanout records how many connections one room event reached.
func ObserveRoomFanout(event string, delivered int) {
	wsRoomFanout.WithLabelValues(event).Observe(float64(delivered))
}

func IncWSEviction() {
	wsEvictionsTotal.Inc()
}

func IncChatMessage(sender string) {
	chatMessagesTotal.WithLabelValues(sender).Inc()
}

// ObserveAIRequest records one AI request that ended in state.
func ObserveAIRequest(state string, elapsed time.Duration) {
	aiRequestsTotal.WithLabelValues(state).Inc()
	aiRequestDuration.Observe(elapsed.Seconds())
}

func AddFilesMaterialized(n int) {
	filesMaterializedTotal.Add(float64(n))
}

func IncCodeExecution(language, status string) {
	codeExecutionsTotal.WithLabelValues(language, status).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
