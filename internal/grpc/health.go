// Package grpc exposes the service health over gRPC for orchestrators that
// probe with grpc_health_probe.
package grpc

import (
	"context"
	"errors"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"project-hub/internal/logger"
	"project-hub/internal/observability"
)

// ServiceName is the health service name reported next to the overall status.
const ServiceName = "project-hub"

type HealthServer struct {
	server *gogrpc.Server
	health *health.Server
}

func NewHealthServer() *HealthServer {
	server := gogrpc.NewServer(
		gogrpc.StatsHandler(otelgrpc.NewServerHandler()),
		gogrpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return &HealthServer{server: server, health: hs}
}

// Serve blocks until the listener fails or Stop is called.
func (s *HealthServer) Serve(lis net.Listener) error {
	logger.Infof("[gRPC] health server listening on %s", lis.Addr())
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, gogrpc.ErrServerStopped) {
		return err
	}
	return nil
}

// SetServing flips the reported status, e.g. to NOT_SERVING while draining.
func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !serving {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Stop marks every service NOT_SERVING and drains in-flight calls until ctx
// expires.
func (s *HealthServer) Stop(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
	}
}
