// Package grpc serves the standard gRPC health service so orchestrators can
// probe the booking backend without an HTTP client.
package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"carbooking-backend/internal/api/grpc/interceptor"
	"carbooking-backend/internal/logger"
	"carbooking-backend/internal/security"
)

// ServiceName is the health entry reported alongside the overall ("") status.
const ServiceName = "carbooking.Booking"

const defaultCheckInterval = 10 * time.Second

// HealthReporter mirrors a dependency check into the gRPC health service.
type HealthReporter struct {
	server   *health.Server
	ping     func(ctx context.Context) error
	interval time.Duration
}

// NewServer builds a gRPC server exposing health and reflection behind the auth interceptor.
func NewServer(tm security.TokenManager, ping func(ctx context.Context) error, interval time.Duration) (*grpc.Server, *HealthReporter) {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	s := grpc.NewServer(
		grpc.UnaryInterceptor(interceptor.NewAuthInterceptor(tm).Unary()),
	)

	reporter := &HealthReporter{
		server:   health.NewServer(),
		ping:     ping,
		interval: interval,
	}
	healthpb.RegisterHealthServer(s, reporter.server)

	// Register reflection service for grpcurl
	reflection.Register(s)
	return s, reporter
}

// Check runs the dependency check once and publishes the result.
func (h *HealthReporter) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if h.ping != nil {
		checkCtx, cancel := context.WithTimeout(ctx, h.interval/2)
		defer cancel()
		if err := h.ping(checkCtx); err != nil {
			logger.Warn("Health check failed", "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.server.SetServingStatus("", st)
	h.server.SetServingStatus(ServiceName, st)
	return st
}

// Run checks on every interval until ctx is done, then marks the server as shutting down.
func (h *HealthReporter) Run(ctx context.Context) {
	h.Check(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}
