package httpapi

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"auditdesk.org/internal/obs"
)

const (
	serviceName = "auditdesk-api"

	// HealthService is the service name reported by the health server in
	// addition to the overall "" entry.
	HealthService = "auditdesk.v1.Admin"
)

type readinessChecker interface {
	Check(ctx context.Context) error
}

// GRPCServer serves grpc.health.v1.Health backed by the store readiness
// probe, plus server reflection.
type GRPCServer struct {
	srv       *grpc.Server
	health    *health.Server
	readiness readinessChecker
	interval  time.Duration
}

// NewGRPCServer builds the server. Status starts as NOT_SERVING until the
// first Refresh.
func NewGRPCServer(r readinessChecker, interval time.Duration, opts ...grpc.ServerOption) *GRPCServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	s := &GRPCServer{
		srv:       grpc.NewServer(opts...),
		health:    health.NewServer(),
		readiness: r,
		interval:  interval,
	}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s.srv, s.health)
	reflection.Register(s.srv)
	return s
}

// Server exposes the underlying grpc.Server.
func (s *GRPCServer) Server() *grpc.Server { return s.srv }

// Refresh runs one readiness check and publishes the result.
func (s *GRPCServer) Refresh(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()
	if err := s.readiness.Check(ctx); err != nil {
		obs.Logger().WithError(err).Warn("readiness check failed")
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		obs.SetReady(false)
		return false
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	obs.SetReady(true)
	return true
}

// Run refreshes readiness every interval until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) {
	s.Refresh(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

func (s *GRPCServer) Serve(lis net.Listener) error { return s.srv.Serve(lis) }

// Stop marks every service NOT_SERVING and drains open RPCs.
func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}

func (s *GRPCServer) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(HealthService, st)
}
