package httpapi

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

func startBufGRPC(t *testing.T, srv *GRPCServer) (*grpc.ClientConn, func()) {
	t.Helper()

	listener := bufconn.Listen(bufSize)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			t.Logf("grpc serve error: %v", err)
		}
	}()

	dialer := func(ctx context.Context, _ string) (net.Conn, error) {
		return listener.DialContext(ctx)
	}
	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufnet: %v", err)
	}

	cleanup := func() {
		_ = conn.Close()
		srv.Stop()
		_ = listener.Close()
	}
	return conn, cleanup
}

func checkHealth(t *testing.T, conn *grpc.ClientConn, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q) error: %v", service, err)
	}
	return resp.GetStatus()
}

func TestGRPCServerReportsServing(t *testing.T) {
	srv := NewGRPCServer(ReadyProbe(func(context.Context) error { return nil }), time.Second)
	conn, cleanup := startBufGRPC(t, srv)
	defer cleanup()

	if got := checkHealth(t, conn, HealthService); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING before first refresh, got %v", got)
	}
	if !srv.Refresh(context.Background()) {
		t.Fatal("expected refresh to succeed")
	}
	for _, name := range []string{"", HealthService} {
		if got := checkHealth(t, conn, name); got != healthpb.HealthCheckResponse_SERVING {
			t.Fatalf("service %q: expected SERVING, got %v", name, got)
		}
	}
}

func TestGRPCServerReportsNotServingOnProbeFailure(t *testing.T) {
	healthy := true
	probe := ReadyProbe(func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("store down")
	})
	srv := NewGRPCServer(probe, time.Second)
	conn, cleanup := startBufGRPC(t, srv)
	defer cleanup()

	srv.Refresh(context.Background())
	healthy = false
	if srv.Refresh(context.Background()) {
		t.Fatal("expected refresh to report failure")
	}
	if got := checkHealth(t, conn, HealthService); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %v", got)
	}
}
