package backend

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startHealthServer(t *testing.T) (*health.Server, *bufconn.Listener) {
	t.Helper()
	lis := bufconn.Listen(1 << 16)
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return hs, lis
}

func newBufProber(t *testing.T, lis *bufconn.Listener, service string) *GRPCProber {
	t.Helper()
	p, err := NewGRPCProber(GRPCProberConfig{
		Address:      "passthrough:///bufnet",
		Service:      service,
		ProbeTimeout: time.Second,
	}, nil, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("NewGRPCProber failed: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

func TestGRPCProberServing(t *testing.T) {
	t.Parallel()

	hs, lis := startHealthServer(t)
	hs.SetServingStatus("answers", healthpb.HealthCheckResponse_SERVING)
	p := newBufProber(t, lis, "answers")

	if err := p.Probe(context.Background()); err != nil {
		t.Fatalf("expected healthy, got %v", err)
	}
}

func TestGRPCProberNotServing(t *testing.T) {
	t.Parallel()

	hs, lis := startHealthServer(t)
	hs.SetServingStatus("answers", healthpb.HealthCheckResponse_NOT_SERVING)
	p := newBufProber(t, lis, "answers")

	if err := p.Probe(context.Background()); err == nil {
		t.Fatal("expected NOT_SERVING to be unhealthy")
	}
}

func TestGRPCProberUnknownService(t *testing.T) {
	t.Parallel()

	_, lis := startHealthServer(t)
	p := newBufProber(t, lis, "missing")

	if err := p.Probe(context.Background()); err == nil {
		t.Fatal("expected unknown service to be unhealthy")
	}
}
