package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// GRPCProberConfig holds configuration for the gRPC health prober.
type GRPCProberConfig struct {
	Address          string
	Service          string // empty string asks about the server as a whole
	ProbeTimeout     time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGRPCProberConfig returns default configuration.
func DefaultGRPCProberConfig() GRPCProberConfig {
	return GRPCProberConfig{
		Address:          "localhost:50051",
		ProbeTimeout:     5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GRPCProber probes an answering service that exposes grpc.health.v1.
type GRPCProber struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
	cfg    GRPCProberConfig
	logger *slog.Logger
}

// NewGRPCProber builds the client connection. No network I/O happens until the
// first probe, so a service that is down at startup only reads as Offline.
func NewGRPCProber(cfg GRPCProberConfig, logger *slog.Logger, opts ...grpc.DialOption) (*GRPCProber, error) {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultGRPCProberConfig()
	if cfg.Address == "" {
		cfg.Address = def.Address
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	if cfg.KeepaliveTime <= 0 {
		cfg.KeepaliveTime = def.KeepaliveTime
	}
	if cfg.KeepaliveTimeout <= 0 {
		cfg.KeepaliveTimeout = def.KeepaliveTimeout
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, opts...)

	conn, err := grpc.NewClient(cfg.Address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("create health client for %s: %w", cfg.Address, err)
	}

	logger.Info("gRPC health prober configured", "address", cfg.Address, "service", cfg.Service)

	return &GRPCProber{
		conn:   conn,
		client: healthpb.NewHealthClient(conn),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Probe calls Health/Check. Only SERVING counts as healthy.
func (p *GRPCProber) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	resp, err := p.client.Check(ctx, &healthpb.HealthCheckRequest{Service: p.cfg.Service})
	if err != nil {
		return classifyTransport(ctx, "grpc health check failed", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return &ClientError{Kind: KindStatus, Message: "service not serving: " + resp.GetStatus().String()}
	}
	return nil
}

// Close closes the gRPC connection.
func (p *GRPCProber) Close() {
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

var _ Prober = (*GRPCProber)(nil)
