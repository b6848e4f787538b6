package connectivity

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/inspectsync/internal/client/client"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HTTPProber pings the server's HTTP API.
type HTTPProber struct {
	client client.Client
}

func NewHTTPProber(c client.Client) *HTTPProber {
	return &HTTPProber{client: c}
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// GRPCHealthProber asks the server's gRPC health service whether the API is
// serving.
type GRPCHealthProber struct {
	conn    *grpc.ClientConn
	health  healthpb.HealthClient
	service string
}

// NewGRPCHealthProber connects lazily; no traffic is sent until Probe.
func NewGRPCHealthProber(addr, service string) (*GRPCHealthProber, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &GRPCHealthProber{conn: conn, health: healthpb.NewHealthClient(conn), service: service}, nil
}

func (p *GRPCHealthProber) Probe(ctx context.Context) error {
	resp, err := p.health.Check(ctx, &healthpb.HealthCheckRequest{Service: p.service})
	if err != nil {
		return fmt.Errorf("%w: %w", client.ErrUnavailable, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: health status %s", client.ErrUnavailable, resp.GetStatus())
	}
	return nil
}

func (p *GRPCHealthProber) Close() error {
	return p.conn.Close()
}
