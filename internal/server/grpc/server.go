// Package grpc runs the gRPC health endpoint (grpc.health.v1) used by
// orchestrators to probe the server. Readiness follows the database and the
// object store.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	defaultCheckInterval = 5 * time.Second
	checkTimeout         = 500 * time.Millisecond
)

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck interface {
	IsReady(ctx context.Context) error
}

// CheckFunc adapts a function to ReadinessCheck.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) IsReady(ctx context.Context) error { return f(ctx) }

type GRPCServer struct {
	address  string
	logger   logging.Logger
	checks   []ReadinessCheck
	interval time.Duration
	health   *grpchealth.Server
}

func NewGRPCServer(a string, l logging.Logger, checks ...ReadinessCheck) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		checks:   checks,
		interval: defaultCheckInterval,
		health:   grpchealth.NewServer(),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	// creates gRPC-server
	srv := grpc.NewServer()

	// start pessimistic
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, s.health)

	go s.watch(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gPRC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

// watch runs the readiness checks once immediately and then on every tick.
func (s *GRPCServer) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.health.SetServingStatus("", s.status(ctx))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *GRPCServer) status(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	for _, c := range s.checks {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.IsReady(cctx)
		cancel()

		if err != nil {
			s.logger.Warn(ctx, "readiness check failed", "error", err)
			return healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	return healthpb.HealthCheckResponse_SERVING
}
