package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.Error(t, srv.Run(ctx))
}

func TestHealth_FollowsChecks(t *testing.T) {
	t.Parallel()

	addr := freeAddr(t)
	var failing = make(chan error, 1)
	failing <- nil

	check := CheckFunc(func(context.Context) error {
		err := <-failing
		failing <- err
		return err
	})

	srv := NewGRPCServer(addr, logging.Nop(), check)
	srv.interval = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.Run(ctx) }()

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	statusIs := func(want healthpb.HealthCheckResponse_ServingStatus) func() bool {
		return func() bool {
			cctx, ccancel := context.WithTimeout(ctx, 200*time.Millisecond)
			defer ccancel()
			resp, err := client.Check(cctx, &healthpb.HealthCheckRequest{})
			return err == nil && resp.GetStatus() == want
		}
	}

	require.Eventually(t, statusIs(healthpb.HealthCheckResponse_SERVING), 2*time.Second, 20*time.Millisecond)

	<-failing
	failing <- errors.New("db down")

	require.Eventually(t, statusIs(healthpb.HealthCheckResponse_NOT_SERVING), 2*time.Second, 20*time.Millisecond)
}

func TestCheckFunc(t *testing.T) {
	t.Parallel()

	want := errors.New("x")
	assert.Equal(t, want, CheckFunc(func(context.Context) error { return want }).IsReady(context.Background()))
}
