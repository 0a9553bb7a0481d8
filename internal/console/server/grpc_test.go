package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xela07ax/taskmanager-auth/internal/domain"
	"github.com/xela07ax/taskmanager-auth/internal/infra/auth"
	"github.com/xela07ax/taskmanager-auth/internal/policy"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

type noIdentities struct{}

func (noIdentities) LoadIdentity(context.Context, string) (*domain.Identity, error) {
	return nil, domain.ErrUserNotFound
}

func TestGRPCServer_HealthIsPublic(t *testing.T) {
	logger := zaptest.NewLogger(t)
	codec, err := auth.NewTokenCodec([]byte(testSecret), time.Hour)
	require.NoError(t, err)
	gate := auth.NewGate(codec, noIdentities{}, logger)

	srv, _ := NewGRPCServer(gate, policy.NewRouteEnforcer(policy.DefaultRules()...), logger)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestGRPCServer_ProtectedWithoutPublicRule(t *testing.T) {
	logger := zaptest.NewLogger(t)
	codec, err := auth.NewTokenCodec([]byte(testSecret), time.Hour)
	require.NoError(t, err)
	gate := auth.NewGate(codec, noIdentities{}, logger)

	// Без правил даже health требует личность
	srv, _ := NewGRPCServer(gate, policy.NewRouteEnforcer(), logger)
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}
