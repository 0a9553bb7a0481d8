package server

import (
	"github.com/xela07ax/taskmanager-auth/internal/infra/auth"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName - имя сервиса в grpc.health.v1
const ServiceName = "taskmanager.auth"

// NewGRPCServer собирает gRPC-сервер: каждый unary-вызов проходит тот же Gate,
// что и HTTP. Health-методы публичны по правилам политики.
func NewGRPCServer(gate *auth.Gate, authz auth.RouteAuthorizer, logger *zap.Logger) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(grpc.UnaryInterceptor(auth.UnaryGateInterceptor(gate, authz, logger)))

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv, hs
}
