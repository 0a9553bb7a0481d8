package auth

import (
	"context"

	"github.com/xela07ax/taskmanager-auth/internal/policy"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryGateInterceptor - тот же Gate для gRPC: токен берется из метаданных
// "authorization" (в gRPC ключи в нижнем регистре), политика применяется к FullMethod.
func UnaryGateInterceptor(g *Gate, authz RouteAuthorizer, logger *zap.Logger) grpc.UnaryServerInterceptor {
	logger = logger.Named("grpc-auth")

	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}

		ident, outcome := g.Resolve(ctx, header)
		if outcome == OutcomeAuthenticated {
			ctx = WithIdentity(ctx, ident)
		}
		logger.Debug("gate", zap.String("outcome", string(outcome)), zap.String("method", info.FullMethod))

		switch authz.Decide(IdentityFrom(ctx), info.FullMethod) {
		case policy.Allow:
			return handler(ctx, req)
		case policy.Unauthenticated:
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		default:
			return nil, status.Error(codes.PermissionDenied, "access denied")
		}
	}
}
