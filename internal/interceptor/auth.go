package interceptor

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	authHeader   = "authorization"
	bearerScheme = "Bearer "
)

// AuthUnary admits calls that carry "authorization: Bearer <token>". An
// empty token admits nobody: a signing service must not run open because a
// variable was left unset.
func AuthUnary(token string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if reason := checkBearer(ctx, token); reason != "" {
			slog.WarnContext(ctx, "call rejected", "method", info.FullMethod, "reason", reason)
			return nil, status.Error(codes.Unauthenticated, reason)
		}
		return handler(ctx, req)
	}
}

// checkBearer returns why the call is refused, or "" to admit it.
func checkBearer(ctx context.Context, expected string) string {
	if expected == "" {
		return "server has no auth token configured"
	}

	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get(authHeader)
	if len(values) == 0 {
		return "missing authorization header"
	}

	got, ok := strings.CutPrefix(values[0], bearerScheme)
	if !ok {
		return "authorization is not a bearer token"
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
		return "invalid token"
	}
	return ""
}
