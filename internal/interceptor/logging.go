package interceptor

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// LoggingUnary logs unary RPC calls with method, peer, duration and status
// code. Request and response bodies are never logged: they hold messages,
// signatures and key material.
func LoggingUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(ctx, "unary", info.FullMethod, start, err)
		return resp, err
	}
}

func logCall(ctx context.Context, kind, method string, start time.Time, err error) {
	code := status.Code(err)
	level := slog.LevelInfo
	switch code {
	case codes.OK:
	case codes.Internal, codes.Unavailable, codes.Unknown:
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	attrs := []any{
		"method", method,
		"code", code.String(),
		"duration", time.Since(start),
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		attrs = append(attrs, "peer", p.Addr.String())
	}
	slog.Log(ctx, level, kind, attrs...)
}
