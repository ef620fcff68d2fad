package interceptor

import "google.golang.org/grpc"

// ServerOptions chains recovery, logging, rate limiting and auth, in that
// order. Every SignerService RPC is unary.
func ServerOptions(authToken string, rps int) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			RecoveryUnary(),
			LoggingUnary(),
			RateLimitUnary(rps),
			AuthUnary(authToken),
		),
	}
}
