package interceptor

import (
	"context"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// callBudget is a token bucket shared by every SignerService call. It holds
// at most one second's worth of calls.
type callBudget struct {
	mu     sync.Mutex
	tokens float64
	perSec float64
	last   time.Time
	now    func() time.Time
}

func newCallBudget(rps int) *callBudget {
	return &callBudget{
		tokens: float64(rps),
		perSec: float64(rps),
		last:   time.Now(),
		now:    time.Now,
	}
}

// take spends one token. When none is left it returns how long until the
// next one accrues.
func (b *callBudget) take() (ok bool, wait time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.tokens = min(b.tokens+now.Sub(b.last).Seconds()*b.perSec, b.perSec)
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	return false, time.Duration((1 - b.tokens) / b.perSec * float64(time.Second))
}

// RateLimitUnary caps the service at rps calls per second. A non-positive
// rps disables limiting. Rejected calls get ResourceExhausted with a retry
// hint.
func RateLimitUnary(rps int) grpc.UnaryServerInterceptor {
	if rps <= 0 {
		return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			return handler(ctx, req)
		}
	}
	budget := newCallBudget(rps)
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if ok, wait := budget.take(); !ok {
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded, retry in %s", wait.Round(time.Millisecond))
		}
		return handler(ctx, req)
	}
}
