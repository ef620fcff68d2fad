package server

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/glinharesb/ecsign/internal/audit"
	"github.com/glinharesb/ecsign/internal/crypto"
	"github.com/glinharesb/ecsign/internal/hsm"
	"github.com/glinharesb/ecsign/internal/keystore"
	"github.com/glinharesb/ecsign/internal/wire"
)

// SignerServer implements wire.SignerServiceServer on top of a key store,
// a signing provider and the audit trail.
type SignerServer struct {
	store keystore.Store
	hsm   hsm.Provider
	audit *audit.Logger
	now   func() time.Time
}

var _ wire.SignerServiceServer = (*SignerServer)(nil)

func NewSignerServer(store keystore.Store, h hsm.Provider, a *audit.Logger) *SignerServer {
	return &SignerServer{
		store: store,
		hsm:   h,
		audit: a,
		now:   time.Now,
	}
}

func (s *SignerServer) record(ctx context.Context, ev audit.Event) {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		ev.Peer = p.Addr.String()
	}
	s.audit.Log(ev)
}

// requestAlgorithm resolves the algorithm named in a request. An empty name
// selects the only supported algorithm.
func requestAlgorithm(name string) (crypto.Algorithm, error) {
	if name == "" {
		return crypto.ECDSAP256SHA256, nil
	}
	alg, err := crypto.ParseAlgorithm(name)
	if err != nil {
		return 0, status.Errorf(codes.InvalidArgument, "%v", err)
	}
	return alg, nil
}

func outcome(err error) string {
	if err != nil {
		return "ERROR"
	}
	return "OK"
}

// keyError maps store and crypto failures to gRPC status codes, keeping the
// failure kind visible to the caller.
func keyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, keystore.ErrKeyNotFound):
		return status.Error(codes.NotFound, "key not found")
	case errors.Is(err, keystore.ErrKeyInactive):
		return status.Error(codes.FailedPrecondition, "key is not active")
	case errors.Is(err, crypto.ErrEntropyUnavailable):
		return status.Errorf(codes.Unavailable, "%v", err)
	case errors.Is(err, crypto.ErrMalformedInput),
		errors.Is(err, crypto.ErrMalformedKeyMaterial),
		errors.Is(err, crypto.ErrUnsupportedAlgorithm):
		return status.Errorf(codes.InvalidArgument, "%v", err)
	default:
		return status.Errorf(codes.Internal, "%v", err)
	}
}
