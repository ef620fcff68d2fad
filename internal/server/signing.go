package server

import (
	"context"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/glinharesb/ecsign/internal/audit"
	"github.com/glinharesb/ecsign/internal/crypto"
	"github.com/glinharesb/ecsign/internal/keystore"
	"github.com/glinharesb/ecsign/internal/wire"
)

func (s *SignerServer) signingKey(id string) (*keystore.KeyEntry, error) {
	entry, err := s.store.Get(id)
	if err != nil {
		return nil, keyError(err)
	}
	if err := entry.CanSign(); err != nil {
		return nil, keyError(err)
	}
	return entry, nil
}

func (s *SignerServer) Sign(ctx context.Context, req *wire.SignRequest) (*wire.SignResponse, error) {
	entry, err := s.signingKey(req.KeyID)
	if err != nil {
		return nil, err
	}

	sig, err := s.hsm.Sign(entry.KeyPair, req.Data)
	s.record(ctx, audit.Event{Operation: "Sign", KeyID: req.KeyID, Status: outcome(err), Algorithm: entry.Algorithm.String()})
	if err != nil {
		return nil, keyError(err)
	}

	return &wire.SignResponse{KeyID: req.KeyID, Signature: sig.DER, Algorithm: sig.Algorithm.String()}, nil
}

// BatchSign signs every item with the same key. Per-item failures are
// reported in the matching result; the call itself fails only when the key
// cannot sign at all.
func (s *SignerServer) BatchSign(ctx context.Context, req *wire.BatchSignRequest) (*wire.BatchSignResponse, error) {
	entry, err := s.signingKey(req.KeyID)
	if err != nil {
		return nil, err
	}

	results := make([]*wire.SignResult, len(req.Data))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())

	for i, data := range req.Data {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = &wire.SignResult{Error: err.Error()}
				return nil
			}
			sig, err := s.hsm.Sign(entry.KeyPair, data)
			if err != nil {
				results[i] = &wire.SignResult{Error: err.Error()}
				return nil
			}
			results[i] = &wire.SignResult{Signature: sig.DER}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	ev := audit.Event{Operation: "BatchSign", KeyID: req.KeyID, Status: "OK", Algorithm: entry.Algorithm.String()}
	if failed > 0 {
		ev.Status = "PARTIAL"
		ev.Metadata = map[string]string{"failed": strconv.Itoa(failed), "total": strconv.Itoa(len(results))}
	}
	s.record(ctx, ev)

	return &wire.BatchSignResponse{Results: results, Algorithm: entry.Algorithm.String()}, nil
}

// Verify checks a signature against a stored key (any status) or against a
// public key supplied by the caller. A stored key wins when both are given.
// A signature that does not verify is a normal response, not an error.
func (s *SignerServer) Verify(ctx context.Context, req *wire.VerifyRequest) (*wire.VerifyResponse, error) {
	pub, keyID, err := s.verificationKey(req)
	if err != nil {
		return nil, err
	}

	alg := pub.Algorithm()
	if req.Algorithm != "" {
		if alg, err = requestAlgorithm(req.Algorithm); err != nil {
			return nil, err
		}
	}

	verdict, err := s.hsm.Verify(pub, req.Data, crypto.Signature{Algorithm: alg, DER: req.Signature})
	ev := audit.Event{Operation: "Verify", KeyID: keyID, Status: outcome(err), Algorithm: alg.String()}
	if err == nil {
		ev.Verdict = verdict.String()
	}
	s.record(ctx, ev)
	if err != nil {
		return nil, keyError(err)
	}

	return &wire.VerifyResponse{Valid: verdict == crypto.Valid, Algorithm: alg.String()}, nil
}

func (s *SignerServer) verificationKey(req *wire.VerifyRequest) (crypto.PublicKey, string, error) {
	switch {
	case req.KeyID != "":
		entry, err := s.store.Get(req.KeyID)
		if err != nil {
			return crypto.PublicKey{}, "", keyError(err)
		}
		return entry.KeyPair.Public(), entry.ID, nil
	case len(req.PublicKey) > 0:
		alg, err := requestAlgorithm(req.Algorithm)
		if err != nil {
			return crypto.PublicKey{}, "", err
		}
		pub, err := crypto.ParsePublicKey(req.PublicKey, alg)
		if err != nil {
			return crypto.PublicKey{}, "", keyError(err)
		}
		return pub, "", nil
	default:
		return crypto.PublicKey{}, "", status.Error(codes.InvalidArgument, "key_id or public_key is required")
	}
}
