package server

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/glinharesb/ecsign/internal/audit"
	"github.com/glinharesb/ecsign/internal/crypto"
	"github.com/glinharesb/ecsign/internal/keystore"
	"github.com/glinharesb/ecsign/internal/wire"
)

func (s *SignerServer) GenerateKey(ctx context.Context, req *wire.GenerateKeyRequest) (*wire.KeyResponse, error) {
	alg, err := requestAlgorithm(req.Algorithm)
	if err != nil {
		return nil, err
	}

	kp, err := s.hsm.GenerateKey(alg)
	if err != nil {
		s.record(ctx, audit.Event{Operation: "GenerateKey", Status: "ERROR", Algorithm: alg.String()})
		return nil, keyError(err)
	}

	entry, err := s.provision(kp, req.Labels)
	s.record(ctx, audit.Event{Operation: "GenerateKey", KeyID: entry.ID, Status: outcome(err), Algorithm: alg.String()})
	if err != nil {
		return nil, err
	}
	return &wire.KeyResponse{Metadata: entryToWire(entry)}, nil
}

// ImportKey provisions an existing PKCS#8 private key, so a key generated
// once elsewhere can be used here without regenerating it.
func (s *SignerServer) ImportKey(ctx context.Context, req *wire.ImportKeyRequest) (*wire.KeyResponse, error) {
	alg, err := requestAlgorithm(req.Algorithm)
	if err != nil {
		return nil, err
	}

	kp, err := crypto.ImportPrivateKey(req.PrivateKey, alg)
	clear(req.PrivateKey)
	if err != nil {
		s.record(ctx, audit.Event{Operation: "ImportKey", Status: "ERROR", Algorithm: alg.String()})
		return nil, keyError(err)
	}

	entry, err := s.provision(kp, req.Labels)
	s.record(ctx, audit.Event{Operation: "ImportKey", KeyID: entry.ID, Status: outcome(err), Algorithm: alg.String()})
	if err != nil {
		return nil, err
	}
	return &wire.KeyResponse{Metadata: entryToWire(entry)}, nil
}

func (s *SignerServer) provision(kp *crypto.KeyPair, labels map[string]string) (*keystore.KeyEntry, error) {
	entry := &keystore.KeyEntry{
		ID:        uuid.NewString(),
		Algorithm: kp.Algorithm(),
		Status:    keystore.StatusActive,
		KeyPair:   kp,
		CreatedAt: s.now(),
		Labels:    labels,
	}
	if err := s.store.Put(entry); err != nil {
		return entry, status.Errorf(codes.Internal, "store key: %v", err)
	}
	return entry, nil
}

func (s *SignerServer) GetPublicKey(ctx context.Context, req *wire.KeyRequest) (*wire.GetPublicKeyResponse, error) {
	format, err := publicKeyFormat(req.Format)
	if err != nil {
		return nil, err
	}

	entry, err := s.store.Get(req.KeyID)
	if err != nil {
		return nil, keyError(err)
	}

	pub, err := entry.KeyPair.Public().Bytes(format)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode public key: %v", err)
	}

	return &wire.GetPublicKeyResponse{
		KeyID:     entry.ID,
		PublicKey: pub,
		Algorithm: entry.Algorithm.String(),
		Format:    format.String(),
	}, nil
}

func (s *SignerServer) ListKeys(ctx context.Context, req *wire.ListKeysRequest) (*wire.ListKeysResponse, error) {
	filter, err := statusFromWire(req.StatusFilter)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.List(filter)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list keys: %v", err)
	}

	keys := make([]*wire.KeyMetadata, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, entryToWire(e))
	}
	return &wire.ListKeysResponse{Keys: keys}, nil
}

// RotateKey retires an active key and provisions a replacement with the
// same algorithm and labels. The old key keeps verifying.
func (s *SignerServer) RotateKey(ctx context.Context, req *wire.KeyRequest) (*wire.RotateKeyResponse, error) {
	old, err := s.store.Get(req.KeyID)
	if err != nil {
		return nil, keyError(err)
	}
	if old.Status != keystore.StatusActive {
		return nil, status.Error(codes.FailedPrecondition, "can only rotate active keys")
	}

	kp, err := s.hsm.GenerateKey(old.Algorithm)
	if err != nil {
		return nil, keyError(err)
	}

	newEntry, err := s.provision(kp, old.Labels)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateStatus(old.ID, keystore.StatusRotated); err != nil {
		return nil, status.Errorf(codes.Internal, "update old key: %v", err)
	}
	old, err = s.store.Get(old.ID)
	if err != nil {
		return nil, keyError(err)
	}

	s.record(ctx, audit.Event{
		Operation: "RotateKey",
		KeyID:     old.ID,
		Status:    "OK",
		Algorithm: old.Algorithm.String(),
		Metadata:  map[string]string{"new_key_id": newEntry.ID},
	})
	return &wire.RotateKeyResponse{OldKey: entryToWire(old), NewKey: entryToWire(newEntry)}, nil
}

func (s *SignerServer) DeactivateKey(ctx context.Context, req *wire.KeyRequest) (*wire.KeyResponse, error) {
	if err := s.store.UpdateStatus(req.KeyID, keystore.StatusDeactivated); err != nil {
		return nil, keyError(err)
	}

	entry, err := s.store.Get(req.KeyID)
	if err != nil {
		return nil, keyError(err)
	}
	s.record(ctx, audit.Event{Operation: "DeactivateKey", KeyID: entry.ID, Status: "OK", Algorithm: entry.Algorithm.String()})
	return &wire.KeyResponse{Metadata: entryToWire(entry)}, nil
}

// helpers

func entryToWire(e *keystore.KeyEntry) *wire.KeyMetadata {
	return &wire.KeyMetadata{
		KeyID:       e.ID,
		Algorithm:   e.Algorithm.String(),
		Status:      e.Status.String(),
		Fingerprint: e.KeyPair.Public().Fingerprint(),
		CreatedAt:   e.CreatedAt,
		RotatedAt:   e.RotatedAt,
		Labels:      e.Labels,
	}
}

func statusFromWire(s string) (keystore.KeyStatus, error) {
	switch s {
	case "":
		return 0, nil
	case keystore.StatusActive.String():
		return keystore.StatusActive, nil
	case keystore.StatusRotated.String():
		return keystore.StatusRotated, nil
	case keystore.StatusDeactivated.String():
		return keystore.StatusDeactivated, nil
	default:
		return 0, status.Errorf(codes.InvalidArgument, "unknown status filter %q", s)
	}
}

func publicKeyFormat(s string) (crypto.PublicKeyFormat, error) {
	switch s {
	case "", crypto.FormatSPKI.String():
		return crypto.FormatSPKI, nil
	case crypto.FormatUncompressed.String():
		return crypto.FormatUncompressed, nil
	default:
		return 0, status.Errorf(codes.InvalidArgument, "unknown public key format %q", s)
	}
}
