package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Signature is an ASN.1 DER encoded ECDSA signature together with the
// algorithm it was produced under.
type Signature struct {
	Algorithm Algorithm
	DER       []byte
}

// Hex renders the raw signature bytes as lowercase hex. It is meant for
// display; verification always consumes DER.
func (s Signature) Hex() string {
	return hex.EncodeToString(s.DER)
}

// ParseSignatureHex decodes a signature printed by Hex.
func ParseSignatureHex(text string, alg Algorithm) (Signature, error) {
	der, err := hex.DecodeString(text)
	if err != nil {
		return Signature{}, fmt.Errorf("parse signature hex: %w: %w", ErrMalformedInput, err)
	}
	return Signature{Algorithm: alg, DER: der}, nil
}

// Sign hashes message with SHA-256 and signs the digest. Each call draws a
// fresh nonce from rand, so two signatures over the same message differ.
func Sign(kp *KeyPair, message []byte, rand RandomSource) (Signature, error) {
	digest := sha256.Sum256(message)
	tr := &trackedReader{src: rand}
	var der []byte
	err := kp.withPrivate(func(priv *ecdsa.PrivateKey) error {
		var err error
		der, err = ecdsa.SignASN1(tr, priv, digest[:])
		return err
	})
	if tr.failed != nil {
		return Signature{}, fmt.Errorf("sign: %w: %w: %w", ErrSigningFailed, ErrEntropyUnavailable, tr.failed)
	}
	if err != nil {
		return Signature{}, fmt.Errorf("sign: %w: %w", ErrSigningFailed, err)
	}
	return Signature{Algorithm: kp.alg, DER: der}, nil
}
