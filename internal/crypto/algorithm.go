package crypto

import (
	"crypto/elliptic"
	"fmt"
)

// Algorithm identifies curve, digest and signature encoding together. It is
// persisted next to every key and signature so a verifier never guesses.
type Algorithm int

const (
	// ECDSAP256SHA256 is ECDSA over NIST P-256 with a SHA-256 digest and
	// ASN.1 DER encoded signatures.
	ECDSAP256SHA256 Algorithm = iota + 1
)

const ecdsaP256SHA256Name = "ecdsa-p256-sha256-asn1.v1"

func (a Algorithm) String() string {
	switch a {
	case ECDSAP256SHA256:
		return ecdsaP256SHA256Name
	default:
		return "unspecified"
	}
}

// ParseAlgorithm returns the Algorithm named by s.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch s {
	case ecdsaP256SHA256Name:
		return ECDSAP256SHA256, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, s)
	}
}

func (a Algorithm) MarshalText() ([]byte, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	return []byte(a.String()), nil
}

func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Algorithm) validate() error {
	if a != ECDSAP256SHA256 {
		return fmt.Errorf("%w: %d", ErrUnsupportedAlgorithm, int(a))
	}
	return nil
}

func (a Algorithm) curve() elliptic.Curve {
	return elliptic.P256()
}
