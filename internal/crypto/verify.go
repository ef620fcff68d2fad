package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// Verdict is the outcome of a verification that reached a decision.
// The zero value is Invalid.
type Verdict int

const (
	Invalid Verdict = iota
	Valid
)

func (v Verdict) String() string {
	if v == Valid {
		return "VALID"
	}
	return "INVALID"
}

// Verify checks sig over message under pub.
//
// A forged or corrupted but well-formed signature yields (Invalid, nil).
// An error, always wrapping ErrMalformedInput, means no verdict was reached
// because the key or the signature could not be parsed; the returned
// Verdict is then Invalid as well.
func Verify(pub PublicKey, message []byte, sig Signature) (Verdict, error) {
	if pub.key == nil {
		return Invalid, fmt.Errorf("verify: %w: empty public key", ErrMalformedInput)
	}
	if err := pub.alg.validate(); err != nil {
		return Invalid, fmt.Errorf("verify: %w: %w", ErrMalformedInput, err)
	}
	if sig.Algorithm != pub.alg {
		return Invalid, fmt.Errorf("verify: %w: signature algorithm %s does not match key algorithm %s",
			ErrMalformedInput, sig.Algorithm, pub.alg)
	}

	r, s, err := parseDERSignature(sig.DER)
	if err != nil {
		return Invalid, fmt.Errorf("verify: %w: %w", ErrMalformedInput, err)
	}

	digest := sha256.Sum256(message)
	if !ecdsa.Verify(pub.key, digest[:], r, s) {
		return Invalid, nil
	}
	return Valid, nil
}

// parseDERSignature reads SEQUENCE { INTEGER r, INTEGER s } and rejects any
// encoding that is not the unique DER form: long-form lengths where short
// form fits, padded integers, and trailing bytes. Range checks on r and s
// are left to ecdsa.Verify, which reports them as an ordinary rejection.
func parseDERSignature(der []byte) (*big.Int, *big.Int, error) {
	var (
		r, s  = new(big.Int), new(big.Int)
		inner cryptobyte.String
	)
	input := cryptobyte.String(der)
	if !input.ReadASN1(&inner, asn1.SEQUENCE) {
		return nil, nil, fmt.Errorf("signature is not a DER sequence")
	}
	if !input.Empty() {
		return nil, nil, fmt.Errorf("trailing data after signature sequence")
	}
	if !inner.ReadASN1Integer(r) || !inner.ReadASN1Integer(s) {
		return nil, nil, fmt.Errorf("signature sequence does not hold two DER integers")
	}
	if !inner.Empty() {
		return nil, nil, fmt.Errorf("trailing data inside signature sequence")
	}
	return r, s, nil
}
