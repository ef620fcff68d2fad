package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
)

// KeyPair is a private key bound to one Algorithm. It is read-only after
// creation and may be shared between goroutines that sign concurrently.
type KeyPair struct {
	alg Algorithm
	pub PublicKey

	mu   sync.RWMutex
	priv *ecdsa.PrivateKey
}

// Generate creates a fresh key pair, drawing entropy from rand.
func Generate(alg Algorithm, rand RandomSource) (*KeyPair, error) {
	if err := alg.validate(); err != nil {
		return nil, fmt.Errorf("generate key: %w: %w", ErrKeyGenerationFailed, err)
	}

	tr := &trackedReader{src: rand}
	priv, err := ecdsa.GenerateKey(alg.curve(), tr)
	if tr.failed != nil {
		return nil, fmt.Errorf("generate key: %w: %w: %w", ErrKeyGenerationFailed, ErrEntropyUnavailable, tr.failed)
	}
	if err != nil {
		return nil, fmt.Errorf("generate key: %w: %w", ErrKeyGenerationFailed, err)
	}
	return newKeyPair(alg, priv), nil
}

// ImportPrivateKey parses a PKCS#8 DER private key previously produced by
// ExportPrivateKey and checks that it belongs to alg.
func ImportPrivateKey(der []byte, alg Algorithm) (*KeyPair, error) {
	if err := alg.validate(); err != nil {
		return nil, fmt.Errorf("import private key: %w: %w", ErrMalformedKeyMaterial, err)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("import private key: %w: %w", ErrMalformedKeyMaterial, err)
	}
	priv, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("import private key: %w: not an ECDSA key (%T)", ErrMalformedKeyMaterial, parsed)
	}
	if priv.Curve != alg.curve() {
		return nil, fmt.Errorf("import private key: %w: curve %s does not match %s",
			ErrMalformedKeyMaterial, priv.Curve.Params().Name, alg)
	}
	return newKeyPair(alg, priv), nil
}

func newKeyPair(alg Algorithm, priv *ecdsa.PrivateKey) *KeyPair {
	return &KeyPair{
		alg:  alg,
		pub:  PublicKey{alg: alg, key: &priv.PublicKey},
		priv: priv,
	}
}

func (kp *KeyPair) Algorithm() Algorithm { return kp.alg }

// Public returns the public half. It stays usable after Destroy.
func (kp *KeyPair) Public() PublicKey { return kp.pub }

// ExportPrivateKey encodes the private key as PKCS#8 DER. The output
// re-imports to an identical key and re-exports to identical bytes.
func (kp *KeyPair) ExportPrivateKey() ([]byte, error) {
	var der []byte
	err := kp.withPrivate(func(priv *ecdsa.PrivateKey) error {
		var err error
		if der, err = x509.MarshalPKCS8PrivateKey(priv); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedKeyMaterial, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("export private key: %w", err)
	}
	return der, nil
}

// Destroy zeroes the private scalar and drops it. The runtime may still
// hold copies, so the wipe is best effort, but every later private-key
// operation fails.
func (kp *KeyPair) Destroy() {
	kp.mu.Lock()
	defer kp.mu.Unlock()
	if kp.priv != nil && kp.priv.D != nil {
		clear(kp.priv.D.Bits())
	}
	kp.priv = nil
}

// withPrivate runs fn with the private key under the read lock, so Destroy
// cannot wipe the scalar while fn is using it.
func (kp *KeyPair) withPrivate(fn func(*ecdsa.PrivateKey) error) error {
	kp.mu.RLock()
	defer kp.mu.RUnlock()
	if kp.priv == nil {
		return fmt.Errorf("%w: key pair destroyed", ErrMalformedKeyMaterial)
	}
	return fn(kp.priv)
}

func (kp *KeyPair) String() string {
	return fmt.Sprintf("KeyPair(%s, %s)", kp.alg, kp.pub.Fingerprint())
}

func (kp *KeyPair) GoString() string { return kp.String() }

// LogValue keeps private material out of structured logs.
func (kp *KeyPair) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("algorithm", kp.alg.String()),
		slog.String("fingerprint", kp.pub.Fingerprint()),
	)
}

// PublicKeyFormat selects a public key encoding.
type PublicKeyFormat int

const (
	// FormatSPKI is X.509 SubjectPublicKeyInfo DER.
	FormatSPKI PublicKeyFormat = iota
	// FormatUncompressed is the SEC 1 uncompressed point 0x04||X||Y.
	FormatUncompressed
)

func (f PublicKeyFormat) String() string {
	switch f {
	case FormatSPKI:
		return "spki"
	case FormatUncompressed:
		return "uncompressed"
	default:
		return "unknown"
	}
}

// PublicKey is an ECDSA public key bound to an Algorithm. The zero value
// is not a usable key.
type PublicKey struct {
	alg Algorithm
	key *ecdsa.PublicKey
}

// ParsePublicKey accepts either SubjectPublicKeyInfo DER or an uncompressed
// point. Anything else, including points off the curve, is ErrMalformedInput.
func ParsePublicKey(data []byte, alg Algorithm) (PublicKey, error) {
	if err := alg.validate(); err != nil {
		return PublicKey{}, fmt.Errorf("parse public key: %w: %w", ErrMalformedInput, err)
	}

	if len(data) > 0 && data[0] == 0x04 {
		key, err := ecdsa.ParseUncompressedPublicKey(alg.curve(), data)
		if err != nil {
			return PublicKey{}, fmt.Errorf("parse public key: %w: %w", ErrMalformedInput, err)
		}
		return PublicKey{alg: alg, key: key}, nil
	}

	parsed, err := x509.ParsePKIXPublicKey(data)
	if err != nil {
		return PublicKey{}, fmt.Errorf("parse public key: %w: %w", ErrMalformedInput, err)
	}
	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return PublicKey{}, fmt.Errorf("parse public key: %w: not an ECDSA key (%T)", ErrMalformedInput, parsed)
	}
	if key.Curve != alg.curve() {
		return PublicKey{}, fmt.Errorf("parse public key: %w: curve %s does not match %s",
			ErrMalformedInput, key.Curve.Params().Name, alg)
	}
	return PublicKey{alg: alg, key: key}, nil
}

func (p PublicKey) Algorithm() Algorithm { return p.alg }

// IsZero reports whether p holds no key.
func (p PublicKey) IsZero() bool { return p.key == nil }

// Bytes encodes the key in the requested format.
func (p PublicKey) Bytes(format PublicKeyFormat) ([]byte, error) {
	if p.key == nil {
		return nil, fmt.Errorf("encode public key: %w: empty key", ErrMalformedInput)
	}
	switch format {
	case FormatSPKI:
		der, err := x509.MarshalPKIXPublicKey(p.key)
		if err != nil {
			return nil, fmt.Errorf("encode public key: %w", err)
		}
		return der, nil
	case FormatUncompressed:
		raw, err := p.key.Bytes()
		if err != nil {
			return nil, fmt.Errorf("encode public key: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("encode public key: unknown format %d", int(format))
	}
}

// Fingerprint is the lowercase hex SHA-256 of the SPKI encoding. It is for
// display only.
func (p PublicKey) Fingerprint() string {
	der, err := p.Bytes(FormatSPKI)
	if err != nil {
		return "none"
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

func (p PublicKey) Equal(other PublicKey) bool {
	if p.key == nil || other.key == nil {
		return p.key == nil && other.key == nil
	}
	return p.alg == other.alg && p.key.Equal(other.key)
}
