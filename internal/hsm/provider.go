package hsm

import "github.com/glinharesb/ecsign/internal/crypto"

// Provider performs private-key operations. Implementations own their
// entropy source; callers never pass randomness in.
// Real implementations would delegate to PKCS#11 or cloud KMS.
type Provider interface {
	GenerateKey(alg crypto.Algorithm) (*crypto.KeyPair, error)
	Sign(kp *crypto.KeyPair, data []byte) (crypto.Signature, error)
	Verify(pub crypto.PublicKey, data []byte, sig crypto.Signature) (crypto.Verdict, error)
}
