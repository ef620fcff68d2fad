package hsm

import "github.com/glinharesb/ecsign/internal/crypto"

// SoftwareHSM keeps keys in process memory and signs with the injected
// RandomSource. Production wiring passes crypto.SystemRandom().
type SoftwareHSM struct {
	rand crypto.RandomSource
}

func NewSoftwareHSM(rand crypto.RandomSource) *SoftwareHSM {
	return &SoftwareHSM{rand: rand}
}

func (s *SoftwareHSM) GenerateKey(alg crypto.Algorithm) (*crypto.KeyPair, error) {
	return crypto.Generate(alg, s.rand)
}

func (s *SoftwareHSM) Sign(kp *crypto.KeyPair, data []byte) (crypto.Signature, error) {
	return crypto.Sign(kp, data, s.rand)
}

func (s *SoftwareHSM) Verify(pub crypto.PublicKey, data []byte, sig crypto.Signature) (crypto.Verdict, error) {
	return crypto.Verify(pub, data, sig)
}
