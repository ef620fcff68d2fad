package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// sealInfo separates the at-rest wrapping key from anything else that might
// be derived from the same master secret.
var sealInfo = []byte("ecsign keystore seal v1")

// SealPrivateKey exports kp and encrypts it with AES-256-GCM under a key
// derived from masterKey with HKDF-SHA256. aad binds the ciphertext to its
// owner (the key ID in the keystore). The nonce is drawn from rand and
// prepended: [nonce | ciphertext | tag].
func SealPrivateKey(kp *KeyPair, masterKey, aad []byte, rand RandomSource) ([]byte, error) {
	der, err := kp.ExportPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("seal private key: %w", err)
	}
	defer clear(der)

	gcm, err := sealCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("seal private key: %w", err)
	}

	nonce, err := rand.NextBytes(gcm.NonceSize())
	if err != nil {
		return nil, fmt.Errorf("seal private key: %w", err)
	}
	return gcm.Seal(nonce, nonce, der, aad), nil
}

// OpenPrivateKey reverses SealPrivateKey. A wrong master key, a wrong aad or
// a tampered blob all fail with ErrMalformedKeyMaterial.
func OpenPrivateKey(sealed, masterKey, aad []byte, alg Algorithm) (*KeyPair, error) {
	gcm, err := sealCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("open private key: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("open private key: %w: sealed key too short", ErrMalformedKeyMaterial)
	}

	nonce, ct := sealed[:nonceSize], sealed[nonceSize:]
	der, err := gcm.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, fmt.Errorf("open private key: %w: %w", ErrMalformedKeyMaterial, err)
	}
	defer clear(der)

	return ImportPrivateKey(der, alg)
}

func sealCipher(masterKey []byte) (cipher.AEAD, error) {
	if len(masterKey) < 32 {
		return nil, fmt.Errorf("master key must be at least 32 bytes, got %d", len(masterKey))
	}

	wrapKey := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, sealInfo), wrapKey); err != nil {
		return nil, fmt.Errorf("hkdf derive: %w", err)
	}
	defer clear(wrapKey)

	block, err := aes.NewCipher(wrapKey)
	if err != nil {
		return nil, fmt.Errorf("aes new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("aes gcm: %w", err)
	}
	return gcm, nil
}
