// Package keyfile reads and writes PEM encoded keys and signatures.
// Every block carries an Algorithm header so nothing read back from disk
// has to guess what it holds.
package keyfile

import (
	stdcrypto "crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/youmark/pkcs8"

	"github.com/glinharesb/ecsign/internal/crypto"
)

const (
	privateKeyType          = "PRIVATE KEY"
	encryptedPrivateKeyType = "ENCRYPTED PRIVATE KEY"
	publicKeyType           = "PUBLIC KEY"
	signatureType           = "ECDSA SIGNATURE"

	algorithmHeader = "Algorithm"
)

var (
	// ErrPassphraseRequired is returned when an encrypted key is read
	// without a passphrase.
	ErrPassphraseRequired = errors.New("passphrase required")

	// ErrBadPassphrase is returned when the passphrase cannot decrypt the key.
	ErrBadPassphrase = errors.New("bad passphrase")
)

// EncodePrivateKey writes kp as PKCS#8. With a passphrase the key is
// encrypted with PBES2 (AES-256-CBC, PBKDF2-HMAC-SHA256).
func EncodePrivateKey(kp *crypto.KeyPair, passphrase []byte) ([]byte, error) {
	der, err := kp.ExportPrivateKey()
	if err != nil {
		return nil, err
	}
	defer clear(der)

	if len(passphrase) == 0 {
		return encode(privateKeyType, kp.Algorithm(), der), nil
	}

	imported, err := pkcs8.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("reparse private key: %w", err)
	}
	encrypted, err := pkcs8.MarshalPrivateKey(imported, passphrase, &pkcs8.Opts{
		Cipher: pkcs8.AES256CBC,
		KDFOpts: pkcs8.PBKDF2Opts{
			SaltSize:       8,
			IterationCount: 10000,
			HMACHash:       stdcrypto.SHA256,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encrypt private key: %w", err)
	}
	return encode(encryptedPrivateKeyType, kp.Algorithm(), encrypted), nil
}

// DecodePrivateKey reverses EncodePrivateKey. The passphrase is ignored for
// unencrypted keys.
func DecodePrivateKey(data, passphrase []byte, alg crypto.Algorithm) (*crypto.KeyPair, error) {
	block, err := decode(data, alg, privateKeyType, encryptedPrivateKeyType)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w: %w", crypto.ErrMalformedKeyMaterial, err)
	}

	if block.Type == privateKeyType {
		return crypto.ImportPrivateKey(block.Bytes, alg)
	}

	if len(passphrase) == 0 {
		return nil, ErrPassphraseRequired
	}
	// Depending on the derived key, a wrong passphrase fails either in the
	// cipher (padding) or in the PKCS#8 parse that follows it, so any
	// failure here counts as a bad passphrase.
	key, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w: %w", ErrBadPassphrase, err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w: %w", crypto.ErrMalformedKeyMaterial, err)
	}
	defer clear(der)
	return crypto.ImportPrivateKey(der, alg)
}

// EncodePublicKey writes pub as a SubjectPublicKeyInfo PEM block.
func EncodePublicKey(pub crypto.PublicKey) ([]byte, error) {
	der, err := pub.Bytes(crypto.FormatSPKI)
	if err != nil {
		return nil, err
	}
	return encode(publicKeyType, pub.Algorithm(), der), nil
}

// DecodePublicKey reads a PUBLIC KEY block, taking the algorithm from its
// header when present.
func DecodePublicKey(data []byte) (crypto.PublicKey, error) {
	block, alg, err := decodeAny(data, publicKeyType)
	if err != nil {
		return crypto.PublicKey{}, fmt.Errorf("decode public key: %w: %w", crypto.ErrMalformedInput, err)
	}
	return crypto.ParsePublicKey(block.Bytes, alg)
}

// EncodeSignature writes sig as an ECDSA SIGNATURE PEM block.
func EncodeSignature(sig crypto.Signature) ([]byte, error) {
	if _, err := sig.Algorithm.MarshalText(); err != nil {
		return nil, fmt.Errorf("encode signature: %w", err)
	}
	return encode(signatureType, sig.Algorithm, sig.DER), nil
}

// DecodeSignature reads an ECDSA SIGNATURE block.
func DecodeSignature(data []byte) (crypto.Signature, error) {
	block, alg, err := decodeAny(data, signatureType)
	if err != nil {
		return crypto.Signature{}, fmt.Errorf("decode signature: %w: %w", crypto.ErrMalformedInput, err)
	}
	return crypto.Signature{Algorithm: alg, DER: block.Bytes}, nil
}

// WriteFile creates path with mode 0600. It refuses to overwrite an
// existing file so a key is never silently replaced.
func WriteFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("open %s for writing: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func encode(blockType string, alg crypto.Algorithm, der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:    blockType,
		Headers: map[string]string{algorithmHeader: alg.String()},
		Bytes:   der,
	})
}

func decode(data []byte, want crypto.Algorithm, types ...string) (*pem.Block, error) {
	block, alg, err := decodeAny(data, types...)
	if err != nil {
		return nil, err
	}
	if alg != want {
		return nil, fmt.Errorf("block algorithm %s does not match %s", alg, want)
	}
	return block, nil
}

// decodeAny returns the first PEM block of one of types. Blocks without an
// Algorithm header are taken to be ECDSAP256SHA256, which lets plain
// openssl output be imported.
func decodeAny(data []byte, types ...string) (*pem.Block, crypto.Algorithm, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, 0, fmt.Errorf("no PEM block found")
	}

	typeOK := false
	for _, t := range types {
		if block.Type == t {
			typeOK = true
			break
		}
	}
	if !typeOK {
		return nil, 0, fmt.Errorf("unexpected PEM block type %q", block.Type)
	}

	name, ok := block.Headers[algorithmHeader]
	if !ok {
		return block, crypto.ECDSAP256SHA256, nil
	}
	alg, err := crypto.ParseAlgorithm(name)
	if err != nil {
		return nil, 0, err
	}
	return block, alg, nil
}
