package crypto

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	mrand "math/rand/v2"
	"strings"
	"sync"
	"testing"
)

func mustGenerate(t testing.TB) *KeyPair {
	t.Helper()
	kp, err := Generate(ECDSAP256SHA256, SystemRandom())
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return kp
}

func mustSign(t testing.TB, kp *KeyPair, msg []byte) Signature {
	t.Helper()
	sig, err := Sign(kp, msg, SystemRandom())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return sig
}

func expectVerdict(t *testing.T, pub PublicKey, msg []byte, sig Signature, want Verdict) {
	t.Helper()
	got, err := Verify(pub, msg, sig)
	if err != nil {
		t.Fatalf("verify: unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("verify: got %v, want %v", got, want)
	}
}

// failingReader returns ok bytes and then fails.
type failingReader struct {
	ok int
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.ok <= 0 {
		return 0, errors.New("entropy pool drained")
	}
	n := min(len(p), f.ok)
	f.ok -= n
	return rand.Read(p[:n])
}

func TestHelloWorldScenario(t *testing.T) {
	kp := mustGenerate(t)

	sig := mustSign(t, kp, []byte("hello, world"))
	if sig.Hex() != strings.ToLower(sig.Hex()) {
		t.Fatalf("hex output should be lowercase: %s", sig.Hex())
	}

	expectVerdict(t, kp.Public(), []byte("hello, world"), sig, Valid)
	expectVerdict(t, kp.Public(), []byte("hello, world!"), sig, Invalid)
}

func TestSignVerifyRandomMessages(t *testing.T) {
	kp := mustGenerate(t)

	for i := range 32 {
		msg := make([]byte, i*7)
		rand.Read(msg)
		sig := mustSign(t, kp, msg)
		expectVerdict(t, kp.Public(), msg, sig, Valid)
	}
}

func TestVerifyDifferentMessage(t *testing.T) {
	kp := mustGenerate(t)

	sig := mustSign(t, kp, []byte("original"))
	expectVerdict(t, kp.Public(), []byte("tampered"), sig, Invalid)
	expectVerdict(t, kp.Public(), nil, sig, Invalid)
}

func TestVerifyWrongKey(t *testing.T) {
	kp1 := mustGenerate(t)
	kp2 := mustGenerate(t)

	sig := mustSign(t, kp1, []byte("data"))
	expectVerdict(t, kp2.Public(), []byte("data"), sig, Invalid)
}

func TestSignatureBitFlips(t *testing.T) {
	kp := mustGenerate(t)
	msg := []byte("bit flip target")
	sig := mustSign(t, kp, msg)

	// Flips anywhere must never produce Valid. Structural damage is allowed
	// to surface as malformed input instead of Invalid.
	for i := range len(sig.DER) * 8 {
		flipped := bytes.Clone(sig.DER)
		flipped[i/8] ^= 1 << (i % 8)

		verdict, err := Verify(kp.Public(), msg, Signature{Algorithm: sig.Algorithm, DER: flipped})
		if verdict == Valid {
			t.Fatalf("bit %d: flipped signature verified", i)
		}
		if err != nil && !errors.Is(err, ErrMalformedInput) {
			t.Fatalf("bit %d: unexpected error kind: %v", i, err)
		}
	}

	// Flips inside the integer bodies, past the leading byte, keep the
	// encoding well-formed, so they must be a plain Invalid.
	bodies := integerBodyOffsets(t, sig.DER)
	rng := mrand.New(mrand.NewPCG(1, 2))
	for range 256 {
		off := bodies[rng.IntN(len(bodies))]
		flipped := bytes.Clone(sig.DER)
		flipped[off] ^= 1 << rng.IntN(8)
		expectVerdict(t, kp.Public(), msg, Signature{Algorithm: sig.Algorithm, DER: flipped}, Invalid)
	}
}

// integerBodyOffsets returns offsets of every r and s content byte except
// the first two of each integer, which decide minimal encoding.
func integerBodyOffsets(t *testing.T, der []byte) []int {
	t.Helper()
	if der[0] != 0x30 || der[1] >= 0x80 {
		t.Fatalf("unexpected signature header % x", der[:2])
	}
	var offsets []int
	pos := 2
	for range 2 {
		if der[pos] != 0x02 {
			t.Fatalf("expected INTEGER tag at %d", pos)
		}
		n := int(der[pos+1])
		for j := pos + 4; j < pos+2+n; j++ {
			offsets = append(offsets, j)
		}
		pos += 2 + n
	}
	return offsets
}

func TestNonceFreshness(t *testing.T) {
	kp := mustGenerate(t)
	msg := []byte("same message")

	sig1 := mustSign(t, kp, msg)
	sig2 := mustSign(t, kp, msg)

	if bytes.Equal(sig1.DER, sig2.DER) {
		t.Fatal("two signatures over the same message should differ")
	}
	expectVerdict(t, kp.Public(), msg, sig1, Valid)
	expectVerdict(t, kp.Public(), msg, sig2, Valid)
}

func TestPrivateKeyRoundTrip(t *testing.T) {
	kp := mustGenerate(t)

	der, err := kp.ExportPrivateKey()
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	imported, err := ImportPrivateKey(der, ECDSAP256SHA256)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	again, err := imported.ExportPrivateKey()
	if err != nil {
		t.Fatalf("re-export: %v", err)
	}
	if !bytes.Equal(der, again) {
		t.Fatal("export of imported key should be byte-identical")
	}

	// Sign with imported, verify with original public key
	msg := []byte("roundtrip test")
	sig := mustSign(t, imported, msg)
	expectVerdict(t, kp.Public(), msg, sig, Valid)

	if !imported.Public().Equal(kp.Public()) {
		t.Fatal("imported public key should equal original")
	}
}

func TestImportPrivateKeyMalformed(t *testing.T) {
	p384, _ := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	p384DER, _ := x509.MarshalPKCS8PrivateKey(p384)

	cases := map[string][]byte{
		"empty":   nil,
		"garbage": []byte("not a key"),
		"p384":    p384DER,
	}
	for name, der := range cases {
		if _, err := ImportPrivateKey(der, ECDSAP256SHA256); !errors.Is(err, ErrMalformedKeyMaterial) {
			t.Fatalf("%s: expected ErrMalformedKeyMaterial, got %v", name, err)
		}
	}

	kp := mustGenerate(t)
	der, _ := kp.ExportPrivateKey()
	if _, err := ImportPrivateKey(der, 0); !errors.Is(err, ErrMalformedKeyMaterial) {
		t.Fatalf("unspecified algorithm: expected ErrMalformedKeyMaterial, got %v", err)
	}
}

func TestPublicKeyFormats(t *testing.T) {
	kp := mustGenerate(t)

	for _, format := range []PublicKeyFormat{FormatSPKI, FormatUncompressed} {
		encoded, err := kp.Public().Bytes(format)
		if err != nil {
			t.Fatalf("%v: encode: %v", format, err)
		}
		if format == FormatUncompressed && (len(encoded) != 65 || encoded[0] != 0x04) {
			t.Fatalf("uncompressed point has wrong shape: %d bytes", len(encoded))
		}

		parsed, err := ParsePublicKey(encoded, ECDSAP256SHA256)
		if err != nil {
			t.Fatalf("%v: parse: %v", format, err)
		}
		reencoded, _ := parsed.Bytes(format)
		if !bytes.Equal(encoded, reencoded) {
			t.Fatalf("%v: round trip is not byte-exact", format)
		}

		msg := []byte("format " + format.String())
		expectVerdict(t, parsed, msg, mustSign(t, kp, msg), Valid)
	}
}

func TestParsePublicKeyMalformed(t *testing.T) {
	kp := mustGenerate(t)
	raw, _ := kp.Public().Bytes(FormatUncompressed)

	offCurve := bytes.Clone(raw)
	offCurve[64] ^= 0x01

	p384, _ := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	p384DER, _ := x509.MarshalPKIXPublicKey(&p384.PublicKey)

	cases := map[string][]byte{
		"empty":     nil,
		"garbage":   []byte{0x30, 0x01, 0xff},
		"off curve": offCurve,
		"truncated": raw[:40],
		"p384":      p384DER,
	}
	for name, data := range cases {
		if _, err := ParsePublicKey(data, ECDSAP256SHA256); !errors.Is(err, ErrMalformedInput) {
			t.Fatalf("%s: expected ErrMalformedInput, got %v", name, err)
		}
	}
}

func TestVerifyMalformedSignature(t *testing.T) {
	kp := mustGenerate(t)
	msg := []byte("structural checks")
	sig := mustSign(t, kp, msg)

	trailing := append(bytes.Clone(sig.DER), 0x00)

	// Long-form length where the short form fits.
	longForm := append([]byte{0x30, 0x81}, sig.DER[1:]...)

	// Pad r with a redundant leading zero byte. Either r had no pad and now
	// has a needless one, or it had one and now starts 0x00 0x00.
	rLen := int(sig.DER[3])
	r := sig.DER[4 : 4+rLen]
	rest := sig.DER[4+rLen:]
	padded := []byte{0x30, byte(int(sig.DER[1]) + 1), 0x02, byte(rLen + 1), 0x00}
	padded = append(padded, r...)
	padded = append(padded, rest...)

	// Extra element inside the sequence.
	inner := append(bytes.Clone(sig.DER[2:]), 0x02, 0x01, 0x01)
	extra := append([]byte{0x30, byte(len(inner))}, inner...)

	cases := map[string][]byte{
		"empty":          nil,
		"not a sequence": []byte{0x02, 0x01, 0x01},
		"trailing":       trailing,
		"long form":      longForm,
		"extra element":  extra,
		"truncated":      sig.DER[:len(sig.DER)-3],
		"padded integer": padded,
	}

	for name, der := range cases {
		verdict, err := Verify(kp.Public(), msg, Signature{Algorithm: ECDSAP256SHA256, DER: der})
		if !errors.Is(err, ErrMalformedInput) {
			t.Fatalf("%s: expected ErrMalformedInput, got %v", name, err)
		}
		if verdict != Invalid {
			t.Fatalf("%s: malformed input must not yield %v", name, verdict)
		}
	}
}

func TestVerifyOutOfRangeIntegersAreInvalid(t *testing.T) {
	kp := mustGenerate(t)

	// SEQUENCE { INTEGER 0, INTEGER -1 } is well-formed DER.
	der := []byte{0x30, 0x06, 0x02, 0x01, 0x00, 0x02, 0x01, 0xff}
	expectVerdict(t, kp.Public(), []byte("x"), Signature{Algorithm: ECDSAP256SHA256, DER: der}, Invalid)
}

func TestVerifyAlgorithmMismatch(t *testing.T) {
	kp := mustGenerate(t)
	sig := mustSign(t, kp, []byte("m"))
	sig.Algorithm = 0

	if _, err := Verify(kp.Public(), []byte("m"), sig); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
	if _, err := Verify(PublicKey{}, []byte("m"), mustSign(t, kp, []byte("m"))); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("zero public key: expected ErrMalformedInput, got %v", err)
	}
}

func TestEntropyUnavailable(t *testing.T) {
	src := NewRandomSource(&failingReader{ok: 4})
	if _, err := src.NextBytes(16); !errors.Is(err, ErrEntropyUnavailable) {
		t.Fatalf("NextBytes: expected ErrEntropyUnavailable, got %v", err)
	}

	_, err := Generate(ECDSAP256SHA256, NewRandomSource(&failingReader{}))
	if !errors.Is(err, ErrKeyGenerationFailed) || !errors.Is(err, ErrEntropyUnavailable) {
		t.Fatalf("Generate: expected key generation + entropy failure, got %v", err)
	}

	kp := mustGenerate(t)
	_, err = Sign(kp, []byte("m"), NewRandomSource(&failingReader{}))
	if !errors.Is(err, ErrSigningFailed) || !errors.Is(err, ErrEntropyUnavailable) {
		t.Fatalf("Sign: expected signing + entropy failure, got %v", err)
	}
}

func TestNextBytes(t *testing.T) {
	a, err := SystemRandom().NextBytes(32)
	if err != nil {
		t.Fatalf("next bytes: %v", err)
	}
	b, _ := SystemRandom().NextBytes(32)
	if len(a) != 32 || bytes.Equal(a, b) {
		t.Fatal("expected two distinct 32-byte draws")
	}
	if _, err := SystemRandom().NextBytes(-1); err == nil {
		t.Fatal("negative length should fail")
	}
}

func TestGenerateUnsupportedAlgorithm(t *testing.T) {
	_, err := Generate(Algorithm(42), SystemRandom())
	if !errors.Is(err, ErrKeyGenerationFailed) || !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Fatalf("expected unsupported algorithm, got %v", err)
	}
}

func TestDestroyedKeyPair(t *testing.T) {
	kp := mustGenerate(t)
	pub := kp.Public()
	sig := mustSign(t, kp, []byte("before"))
	scalar := kp.priv.D

	kp.Destroy()

	for _, w := range scalar.Bits() {
		if w != 0 {
			t.Fatal("private scalar not wiped by Destroy")
		}
	}

	if _, err := Sign(kp, []byte("after"), SystemRandom()); !errors.Is(err, ErrSigningFailed) {
		t.Fatalf("sign after destroy: expected ErrSigningFailed, got %v", err)
	}
	if _, err := kp.ExportPrivateKey(); !errors.Is(err, ErrMalformedKeyMaterial) {
		t.Fatalf("export after destroy: expected ErrMalformedKeyMaterial, got %v", err)
	}
	expectVerdict(t, pub, []byte("before"), sig, Valid)
}

func TestKeyPairRedaction(t *testing.T) {
	kp := mustGenerate(t)
	der, _ := kp.ExportPrivateKey()

	for _, out := range []string{fmt.Sprint(kp), fmt.Sprintf("%#v", kp), kp.LogValue().String()} {
		if strings.Contains(out, fmt.Sprintf("%x", der)) || strings.Contains(out, "D:") {
			t.Fatalf("key material leaked: %s", out)
		}
		if !strings.Contains(out, kp.Public().Fingerprint()) {
			t.Fatalf("expected fingerprint in %q", out)
		}
	}
}

func TestAlgorithmText(t *testing.T) {
	text, err := ECDSAP256SHA256.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(text) != "ecdsa-p256-sha256-asn1.v1" {
		t.Fatalf("unexpected algorithm text %q", text)
	}

	var alg Algorithm
	if err := alg.UnmarshalText(text); err != nil || alg != ECDSAP256SHA256 {
		t.Fatalf("unmarshal: %v %v", alg, err)
	}
	if err := alg.UnmarshalText([]byte("ecdsa-p384-sha384")); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Fatalf("expected ErrUnsupportedAlgorithm, got %v", err)
	}
	if _, err := Algorithm(0).MarshalText(); err == nil {
		t.Fatal("unspecified algorithm should not marshal")
	}
}

func TestParseSignatureHex(t *testing.T) {
	kp := mustGenerate(t)
	sig := mustSign(t, kp, []byte("hex"))

	parsed, err := ParseSignatureHex(sig.Hex(), ECDSAP256SHA256)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	expectVerdict(t, kp.Public(), []byte("hex"), parsed, Valid)

	if _, err := ParseSignatureHex("zz", ECDSAP256SHA256); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
}

func TestConcurrentSigning(t *testing.T) {
	kp := mustGenerate(t)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := range 64 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := []byte(fmt.Sprintf("message-%d", i))
			sig, err := Sign(kp, msg, SystemRandom())
			if err != nil {
				errs <- err
				return
			}
			if v, err := Verify(kp.Public(), msg, sig); err != nil || v != Valid {
				errs <- fmt.Errorf("message-%d: verdict %v, err %v", i, v, err)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatal(err)
	}
}

func TestSealOpenPrivateKey(t *testing.T) {
	kp := mustGenerate(t)
	master, _ := SystemRandom().NextBytes(32)

	sealed, err := SealPrivateKey(kp, master, []byte("key-1"), SystemRandom())
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	opened, err := OpenPrivateKey(sealed, master, []byte("key-1"), ECDSAP256SHA256)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !opened.Public().Equal(kp.Public()) {
		t.Fatal("opened key should match sealed key")
	}

	otherMaster, _ := SystemRandom().NextBytes(32)
	if _, err := OpenPrivateKey(sealed, otherMaster, []byte("key-1"), ECDSAP256SHA256); !errors.Is(err, ErrMalformedKeyMaterial) {
		t.Fatalf("wrong master: expected ErrMalformedKeyMaterial, got %v", err)
	}
	if _, err := OpenPrivateKey(sealed, master, []byte("key-2"), ECDSAP256SHA256); !errors.Is(err, ErrMalformedKeyMaterial) {
		t.Fatalf("wrong aad: expected ErrMalformedKeyMaterial, got %v", err)
	}
	if _, err := OpenPrivateKey(sealed[:5], master, []byte("key-1"), ECDSAP256SHA256); !errors.Is(err, ErrMalformedKeyMaterial) {
		t.Fatalf("short blob: expected ErrMalformedKeyMaterial, got %v", err)
	}
	if _, err := SealPrivateKey(kp, master[:16], nil, SystemRandom()); err == nil {
		t.Fatal("short master key should fail")
	}
}

func TestSealUniqueNonce(t *testing.T) {
	kp := mustGenerate(t)
	master, _ := SystemRandom().NextBytes(32)

	a, _ := SealPrivateKey(kp, master, nil, SystemRandom())
	b, _ := SealPrivateKey(kp, master, nil, SystemRandom())
	if bytes.Equal(a, b) {
		t.Fatal("two seals of the same key should differ")
	}
}

var _ io.Reader = SystemRandom()

// Benchmarks

func BenchmarkSign(b *testing.B) {
	kp := mustGenerate(b)
	data := []byte("benchmark data for signing")
	b.ResetTimer()
	for b.Loop() {
		Sign(kp, data, SystemRandom())
	}
}

func BenchmarkVerify(b *testing.B) {
	kp := mustGenerate(b)
	data := []byte("benchmark data for signing")
	sig := mustSign(b, kp, data)
	b.ResetTimer()
	for b.Loop() {
		Verify(kp.Public(), data, sig)
	}
}
