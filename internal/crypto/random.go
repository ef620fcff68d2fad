package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
)

// RandomSource supplies cryptographically secure random bytes. It also
// satisfies io.Reader so it can be passed straight to crypto/ecdsa.
// Implementations must be safe for concurrent use.
type RandomSource interface {
	io.Reader
	NextBytes(n int) ([]byte, error)
}

type readerSource struct {
	r io.Reader
}

var systemRandom = &readerSource{r: rand.Reader}

// SystemRandom returns the operating system CSPRNG.
func SystemRandom() RandomSource {
	return systemRandom
}

// NewRandomSource adapts r. Only tests should pass anything other than
// crypto/rand.Reader.
func NewRandomSource(r io.Reader) RandomSource {
	return &readerSource{r: r}
}

func (s *readerSource) Read(p []byte) (int, error) {
	n, err := io.ReadFull(s.r, p)
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrEntropyUnavailable, err)
	}
	return n, nil
}

func (s *readerSource) NextBytes(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("invalid random length: %d", n)
	}
	buf := make([]byte, n)
	if _, err := s.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// trackedReader remembers whether the wrapped source failed during one
// library call, since crypto/ecdsa does not promise to wrap reader errors.
type trackedReader struct {
	src    io.Reader
	failed error
}

func (t *trackedReader) Read(p []byte) (int, error) {
	n, err := t.src.Read(p)
	if err != nil && t.failed == nil {
		t.failed = err
	}
	return n, err
}
