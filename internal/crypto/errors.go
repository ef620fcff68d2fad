package crypto

import "errors"

// Failure kinds. Every error returned by this package wraps at least one of
// them, so callers can tell "retry with fresh entropy" apart from "this key
// is corrupt" or "no verdict was reached" using errors.Is.
var (
	ErrEntropyUnavailable   = errors.New("entropy unavailable")
	ErrKeyGenerationFailed  = errors.New("key generation failed")
	ErrMalformedKeyMaterial = errors.New("malformed key material")
	ErrSigningFailed        = errors.New("signing failed")
	ErrMalformedInput       = errors.New("malformed input")
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
)
