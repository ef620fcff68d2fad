package keystore

import (
	"errors"
	"time"

	"github.com/glinharesb/ecsign/internal/crypto"
)

var (
	ErrKeyNotFound       = errors.New("key not found")
	ErrKeyExists         = errors.New("key already exists")
	ErrKeyInactive       = errors.New("key is not active")
	ErrMasterKeyRequired = errors.New("persistent store requires a master key of at least 32 bytes")
)

// KeyStatus represents the lifecycle state of a key.
type KeyStatus int

const (
	StatusActive KeyStatus = iota + 1
	StatusRotated
	StatusDeactivated
)

func (s KeyStatus) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusRotated:
		return "ROTATED"
	case StatusDeactivated:
		return "DEACTIVATED"
	default:
		return "UNKNOWN"
	}
}

// KeyEntry holds a provisioned key pair and its metadata. Only the Active
// status may be used for signing; every status may verify.
type KeyEntry struct {
	ID        string
	Algorithm crypto.Algorithm
	Status    KeyStatus
	KeyPair   *crypto.KeyPair
	CreatedAt time.Time
	RotatedAt time.Time
	Labels    map[string]string
}

// CanSign reports whether the entry may produce new signatures.
func (e *KeyEntry) CanSign() error {
	if e.Status != StatusActive {
		return ErrKeyInactive
	}
	return nil
}

// Store defines the key storage interface.
type Store interface {
	Put(entry *KeyEntry) error
	Get(id string) (*KeyEntry, error)
	List(filter KeyStatus) ([]*KeyEntry, error)
	UpdateStatus(id string, status KeyStatus) error
	Delete(id string) error
}
