package keystore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/glinharesb/ecsign/internal/crypto"
)

// persistedKey is the JSON-serializable form of a KeyEntry. The private key
// is PKCS#8 DER sealed with AES-256-GCM; the key ID is the AAD, so a blob
// moved to another entry fails to open.
type persistedKey struct {
	ID               string            `json:"id"`
	Algorithm        crypto.Algorithm  `json:"algorithm"`
	Status           KeyStatus         `json:"status"`
	SealedPrivateKey []byte            `json:"sealed_private_key"`
	CreatedAt        time.Time         `json:"created_at"`
	RotatedAt        time.Time         `json:"rotated_at,omitempty"`
	Labels           map[string]string `json:"labels,omitempty"`
}

// PersistentStore wraps MemoryStore and persists to a JSON file using atomic rename.
type PersistentStore struct {
	*MemoryStore
	saveMu    sync.Mutex
	path      string
	masterKey []byte
	rand      crypto.RandomSource
}

// NewPersistentStore creates a store that persists to the given file path.
// If the file exists, it loads keys from it on startup (crash recovery).
func NewPersistentStore(path string, masterKey []byte, rand crypto.RandomSource) (*PersistentStore, error) {
	if len(masterKey) < 32 {
		return nil, ErrMasterKeyRequired
	}

	ps := &PersistentStore{
		MemoryStore: NewMemoryStore(),
		path:        path,
		masterKey:   masterKey,
		rand:        rand,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := ps.load(); err != nil {
			return nil, fmt.Errorf("load existing data: %w", err)
		}
		slog.Info("persistent store loaded", "keys", len(ps.keys))
	}

	return ps, nil
}

// Put stores entry and persists it. If the write fails the entry is
// removed again, so a key that is not on disk can never sign.
func (ps *PersistentStore) Put(entry *KeyEntry) error {
	if err := ps.MemoryStore.Put(entry); err != nil {
		return err
	}
	if err := ps.save(); err != nil {
		ps.MemoryStore.remove(entry.ID)
		return err
	}
	return nil
}

func (ps *PersistentStore) UpdateStatus(id string, status KeyStatus) error {
	if err := ps.MemoryStore.UpdateStatus(id, status); err != nil {
		return err
	}
	return ps.save()
}

func (ps *PersistentStore) Delete(id string) error {
	if err := ps.MemoryStore.Delete(id); err != nil {
		return err
	}
	return ps.save()
}

// save writes all keys to a temp file then atomically renames it. Saves are
// serialized so the last rename always carries the latest snapshot.
func (ps *PersistentStore) save() error {
	ps.saveMu.Lock()
	defer ps.saveMu.Unlock()

	ps.mu.RLock()
	defer ps.mu.RUnlock()

	keys := make([]persistedKey, 0, len(ps.keys))
	for _, e := range ps.keys {
		sealed, err := crypto.SealPrivateKey(e.KeyPair, ps.masterKey, []byte(e.ID), ps.rand)
		if err != nil {
			return fmt.Errorf("seal key %s: %w", e.ID, err)
		}
		keys = append(keys, persistedKey{
			ID:               e.ID,
			Algorithm:        e.Algorithm,
			Status:           e.Status,
			SealedPrivateKey: sealed,
			CreatedAt:        e.CreatedAt,
			RotatedAt:        e.RotatedAt,
			Labels:           e.Labels,
		})
	}

	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	tmpPath := ps.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, ps.path); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}

	return nil
}

// load reads keys from the persisted file.
func (ps *PersistentStore) load() error {
	data, err := os.ReadFile(ps.path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	var keys []persistedKey
	if err := json.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("unmarshal json: %w", err)
	}

	for _, pk := range keys {
		kp, err := crypto.OpenPrivateKey(pk.SealedPrivateKey, ps.masterKey, []byte(pk.ID), pk.Algorithm)
		if err != nil {
			return fmt.Errorf("open key %s: %w", pk.ID, err)
		}
		ps.keys[pk.ID] = &KeyEntry{
			ID:        pk.ID,
			Algorithm: pk.Algorithm,
			Status:    pk.Status,
			KeyPair:   kp,
			CreatedAt: pk.CreatedAt,
			RotatedAt: pk.RotatedAt,
			Labels:    pk.Labels,
		}
	}

	return nil
}
