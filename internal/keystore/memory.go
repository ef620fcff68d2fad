package keystore

import (
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a thread-safe in-memory key store backed by sync.RWMutex.
// Readers get copies of entries; the shared KeyPair is immutable.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]*KeyEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		keys: make(map[string]*KeyEntry),
	}
}

func (m *MemoryStore) Put(entry *KeyEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.KeyPair == nil {
		return fmt.Errorf("key %s has no key pair", entry.ID)
	}
	if entry.KeyPair.Algorithm() != entry.Algorithm {
		return fmt.Errorf("key %s: algorithm %s does not match key pair %s",
			entry.ID, entry.Algorithm, entry.KeyPair.Algorithm())
	}
	if _, exists := m.keys[entry.ID]; exists {
		return fmt.Errorf("%w: %s", ErrKeyExists, entry.ID)
	}
	m.keys[entry.ID] = cloneEntry(entry)
	return nil
}

func (m *MemoryStore) Get(id string) (*KeyEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.keys[id]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return cloneEntry(entry), nil
}

// List returns entries oldest first. A zero filter matches every status.
func (m *MemoryStore) List(filter KeyStatus) ([]*KeyEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*KeyEntry
	for _, entry := range m.keys {
		if filter == 0 || entry.Status == filter {
			result = append(result, cloneEntry(entry))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryStore) UpdateStatus(id string, status KeyStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.keys[id]
	if !ok {
		return ErrKeyNotFound
	}
	entry.Status = status
	if status == StatusRotated {
		entry.RotatedAt = time.Now()
	}
	return nil
}

func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.keys[id]
	if !ok {
		return ErrKeyNotFound
	}
	delete(m.keys, id)
	entry.KeyPair.Destroy()
	return nil
}

// remove forgets id without destroying its key pair, which the caller
// still owns.
func (m *MemoryStore) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, id)
}

func cloneEntry(e *KeyEntry) *KeyEntry {
	c := *e
	c.Labels = maps.Clone(e.Labels)
	return &c
}
