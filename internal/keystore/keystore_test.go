package keystore

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glinharesb/ecsign/internal/crypto"
)

func makeEntry(t *testing.T, id string) *KeyEntry {
	t.Helper()
	kp, err := crypto.Generate(crypto.ECDSAP256SHA256, crypto.SystemRandom())
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &KeyEntry{
		ID:        id,
		Algorithm: crypto.ECDSAP256SHA256,
		Status:    StatusActive,
		KeyPair:   kp,
		CreatedAt: time.Now(),
		Labels:    map[string]string{"env": "test"},
	}
}

func TestPutAndGet(t *testing.T) {
	store := NewMemoryStore()
	entry := makeEntry(t, "key-1")

	if err := store.Put(entry); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get("key-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "key-1" {
		t.Fatalf("id mismatch: got %s", got.ID)
	}
	if !got.KeyPair.Public().Equal(entry.KeyPair.Public()) {
		t.Fatal("stored key pair differs")
	}
}

func TestPutDuplicate(t *testing.T) {
	store := NewMemoryStore()
	store.Put(makeEntry(t, "key-1"))

	err := store.Put(makeEntry(t, "key-1"))
	if !errors.Is(err, ErrKeyExists) {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}
}

func TestPutRejectsAlgorithmMismatch(t *testing.T) {
	store := NewMemoryStore()
	entry := makeEntry(t, "key-1")
	entry.Algorithm = 0

	if err := store.Put(entry); err == nil {
		t.Fatal("entry with mismatched algorithm should be rejected")
	}
}

func TestGetNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get("nonexistent")
	if err != ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	store.Put(makeEntry(t, "key-1"))

	got, _ := store.Get("key-1")
	got.Status = StatusDeactivated
	got.Labels["env"] = "mutated"

	again, _ := store.Get("key-1")
	if again.Status != StatusActive || again.Labels["env"] != "test" {
		t.Fatal("mutating a returned entry should not change the store")
	}
}

func TestListAll(t *testing.T) {
	store := NewMemoryStore()
	for i := range 5 {
		store.Put(makeEntry(t, fmt.Sprintf("key-%d", i)))
	}

	keys, err := store.List(0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 5 {
		t.Fatalf("expected 5 keys, got %d", len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i].CreatedAt.Before(keys[i-1].CreatedAt) {
			t.Fatal("list should be ordered oldest first")
		}
	}
}

func TestListFiltered(t *testing.T) {
	store := NewMemoryStore()
	for i := range 5 {
		e := makeEntry(t, fmt.Sprintf("key-%d", i))
		if i%2 == 0 {
			e.Status = StatusDeactivated
		}
		store.Put(e)
	}

	active, _ := store.List(StatusActive)
	if len(active) != 2 {
		t.Fatalf("expected 2 active, got %d", len(active))
	}

	deactivated, _ := store.List(StatusDeactivated)
	if len(deactivated) != 3 {
		t.Fatalf("expected 3 deactivated, got %d", len(deactivated))
	}
}

func TestUpdateStatus(t *testing.T) {
	store := NewMemoryStore()
	store.Put(makeEntry(t, "key-1"))

	if err := store.UpdateStatus("key-1", StatusRotated); err != nil {
		t.Fatalf("update status: %v", err)
	}

	got, _ := store.Get("key-1")
	if got.Status != StatusRotated {
		t.Fatalf("expected StatusRotated, got %v", got.Status)
	}
	if got.RotatedAt.IsZero() {
		t.Fatal("rotation time should be set")
	}
	if !errors.Is(got.CanSign(), ErrKeyInactive) {
		t.Fatal("rotated key should not sign")
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	store := NewMemoryStore()
	if err := store.UpdateStatus("nonexistent", StatusRotated); err != ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store := NewMemoryStore()
	entry := makeEntry(t, "key-1")
	store.Put(entry)

	if err := store.Delete("key-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, err := store.Get("key-1")
	if err != ErrKeyNotFound {
		t.Fatal("deleted key should not be found")
	}
	if _, err := crypto.Sign(entry.KeyPair, []byte("x"), crypto.SystemRandom()); err == nil {
		t.Fatal("deleted key pair should be destroyed")
	}
}

func TestDeleteNotFound(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Delete("nonexistent"); err != ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestConcurrentReadWrite(t *testing.T) {
	store := NewMemoryStore()
	const numKeys = 50
	const numReaders = 100

	// Pre-populate half the keys
	for i := range numKeys / 2 {
		store.Put(makeEntry(t, fmt.Sprintf("pre-%d", i)))
	}

	writes := make([]*KeyEntry, numKeys)
	for i := range numKeys {
		writes[i] = makeEntry(t, fmt.Sprintf("w-%d", i))
	}

	var wg sync.WaitGroup

	for i := range numKeys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Put(writes[i])
		}(i)
	}

	for range numReaders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.List(0)
		}()
	}

	for i := range numKeys / 2 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.Get(fmt.Sprintf("pre-%d", i))
		}(i)
	}

	for i := range numKeys / 2 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.UpdateStatus(fmt.Sprintf("pre-%d", i), StatusRotated)
		}(i)
	}

	wg.Wait()

	for i := range numKeys / 2 {
		got, err := store.Get(fmt.Sprintf("pre-%d", i))
		if err != nil {
			t.Fatalf("pre-%d not found: %v", i, err)
		}
		if got.Status != StatusRotated {
			t.Fatalf("pre-%d: expected rotated, got %v", i, got.Status)
		}
	}
	all, _ := store.List(0)
	if len(all) != numKeys+numKeys/2 {
		t.Fatalf("expected %d keys, got %d", numKeys+numKeys/2, len(all))
	}
}
