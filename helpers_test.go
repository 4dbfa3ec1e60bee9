package mfsstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
)

func playerSchema() Schema {
	return NewSchema(
		Multi("name"),
		Multi("currentTeam"),
		Multi("battingHand"),
		Multi("throwingHand"),
		Unique("email"),
	)
}

// newLoadedStore opens a "players" store and closes it when the test ends
func newLoadedStore(t *testing.T, blobs BlobStore, schema Schema, logger Logger, metrics Metrics) *Store {
	t.Helper()

	store, err := NewStore(blobs, Config{
		Name:    "players",
		Schema:  schema,
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})
	return store
}

func mustPut(t *testing.T, s *Store, key Key, doc Document) {
	t.Helper()
	if err := s.Put(context.Background(), key, doc); err != nil {
		t.Fatalf("Put(%s) failed: %v", key, err)
	}
}

func mustKeys(t *testing.T, s *Store, column string, value any, page Page) []Key {
	t.Helper()
	keys, err := s.KeysByIndex(column, value, page)
	if err != nil {
		t.Fatalf("KeysByIndex(%s, %v) failed: %v", column, value, err)
	}
	return keys
}

func keysEqual(a, b []Key) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func docNames(docs []Document) []string {
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i], _ = d["name"].(string)
	}
	return names
}

// faultyBlobStore wraps a BlobStore and fails writes whose path contains
// failOn, until failOn is cleared.
type faultyBlobStore struct {
	BlobStore

	mu     sync.Mutex
	failOn string
	writes []string
}

var errInjected = errors.New("injected write failure")

func newFaultyBlobStore(inner BlobStore) *faultyBlobStore {
	return &faultyBlobStore{BlobStore: inner}
}

func (f *faultyBlobStore) failWritesTo(fragment string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn = fragment
}

func (f *faultyBlobStore) Write(ctx context.Context, p string, data []byte, opts WriteOptions) error {
	f.mu.Lock()
	fail := f.failOn != "" && strings.Contains(p, f.failOn)
	f.writes = append(f.writes, p)
	f.mu.Unlock()

	if fail {
		return errInjected
	}
	return f.BlobStore.Write(ctx, p, data, opts)
}

func (f *faultyBlobStore) writeCount(fragment string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.writes {
		if strings.Contains(p, fragment) {
			n++
		}
	}
	return n
}

// snapshot captures every blob under a memory store for state comparisons
func snapshot(m *MemoryBlobStore) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.blobs))
	for k, v := range m.blobs {
		out[k] = string(v)
	}
	return out
}

func sortedKeys(keys []Key) []Key {
	out := append([]Key(nil), keys...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
