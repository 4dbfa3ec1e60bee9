package mfsstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryBlobStore keeps blobs in a map. Directories are implicit, like the
// object-store adapters. Useful for tests and ephemeral projections.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (m *MemoryBlobStore) Read(ctx context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[path]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryBlobStore) Write(ctx context.Context, path string, data []byte, opts WriteOptions) error {
	if err := validatePath(path); err != nil || path == "" {
		return WithContext(ErrInvalidData, map[string]interface{}{"path": path})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blobs[path]; !ok && !opts.Create {
		return ErrNotFound
	}
	m.blobs[path] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBlobStore) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	if _, ok := m.blobs[path]; ok {
		delete(m.blobs, path)
		removed++
	}
	prefix := dirPrefix(path)
	for p := range m.blobs {
		if strings.HasPrefix(p, prefix) {
			delete(m.blobs, p)
			removed++
		}
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MemoryBlobStore) Stat(ctx context.Context, path string) (Stat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if data, ok := m.blobs[path]; ok {
		return Stat{Exists: true, Type: EntryFile, Size: int64(len(data))}, nil
	}
	children := childEntries(path, m.pathsLocked())
	if len(children) == 0 {
		return Stat{}, nil
	}
	return Stat{Exists: true, Type: EntryDirectory, Children: len(children)}, nil
}

func (m *MemoryBlobStore) List(ctx context.Context, path string) ([]DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return childEntries(path, m.pathsLocked()), nil
}

// pathsLocked returns all blob paths in lexicographic order
func (m *MemoryBlobStore) pathsLocked() []string {
	paths := make([]string, 0, len(m.blobs))
	for p := range m.blobs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of stored blobs
func (m *MemoryBlobStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
