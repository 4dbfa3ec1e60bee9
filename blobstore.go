package mfsstore

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// BlobStore is the byte-addressable hierarchical storage the projection is
// persisted into. Paths are slash separated and relative to the store root.
//
// Implementations: FilesystemBlobStore, MemoryBlobStore, S3BlobStore (and
// MinIO through it), GCSBlobStore, RedisBlobStore. Object stores have no real
// directories; a directory exists while any object lives under its prefix.
type BlobStore interface {
	// Read returns the blob at path, or ErrNotFound
	Read(ctx context.Context, path string) ([]byte, error)

	// Write stores data at path, replacing any existing blob
	Write(ctx context.Context, path string, data []byte, opts WriteOptions) error

	// Remove deletes a blob or a whole directory tree, or returns ErrNotFound
	Remove(ctx context.Context, path string) error

	// Stat describes path. A missing path is Exists=false, not an error.
	Stat(ctx context.Context, path string) (Stat, error)

	// List returns the immediate children of a directory.
	// A missing directory lists as empty.
	List(ctx context.Context, path string) ([]DirEntry, error)
}

// WriteOptions mirror the MFS write flags
type WriteOptions struct {
	Create  bool // create the blob if it does not exist; otherwise ErrNotFound
	Parents bool // create missing parent directories (filesystem only)
}

// EntryType distinguishes files from directories in listings
type EntryType int

const (
	EntryFile EntryType = iota
	EntryDirectory
)

func (t EntryType) String() string {
	if t == EntryDirectory {
		return "directory"
	}
	return "file"
}

// DirEntry is one child returned by List
type DirEntry struct {
	Name string
	Type EntryType
}

// Stat describes a path
type Stat struct {
	Exists   bool
	Type     EntryType
	Size     int64 // bytes, files only
	Children int   // immediate children, directories only
}

// joinPath joins slash separated path elements
func joinPath(elem ...string) string {
	return path.Join(elem...)
}

// validatePath rejects paths that would escape the store root
func validatePath(p string) error {
	if p == "" {
		return nil
	}
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("path %q must be relative", p)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return fmt.Errorf("path %q must not contain '..'", p)
		}
	}
	return nil
}

// childEntries derives the immediate children of dir from a flat list of
// object paths. Used by the object-store adapters.
func childEntries(dir string, objects []string) []DirEntry {
	prefix := dirPrefix(dir)
	seen := make(map[string]bool)
	var entries []DirEntry
	for _, obj := range objects {
		if !strings.HasPrefix(obj, prefix) {
			continue
		}
		rest := strings.TrimPrefix(obj, prefix)
		if rest == "" {
			continue
		}
		name, _, nested := strings.Cut(rest, "/")
		if seen[name] {
			continue
		}
		seen[name] = true
		typ := EntryFile
		if nested {
			typ = EntryDirectory
		}
		entries = append(entries, DirEntry{Name: name, Type: typ})
	}
	return entries
}

// dirPrefix returns the object key prefix for everything under dir
func dirPrefix(dir string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return ""
	}
	return dir + "/"
}
