package mfsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FilesystemBlobStore implements BlobStore on a local directory
type FilesystemBlobStore struct {
	basePath string
	locks    *StripedLocks // Fine-grained locking per path
}

// NewFilesystemBlobStore creates a filesystem blob store with 32 lock stripes
func NewFilesystemBlobStore(basePath string) *FilesystemBlobStore {
	return NewFilesystemBlobStoreWithStripes(basePath, DefaultLockStripes)
}

// NewFilesystemBlobStoreWithStripes creates a filesystem blob store with a custom stripe count
func NewFilesystemBlobStoreWithStripes(basePath string, stripes int) *FilesystemBlobStore {
	return &FilesystemBlobStore{
		basePath: basePath,
		locks:    NewStripedLocks(stripes),
	}
}

func (b *FilesystemBlobStore) getPath(p string) (string, error) {
	if err := validatePath(p); err != nil {
		return "", WithContext(ErrInvalidData, map[string]interface{}{
			"path":   p,
			"reason": err.Error(),
		})
	}
	return filepath.Join(b.basePath, filepath.FromSlash(p)), nil
}

func mapFSError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrUnauthorized
	default:
		return err
	}
}

func (b *FilesystemBlobStore) Read(ctx context.Context, p string) ([]byte, error) {
	full, err := b.getPath(p)
	if err != nil {
		return nil, err
	}

	unlock := b.locks.RLock(p)
	defer unlock()

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, mapFSError(err)
	}
	return data, nil
}

func (b *FilesystemBlobStore) Write(ctx context.Context, p string, data []byte, opts WriteOptions) error {
	full, err := b.getPath(p)
	if err != nil {
		return err
	}

	unlock := b.locks.Lock(p)
	defer unlock()

	if opts.Parents {
		if err := os.MkdirAll(filepath.Dir(full), DefaultDirPermissions); err != nil {
			return mapFSError(err)
		}
	}

	flags := os.O_WRONLY | os.O_TRUNC
	if opts.Create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(full, flags, DefaultFilePermissions)
	if err != nil {
		return mapFSError(err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (b *FilesystemBlobStore) Remove(ctx context.Context, p string) error {
	full, err := b.getPath(p)
	if err != nil {
		return err
	}

	unlock := b.locks.Lock(p)
	defer unlock()

	if _, err := os.Stat(full); err != nil {
		return mapFSError(err)
	}
	return mapFSError(os.RemoveAll(full))
}

func (b *FilesystemBlobStore) Stat(ctx context.Context, p string) (Stat, error) {
	full, err := b.getPath(p)
	if err != nil {
		return Stat{}, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Stat{}, nil
		}
		return Stat{}, mapFSError(err)
	}

	if !info.IsDir() {
		return Stat{Exists: true, Type: EntryFile, Size: info.Size()}, nil
	}

	children, err := os.ReadDir(full)
	if err != nil {
		return Stat{}, mapFSError(err)
	}
	return Stat{Exists: true, Type: EntryDirectory, Children: len(children)}, nil
}

// List returns entries sorted by filename, which is the listing order
// RecordStore.List pages over.
func (b *FilesystemBlobStore) List(ctx context.Context, p string) ([]DirEntry, error) {
	full, err := b.getPath(p)
	if err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, mapFSError(err)
	}

	entries := make([]DirEntry, 0, len(dirEntries))
	for _, de := range dirEntries {
		typ := EntryFile
		if de.IsDir() {
			typ = EntryDirectory
		}
		entries = append(entries, DirEntry{Name: de.Name(), Type: typ})
	}
	return entries, nil
}

// Ping checks the base directory exists and is writable
func (b *FilesystemBlobStore) Ping(ctx context.Context) error {
	info, err := os.Stat(b.basePath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("base path is not a directory: %s", b.basePath)
	}

	testFile := filepath.Join(b.basePath, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), DefaultFilePermissions); err != nil {
		return fmt.Errorf("cannot write to base path: %w", err)
	}
	os.Remove(testFile)

	return nil
}
