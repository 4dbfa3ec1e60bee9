package mfsstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSBlobStore implements BlobStore using Google Cloud Storage
type GCSBlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// GCSConfig contains GCS-specific configuration
type GCSConfig struct {
	ProjectID       string
	Bucket          string
	Prefix          string // optional object name prefix
	CredentialsFile string // Path to service account JSON file (optional, uses ADC if empty)
}

// NewGCSBlobStore creates a new GCS blob store
func NewGCSBlobStore(ctx context.Context, cfg GCSConfig) (*GCSBlobStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSBlobStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: dirPrefix(cfg.Prefix),
	}, nil
}

func (b *GCSBlobStore) object(path string) *storage.ObjectHandle {
	return b.client.Bucket(b.bucket).Object(b.prefix + path)
}

func mapGCSError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotFound
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound, http.StatusPreconditionFailed:
			return ErrNotFound
		case http.StatusForbidden, http.StatusUnauthorized:
			return ErrUnauthorized
		}
	}
	return err
}

func (b *GCSBlobStore) Read(ctx context.Context, path string) ([]byte, error) {
	reader, err := b.object(path).NewReader(ctx)
	if err != nil {
		return nil, mapGCSError(err)
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// Write without Create requires an existing object. The overwrite is
// conditioned on the generation that was seen, so an object deleted in
// between is not recreated.
func (b *GCSBlobStore) Write(ctx context.Context, path string, data []byte, opts WriteOptions) error {
	obj := b.object(path)
	if !opts.Create {
		attrs, err := obj.Attrs(ctx)
		if err != nil {
			return mapGCSError(err)
		}
		obj = obj.If(storage.Conditions{GenerationMatch: attrs.Generation})
	}

	writer := obj.NewWriter(ctx)
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return mapGCSError(err)
	}
	return mapGCSError(writer.Close())
}

func (b *GCSBlobStore) Remove(ctx context.Context, path string) error {
	err := b.object(path).Delete(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrObjectNotExist) {
		return mapGCSError(err)
	}

	removed := 0
	it := b.client.Bucket(b.bucket).Objects(ctx, &storage.Query{Prefix: b.prefix + dirPrefix(path)})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return mapGCSError(err)
		}
		if err := b.client.Bucket(b.bucket).Object(attrs.Name).Delete(ctx); err != nil {
			return mapGCSError(err)
		}
		removed++
	}

	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

func (b *GCSBlobStore) Stat(ctx context.Context, path string) (Stat, error) {
	attrs, err := b.object(path).Attrs(ctx)
	if err == nil {
		return Stat{Exists: true, Type: EntryFile, Size: attrs.Size}, nil
	}
	if !errors.Is(err, storage.ErrObjectNotExist) {
		return Stat{}, mapGCSError(err)
	}

	children, err := b.List(ctx, path)
	if err != nil {
		return Stat{}, err
	}
	if len(children) == 0 {
		return Stat{}, nil
	}
	return Stat{Exists: true, Type: EntryDirectory, Children: len(children)}, nil
}

// List queries with a "/" delimiter; synthetic directory entries come back
// with Prefix set and an empty Name.
func (b *GCSBlobStore) List(ctx context.Context, path string) ([]DirEntry, error) {
	prefix := b.prefix + dirPrefix(path)
	it := b.client.Bucket(b.bucket).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})

	var entries []DirEntry
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapGCSError(err)
		}
		if attrs.Prefix != "" {
			name := strings.TrimSuffix(strings.TrimPrefix(attrs.Prefix, prefix), "/")
			entries = append(entries, DirEntry{Name: name, Type: EntryDirectory})
			continue
		}
		if name := strings.TrimPrefix(attrs.Name, prefix); name != "" {
			entries = append(entries, DirEntry{Name: name, Type: EntryFile})
		}
	}
	return entries, nil
}

// Ping checks bucket access
func (b *GCSBlobStore) Ping(ctx context.Context) error {
	_, err := b.client.Bucket(b.bucket).Attrs(ctx)
	return err
}

func (b *GCSBlobStore) Close() error {
	return b.client.Close()
}
