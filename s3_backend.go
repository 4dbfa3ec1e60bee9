package mfsstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3BlobStore implements BlobStore using AWS S3 (or S3-compatible storage).
// Directories are key prefixes; Parents is implied.
type S3BlobStore struct {
	client *s3.Client
	bucket string
	prefix string // optional key prefix, e.g. "tenants/acme/"
}

// NewS3BlobStore creates a new S3 blob store
func NewS3BlobStore(client *s3.Client, bucket string) *S3BlobStore {
	return &S3BlobStore{
		client: client,
		bucket: bucket,
	}
}

// WithPrefix returns a store sharing the client that keeps every blob
// under prefix inside the bucket
func (b *S3BlobStore) WithPrefix(prefix string) *S3BlobStore {
	scoped := *b
	scoped.prefix = dirPrefix(prefix)
	return &scoped
}

func (b *S3BlobStore) objectKey(path string) string {
	return b.prefix + path
}

func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}
	return strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "NotFound")
}

func mapS3Error(err error) error {
	if err == nil {
		return nil
	}
	if isS3NotFound(err) {
		return ErrNotFound
	}
	if strings.Contains(err.Error(), "AccessDenied") {
		return ErrUnauthorized
	}
	return err
}

func (b *S3BlobStore) Read(ctx context.Context, path string) ([]byte, error) {
	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(path)),
	})
	if err != nil {
		return nil, mapS3Error(err)
	}
	defer func() { _ = result.Body.Close() }() //nolint:errcheck // Deferred close

	return io.ReadAll(result.Body)
}

func (b *S3BlobStore) head(ctx context.Context, path string) (*s3.HeadObjectOutput, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(path)),
	})
	return out, mapS3Error(err)
}

func (b *S3BlobStore) Write(ctx context.Context, path string, data []byte, opts WriteOptions) error {
	if !opts.Create {
		if _, err := b.head(ctx, path); err != nil {
			return err
		}
	}

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(path)),
		Body:   bytes.NewReader(data),
	})
	return mapS3Error(err)
}

// Remove deletes the object at path, or every object under path/ when it
// names a directory
func (b *S3BlobStore) Remove(ctx context.Context, path string) error {
	if _, err := b.head(ctx, path); err == nil {
		_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.objectKey(path)),
		})
		return mapS3Error(err)
	} else if !IsNotFound(err) {
		return err
	}

	removed := 0
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.prefix + dirPrefix(path)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return mapS3Error(err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		if _, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		}); err != nil {
			return mapS3Error(err)
		}
		removed += len(ids)
	}

	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

func (b *S3BlobStore) Stat(ctx context.Context, path string) (Stat, error) {
	head, err := b.head(ctx, path)
	if err == nil {
		return Stat{Exists: true, Type: EntryFile, Size: aws.ToInt64(head.ContentLength)}, nil
	}
	if !IsNotFound(err) {
		return Stat{}, err
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

// List uses a "/" delimiter so S3 returns files and common prefixes
// (directories) one level deep, in lexicographic order.
func (b *S3BlobStore) List(ctx context.Context, path string) ([]DirEntry, error) {
	prefix := b.prefix + dirPrefix(path)
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var entries []DirEntry
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapS3Error(err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name != "" {
				entries = append(entries, DirEntry{Name: name, Type: EntryFile})
			}
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			entries = append(entries, DirEntry{Name: name, Type: EntryDirectory})
		}
	}
	return entries, nil
}

// Ping checks if the bucket is accessible
func (b *S3BlobStore) Ping(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	return err
}
