package mfsstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisBlobStore implements BlobStore on Redis strings.
//
// Layout:
//   - <prefix>blob:<path>  the blob bytes
//   - <prefix>paths        sorted set of every path (score 0), so prefix
//     listings are ZRANGEBYLEX scans instead of KEYS
//
// A write updates the blob and the path set in one MULTI/EXEC. Remove
// resolves its targets before the transaction, so a write racing a
// directory removal can survive it; callers serialize writes per store.
type RedisBlobStore struct {
	redis      *redis.Client
	keyPrefix  string
	ownsClient bool // If true, Close() will close the Redis client
}

// NewRedisBlobStore creates a Redis blob store under keyPrefix
func NewRedisBlobStore(client *redis.Client, keyPrefix string) *RedisBlobStore {
	return &RedisBlobStore{
		redis:     client,
		keyPrefix: keyPrefix,
	}
}

// NewRedisBlobStoreWithOwnedClient creates a Redis blob store that closes
// the client on Close()
func NewRedisBlobStoreWithOwnedClient(client *redis.Client, keyPrefix string) *RedisBlobStore {
	s := NewRedisBlobStore(client, keyPrefix)
	s.ownsClient = true
	return s
}

func (r *RedisBlobStore) blobKey(path string) string {
	return r.keyPrefix + "blob:" + path
}

func (r *RedisBlobStore) pathsKey() string {
	return r.keyPrefix + "paths"
}

func (r *RedisBlobStore) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := r.redis.Get(ctx, r.blobKey(path)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (r *RedisBlobStore) exists(ctx context.Context, path string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.blobKey(path)).Result()
	return n > 0, err
}

func (r *RedisBlobStore) Write(ctx context.Context, path string, data []byte, opts WriteOptions) error {
	if !opts.Create {
		ok, err := r.exists(ctx, path)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
	}

	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.blobKey(path), data, 0)
		pipe.ZAdd(ctx, r.pathsKey(), redis.Z{Score: 0, Member: path})
		return nil
	})
	return err
}

// paths returns every stored path under dir, in lexicographic order
func (r *RedisBlobStore) paths(ctx context.Context, dir string) ([]string, error) {
	rng := &redis.ZRangeBy{Min: "-", Max: "+"}
	if prefix := dirPrefix(dir); prefix != "" {
		rng = &redis.ZRangeBy{Min: "[" + prefix, Max: "[" + prefix + "\xff"}
	}
	return r.redis.ZRangeByLex(ctx, r.pathsKey(), rng).Result()
}

func (r *RedisBlobStore) Remove(ctx context.Context, path string) error {
	ok, err := r.exists(ctx, path)
	if err != nil {
		return err
	}

	targets := []string{}
	if ok {
		targets = append(targets, path)
	} else {
		targets, err = r.paths(ctx, path)
		if err != nil {
			return err
		}
	}
	if len(targets) == 0 {
		return ErrNotFound
	}

	_, err = r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		keys := make([]string, 0, len(targets))
		members := make([]interface{}, 0, len(targets))
		for _, p := range targets {
			keys = append(keys, r.blobKey(p))
			members = append(members, p)
		}
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, r.pathsKey(), members...)
		return nil
	})
	return err
}

func (r *RedisBlobStore) Stat(ctx context.Context, path string) (Stat, error) {
	size, err := r.redis.StrLen(ctx, r.blobKey(path)).Result()
	if err != nil {
		return Stat{}, err
	}
	if size > 0 {
		return Stat{Exists: true, Type: EntryFile, Size: size}, nil
	}
	// STRLEN cannot tell an empty blob from a missing one
	ok, err := r.exists(ctx, path)
	if err != nil {
		return Stat{}, err
	}
	if ok {
		return Stat{Exists: true, Type: EntryFile}, nil
	}

	children, err := r.List(ctx, path)
	if err != nil {
		return Stat{}, err
	}
	if len(children) == 0 {
		return Stat{}, nil
	}
	return Stat{Exists: true, Type: EntryDirectory, Children: len(children)}, nil
}

func (r *RedisBlobStore) List(ctx context.Context, path string) ([]DirEntry, error) {
	paths, err := r.paths(ctx, path)
	if err != nil {
		return nil, err
	}
	return childEntries(path, paths), nil
}

// Ping checks the Redis connection
func (r *RedisBlobStore) Ping(ctx context.Context) error {
	return r.redis.Ping(ctx).Err()
}

// Close closes the Redis client if this store owns it
func (r *RedisBlobStore) Close() error {
	if r.ownsClient && r.redis != nil {
		return r.redis.Close()
	}
	return nil
}
