package mfsstore

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RecordStore keeps one JSON blob per key under <dbname> and keeps the
// secondary indexes in step with every write.
//
// Encoded documents are cached by key; reads always decode a fresh copy so
// callers may modify what they get back.
type RecordStore struct {
	blobs   BlobStore
	dbname  string
	schema  Schema
	indexes *IndexManager
	cache   *lru.Cache[Key, []byte]
	logger  Logger
	metrics Metrics
}

// NewRecordStore creates a record store. cacheSize <= 0 disables the cache.
func NewRecordStore(blobs BlobStore, dbname string, schema Schema, indexes *IndexManager, cacheSize int, logger Logger, metrics Metrics) (*RecordStore, error) {
	r := &RecordStore{
		blobs:   blobs,
		dbname:  dbname,
		schema:  schema,
		indexes: indexes,
		logger:  logger,
		metrics: metrics,
	}
	if cacheSize > 0 {
		cache, err := lru.New[Key, []byte](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create record cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

func (r *RecordStore) path(key Key) string {
	return recordPath(r.dbname, key)
}

// Get returns the document for key, or nil if there is none
func (r *RecordStore) Get(ctx context.Context, key Key) (Document, error) {
	r.metrics.Increment(MetricRecordGet)

	if r.cache != nil {
		if data, ok := r.cache.Get(key); ok {
			r.metrics.Increment(MetricCacheHits)
			return decodeDocument(r.path(key), data)
		}
		r.metrics.Increment(MetricCacheMisses)
	}

	data, err := r.blobs.Read(ctx, r.path(key))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		r.metrics.Increment(MetricRecordErrors, "operation", "get")
		return nil, fmt.Errorf("failed to read record %s: %w", key, err)
	}

	doc, err := decodeDocument(r.path(key), data)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Add(key, data)
	}
	return doc, nil
}

// Exists reports whether a record is stored for key
func (r *RecordStore) Exists(ctx context.Context, key Key) (bool, error) {
	if r.cache != nil && r.cache.Contains(key) {
		return true, nil
	}
	st, err := r.blobs.Stat(ctx, r.path(key))
	if err != nil {
		return false, fmt.Errorf("failed to stat record %s: %w", key, err)
	}
	return st.Exists && st.Type == EntryFile, nil
}

// Put replaces the document for key. Every column index is updated from the
// previous document before the blob is rewritten; an existing blob is
// removed first. If any step fails the in-memory indexes are restored.
func (r *RecordStore) Put(ctx context.Context, key Key, value Document) error {
	start := time.Now()

	doc, data, err := normalizeDocument(value)
	if err != nil {
		return WithContext(ErrInvalidData, map[string]interface{}{
			"operation": "Put",
			"key":       key,
			"reason":    err.Error(),
		})
	}

	old, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	r.forget(key)

	r.indexes.begin()
	for _, c := range r.schema {
		newValue, newOK := doc.Field(c.Name)
		oldValue, oldOK := old.Field(c.Name)
		if err := r.indexes.Update(ctx, c.Name, key, newValue, newOK, oldValue, oldOK); err != nil {
			r.indexes.rollback(ctx)
			return err
		}
	}

	p := r.path(key)
	if old != nil {
		if err := r.blobs.Remove(ctx, p); err != nil && !IsNotFound(err) {
			r.indexes.rollback(ctx)
			r.metrics.Increment(MetricRecordErrors, "operation", "put")
			return fmt.Errorf("failed to remove previous record %s: %w", key, err)
		}
	}
	if err := r.blobs.Write(ctx, p, data, WriteOptions{Create: true, Parents: true}); err != nil {
		if old == nil {
			r.indexes.rollback(ctx)
		} else {
			// the previous blob is gone; indexes already describe the new
			// document, so a retry only has the blob left to write
			r.indexes.commit()
		}
		r.metrics.Increment(MetricRecordErrors, "operation", "put")
		return fmt.Errorf("failed to write record %s: %w", key, err)
	}
	r.indexes.commit()

	if r.cache != nil {
		r.cache.Add(key, data)
	}
	r.metrics.Increment(MetricRecordPut)
	r.metrics.Timing(MetricRecordPutDuration, time.Since(start))
	return nil
}

// Remove deletes the record and strips key from every index. Removing a
// missing key is a no-op.
func (r *RecordStore) Remove(ctx context.Context, key Key) error {
	old, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	r.forget(key)
	if old == nil {
		return nil
	}

	r.indexes.begin()
	for _, c := range r.schema {
		oldValue, oldOK := old.Field(c.Name)
		if err := r.indexes.Update(ctx, c.Name, key, nil, false, oldValue, oldOK); err != nil {
			r.indexes.rollback(ctx)
			return err
		}
	}

	if err := r.blobs.Remove(ctx, r.path(key)); err != nil && !IsNotFound(err) {
		r.indexes.rollback(ctx)
		r.metrics.Increment(MetricRecordErrors, "operation", "remove")
		return fmt.Errorf("failed to remove record %s: %w", key, err)
	}
	r.indexes.commit()

	r.metrics.Increment(MetricRecordRemove)
	return nil
}

// Keys returns record keys in adapter listing order
func (r *RecordStore) Keys(ctx context.Context) ([]Key, error) {
	entries, err := r.blobs.List(ctx, r.dbname)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	keys := make([]Key, 0, len(entries))
	for _, e := range entries {
		if e.Type != EntryFile {
			continue
		}
		if key, ok := keyFromName(e.Name); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Count returns the number of stored records
func (r *RecordStore) Count(ctx context.Context) (int, error) {
	keys, err := r.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// List returns documents in adapter listing order. limit <= 0 returns
// everything after offset.
func (r *RecordStore) List(ctx context.Context, offset, limit int) ([]Document, error) {
	keys, err := r.Keys(ctx)
	if err != nil {
		return nil, err
	}

	if offset < 0 {
		offset = 0
	}
	if offset >= len(keys) {
		return []Document{}, nil
	}
	keys = keys[offset:]
	if limit > 0 && limit < len(keys) {
		keys = keys[:limit]
	}

	docs := make([]Document, 0, len(keys))
	for _, key := range keys {
		doc, err := r.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Purge drops every cached document
func (r *RecordStore) Purge() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

func (r *RecordStore) forget(key Key) {
	if r.cache != nil {
		r.cache.Remove(key)
	}
}
