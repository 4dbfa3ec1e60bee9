package mfsstore

import (
	"context"
	"time"
)

// readable checks the store can serve queries. Caller holds mu.
func (s *Store) readable() error {
	if s.state != stateLoaded {
		return s.stateErr()
	}
	return nil
}

// Get returns the document stored for key, or nil if there is none
func (s *Store) Get(ctx context.Context, key Key) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readable(); err != nil {
		return nil, err
	}
	return s.records.Get(ctx, key)
}

// Exists reports whether a document is stored for key
func (s *Store) Exists(ctx context.Context, key Key) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readable(); err != nil {
		return false, err
	}
	return s.records.Exists(ctx, key)
}

// KeysByIndex returns the keys indexed under value in column. An unknown
// column yields no keys.
func (s *Store) KeysByIndex(column string, value any, page Page) ([]Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readable(); err != nil {
		return nil, err
	}

	start := time.Now()
	keys := s.indexes.Query(column, value, page)
	s.observeQuery("index", start, len(keys))
	return keys, nil
}

// GetByIndex resolves KeysByIndex to documents
func (s *Store) GetByIndex(ctx context.Context, column string, value any, page Page) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readable(); err != nil {
		return nil, err
	}

	start := time.Now()
	keys := s.indexes.Query(column, value, page)
	docs, err := s.resolve(ctx, keys)
	s.observeQuery("index", start, len(docs))
	return docs, err
}

// KeysByRange returns the keys of every value in [from, to] in column
func (s *Store) KeysByRange(column string, from, to any, page Page) ([]Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readable(); err != nil {
		return nil, err
	}

	start := time.Now()
	keys := s.indexes.QueryRange(column, from, to, page)
	s.observeQuery("range", start, len(keys))
	return keys, nil
}

// GetByRange resolves KeysByRange to documents
func (s *Store) GetByRange(ctx context.Context, column string, from, to any, page Page) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readable(); err != nil {
		return nil, err
	}

	start := time.Now()
	keys := s.indexes.QueryRange(column, from, to, page)
	docs, err := s.resolve(ctx, keys)
	s.observeQuery("range", start, len(docs))
	return docs, err
}

// All returns every key that has a value in column
func (s *Store) All(column string, page Page) ([]Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readable(); err != nil {
		return nil, err
	}

	start := time.Now()
	keys := s.indexes.QueryAll(column, page)
	s.observeQuery("all", start, len(keys))
	return keys, nil
}

// List returns documents in storage listing order
func (s *Store) List(ctx context.Context, offset, limit int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readable(); err != nil {
		return nil, err
	}
	return s.records.List(ctx, offset, limit)
}

// Count returns the number of stored documents
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readable(); err != nil {
		return 0, err
	}
	return s.records.Count(ctx)
}

// resolve loads documents for keys, keeping key order. An index entry whose
// record is gone is skipped.
func (s *Store) resolve(ctx context.Context, keys []Key) ([]Document, error) {
	docs := make([]Document, 0, len(keys))
	for _, key := range keys {
		doc, err := s.records.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			s.logger.Warn("index entry without record", "key", key)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) observeQuery(kind string, start time.Time, results int) {
	s.metrics.Timing(MetricQueryDuration, time.Since(start), "kind", kind)
	s.metrics.Histogram(MetricQueryResults, float64(results), "kind", kind)
}
