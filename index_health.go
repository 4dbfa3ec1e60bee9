package mfsstore

import (
	"context"
	"time"
)

// ColumnHealth compares one column's index with the stored records
type ColumnHealth struct {
	Column  string
	Unique  bool
	Indexed int // records with a value for the column

	// MissingKeys have a value in their record but are not indexed under it
	MissingKeys []Key
	// StaleKeys are indexed under a value their record does not hold, or
	// have no record at all
	StaleKeys []Key
	// ShadowedKeys hold a unique value that another record owns in the index
	ShadowedKeys []Key
}

// Healthy reports whether the column has no missing or stale entries.
// Shadowed keys are expected for unique columns written last-writer-wins.
func (c ColumnHealth) Healthy() bool {
	return len(c.MissingKeys) == 0 && len(c.StaleKeys) == 0
}

// IndexHealthReport is the result of CheckIndexes
type IndexHealthReport struct {
	Timestamp    time.Time
	Store        string
	TotalRecords int
	Columns      []ColumnHealth
	Duration     time.Duration
}

// Healthy reports whether every column is healthy
func (r *IndexHealthReport) Healthy() bool {
	for _, c := range r.Columns {
		if !c.Healthy() {
			return false
		}
	}
	return true
}

// CheckIndexes scans every record and compares it with the in-memory
// indexes. It is read-only and repairs nothing.
func (s *Store) CheckIndexes(ctx context.Context) (*IndexHealthReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readable(); err != nil {
		return nil, err
	}

	start := time.Now()
	keys, err := s.records.Keys(ctx)
	if err != nil {
		return nil, err
	}

	docs := make(map[Key]Document, len(keys))
	for _, key := range keys {
		doc, err := s.records.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			docs[key] = doc
		}
	}

	report := &IndexHealthReport{
		Timestamp:    start,
		Store:        s.name,
		TotalRecords: len(docs),
	}
	for _, c := range s.schema {
		report.Columns = append(report.Columns, checkColumn(c, s.indexes.indexes[c.Name], keys, docs))
	}
	report.Duration = time.Since(start)

	if !report.Healthy() {
		for _, c := range report.Columns {
			if c.Healthy() {
				continue
			}
			s.logger.Warn("index drift detected",
				"column", c.Column,
				"missing", len(c.MissingKeys),
				"stale", len(c.StaleKeys),
			)
		}
	}
	return report, nil
}

func checkColumn(c Column, ix *sortedIndex, keys []Key, docs map[Key]Document) ColumnHealth {
	health := ColumnHealth{Column: c.Name, Unique: c.Unique}
	indexed := make(map[Key]bool)

	// Index side: every entry must match its record
	it := ix.tree.Iterator()
	for it.Next() {
		for _, key := range ix.appendPayload(nil, it.Value()) {
			v, ok := docs[key].Field(c.Name)
			if !ok || !valuesEqual(v, it.Key()) {
				health.StaleKeys = append(health.StaleKeys, key)
				continue
			}
			indexed[key] = true
		}
	}

	// Record side: every value must be indexed
	for _, key := range keys {
		doc, ok := docs[key]
		if !ok {
			continue
		}
		v, ok := doc.Field(c.Name)
		if !ok {
			continue
		}
		health.Indexed++
		if indexed[key] {
			continue
		}
		if c.Unique {
			if owner, found := ix.owner(v); found && owner != key {
				if ov, ok := docs[owner].Field(c.Name); ok && valuesEqual(ov, v) {
					health.ShadowedKeys = append(health.ShadowedKeys, key)
					continue
				}
			}
		}
		health.MissingKeys = append(health.MissingKeys, key)
	}

	return health
}
