package mfsstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Direction orders query results by key
type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// ParseDirection accepts "asc" (or empty) and "desc"
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	}
	return Asc, WithContext(ErrInvalidConfig, map[string]interface{}{
		"field":  "Direction",
		"value":  s,
		"reason": "direction must be asc or desc",
	})
}

// Page selects a window of a sorted key sequence. Keys are sorted ascending,
// reversed for Desc, then Offset are skipped and at most Limit are taken.
// Limit <= 0 takes everything after Offset.
type Page struct {
	Direction Direction
	Offset    int
	Limit     int
}

// apply sorts keys in place and returns the page window
func (p Page) apply(keys []Key) []Key {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	if p.Direction == Desc {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}

	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(keys) {
		return []Key{}
	}
	keys = keys[offset:]
	if p.Limit > 0 && p.Limit < len(keys) {
		keys = keys[:p.Limit]
	}
	return keys
}

// IndexManager keeps one sorted index per schema column and persists the
// whole set as indexMaps/_trees.json.
//
// It has no locking of its own; the owning Store serializes writers.
type IndexManager struct {
	blobs   BlobStore
	dbname  string
	schema  Schema
	indexes map[string]*sortedIndex
	logger  Logger
	metrics Metrics

	// journal holds prior entries while a record write is open
	journal []indexEntry
	// dirty is set when memory may differ from the persisted index set
	dirty bool
}

// indexEntry is the state of one value in one index before a change
type indexEntry struct {
	ix      *sortedIndex
	value   any
	payload any
	found   bool
}

func (e indexEntry) restore() {
	if e.found {
		e.ix.tree.Put(e.value, e.payload)
	} else {
		e.ix.tree.Remove(e.value)
	}
}

// NewIndexManager creates an index manager with one empty index per column
func NewIndexManager(blobs BlobStore, dbname string, schema Schema, logger Logger, metrics Metrics) *IndexManager {
	im := &IndexManager{
		blobs:   blobs,
		dbname:  dbname,
		schema:  schema,
		logger:  logger,
		metrics: metrics,
	}
	im.reset()
	return im
}

func (im *IndexManager) reset() {
	im.indexes = make(map[string]*sortedIndex, len(im.schema))
	for _, c := range im.schema {
		im.indexes[c.Name] = newSortedIndex(c.Unique)
	}
	im.journal = nil
	im.dirty = false
}

// begin opens a journal so every Update until commit or rollback can be
// undone as a unit
func (im *IndexManager) begin() {
	im.journal = []indexEntry{}
}

func (im *IndexManager) commit() {
	im.journal = nil
}

// rollback restores every entry changed since begin and tries to persist
// the restored set. If that fails the next Update flushes regardless.
func (im *IndexManager) rollback(ctx context.Context) {
	if im.journal == nil {
		return
	}
	for i := len(im.journal) - 1; i >= 0; i-- {
		im.journal[i].restore()
	}
	changed := len(im.journal) > 0
	im.journal = nil
	if !changed && !im.dirty {
		return
	}
	if err := im.Save(ctx); err != nil {
		im.dirty = true
		im.logger.Warn("index rollback not persisted", "error", err)
	}
}

func snapshotEntry(ix *sortedIndex, value any) indexEntry {
	payload, found := ix.tree.Get(value)
	return indexEntry{ix: ix, value: value, payload: payload, found: found}
}

func (im *IndexManager) path() string {
	return joinPath(im.dbname, IndexMapsDir, IndexMapsFile)
}

// Update moves key from oldValue to newValue in one column's index.
// The ok flags say whether the document had the field at all; an absent
// field is not indexed. If anything changed the full index set is flushed.
// A failed flush leaves the column as it was and marks the manager dirty,
// so the next Update flushes even when it changes nothing.
func (im *IndexManager) Update(ctx context.Context, column string, key Key, newValue any, newOK bool, oldValue any, oldOK bool) error {
	ix, ok := im.indexes[column]
	if !ok {
		return nil
	}

	var prior []indexEntry
	if oldOK {
		prior = append(prior, snapshotEntry(ix, oldValue))
	}
	if newOK {
		prior = append(prior, snapshotEntry(ix, newValue))
	}

	var changed bool
	if ix.unique {
		changed = im.updateUnique(ix, key, newValue, newOK, oldValue, oldOK)
	} else {
		changed = im.updateMulti(ix, key, newValue, newOK, oldValue, oldOK)
	}
	if !changed && !im.dirty {
		return nil
	}
	if changed {
		im.metrics.Increment(MetricIndexUpdate, "column", column)
		if im.journal != nil {
			im.journal = append(im.journal, prior...)
		}
	}

	if err := im.Save(ctx); err != nil {
		// keep memory in step with what was persisted last
		for i := len(prior) - 1; i >= 0; i-- {
			prior[i].restore()
		}
		im.dirty = true
		return err
	}
	return nil
}

// updateUnique is last-writer-wins: a new value always takes ownership.
// Old entries are only removed while they still point at key, so a record
// never strips a value another record has since claimed.
func (im *IndexManager) updateUnique(ix *sortedIndex, key Key, newValue any, newOK bool, oldValue any, oldOK bool) bool {
	changed := false

	if oldOK && (!newOK || !valuesEqual(oldValue, newValue)) {
		if owner, found := ix.owner(oldValue); found && owner == key {
			ix.remove(oldValue)
			changed = true
		}
	}

	if newOK {
		owner, found := ix.owner(newValue)
		if !found || owner != key {
			if found {
				im.logger.Debug("unique value reassigned",
					"value", newValue,
					"from", owner,
					"to", key,
				)
			}
			ix.setOwner(newValue, key)
			changed = true
		}
	}

	return changed
}

func (im *IndexManager) updateMulti(ix *sortedIndex, key Key, newValue any, newOK bool, oldValue any, oldOK bool) bool {
	isNew := !oldOK && newOK
	isChanged := !isNew && (newOK != oldOK || !valuesEqual(newValue, oldValue))

	changed := false
	if oldOK && isChanged {
		if ix.removeKey(oldValue, key) {
			changed = true
		}
	}
	if newOK && (isChanged || isNew) {
		if ix.addKey(newValue, key) {
			changed = true
		}
	}
	return changed
}

// Query returns the keys indexed under value. Unknown columns yield an
// empty result.
func (im *IndexManager) Query(column string, value any, page Page) []Key {
	ix, ok := im.indexes[column]
	if !ok {
		return []Key{}
	}
	value, err := normalizeValue(value)
	if err != nil {
		return []Key{}
	}
	return page.apply(ix.lookup(value))
}

// QueryAll returns every key present in a column's index
func (im *IndexManager) QueryAll(column string, page Page) []Key {
	ix, ok := im.indexes[column]
	if !ok {
		return []Key{}
	}
	return page.apply(dedupe(ix.all()))
}

// QueryRange returns the keys of every value in [from, to]
func (im *IndexManager) QueryRange(column string, from, to any, page Page) []Key {
	ix, ok := im.indexes[column]
	if !ok {
		return []Key{}
	}
	from, err := normalizeValue(from)
	if err != nil {
		return []Key{}
	}
	to, err = normalizeValue(to)
	if err != nil {
		return []Key{}
	}
	return page.apply(dedupe(ix.between(from, to)))
}

// Len returns the number of distinct values indexed for a column
func (im *IndexManager) Len(column string) int {
	if ix, ok := im.indexes[column]; ok {
		return ix.size()
	}
	return 0
}

func dedupe(keys []Key) []Key {
	seen := make(map[Key]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Load reads the persisted index set. A missing file, or a column missing
// from it, leaves that index empty. Columns no longer in the schema are
// ignored.
func (im *IndexManager) Load(ctx context.Context) error {
	im.reset()

	data, err := im.blobs.Read(ctx, im.path())
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to read index maps: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return malformed(im.path(), err)
	}

	for column, payload := range raw {
		ix, ok := im.indexes[column]
		if !ok {
			im.logger.Debug("ignoring persisted index for unknown column", "column", column)
			continue
		}
		if err := ix.decode(payload); err != nil {
			return malformed(im.path(), fmt.Errorf("column %s: %w", column, err))
		}
	}

	im.logger.Debug("index maps loaded", "columns", len(im.indexes))
	return nil
}

// Save overwrites the persisted index set
func (im *IndexManager) Save(ctx context.Context) error {
	start := time.Now()

	data, err := json.Marshal(im.indexes)
	if err != nil {
		im.metrics.Increment(MetricIndexErrors)
		return fmt.Errorf("failed to marshal index maps: %w", err)
	}

	if err := im.blobs.Write(ctx, im.path(), data, WriteOptions{Create: true, Parents: true}); err != nil {
		im.metrics.Increment(MetricIndexErrors)
		im.logger.Error("index flush failed", "path", im.path(), "error", err)
		return fmt.Errorf("failed to write index maps: %w", err)
	}

	im.dirty = false
	im.metrics.Increment(MetricIndexFlush)
	im.metrics.Timing(MetricIndexFlushDuration, time.Since(start))
	im.metrics.Histogram(MetricIndexFlushBytes, float64(len(data)))
	return nil
}
