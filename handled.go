package mfsstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Hash is an operation identity assigned by the log
type Hash string

// HandledSet records which operation identities have been applied.
// It only grows; Save overwrites the persisted copy in full.
type HandledSet struct {
	blobs   BlobStore
	dbname  string
	ids     map[Hash]struct{}
	logger  Logger
	metrics Metrics
}

func NewHandledSet(blobs BlobStore, dbname string, logger Logger, metrics Metrics) *HandledSet {
	return &HandledSet{
		blobs:   blobs,
		dbname:  dbname,
		ids:     make(map[Hash]struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

func (h *HandledSet) path() string {
	return joinPath(h.dbname, HandledDir, HandledFile)
}

// Has reports whether id was already applied
func (h *HandledSet) Has(id Hash) bool {
	_, ok := h.ids[id]
	return ok
}

// Mark adds id and reports whether it was new
func (h *HandledSet) Mark(id Hash) bool {
	if h.Has(id) {
		return false
	}
	h.ids[id] = struct{}{}
	return true
}

// Unmark rolls back an in-memory Mark for an operation that was never
// applied. Persisted identities are never removed.
func (h *HandledSet) Unmark(id Hash) {
	delete(h.ids, id)
}

func (h *HandledSet) Len() int {
	return len(h.ids)
}

// Load replaces the in-memory set with the persisted one. A missing file
// is an empty set.
func (h *HandledSet) Load(ctx context.Context) error {
	h.ids = make(map[Hash]struct{})

	data, err := h.blobs.Read(ctx, h.path())
	if err != nil {
		if IsNotFound(err) {
			h.metrics.Gauge(MetricHandledSize, 0)
			return nil
		}
		return fmt.Errorf("failed to read handled set: %w", err)
	}

	var ids []Hash
	if err := json.Unmarshal(data, &ids); err != nil {
		return malformed(h.path(), err)
	}
	for _, id := range ids {
		h.ids[id] = struct{}{}
	}

	h.logger.Debug("handled set loaded", "size", len(h.ids))
	h.metrics.Gauge(MetricHandledSize, float64(len(h.ids)))
	return nil
}

// Save writes the full set as a sorted JSON array
func (h *HandledSet) Save(ctx context.Context) error {
	ids := make([]Hash, 0, len(h.ids))
	for id := range h.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal handled set: %w", err)
	}
	if err := h.blobs.Write(ctx, h.path(), data, WriteOptions{Create: true, Parents: true}); err != nil {
		return fmt.Errorf("failed to write handled set: %w", err)
	}

	h.metrics.Increment(MetricHandledSave)
	h.metrics.Gauge(MetricHandledSize, float64(len(ids)))
	return nil
}
