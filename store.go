package mfsstore

import (
	"context"
	"fmt"
	"sync"
)

// StoreType is the name an embedding application registers this store under
const StoreType = "mfsstore"

type storeState int

const (
	stateUnloaded storeState = iota
	stateLoaded
	stateDropped
)

func (s storeState) String() string {
	switch s {
	case stateLoaded:
		return "loaded"
	case stateDropped:
		return "dropped"
	default:
		return "unloaded"
	}
}

// writeRequest is one mutation handed to the writer goroutine
type writeRequest struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Store is a projection of an operation log onto records and secondary
// indexes kept under <Name> in a BlobStore.
//
// Mutations (Put, Remove, Apply, Sync) run one at a time on a single writer
// goroutine. Queries take a read lock and never observe a write half done.
type Store struct {
	name    string
	blobs   BlobStore
	schema  Schema
	logger  Logger
	metrics Metrics

	handled  *HandledSet
	indexes  *IndexManager
	records  *RecordStore
	replayer *Replayer

	// lifecycle serializes Load, Close and Drop
	lifecycle sync.Mutex
	// mu guards state and the projection; the writer holds it exclusively
	mu    sync.RWMutex
	state storeState

	requests chan writeRequest
	quit     chan struct{}
	stopped  chan struct{}
}

// NewStore creates an unloaded store. Call Load before using it.
func NewStore(blobs BlobStore, cfg Config) (*Store, error) {
	if blobs == nil {
		return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "BlobStore",
			"reason": "blob store is required",
		})
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	logger := cfg.Logger
	if z, ok := logger.(*ZapLogger); ok {
		logger = z.Named(cfg.Name)
	}

	indexes := NewIndexManager(blobs, cfg.Name, cfg.Schema, logger, cfg.Metrics)
	records, err := NewRecordStore(blobs, cfg.Name, cfg.Schema, indexes, cfg.CacheSize, logger, cfg.Metrics)
	if err != nil {
		return nil, err
	}
	handled := NewHandledSet(blobs, cfg.Name, logger, cfg.Metrics)

	return &Store{
		name:     cfg.Name,
		blobs:    blobs,
		schema:   cfg.Schema,
		logger:   logger,
		metrics:  cfg.Metrics,
		handled:  handled,
		indexes:  indexes,
		records:  records,
		replayer: NewReplayer(handled, records, logger, cfg.Metrics),
		requests: make(chan writeRequest),
	}, nil
}

// Name returns the store root under the blob store
func (s *Store) Name() string {
	return s.name
}

// Schema returns the indexed columns
func (s *Store) Schema() Schema {
	return s.schema
}

// Loaded reports whether the store accepts queries and writes
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == stateLoaded
}

// Load reads the handled set and index maps and starts the writer.
// Loading a loaded store is a no-op.
func (s *Store) Load(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateDropped:
		return ErrDropped
	case stateLoaded:
		return nil
	}

	if err := s.handled.Load(ctx); err != nil {
		return err
	}
	if err := s.indexes.Load(ctx); err != nil {
		return err
	}

	s.state = stateLoaded
	s.quit = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.writer(s.quit, s.stopped)

	s.logger.Info("store loaded",
		"handled", s.handled.Len(),
		"columns", len(s.schema),
	)
	return nil
}

// Close stops the writer and releases in-memory state. Writes already
// accepted finish first; the store can be loaded again. Indexes left
// unflushed by an earlier failure are written before release.
func (s *Store) Close(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()

	switch state {
	case stateDropped:
		return ErrDropped
	case stateUnloaded:
		return nil
	}

	s.stopWriter()

	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.indexes.dirty {
		if err = s.indexes.Save(ctx); err != nil {
			s.logger.Error("index flush on close failed", "error", err)
			err = fmt.Errorf("failed to flush indexes of %s: %w", s.name, err)
		}
	}
	s.release()
	s.state = stateUnloaded
	s.logger.Info("store closed")
	return err
}

// Drop deletes everything persisted under the store name. A dropped store
// cannot be loaded again. If the delete fails the store is left unloaded.
func (s *Store) Drop(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.RLock()
	state := s.state
	s.mu.RUnlock()

	if state == stateDropped {
		return nil
	}
	if state == stateLoaded {
		s.stopWriter()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.release()
	s.state = stateUnloaded

	if err := s.blobs.Remove(ctx, s.name); err != nil && !IsNotFound(err) {
		s.logger.Error("drop failed", "error", err)
		return fmt.Errorf("failed to drop store %s: %w", s.name, err)
	}

	s.state = stateDropped
	s.logger.Info("store dropped")
	return nil
}

// release clears the projection. Caller holds mu.
func (s *Store) release() {
	s.records.Purge()
	s.indexes.reset()
	s.handled.ids = make(map[Hash]struct{})
}

func (s *Store) stopWriter() {
	close(s.quit)
	<-s.stopped
}

// writer runs mutations to completion, one at a time
func (s *Store) writer(quit <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	for {
		select {
		case req := <-s.requests:
			s.mu.Lock()
			var err error
			if s.state != stateLoaded {
				err = s.stateErr()
			} else {
				err = req.fn(req.ctx)
			}
			s.mu.Unlock()
			req.done <- err
		case <-quit:
			return
		}
	}
}

// submit queues fn on the writer and waits for it to finish
func (s *Store) submit(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.RLock()
	if s.state != stateLoaded {
		err := s.stateErr()
		s.mu.RUnlock()
		return err
	}
	quit := s.quit
	s.mu.RUnlock()

	req := writeRequest{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case s.requests <- req:
	case <-quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-req.done
}

// stateErr explains why the store is not usable. Caller holds mu.
func (s *Store) stateErr() error {
	if s.state == stateDropped {
		return ErrDropped
	}
	return ErrNotLoaded
}

// Put writes a document directly, outside any log
func (s *Store) Put(ctx context.Context, key Key, doc Document) error {
	return s.submit(ctx, func(ctx context.Context) error {
		return s.records.Put(ctx, key, doc)
	})
}

// Remove deletes a document directly, outside any log
func (s *Store) Remove(ctx context.Context, key Key) error {
	return s.submit(ctx, func(ctx context.Context) error {
		return s.records.Remove(ctx, key)
	})
}

// Apply replays log entries, skipping identities already handled
func (s *Store) Apply(ctx context.Context, entries []Entry) (ReplayStats, error) {
	var stats ReplayStats
	err := s.submit(ctx, func(ctx context.Context) error {
		var err error
		stats, err = s.replayer.Apply(ctx, entries)
		return err
	})
	return stats, err
}

// Sync fetches the full log and applies it
func (s *Store) Sync(ctx context.Context, log Log) (ReplayStats, error) {
	entries, err := log.Entries(ctx)
	if err != nil {
		return ReplayStats{}, fmt.Errorf("failed to read log: %w", err)
	}
	return s.Apply(ctx, entries)
}

// Factory builds stores that share a blob store and observability. The
// embedding application passes it wherever stores are opened.
type Factory struct {
	blobs     BlobStore
	logger    Logger
	metrics   Metrics
	cacheSize int
}

func NewFactory(blobs BlobStore, logger Logger, metrics Metrics) *Factory {
	return &Factory{
		blobs:   blobs,
		logger:  logger,
		metrics: metrics,
	}
}

// WithCacheSize sets the record cache size of stores built afterwards
func (f *Factory) WithCacheSize(size int) *Factory {
	f.cacheSize = size
	return f
}

// Type returns the store type name
func (f *Factory) Type() string {
	return StoreType
}

// New creates an unloaded store
func (f *Factory) New(name string, schema Schema) (*Store, error) {
	return NewStore(f.blobs, Config{
		Name:      name,
		Schema:    schema,
		CacheSize: f.cacheSize,
		Logger:    f.logger,
		Metrics:   f.metrics,
	})
}

// Open creates and loads a store
func (f *Factory) Open(ctx context.Context, name string, schema Schema) (*Store, error) {
	s, err := f.New(name, schema)
	if err != nil {
		return nil, err
	}
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
