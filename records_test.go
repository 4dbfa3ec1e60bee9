package mfsstore

import (
	"context"
	"errors"
	"testing"
)

func newTestRecordStore(t *testing.T, blobs BlobStore, cacheSize int, metrics Metrics) (*RecordStore, *IndexManager) {
	t.Helper()
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}
	schema := playerSchema()
	im := NewIndexManager(blobs, "players", schema, &NoOpLogger{}, metrics)
	rs, err := NewRecordStore(blobs, "players", schema, im, cacheSize, &NoOpLogger{}, metrics)
	if err != nil {
		t.Fatalf("NewRecordStore failed: %v", err)
	}
	return rs, im
}

func TestRecordStorePutGet(t *testing.T) {
	ctx := context.Background()
	blobs := NewMemoryBlobStore()
	rs, im := newTestRecordStore(t, blobs, 0, nil)

	if err := rs.Put(ctx, "101", Document{"id": 101, "name": "Andrew McCutchen", "currentTeam": "PIT"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	doc, err := rs.Get(ctx, "101")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc["name"] != "Andrew McCutchen" {
		t.Errorf("name = %v", doc["name"])
	}
	if doc["id"] != float64(101) {
		t.Errorf("id = %#v, want float64(101) after normalization", doc["id"])
	}

	if _, err := blobs.Read(ctx, "players/101.json"); err != nil {
		t.Errorf("record blob not written: %v", err)
	}
	if got := im.Query("currentTeam", "PIT", Page{}); !keysEqual(got, []Key{"101"}) {
		t.Errorf("currentTeam PIT = %v, want [101]", got)
	}

	missing, err := rs.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("Get of missing key = %v, %v; want nil, nil", missing, err)
	}
}

func TestRecordStoreUpdateMovesIndexes(t *testing.T) {
	ctx := context.Background()
	rs, im := newTestRecordStore(t, NewMemoryBlobStore(), 0, nil)

	rs.Put(ctx, "101", Document{"battingHand": "R", "email": "a@example.com"})
	rs.Put(ctx, "101", Document{"battingHand": "L"})

	if got := im.Query("battingHand", "R", Page{}); len(got) != 0 {
		t.Errorf("battingHand R = %v, want empty", got)
	}
	if got := im.Query("battingHand", "L", Page{}); !keysEqual(got, []Key{"101"}) {
		t.Errorf("battingHand L = %v, want [101]", got)
	}
	if got := im.QueryAll("email", Page{}); len(got) != 0 {
		t.Errorf("email index should be empty once the field is gone, got %v", got)
	}

	doc, _ := rs.Get(ctx, "101")
	if _, ok := doc["email"]; ok {
		t.Error("record should be replaced wholesale, not patched")
	}
}

func TestRecordStoreRemove(t *testing.T) {
	ctx := context.Background()
	blobs := NewMemoryBlobStore()
	rs, im := newTestRecordStore(t, blobs, 0, nil)

	rs.Put(ctx, "103", Document{"currentTeam": "PIT", "battingHand": "L", "email": "j@example.com"})
	if err := rs.Remove(ctx, "103"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if doc, _ := rs.Get(ctx, "103"); doc != nil {
		t.Errorf("Get after Remove = %v, want nil", doc)
	}
	for _, column := range playerSchema().Names() {
		if got := im.QueryAll(column, Page{}); len(got) != 0 {
			t.Errorf("column %s still holds %v", column, got)
		}
	}
	if _, err := blobs.Read(ctx, "players/103.json"); !IsNotFound(err) {
		t.Errorf("record blob should be gone, got %v", err)
	}

	if err := rs.Remove(ctx, "103"); err != nil {
		t.Errorf("removing a missing key should not fail: %v", err)
	}
}

func TestRecordStoreCache(t *testing.T) {
	ctx := context.Background()
	metrics := NewInMemoryMetrics()
	rs, _ := newTestRecordStore(t, NewMemoryBlobStore(), 8, metrics)

	rs.Put(ctx, "1", Document{"name": "Pat"})

	doc, _ := rs.Get(ctx, "1")
	doc["name"] = "mutated"

	again, _ := rs.Get(ctx, "1")
	if again["name"] != "Pat" {
		t.Errorf("cached document was mutated through a returned copy: %v", again["name"])
	}
	if metrics.Counter(MetricCacheHits) < 2 {
		t.Errorf("cache hits = %d, want >= 2", metrics.Counter(MetricCacheHits))
	}

	rs.Purge()
	rs.Get(ctx, "1")
	if metrics.Counter(MetricCacheMisses) == 0 {
		t.Error("Get after Purge should miss the cache")
	}
}

func TestRecordStoreCountListKeys(t *testing.T) {
	ctx := context.Background()
	rs, _ := newTestRecordStore(t, NewMemoryBlobStore(), -1, nil)

	for _, k := range []Key{"3", "1", "2", "a/b"} {
		if err := rs.Put(ctx, k, Document{"name": string(k)}); err != nil {
			t.Fatalf("Put(%s) failed: %v", k, err)
		}
	}

	// handled/ and indexMaps/ are directories and must not count
	n, err := rs.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 4 {
		t.Errorf("Count = %d, want 4", n)
	}

	keys, err := rs.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if !keysEqual(sortedKeys(keys), []Key{"1", "2", "3", "a/b"}) {
		t.Errorf("Keys = %v", keys)
	}

	docs, err := rs.List(ctx, 1, 2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("List(1, 2) returned %d documents, want 2", len(docs))
	}

	all, _ := rs.List(ctx, 0, 0)
	if len(all) != 4 {
		t.Errorf("List(0, 0) returned %d documents, want 4", len(all))
	}
	if none, _ := rs.List(ctx, 10, 0); len(none) != 0 {
		t.Errorf("List past the end returned %d documents", len(none))
	}
}

func TestRecordStoreExists(t *testing.T) {
	ctx := context.Background()
	rs, _ := newTestRecordStore(t, NewMemoryBlobStore(), 0, nil)

	rs.Put(ctx, "1", Document{})
	if ok, err := rs.Exists(ctx, "1"); err != nil || !ok {
		t.Errorf("Exists(1) = %v, %v", ok, err)
	}
	if ok, _ := rs.Exists(ctx, "2"); ok {
		t.Error("Exists(2) should be false")
	}
}

func TestRecordStoreMalformedRecord(t *testing.T) {
	ctx := context.Background()
	blobs := NewMemoryBlobStore()
	rs, _ := newTestRecordStore(t, blobs, 0, nil)

	blobs.Write(ctx, "players/bad.json", []byte(`{"name":`), WriteOptions{Create: true, Parents: true})
	if _, err := rs.Get(ctx, "bad"); !errors.Is(err, ErrInvalidData) {
		t.Errorf("expected ErrInvalidData, got %v", err)
	}
}

func TestRecordStoreUnencodableDocument(t *testing.T) {
	ctx := context.Background()
	rs, _ := newTestRecordStore(t, NewMemoryBlobStore(), 0, nil)

	err := rs.Put(ctx, "1", Document{"ch": make(chan int)})
	if !errors.Is(err, ErrInvalidData) {
		t.Errorf("expected ErrInvalidData, got %v", err)
	}
}
