// Package mfsstore projects an append-only operation log into a queryable
// document store kept on a hierarchical blob store.
//
// # Overview
//
// Each log entry is a PUT or DEL of a JSON document under a key. Replaying
// the log writes one blob per live record and maintains secondary indexes
// over the columns named in a Schema:
//
//   - Unique columns map each value to the single key that last wrote it
//   - Multi columns map each value to every key carrying it
//
// Replay is idempotent. Entries are deduplicated by their content identity
// and the handled set is persisted next to the records, so a reloaded store
// resumes where it stopped.
//
// # Quick Start
//
//	blobs := mfsstore.NewFilesystemBlobStore("./data")
//	store, err := mfsstore.NewStore(blobs, mfsstore.Config{
//		Name: "players",
//		Schema: mfsstore.NewSchema(
//			mfsstore.Multi("currentTeam"),
//			mfsstore.Unique("email"),
//		),
//	})
//	if err != nil {
//		return err
//	}
//	if err := store.Load(ctx); err != nil {
//		return err
//	}
//	defer store.Close(ctx)
//
//	store.Put(ctx, "101", mfsstore.Document{"name": "Andrew McCutchen", "currentTeam": "PIT"})
//	docs, err := store.GetByIndex(ctx, "currentTeam", "PIT", mfsstore.Page{Limit: 10})
//
// # Replaying a log
//
//	log := mfsstore.NewMemoryLog()
//	log.Put("101", mfsstore.Document{"currentTeam": "PIT"})
//	log.Del("101")
//	stats, err := store.Sync(ctx, log)
//
// # Persisted layout
//
//	<name>/<key>.json              one record per live key
//	<name>/handled/_handled.json   identities already applied
//	<name>/indexMaps/_trees.json   every column index
//
// # Blob stores
//
// FilesystemBlobStore, MemoryBlobStore, S3BlobStore (also MinIO via
// NewMinIOBlobStore), GCSBlobStore and RedisBlobStore all satisfy BlobStore.
// NewBlobStore builds one from a BlobStoreConfig.
//
// # Observability
//
// Pass a Logger (NewProductionZapLogger) and Metrics (NewPrometheusMetrics)
// in Config. Both default to no-ops.
package mfsstore
