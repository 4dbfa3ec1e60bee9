package mfsstore

import (
	"context"
	"fmt"
	"time"
)

// ReplayStats summarizes one Apply call
type ReplayStats struct {
	Received int // entries supplied
	Skipped  int // identities already handled, including repeats within the batch
	Applied  int // PUT and DEL operations executed
	Ignored  int // entries with an unknown op, marked handled without effect
}

// Replayer projects log entries onto a RecordStore at most once per identity
type Replayer struct {
	handled *HandledSet
	records *RecordStore
	logger  Logger
	metrics Metrics
}

func NewReplayer(handled *HandledSet, records *RecordStore, logger Logger, metrics Metrics) *Replayer {
	return &Replayer{
		handled: handled,
		records: records,
		logger:  logger,
		metrics: metrics,
	}
}

// Apply filters out handled identities, applies the rest in the order
// given and persists the handled set once.
//
// If an operation fails, it and every later queued operation are unmarked,
// the handled set is saved with only the applied identities and the error is
// returned. Delivering the same log again retries exactly what was not
// applied.
func (r *Replayer) Apply(ctx context.Context, entries []Entry) (ReplayStats, error) {
	start := time.Now()
	stats := ReplayStats{Received: len(entries)}

	queue := make([]Entry, 0, len(entries))
	for _, e := range entries {
		r.metrics.Increment(MetricReplayReceived)
		if !r.handled.Mark(e.Identity) {
			stats.Skipped++
			r.metrics.Increment(MetricReplaySkipped)
			continue
		}
		queue = append(queue, e)
	}

	if len(queue) == 0 {
		return stats, nil
	}

	for i, e := range queue {
		var err error
		switch e.Payload.Op {
		case OpPut:
			err = r.records.Put(ctx, e.Payload.Key, e.Payload.Value)
		case OpDel:
			err = r.records.Remove(ctx, e.Payload.Key)
		default:
			stats.Ignored++
			r.metrics.Increment(MetricReplayIgnored)
			r.logger.Debug("ignoring unknown operation",
				"identity", e.Identity,
				"op", e.Payload.Op,
				"key", e.Payload.Key,
			)
			continue
		}

		if err != nil {
			r.rollback(ctx, queue[i:])
			r.metrics.Increment(MetricReplayErrors)
			r.logger.Error("replay failed",
				"identity", e.Identity,
				"op", e.Payload.Op,
				"key", e.Payload.Key,
				"applied", stats.Applied,
				"error", err,
			)
			return stats, fmt.Errorf("failed to apply %s %s: %w", e.Payload.Op, e.Payload.Key, err)
		}
		stats.Applied++
		r.metrics.Increment(MetricReplayApplied)
	}

	if err := r.handled.Save(ctx); err != nil {
		r.metrics.Increment(MetricReplayErrors)
		return stats, err
	}

	r.metrics.Timing(MetricReplayDuration, time.Since(start))
	r.logger.Info("replay batch applied",
		"received", stats.Received,
		"skipped", stats.Skipped,
		"applied", stats.Applied,
		"ignored", stats.Ignored,
		"duration", time.Since(start),
	)
	return stats, nil
}

// rollback unmarks operations that were never applied and saves whatever
// was. A failed save is logged; the caller already has an error to report.
func (r *Replayer) rollback(ctx context.Context, pending []Entry) {
	for _, e := range pending {
		r.handled.Unmark(e.Identity)
	}
	if err := r.handled.Save(ctx); err != nil {
		r.logger.Error("failed to save handled set after replay failure", "error", err)
	}
}
