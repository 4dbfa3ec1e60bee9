package mfsstore

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// StripedLocks spreads per-path locking over a fixed set of RWMutexes.
// The same path always maps to the same stripe; unrelated paths usually
// land on different stripes and proceed in parallel.
type StripedLocks struct {
	stripes []sync.RWMutex
	count   uint64
}

// NewStripedLocks creates a striped lock with stripeCount stripes.
// Non-positive counts fall back to DefaultLockStripes.
func NewStripedLocks(stripeCount int) *StripedLocks {
	if stripeCount <= 0 {
		stripeCount = DefaultLockStripes
	}
	return &StripedLocks{
		stripes: make([]sync.RWMutex, stripeCount),
		count:   uint64(stripeCount),
	}
}

// Lock acquires an exclusive lock for the given path.
// Returns an unlock function that MUST be called to release the lock.
//
//	unlock := locks.Lock(path)
//	defer unlock()
func (sl *StripedLocks) Lock(path string) func() {
	stripe := &sl.stripes[sl.stripeIndex(path)]
	stripe.Lock()
	return stripe.Unlock
}

// RLock acquires a shared lock for the given path
func (sl *StripedLocks) RLock(path string) func() {
	stripe := &sl.stripes[sl.stripeIndex(path)]
	stripe.RLock()
	return stripe.RUnlock
}

func (sl *StripedLocks) stripeIndex(path string) uint64 {
	return xxhash.Sum64String(path) % sl.count
}
