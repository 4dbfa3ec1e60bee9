package mfsstore

import (
	"context"
	"encoding/json"
	"sync"
)

// Op is a log operation kind
type Op string

const (
	OpPut Op = "PUT"
	OpDel Op = "DEL"
)

// Operation is the payload of a log entry
type Operation struct {
	Op    Op       `json:"op"`
	Key   Key      `json:"key"`
	Value Document `json:"value"`
}

// Entry is one log entry: a unique identity and its operation
type Entry struct {
	Identity Hash      `json:"identity"`
	Payload  Operation `json:"payload"`
}

// Log supplies the full operation log on every call. Ordering is whatever
// the log source delivers; replay does not reorder.
type Log interface {
	Entries(ctx context.Context) ([]Entry, error)
}

// DecodeEntries parses a JSON array of log entries
func DecodeEntries(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, malformed("log", err)
	}
	return entries, nil
}

// MemoryLog is an in-process append-only log. It backs the local write
// path and tests.
type MemoryLog struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Put appends a PUT with a fresh identity
func (l *MemoryLog) Put(key Key, value Document) Hash {
	return l.append(Operation{Op: OpPut, Key: key, Value: value})
}

// Del appends a DEL with a fresh identity
func (l *MemoryLog) Del(key Key) Hash {
	return l.append(Operation{Op: OpDel, Key: key})
}

func (l *MemoryLog) append(op Operation) Hash {
	id := NewHash()
	l.Append(Entry{Identity: id, Payload: op})
	return id
}

// Append adds entries as given, identities included
func (l *MemoryLog) Append(entries ...Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entries...)
}

func (l *MemoryLog) Entries(ctx context.Context) ([]Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...), nil
}

func (l *MemoryLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
