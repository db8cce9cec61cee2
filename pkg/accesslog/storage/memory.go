package storage

import (
	"context"
	"sort"
	"sync"

	"mercator-hq/courier/pkg/accesslog"
)

// BackendMemory is the name reported by MemoryStorage.
const BackendMemory = "memory"

// DefaultMemoryCapacity bounds MemoryStorage when no capacity is given.
const DefaultMemoryCapacity = 10000

// MemoryStorage keeps the most recent records in a fixed-size ring. When
// full, storing a record evicts the oldest one. Contents are lost on
// restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	ring    []*accesslog.Record
	head    int // index of the oldest record
	size    int
	evicted int64
}

// NewMemoryStorage creates a ring holding at most capacity records.
func NewMemoryStorage(capacity int) *MemoryStorage {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStorage{ring: make([]*accesslog.Record, capacity)}
}

// Backend implements accesslog.Storage.
func (s *MemoryStorage) Backend() string { return BackendMemory }

// Store appends a copy of record, evicting the oldest record when full.
func (s *MemoryStorage) Store(ctx context.Context, record *accesslog.Record) error {
	if err := ctx.Err(); err != nil {
		return accesslog.NewStorageError(BackendMemory, "store", err)
	}

	recordCopy := *record

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size == len(s.ring) {
		s.ring[s.head] = &recordCopy
		s.head = (s.head + 1) % len(s.ring)
		s.evicted++
		return nil
	}
	s.ring[(s.head+s.size)%len(s.ring)] = &recordCopy
	s.size++
	return nil
}

// Query returns copies of matching records, ordered by start time.
func (s *MemoryStorage) Query(ctx context.Context, query *accesslog.Query) ([]*accesslog.Record, error) {
	if query == nil {
		query = &accesslog.Query{}
	}

	s.mu.RLock()
	var results []*accesslog.Record
	s.each(func(r *accesslog.Record) {
		if query.Matches(r) {
			recordCopy := *r
			results = append(results, &recordCopy)
		}
	})
	s.mu.RUnlock()

	asc := query.SortOrder == "asc"
	sort.SliceStable(results, func(i, j int) bool {
		if asc {
			return results[i].StartTime.Before(results[j].StartTime)
		}
		return results[i].StartTime.After(results[j].StartTime)
	})

	start := query.Offset
	if start > len(results) {
		return []*accesslog.Record{}, nil
	}
	results = results[start:]
	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}
	return results, nil
}

// Count returns the number of matching records.
func (s *MemoryStorage) Count(ctx context.Context, query *accesslog.Query) (int64, error) {
	if query == nil {
		query = &accesslog.Query{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	s.each(func(r *accesslog.Record) {
		if query.Matches(r) {
			n++
		}
	})
	return n, nil
}

// Delete removes matching records.
func (s *MemoryStorage) Delete(ctx context.Context, query *accesslog.Query) (int64, error) {
	if query == nil {
		query = &accesslog.Query{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rebuild(func(r *accesslog.Record) bool {
		return !query.Matches(r)
	}), nil
}

// DeleteOldest removes the n records with the earliest start time.
func (s *MemoryStorage) DeleteOldest(ctx context.Context, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*accesslog.Record, 0, s.size)
	s.each(func(r *accesslog.Record) { all = append(all, r) })
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].StartTime.Before(all[j].StartTime)
	})
	if n > int64(len(all)) {
		n = int64(len(all))
	}
	doomed := make(map[*accesslog.Record]bool, n)
	for _, r := range all[:n] {
		doomed[r] = true
	}

	return s.rebuild(func(r *accesslog.Record) bool {
		return !doomed[r]
	}), nil
}

// Ping always succeeds.
func (s *MemoryStorage) Ping(ctx context.Context) error { return nil }

// Close releases the stored records.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ring = make([]*accesslog.Record, len(s.ring))
	s.head, s.size = 0, 0
	return nil
}

// Evicted returns how many records were overwritten because the ring was
// full.
func (s *MemoryStorage) Evicted() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evicted
}

// each visits records oldest first. Callers hold the lock.
func (s *MemoryStorage) each(fn func(*accesslog.Record)) {
	for i := 0; i < s.size; i++ {
		fn(s.ring[(s.head+i)%len(s.ring)])
	}
}

// rebuild compacts the ring to the records keep accepts and returns how
// many were dropped. Callers hold the write lock.
func (s *MemoryStorage) rebuild(keep func(*accesslog.Record) bool) int64 {
	kept := make([]*accesslog.Record, 0, s.size)
	s.each(func(r *accesslog.Record) {
		if keep(r) {
			kept = append(kept, r)
		}
	})

	removed := int64(s.size - len(kept))
	ring := make([]*accesslog.Record, len(s.ring))
	copy(ring, kept)
	s.ring, s.head, s.size = ring, 0, len(kept)
	return removed
}
