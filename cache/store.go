// Package cache is a keyed store of query snapshots with an optimistic
// mutate primitive: apply a speculative transform, run the real
// operation, then reconcile with the server or roll back.
//
// Mutations on the same key are serialized; reads are lock free and
// always see either the last confirmed snapshot or a fully applied
// speculative one, never a partial write.
package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fulldump/optimist/optimistic"
	"github.com/fulldump/optimist/utils"
)

// Fetcher retrieves the authoritative snapshot for one key, used to
// revalidate after a mutation settles.
type Fetcher func(ctx context.Context) (*optimistic.Snapshot, error)

// Operation is the real asynchronous mutation, normalized to the
// data+count shape.
type Operation func(ctx context.Context) (*optimistic.Snapshot, error)

// Options configure one Mutate call.
type Options struct {
	// OptimisticData produces the speculative snapshot shown while the
	// operation is in flight.
	OptimisticData func(current *optimistic.Snapshot) *optimistic.Snapshot

	// PopulateCache stores the operation result as the new snapshot.
	// Callers that prefer refetching authoritative data leave it false
	// and set Revalidate instead.
	PopulateCache bool

	// Revalidate refetches the key through its registered fetcher once
	// the operation succeeds.
	Revalidate bool

	// RollbackOnError restores the pre-optimistic snapshot when the
	// operation fails.
	RollbackOnError bool
}

type entry struct {
	writeMutex sync.Mutex // serializes mutations and revalidations
	value      atomic.Pointer[optimistic.Snapshot]
	fetcher    Fetcher
}

// Store holds one snapshot per query key.
type Store struct {
	mutex   sync.Mutex
	entries map[string]*entry
}

func NewStore() *Store {
	return &Store{
		entries: map[string]*entry{},
	}
}

func (s *Store) entry(key string) *entry {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e, exists := s.entries[key]
	if !exists {
		e = &entry{}
		s.entries[key] = e
	}
	return e
}

// Register binds the fetcher used to populate and revalidate key.
func (s *Store) Register(key string, fetcher Fetcher) {
	e := s.entry(key)
	e.writeMutex.Lock()
	e.fetcher = fetcher
	e.writeMutex.Unlock()
}

// Get returns the current snapshot for key, nil if never populated.
func (s *Store) Get(key string) *optimistic.Snapshot {
	return s.entry(key).value.Load()
}

// Set overwrites the snapshot for key.
func (s *Store) Set(key string, snapshot *optimistic.Snapshot) {
	s.entry(key).value.Store(snapshot)
}

// Keys returns all known keys sorted alphabetically.
func (s *Store) Keys() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return utils.GetKeys(s.entries)
}

// Revalidate refetches key through its registered fetcher and stores
// the result. Keys without a fetcher are left untouched.
func (s *Store) Revalidate(ctx context.Context, key string) error {
	e := s.entry(key)
	e.writeMutex.Lock()
	defer e.writeMutex.Unlock()

	return s.revalidate(ctx, e)
}

func (s *Store) revalidate(ctx context.Context, e *entry) error {
	if e.fetcher == nil {
		return nil
	}

	fresh, err := e.fetcher(ctx)
	if err != nil {
		return err
	}

	e.value.Store(fresh)
	return nil
}

// Mutate runs op against key. The optimistic snapshot is applied before
// op starts, and the entry's write lock is held for the whole lifecycle
// so concurrent mutations on the same key cannot interleave speculative
// states. Readers are never blocked.
func (s *Store) Mutate(ctx context.Context, key string, op Operation, options Options) (*optimistic.Snapshot, error) {

	e := s.entry(key)
	e.writeMutex.Lock()
	defer e.writeMutex.Unlock()

	previous := e.value.Load()
	if options.OptimisticData != nil {
		e.value.Store(options.OptimisticData(previous))
	}

	result, err := op(ctx)
	if err != nil {
		if options.RollbackOnError {
			e.value.Store(previous)
		}
		return nil, err
	}

	if options.PopulateCache && result != nil {
		e.value.Store(result)
	}

	if options.Revalidate {
		// a failed revalidation keeps the optimistic view, the next
		// revalidation will fetch again
		s.revalidate(ctx, e)
	}

	return result, nil
}
