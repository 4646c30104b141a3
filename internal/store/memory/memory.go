// Package memory implements store.Store in process memory.
//
// A single mutex is held for the whole of each transaction, which gives the
// same serialization QueryForUpdate promises on a real backend. Writes are
// staged and applied only when the transaction function returns nil.
//
// Several Registries sharing one memory.Store behave like several processes
// sharing one database, which is how the allocator's uniqueness tests
// simulate a cluster.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/roach88/seqlease/internal/store"
)

// Store is an in-memory sequence store. The zero value is not usable; call New.
type Store struct {
	mu   sync.Mutex
	rows map[string]store.Record

	// Hooks for tests. Each runs while the store mutex is held.
	beforeQuery func(name string)
	txCount     int
}

var (
	_ store.Store = (*Store)(nil)
	_ store.Admin = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{rows: make(map[string]store.Record)}
}

// OnQuery installs a hook that runs at the start of every QueryForUpdate.
// The store lock is held, so fn must not call back into the store.
func (s *Store) OnQuery(fn func(name string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeQuery = fn
}

// TxCount returns the number of committed transactions.
func (s *Store) TxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

// InTx runs fn with the store locked. Staged writes are applied on success.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rows == nil {
		return fmt.Errorf("begin tx: store closed")
	}

	tx := &memTx{s: s, staged: make(map[string]store.Record)}
	if err := fn(tx); err != nil {
		return err
	}

	for name, rec := range tx.staged {
		s.rows[name] = rec
	}
	s.txCount++
	return nil
}

// Close drops all rows. Later transactions fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = nil
	return nil
}

// Get returns the row for name, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, name string) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rows[name]
	if !ok {
		return store.Record{}, fmt.Errorf("get sequence %q: %w", name, store.ErrNotFound)
	}
	return rec, nil
}

// List returns all rows ordered by name.
func (s *Store) List(ctx context.Context) ([]store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]store.Record, 0, len(s.rows))
	for _, rec := range s.rows {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Name < recs[j].Name })
	return recs, nil
}

// Put creates or redefines a sequence, keeping an in-bounds high-water mark.
func (s *Store) Put(ctx context.Context, rec store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rows == nil {
		return fmt.Errorf("put sequence: store closed")
	}
	if prev, ok := s.rows[rec.Name]; ok {
		rec.Current = store.ClampCurrent(prev.Current, rec.Min, rec.Max)
		rec.LeasedBy = prev.LeasedBy
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("put sequence: %w", err)
	}
	rec.UpdatedAt = time.Now().UTC()
	s.rows[rec.Name] = rec
	return nil
}

// Delete removes the row for name, or returns store.ErrNotFound.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[name]; !ok {
		return fmt.Errorf("delete sequence %q: %w", name, store.ErrNotFound)
	}
	delete(s.rows, name)
	return nil
}

type memTx struct {
	s      *Store
	staged map[string]store.Record
}

func (t *memTx) lookup(name string) (store.Record, bool) {
	if rec, ok := t.staged[name]; ok {
		return rec, true
	}
	rec, ok := t.s.rows[name]
	return rec, ok
}

func (t *memTx) QueryForUpdate(ctx context.Context, name string) (store.Record, bool, error) {
	if t.s.beforeQuery != nil {
		t.s.beforeQuery(name)
	}
	rec, ok := t.lookup(name)
	return rec, ok, nil
}

func (t *memTx) Update(ctx context.Context, name string, current int64, leasedBy string) error {
	rec, ok := t.lookup(name)
	if !ok {
		return fmt.Errorf("update sequence %q: %w", name, store.ErrNotFound)
	}
	rec.Current = current
	rec.LeasedBy = leasedBy
	rec.UpdatedAt = time.Now().UTC()
	t.staged[name] = rec
	return nil
}

func (t *memTx) Insert(ctx context.Context, rec store.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("insert sequence: %w", err)
	}
	if _, ok := t.lookup(rec.Name); ok {
		return store.ErrDuplicate
	}
	rec.UpdatedAt = time.Now().UTC()
	t.staged[rec.Name] = rec
	return nil
}
