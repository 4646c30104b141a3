// Package storetest is a conformance suite shared by the store backends.
//
// Each backend test calls Run with a constructor for an empty store. The
// suite checks the transaction contract the allocator depends on: row
// locking, first-writer-wins inserts, rollback on error and the admin
// operations.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/seqlease/internal/store"
)

// Backend is the type under test.
type Backend = store.Backend

// Record returns a valid row for name.
func Record(name string) store.Record {
	return store.Record{Name: name, Current: 1, Min: 1, Max: 1000, Step: 1, Count: 10}
}

// Run executes the suite. open must return an empty backend; the suite
// closes it when each subtest finishes.
func Run(t *testing.T, open func(t *testing.T) Backend) {
	tests := []struct {
		name string
		fn   func(t *testing.T, b Backend)
	}{
		{"InsertAndQuery", testInsertAndQuery},
		{"QueryMissing", testQueryMissing},
		{"InsertDuplicate", testInsertDuplicate},
		{"InsertInvalid", testInsertInvalid},
		{"Update", testUpdate},
		{"UpdateMissing", testUpdateMissing},
		{"RollbackOnError", testRollbackOnError},
		{"ConcurrentIncrements", testConcurrentIncrements},
		{"AdminPutListDelete", testAdmin},
		{"AdminPutKeepsHighWaterMark", testPutKeepsMark},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := open(t)
			t.Cleanup(func() { b.Close() })
			tt.fn(t, b)
		})
	}
}

func testInsertAndQuery(t *testing.T, b Backend) {
	ctx := context.Background()
	rec := Record("orders")
	rec.Loop = true
	rec.LeasedBy = "node-1"

	require.NoError(t, b.InTx(ctx, func(tx store.Tx) error {
		return tx.Insert(ctx, rec)
	}))

	var got store.Record
	var found bool
	require.NoError(t, b.InTx(ctx, func(tx store.Tx) error {
		var err error
		got, found, err = tx.QueryForUpdate(ctx, "orders")
		return err
	}))

	require.True(t, found)
	assert.Equal(t, rec.Name, got.Name)
	assert.Equal(t, rec.Current, got.Current)
	assert.Equal(t, rec.Min, got.Min)
	assert.Equal(t, rec.Max, got.Max)
	assert.Equal(t, rec.Step, got.Step)
	assert.Equal(t, rec.Count, got.Count)
	assert.True(t, got.Loop)
	assert.Equal(t, "node-1", got.LeasedBy)
}

func testQueryMissing(t *testing.T, b Backend) {
	ctx := context.Background()
	require.NoError(t, b.InTx(ctx, func(tx store.Tx) error {
		_, found, err := tx.QueryForUpdate(ctx, "nope")
		assert.False(t, found)
		return err
	}))
}

func testInsertDuplicate(t *testing.T, b Backend) {
	ctx := context.Background()
	require.NoError(t, b.Put(ctx, Record("dup")))

	other := Record("dup")
	other.Max = 50
	err := b.InTx(ctx, func(tx store.Tx) error {
		if err := tx.Insert(ctx, other); !errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("want ErrDuplicate, got %v", err)
		}
		// The transaction stays usable after a duplicate
		rec, found, err := tx.QueryForUpdate(ctx, "dup")
		if err != nil {
			return err
		}
		assert.True(t, found)
		assert.Equal(t, int64(1000), rec.Max, "first writer wins")
		return nil
	})
	require.NoError(t, err)
}

func testInsertInvalid(t *testing.T, b Backend) {
	ctx := context.Background()
	bad := Record("bad")
	bad.Step = 0

	err := b.InTx(ctx, func(tx store.Tx) error {
		return tx.Insert(ctx, bad)
	})
	require.Error(t, err)

	_, err = b.Get(ctx, "bad")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testUpdate(t *testing.T, b Backend) {
	ctx := context.Background()
	require.NoError(t, b.Put(ctx, Record("upd")))

	require.NoError(t, b.InTx(ctx, func(tx store.Tx) error {
		if _, _, err := tx.QueryForUpdate(ctx, "upd"); err != nil {
			return err
		}
		return tx.Update(ctx, "upd", 11, "node-2")
	}))

	got, err := b.Get(ctx, "upd")
	require.NoError(t, err)
	assert.Equal(t, int64(11), got.Current)
	assert.Equal(t, "node-2", got.LeasedBy)
	assert.False(t, got.UpdatedAt.IsZero())
}

func testUpdateMissing(t *testing.T, b Backend) {
	ctx := context.Background()
	err := b.InTx(ctx, func(tx store.Tx) error {
		return tx.Update(ctx, "ghost", 5, "node-1")
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testRollbackOnError(t *testing.T, b Backend) {
	ctx := context.Background()
	require.NoError(t, b.Put(ctx, Record("rb")))

	boom := errors.New("boom")
	err := b.InTx(ctx, func(tx store.Tx) error {
		if err := tx.Update(ctx, "rb", 500, "node-1"); err != nil {
			return err
		}
		if err := tx.Insert(ctx, Record("rb-new")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := b.Get(ctx, "rb")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Current)

	_, err = b.Get(ctx, "rb-new")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// testConcurrentIncrements checks that QueryForUpdate locks: without it,
// concurrent read-modify-write cycles would lose updates.
func testConcurrentIncrements(t *testing.T, b Backend) {
	const (
		workers = 4
		rounds  = 25
	)
	ctx := context.Background()
	rec := Record("counter")
	rec.Max = 1_000_000
	require.NoError(t, b.Put(ctx, rec))

	var (
		g    errgroup.Group
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < rounds; i++ {
				var start int64
				err := b.InTx(ctx, func(tx store.Tx) error {
					cur, found, err := tx.QueryForUpdate(ctx, "counter")
					if err != nil {
						return err
					}
					if !found {
						return store.ErrNotFound
					}
					start = cur.Current
					return tx.Update(ctx, "counter", cur.Current+1, "w")
				})
				if err != nil {
					return err
				}
				mu.Lock()
				if seen[start] {
					mu.Unlock()
					return fmt.Errorf("mark %d read twice", start)
				}
				seen[start] = true
				mu.Unlock()
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	got, err := b.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1+workers*rounds), got.Current)
}

func testAdmin(t *testing.T, b Backend) {
	ctx := context.Background()
	require.NoError(t, b.Put(ctx, Record("b")))
	require.NoError(t, b.Put(ctx, Record("a")))

	recs, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].Name)
	assert.Equal(t, "b", recs[1].Name)

	require.NoError(t, b.Delete(ctx, "a"))
	assert.ErrorIs(t, b.Delete(ctx, "a"), store.ErrNotFound)

	recs, err = b.List(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func testPutKeepsMark(t *testing.T, b Backend) {
	ctx := context.Background()
	require.NoError(t, b.Put(ctx, Record("mark")))
	require.NoError(t, b.InTx(ctx, func(tx store.Tx) error {
		return tx.Update(ctx, "mark", 300, "node-1")
	}))

	// Widening keeps the mark
	wider := Record("mark")
	wider.Max = 5000
	wider.Count = 50
	require.NoError(t, b.Put(ctx, wider))

	got, err := b.Get(ctx, "mark")
	require.NoError(t, err)
	assert.Equal(t, int64(300), got.Current)
	assert.Equal(t, int64(50), got.Count)

	// Moving min past the mark resets it to min
	narrower := Record("mark")
	narrower.Min = 400
	narrower.Current = 400
	require.NoError(t, b.Put(ctx, narrower))

	got, err = b.Get(ctx, "mark")
	require.NoError(t, err)
	assert.Equal(t, int64(400), got.Current)
}
