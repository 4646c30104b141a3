package sequence

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/seqlease/internal/store"
	"github.com/roach88/seqlease/internal/store/sqlite"
)

func openSQLite(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	st, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRegistry_SQLite_ConcreteScenario(t *testing.T) {
	st := openSQLite(t, filepath.Join(t.TempDir(), "seq.db"))
	r := newTestRegistry(t, st)
	ctx := context.Background()
	req := Request{Name: "order", Dynamic: true, Min: 1, Max: 1000, Step: 1, Count: 10}

	for want := int64(1); want <= 11; want++ {
		v, err := r.Next(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}

	rec, err := st.Get(ctx, "_dynamic_order")
	require.NoError(t, err)
	assert.Equal(t, int64(21), rec.Current)
	assert.Equal(t, "test-instance", rec.LeasedBy)
	assert.False(t, rec.UpdatedAt.IsZero())
}

// Two handles on one database file stand in for two processes.
func TestRegistry_SQLite_SharedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seq.db")
	first := openSQLite(t, path)
	second := openSQLite(t, path)
	ctx := context.Background()

	require.NoError(t, first.Put(ctx, store.Record{Name: "tickets", Current: 1, Min: 1, Max: 1_000_000, Step: 1, Count: 13}))

	const (
		goroutines = 4
		perWorker  = 100
	)
	var (
		mu   sync.Mutex
		seen = make(map[int64]int)
		g    errgroup.Group
	)
	for _, st := range []*sqlite.Store{first, second} {
		r := newTestRegistry(t, st)
		for i := 0; i < goroutines; i++ {
			g.Go(func() error {
				for n := 0; n < perWorker; n++ {
					v, err := r.Next(ctx, Fixed("tickets"))
					if err != nil {
						return err
					}
					mu.Lock()
					seen[v]++
					mu.Unlock()
				}
				return nil
			})
		}
	}
	require.NoError(t, g.Wait())

	total := 2 * goroutines * perWorker
	require.Len(t, seen, total)
	for v, n := range seen {
		assert.Equal(t, 1, n, "value %d handed out %d times", v, n)
	}

	rec, err := second.Get(ctx, "tickets")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rec.Current, int64(total+1))
}
