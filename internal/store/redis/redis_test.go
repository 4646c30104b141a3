package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seqlease/internal/store"
	"github.com/roach88/seqlease/internal/store/storetest"
)

// openTestStore connects to SEQLEASE_REDIS_ADDR under a fresh key prefix.
// Tests are skipped when the variable is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("SEQLEASE_REDIS_ADDR")
	if addr == "" {
		t.Skip("SEQLEASE_REDIS_ADDR not set")
	}

	prefix := fmt.Sprintf("seqlease-test:%d:", time.Now().UnixNano())
	s, err := Open(context.Background(), Config{Addr: addr, Prefix: prefix, MaxRetries: 100})
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Backend {
		return openTestStore(t)
	})
}

func TestOpen_Unreachable(t *testing.T) {
	_, err := Open(context.Background(), Config{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}

func TestEncodeDecode(t *testing.T) {
	rec := store.Record{Name: "n", Current: 5, Min: 1, Max: 10, Step: 2, Count: 3, Loop: true, LeasedBy: "node"}
	enc := encode(rec, 1700000000000)

	fields := make(map[string]string, len(enc))
	for k, v := range enc {
		fields[k] = fmt.Sprint(v)
	}

	got, err := decode("n", fields)
	require.NoError(t, err)
	assert.Equal(t, rec.Current, got.Current)
	assert.Equal(t, rec.Max, got.Max)
	assert.True(t, got.Loop)
	assert.Equal(t, "node", got.LeasedBy)
	assert.Equal(t, int64(1700000000000), got.UpdatedAt.UnixMilli())
}

func TestDecode_Corrupt(t *testing.T) {
	_, err := decode("n", map[string]string{"current": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field current")
}

func TestContention_ReportedAfterRetries(t *testing.T) {
	s := openTestStore(t)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, storetest.Record("hot")))

	// Every attempt modifies its own watched key before commit
	s.maxRetries = 3
	err := s.InTx(ctx, func(tx store.Tx) error {
		if _, _, err := tx.QueryForUpdate(ctx, "hot"); err != nil {
			return err
		}
		if err := s.client.HSet(ctx, s.key("hot"), "leased_by", "intruder").Err(); err != nil {
			return err
		}
		return tx.Update(ctx, "hot", 2, "me")
	})
	assert.ErrorIs(t, err, ErrContention)
}
