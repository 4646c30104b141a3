package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seqlease/internal/store"
	"github.com/roach88/seqlease/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Backend {
		return createTestStore(t)
	})
}

func TestInTx_UpdatedAtIsRecorded(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, storetest.Record("ts")))

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		return tx.Update(ctx, "ts", 5, "node-1")
	}))

	var raw int64
	require.NoError(t, s.DB().QueryRow(`SELECT updated_at FROM sequences WHERE name = 'ts'`).Scan(&raw))
	assert.Positive(t, raw)
}

func TestInTx_CheckConstraints(t *testing.T) {
	s := createTestStore(t)

	// Bypass Validate to reach the table's own constraints
	_, err := s.DB().Exec(`
		INSERT INTO sequences (name, current_value, min_value, max_value, step, fetch_count)
		VALUES ('x', 1, 10, 5, 1, 1)
	`)
	assert.Error(t, err)
}
