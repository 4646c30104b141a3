package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/seqlease/internal/store/storetest"
)

// openTestStore connects to SEQLEASE_PG_DSN and empties the table.
// Tests are skipped when the variable is unset.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("SEQLEASE_PG_DSN")
	if dsn == "" {
		t.Skip("SEQLEASE_PG_DSN not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, dsn)
	require.NoError(t, err)

	_, err = s.pool.Exec(ctx, `TRUNCATE sequences`)
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Backend {
		return openTestStore(t)
	})
}

func TestOpen_InvalidDSN(t *testing.T) {
	_, err := Open(context.Background(), "postgres://%zz")
	require.Error(t, err)
}
