package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seqlease/internal/sequence"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, sequence.DefaultCacheConfig(), cfg.Cache)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seqlease.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  driver: redis
  redis:
    addr: cache:6379
    db: 2
    prefix: "app:"
cache:
  max_size: 400
  analysis_threshold: 300
  survivor_size: 200
log:
  level: debug
  json: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "cache:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, "app:", cfg.Store.Redis.Prefix)
	assert.Equal(t, sequence.CacheConfig{MaxSize: 400, AnalysisThreshold: 300, SurvivorSize: 200}, cfg.Cache)
	assert.Equal(t, LogConfig{Level: "debug", JSON: true}, cfg.Log)
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("store:\n  driver: memory\n"))
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "seqlease.db", cfg.Store.DSN)
	assert.Equal(t, sequence.DefaultCacheConfig(), cfg.Cache)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "store:\n  drvier: sqlite\n"},
		{"unknown driver", "store:\n  driver: mongo\n"},
		{"threshold not below max", "cache:\n  max_size: 10\n  analysis_threshold: 10\n  survivor_size: 5\n"},
		{"survivors not below threshold", "cache:\n  max_size: 10\n  analysis_threshold: 5\n  survivor_size: 5\n"},
		{"zero survivors", "cache:\n  max_size: 10\n  analysis_threshold: 5\n  survivor_size: 0\n"},
		{"bad level", "log:\n  level: chatty\n"},
		{"negative redis db", "store:\n  redis:\n    db: -1\n"},
		{"malformed", "store: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	_, err = ParseLevel("trace")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LogConfig{Level: "warn", JSON: true}.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", "sequence", "orders")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"sequence":"orders"`)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, err := OpenStore(ctx, StoreConfig{Driver: DriverMemory})
		require.NoError(t, err)
		defer s.Close()
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenStore(ctx, StoreConfig{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "s.db")})
		require.NoError(t, err)
		defer s.Close()

		recs, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("sqlite without dsn", func(t *testing.T) {
		_, err := OpenStore(ctx, StoreConfig{Driver: DriverSQLite})
		assert.Error(t, err)
	})

	t.Run("postgres without dsn", func(t *testing.T) {
		_, err := OpenStore(ctx, StoreConfig{Driver: DriverPostgres})
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := OpenStore(ctx, StoreConfig{Driver: "etcd"})
		assert.ErrorContains(t, err, "unknown store driver")
	})
}
