package config

import (
	"context"
	"fmt"

	"github.com/roach88/seqlease/internal/store"
	"github.com/roach88/seqlease/internal/store/memory"
	"github.com/roach88/seqlease/internal/store/postgres"
	"github.com/roach88/seqlease/internal/store/redis"
	"github.com/roach88/seqlease/internal/store/sqlite"
)

// OpenStore opens the backend selected by c.Driver.
func OpenStore(ctx context.Context, c StoreConfig) (store.Backend, error) {
	switch c.Driver {
	case DriverSQLite:
		if c.DSN == "" {
			return nil, fmt.Errorf("sqlite store requires a dsn (database path)")
		}
		s, err := sqlite.Open(c.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil

	case DriverPostgres:
		if c.DSN == "" {
			return nil, fmt.Errorf("postgres store requires a dsn")
		}
		s, err := postgres.Open(ctx, c.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil

	case DriverRedis:
		addr := c.Redis.Addr
		if c.DSN != "" {
			addr = c.DSN
		}
		s, err := redis.Open(ctx, redis.Config{
			Addr:     addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Prefix:   c.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return s, nil

	case DriverMemory:
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", c.Driver)
}
