// Package redis implements store.Store on Redis.
//
// Each sequence is a hash under <prefix>seq:<name>; an index set under
// <prefix>names lists every defined name. Redis has no row locks, so a
// transaction is optimistic: every key read through QueryForUpdate is
// WATCHed, writes are buffered, and all of them are applied in one
// MULTI/EXEC when the transaction function succeeds. If a watched key
// changed in the meantime the whole function is run again, up to
// MaxRetries times.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/seqlease/internal/store"
)

// DefaultMaxRetries bounds optimistic retries of one transaction.
const DefaultMaxRetries = 10

// ErrContention is returned when a transaction kept losing its WATCH race.
var ErrContention = errors.New("redis: transaction retries exhausted")

// Config configures the Redis connection.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string

	MaxRetries int
}

// Store is a Redis-backed sequence store.
type Store struct {
	client     *redis.Client
	prefix     string
	maxRetries int
}

var (
	_ store.Store = (*Store)(nil)
	_ store.Admin = (*Store)(nil)
)

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}
	return &Store{client: client, prefix: cfg.Prefix, maxRetries: retries}, nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(name string) string {
	return s.prefix + "seq:" + name
}

func (s *Store) indexKey() string {
	return s.prefix + "names"
}

// InTx runs fn optimistically and retries it when a watched key changes
// before commit. fn may therefore run more than once.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			tx := &redisTx{s: s, rtx: rtx, staged: make(map[string]store.Record)}
			if err := fn(tx); err != nil {
				return err
			}
			return tx.commit(ctx)
		})
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("after %d attempts: %w", s.maxRetries, ErrContention)
}

type redisTx struct {
	s       *Store
	rtx     *redis.Tx
	staged  map[string]store.Record
	deleted map[string]bool
}

// lookup returns the staged row for name or reads it under WATCH.
func (t *redisTx) lookup(ctx context.Context, name string) (store.Record, bool, error) {
	if rec, ok := t.staged[name]; ok {
		return rec, true, nil
	}
	key := t.s.key(name)
	if err := t.rtx.Watch(ctx, key).Err(); err != nil {
		return store.Record{}, false, fmt.Errorf("watch %q: %w", name, err)
	}
	fields, err := t.rtx.HGetAll(ctx, key).Result()
	if err != nil {
		return store.Record{}, false, fmt.Errorf("read %q: %w", name, err)
	}
	if len(fields) == 0 {
		return store.Record{}, false, nil
	}
	rec, err := decode(name, fields)
	if err != nil {
		return store.Record{}, false, err
	}
	return rec, true, nil
}

func (t *redisTx) QueryForUpdate(ctx context.Context, name string) (store.Record, bool, error) {
	rec, found, err := t.lookup(ctx, name)
	if err != nil {
		return store.Record{}, false, fmt.Errorf("query sequence %q: %w", name, err)
	}
	return rec, found, nil
}

func (t *redisTx) Update(ctx context.Context, name string, current int64, leasedBy string) error {
	rec, found, err := t.lookup(ctx, name)
	if err != nil {
		return fmt.Errorf("update sequence %q: %w", name, err)
	}
	if !found {
		return fmt.Errorf("update sequence %q: %w", name, store.ErrNotFound)
	}
	rec.Current = current
	rec.LeasedBy = leasedBy
	t.staged[name] = rec
	return nil
}

func (t *redisTx) Insert(ctx context.Context, rec store.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("insert sequence: %w", err)
	}
	_, found, err := t.lookup(ctx, rec.Name)
	if err != nil {
		return fmt.Errorf("insert sequence %q: %w", rec.Name, err)
	}
	if found {
		return store.ErrDuplicate
	}
	t.staged[rec.Name] = rec
	return nil
}

// commit applies staged writes in one MULTI/EXEC. Returns redis.TxFailedErr
// if a watched key changed.
func (t *redisTx) commit(ctx context.Context) error {
	if len(t.staged) == 0 && len(t.deleted) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	_, err := t.rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for name, rec := range t.staged {
			pipe.HSet(ctx, t.s.key(name), encode(rec, now))
			pipe.SAdd(ctx, t.s.indexKey(), name)
		}
		for name := range t.deleted {
			pipe.Del(ctx, t.s.key(name))
			pipe.SRem(ctx, t.s.indexKey(), name)
		}
		return nil
	})
	return err
}

// Get returns the row for name, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, name string) (store.Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key(name)).Result()
	if err != nil {
		return store.Record{}, fmt.Errorf("get sequence %q: %w", name, err)
	}
	if len(fields) == 0 {
		return store.Record{}, fmt.Errorf("get sequence %q: %w", name, store.ErrNotFound)
	}
	return decode(name, fields)
}

// List returns all rows ordered by name.
func (s *Store) List(ctx context.Context) ([]store.Record, error) {
	names, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}
	sort.Strings(names)

	recs := make([]store.Record, 0, len(names))
	for _, name := range names {
		rec, err := s.Get(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			continue // deleted since SMEMBERS
		}
		if err != nil {
			return nil, fmt.Errorf("list sequences: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Put creates or redefines a sequence. The existing high-water mark is
// kept when it still lies inside the new bounds.
func (s *Store) Put(ctx context.Context, rec store.Record) error {
	return s.InTx(ctx, func(tx store.Tx) error {
		rtx := tx.(*redisTx)
		next := rec
		prev, found, err := rtx.lookup(ctx, rec.Name)
		if err != nil {
			return fmt.Errorf("put sequence: %w", err)
		}
		if found {
			next.Current = store.ClampCurrent(prev.Current, rec.Min, rec.Max)
			next.LeasedBy = prev.LeasedBy
		}
		if err := next.Validate(); err != nil {
			return fmt.Errorf("put sequence: %w", err)
		}
		rtx.staged[rec.Name] = next
		return nil
	})
}

// Delete removes the row for name, or returns store.ErrNotFound.
func (s *Store) Delete(ctx context.Context, name string) error {
	return s.InTx(ctx, func(tx store.Tx) error {
		rtx := tx.(*redisTx)
		_, found, err := rtx.lookup(ctx, name)
		if err != nil {
			return fmt.Errorf("delete sequence %q: %w", name, err)
		}
		if !found {
			return fmt.Errorf("delete sequence %q: %w", name, store.ErrNotFound)
		}
		rtx.deleted = map[string]bool{name: true}
		return nil
	})
}

func encode(rec store.Record, nowMillis int64) map[string]any {
	loop := "0"
	if rec.Loop {
		loop = "1"
	}
	return map[string]any{
		"current":    rec.Current,
		"min":        rec.Min,
		"max":        rec.Max,
		"step":       rec.Step,
		"count":      rec.Count,
		"loop":       loop,
		"leased_by":  rec.LeasedBy,
		"updated_at": nowMillis,
	}
}

func decode(name string, fields map[string]string) (store.Record, error) {
	rec := store.Record{Name: name, LeasedBy: fields["leased_by"], Loop: fields["loop"] == "1"}

	ints := []struct {
		field string
		dst   *int64
	}{
		{"current", &rec.Current},
		{"min", &rec.Min},
		{"max", &rec.Max},
		{"step", &rec.Step},
		{"count", &rec.Count},
	}
	for _, f := range ints {
		v, err := strconv.ParseInt(fields[f.field], 10, 64)
		if err != nil {
			return store.Record{}, fmt.Errorf("decode sequence %q: field %s: %w", name, f.field, err)
		}
		*f.dst = v
	}

	if ms, err := strconv.ParseInt(fields["updated_at"], 10, 64); err == nil && ms > 0 {
		rec.UpdatedAt = time.UnixMilli(ms).UTC()
	}
	return rec, nil
}
