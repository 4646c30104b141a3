// Package postgres implements store.Store on PostgreSQL.
//
// QueryForUpdate issues SELECT ... FOR UPDATE, so concurrent processes
// reserving segments of the same name serialize on that row only. Inserts
// use ON CONFLICT DO NOTHING: a unique violation would abort the whole
// transaction, while a skipped insert leaves it usable for the re-read.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/seqlease/internal/store"
)

//go:embed schema.sql
var schemaSQL string

const selectColumns = `name, current_value, min_value, max_value, step, fetch_count, loop, leased_by, updated_at`

// Store is a PostgreSQL-backed sequence store.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ store.Store = (*Store)(nil)
	_ store.Admin = (*Store)(nil)
)

// Open connects to the database at dsn and creates the sequences table if
// it does not exist.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// InTx runs fn inside a READ COMMITTED transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if committed

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) QueryForUpdate(ctx context.Context, name string) (store.Record, bool, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM sequences WHERE name = $1 FOR UPDATE`, name)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Record{}, false, nil
	}
	if err != nil {
		return store.Record{}, false, fmt.Errorf("query sequence %q: %w", name, err)
	}
	return rec, true, nil
}

func (t *pgTx) Update(ctx context.Context, name string, current int64, leasedBy string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE sequences
		SET current_value = $1, leased_by = $2, updated_at = now()
		WHERE name = $3
	`, current, leasedBy, name)
	if err != nil {
		return fmt.Errorf("update sequence %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update sequence %q: %w", name, store.ErrNotFound)
	}
	return nil
}

func (t *pgTx) Insert(ctx context.Context, rec store.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("insert sequence: %w", err)
	}

	tag, err := t.tx.Exec(ctx, `
		INSERT INTO sequences
		(name, current_value, min_value, max_value, step, fetch_count, loop, leased_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name) DO NOTHING
	`, rec.Name, rec.Current, rec.Min, rec.Max, rec.Step, rec.Count, rec.Loop, rec.LeasedBy)
	if err != nil {
		return fmt.Errorf("insert sequence %q: %w", rec.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDuplicate
	}
	return nil
}

// Get returns the row for name, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, name string) (store.Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM sequences WHERE name = $1`, name)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Record{}, fmt.Errorf("get sequence %q: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("get sequence %q: %w", name, err)
	}
	return rec, nil
}

// List returns all rows ordered by name.
func (s *Store) List(ctx context.Context) ([]store.Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+selectColumns+` FROM sequences ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}
	defer rows.Close()

	var recs []store.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list sequences: scan: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sequences: %w", err)
	}
	return recs, nil
}

// Put creates or redefines a sequence. The existing high-water mark is
// kept when it still lies inside the new bounds.
func (s *Store) Put(ctx context.Context, rec store.Record) error {
	return s.InTx(ctx, func(tx store.Tx) error {
		prev, found, err := tx.QueryForUpdate(ctx, rec.Name)
		if err != nil {
			return fmt.Errorf("put sequence: %w", err)
		}
		if found {
			rec.Current = store.ClampCurrent(prev.Current, rec.Min, rec.Max)
		}
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("put sequence: %w", err)
		}

		_, err = tx.(*pgTx).tx.Exec(ctx, `
			INSERT INTO sequences
			(name, current_value, min_value, max_value, step, fetch_count, loop, leased_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (name) DO UPDATE SET
				current_value = EXCLUDED.current_value,
				min_value     = EXCLUDED.min_value,
				max_value     = EXCLUDED.max_value,
				step          = EXCLUDED.step,
				fetch_count   = EXCLUDED.fetch_count,
				loop          = EXCLUDED.loop,
				updated_at    = now()
		`, rec.Name, rec.Current, rec.Min, rec.Max, rec.Step, rec.Count, rec.Loop, rec.LeasedBy)
		if err != nil {
			return fmt.Errorf("put sequence %q: %w", rec.Name, err)
		}
		return nil
	})
}

// Delete removes the row for name, or returns store.ErrNotFound.
func (s *Store) Delete(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sequences WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete sequence %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete sequence %q: %w", name, store.ErrNotFound)
	}
	return nil
}

func scanRecord(row pgx.Row) (store.Record, error) {
	var (
		rec       store.Record
		updatedAt time.Time
	)
	err := row.Scan(
		&rec.Name,
		&rec.Current,
		&rec.Min,
		&rec.Max,
		&rec.Step,
		&rec.Count,
		&rec.Loop,
		&rec.LeasedBy,
		&updatedAt,
	)
	if err != nil {
		return store.Record{}, err
	}
	rec.UpdatedAt = updatedAt.UTC()
	return rec, nil
}
