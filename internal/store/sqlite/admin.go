package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/seqlease/internal/store"
)

// Get returns the row for name, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, name string) (store.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM sequences WHERE name = ?`, name)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{}, fmt.Errorf("get sequence %q: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("get sequence %q: %w", name, err)
	}
	return rec, nil
}

// List returns all rows ordered by name.
func (s *Store) List(ctx context.Context) ([]store.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM sequences ORDER BY name ASC`)
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put sequence: begin tx: %w", err)
	}
	defer tx.Rollback()

	stx := &sqliteTx{tx: tx}
	prev, found, err := stx.QueryForUpdate(ctx, rec.Name)
	if err != nil {
		return fmt.Errorf("put sequence: %w", err)
	}
	if found {
		rec.Current = store.ClampCurrent(prev.Current, rec.Min, rec.Max)
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("put sequence: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sequences
		(name, current_value, min_value, max_value, step, fetch_count, loop, leased_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			current_value = excluded.current_value,
			min_value     = excluded.min_value,
			max_value     = excluded.max_value,
			step          = excluded.step,
			fetch_count   = excluded.fetch_count,
			loop          = excluded.loop,
			updated_at    = excluded.updated_at
	`,
		rec.Name,
		rec.Current,
		rec.Min,
		rec.Max,
		rec.Step,
		rec.Count,
		rec.Loop,
		rec.LeasedBy,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put sequence %q: %w", rec.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put sequence: commit: %w", err)
	}
	return nil
}

// Delete removes the row for name, or returns store.ErrNotFound.
func (s *Store) Delete(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sequences WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete sequence %q: %w", name, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete sequence %q: rows affected: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("delete sequence %q: %w", name, store.ErrNotFound)
	}
	return nil
}
