package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/seqlease/internal/store"
)

const selectColumns = `name, current_value, min_value, max_value, step, fetch_count, loop, leased_by, updated_at`

type sqliteTx struct {
	tx *sql.Tx
}

// QueryForUpdate reads the row for name. The IMMEDIATE transaction already
// holds the database write lock, so no further locking clause is needed.
func (t *sqliteTx) QueryForUpdate(ctx context.Context, name string) (store.Record, bool, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM sequences WHERE name = ?`, name)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{}, false, nil
	}
	if err != nil {
		return store.Record{}, false, fmt.Errorf("query sequence %q: %w", name, err)
	}
	return rec, true, nil
}

// Update moves the high-water mark of name to current.
// Returns store.ErrNotFound if the row has been deleted.
func (t *sqliteTx) Update(ctx context.Context, name string, current int64, leasedBy string) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE sequences
		SET current_value = ?, leased_by = ?, updated_at = ?
		WHERE name = ?
	`, current, leasedBy, time.Now().UnixMilli(), name)
	if err != nil {
		return fmt.Errorf("update sequence %q: %w", name, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sequence %q: rows affected: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("update sequence %q: %w", name, store.ErrNotFound)
	}
	return nil
}

// Insert creates a row for rec.Name.
// Uses ON CONFLICT(name) DO NOTHING so a concurrent creator's row is left
// untouched; a conflict is reported as store.ErrDuplicate.
func (t *sqliteTx) Insert(ctx context.Context, rec store.Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("insert sequence: %w", err)
	}

	result, err := t.tx.ExecContext(ctx, `
		INSERT INTO sequences
		(name, current_value, min_value, max_value, step, fetch_count, loop, leased_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
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
		return fmt.Errorf("insert sequence %q: %w", rec.Name, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert sequence %q: rows affected: %w", rec.Name, err)
	}
	if n == 0 {
		return store.ErrDuplicate
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (store.Record, error) {
	var (
		rec       store.Record
		updatedAt int64
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
	if updatedAt > 0 {
		rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	}
	return rec, nil
}
