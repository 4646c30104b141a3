package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDuplicate is returned by Tx.Insert when a row with the same name
// already exists. Callers recover by re-reading the row.
var ErrDuplicate = errors.New("store: duplicate sequence name")

// ErrNotFound is returned by admin reads for a name with no row.
var ErrNotFound = errors.New("store: sequence not found")

// Record is the durable row for one sequence name.
//
// Current is the high-water mark: every value below it has been leased to
// some process. It only moves forward, except when a looping sequence wraps
// back to Min.
type Record struct {
	Name    string
	Current int64
	Min     int64
	Max     int64 // exclusive ceiling
	Step    int64
	Count   int64
	Loop    bool

	// LeasedBy is the instance id of the last process that reserved a segment.
	LeasedBy  string
	UpdatedAt time.Time
}

// Validate checks the row invariants every backend must enforce on write
// and every reader must re-check after a read.
func (r Record) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("invalid record: empty name")
	}
	if r.Step < 1 || r.Count < 1 {
		return fmt.Errorf("invalid record %q: step=%d count=%d must be positive", r.Name, r.Step, r.Count)
	}
	if r.Max <= r.Min {
		return fmt.Errorf("invalid record %q: max=%d must exceed min=%d", r.Name, r.Max, r.Min)
	}
	if r.Current < r.Min || r.Current > r.Max {
		return fmt.Errorf("invalid record %q: current=%d outside [%d, %d]", r.Name, r.Current, r.Min, r.Max)
	}
	return nil
}

// Tx is the row-locking view of a store inside one transaction.
//
// QueryForUpdate must take an exclusive lock on the row (or on the whole
// store) that is held until the enclosing InTx returns, so that concurrent
// processes reading the same name serialize.
type Tx interface {
	// QueryForUpdate reads the row for name. found is false when no row exists.
	QueryForUpdate(ctx context.Context, name string) (rec Record, found bool, err error)

	// Update moves the row's high-water mark to current and records which
	// instance reserved it.
	Update(ctx context.Context, name string, current int64, leasedBy string) error

	// Insert creates a row. Returns ErrDuplicate if the name already exists.
	Insert(ctx context.Context, rec Record) error
}

// Store runs transactions against a durable sequence table.
type Store interface {
	// InTx runs fn inside a single transaction. The transaction commits if
	// fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}

// Admin is implemented by stores that support operator access to rows
// outside the allocation protocol.
type Admin interface {
	Get(ctx context.Context, name string) (Record, error)
	List(ctx context.Context) ([]Record, error)

	// Put creates or replaces the definition of a sequence. An existing
	// row keeps its high-water mark unless it falls outside the new bounds.
	Put(ctx context.Context, rec Record) error

	Delete(ctx context.Context, name string) error
}

// Backend is a Store with admin access. Every backend in this module is one.
type Backend interface {
	Store
	Admin
}

// ClampCurrent returns the high-water mark a redefined row should keep:
// the previous mark when it still lies inside [min, max], min otherwise.
func ClampCurrent(prev, min, max int64) int64 {
	if prev < min || prev > max {
		return min
	}
	return prev
}
