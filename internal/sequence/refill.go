package sequence

import (
	"context"
	"errors"
	"math"

	"github.com/roach88/seqlease/internal/store"
)

// LowSupplyThreshold is the remaining durable range below which a
// non-looping sequence logs a low-supply warning on every refill.
const LowSupplyThreshold int64 = 1_000_000_000

// plan is the outcome of reading a durable row: the lease to install and
// what the row looked like when it was taken.
type plan struct {
	lease     *lease
	wrapped   bool
	lowSupply bool
	remaining int64 // durable values left before this lease
}

// planLease computes the next lease from a durable row.
//
// The lease starts at the row's high-water mark (or at Min when a looping
// sequence wraps) and is count*step wide, clamped to what is left of the
// durable range. A count*step product that overflows, or that comes out
// smaller than either factor, takes the whole remaining range instead.
func planLease(name string, rec store.Record) (plan, error) {
	var p plan

	start := rec.Current
	if start >= rec.Max {
		if !rec.Loop {
			return plan{}, exhaustedError(name, rec.Max)
		}
		start = rec.Min
		p.wrapped = true
	}
	p.remaining = distance(start, rec.Max)
	if !p.wrapped && !rec.Loop && p.remaining < LowSupplyThreshold {
		p.lowSupply = true
	}

	width := p.remaining
	if w, ok := segmentWidth(rec.Count, rec.Step); ok && w < width {
		width = w
	}

	p.lease = newLease(start, start+width, rec.Step, rec.Count, loopPolicy(rec.Loop))
	return p, nil
}

// segmentWidth returns count*step, or ok=false when the product overflows
// or is smaller than either factor.
func segmentWidth(count, step int64) (int64, bool) {
	if count <= 0 || step <= 0 {
		return 0, false
	}
	if count > math.MaxInt64/step {
		return 0, false
	}
	w := count * step
	if w < count || w < step {
		return 0, false
	}
	return w, true
}

// reserve plans a lease from rec and writes the reservation back to the row.
// Must run inside the transaction that read rec with QueryForUpdate.
func (r *Registry) reserve(ctx context.Context, tx store.Tx, name string, rec store.Record) (*lease, error) {
	if err := rec.Validate(); err != nil {
		return nil, integrityError(name, "durable row is inconsistent", err)
	}

	p, err := planLease(name, rec)
	if err != nil {
		r.metrics.Refills.WithLabelValues(refillExhausted).Inc()
		return nil, err
	}

	if p.wrapped {
		r.metrics.Wraps.Inc()
		r.logger.Warn("sequence wrapped to minimum, values will repeat",
			"sequence", name, "min", rec.Min, "max", rec.Max)
	}
	if p.lowSupply {
		r.metrics.LowSupply.Inc()
		r.logger.Warn("sequence running low",
			"sequence", name, "remaining", p.remaining, "max", rec.Max)
	}

	if err := tx.Update(ctx, rec.Name, p.lease.max, r.instanceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, integrityError(name, "durable row vanished during reservation", err)
		}
		return nil, storeError(name, "reserve segment", err)
	}

	r.logger.Debug("segment reserved",
		"sequence", name,
		"min", p.lease.min,
		"max", p.lease.max,
		"wrapped", p.wrapped)
	return p.lease, nil
}

// refill replaces an exhausted lease with a freshly reserved one.
//
// Only one refill per segment runs at a time. A goroutine that waited for
// another's refill finds room on re-check and returns without touching the
// store.
func (r *Registry) refill(ctx context.Context, seg *Segment, name string) error {
	seg.refillMu.Lock()
	defer seg.refillMu.Unlock()

	if seg.hasRoom() {
		return nil
	}

	var next *lease
	err := r.store.InTx(ctx, func(tx store.Tx) error {
		rec, found, err := tx.QueryForUpdate(ctx, seg.key)
		if err != nil {
			return storeError(name, "read sequence", err)
		}
		if !found {
			return integrityError(name, "durable row vanished; reissuing values could duplicate ids", nil)
		}

		next, err = r.reserve(ctx, tx, name, rec)
		return err
	})
	if err != nil {
		var se *Error
		if !errors.As(err, &se) {
			err = storeError(name, "refill", err)
		}
		if !IsExhaustedError(err) {
			r.metrics.Refills.WithLabelValues(refillFailed).Inc()
		}
		return err
	}

	seg.install(next)
	r.metrics.Refills.WithLabelValues(refillOK).Inc()
	return nil
}
