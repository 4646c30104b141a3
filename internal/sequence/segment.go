package sequence

import (
	"math"
	"sync"
	"sync/atomic"
)

// LoopPolicy decides what happens when a sequence's durable range is used up.
type LoopPolicy int

const (
	// LoopError makes exhaustion fatal.
	LoopError LoopPolicy = iota

	// LoopWrap restarts at the durable minimum. Values are reused.
	LoopWrap
)

func (p LoopPolicy) String() string {
	if p == LoopWrap {
		return "wrap"
	}
	return "error"
}

func loopPolicy(loop bool) LoopPolicy {
	if loop {
		return LoopWrap
	}
	return LoopError
}

// lease is one leased range [min, max). Bounds are immutable once the lease
// is installed; only current moves. A refill installs a fresh lease rather
// than rewriting this one, so a goroutine still holding the old pointer can
// only ever observe it as exhausted.
type lease struct {
	current atomic.Int64
	min     int64
	max     int64 // exclusive
	step    int64
	count   int64
	loop    LoopPolicy
}

func newLease(min, max, step, count int64, loop LoopPolicy) *lease {
	l := &lease{min: min, max: max, step: step, count: count, loop: loop}
	l.current.Store(min)
	return l
}

// exhaustedLease is installed in a segment before its first refill.
var exhaustedLease = newLease(0, 0, 1, 1, LoopError)

// Segment is the in-memory record of one sequence name in this process.
//
// Identity is the cache key alone. The leased range changes on every refill,
// and lastAccess only serves eviction ranking.
//
// Thread-safety: TryAdvance is wait-free and safe from any goroutine.
// Installing a new lease happens only under refillMu.
type Segment struct {
	key string

	lease      atomic.Pointer[lease]
	lastAccess atomic.Int64 // unix nanos

	refillMu sync.Mutex
}

func newSegment(key string) *Segment {
	s := &Segment{key: key}
	s.lease.Store(exhaustedLease)
	return s
}

// Key returns the cache key of the segment.
func (s *Segment) Key() string {
	return s.key
}

// TryAdvance hands out the next value of the current lease.
//
// It returns ok=false when the lease has no room left; the caller must
// refill and retry. A lost compare-and-swap is retried immediately.
func (s *Segment) TryAdvance() (value int64, ok bool) {
	l := s.lease.Load()
	for {
		expect := l.current.Load()
		update := l.max
		if expect < l.max && distance(expect, l.max) > l.step {
			update = expect + l.step
		}
		if update == expect {
			return 0, false
		}
		if l.current.CompareAndSwap(expect, update) {
			return expect, true
		}
	}
}

// hasRoom reports whether the current lease can still hand out a value.
func (s *Segment) hasRoom() bool {
	l := s.lease.Load()
	return l.current.Load() < l.max
}

func (s *Segment) install(l *lease) {
	s.lease.Store(l)
}

// distance returns hi-lo for lo <= hi, saturating at MaxInt64 when the
// difference does not fit, as it can for a negative lo.
func distance(lo, hi int64) int64 {
	d := hi - lo
	if d < 0 {
		return math.MaxInt64
	}
	return d
}

// Snapshot is a point-in-time view of a segment's leased range.
type Snapshot struct {
	Key     string
	Min     int64
	Max     int64
	Current int64
	Step    int64
	Count   int64
	Loop    LoopPolicy
}

// Remaining returns how many values are left in the leased range.
func (s Snapshot) Remaining() int64 {
	if s.Current >= s.Max {
		return 0
	}
	span := distance(s.Current, s.Max)
	n := span / s.Step
	if span%s.Step != 0 {
		n++
	}
	return n
}

// Snapshot returns the segment's current lease.
func (s *Segment) Snapshot() Snapshot {
	l := s.lease.Load()
	return Snapshot{
		Key:     s.key,
		Min:     l.min,
		Max:     l.max,
		Current: l.current.Load(),
		Step:    l.step,
		Count:   l.count,
		Loop:    l.loop,
	}
}
