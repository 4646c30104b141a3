package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zhangyunhao116/skipmap"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/seqlease/internal/store"
)

// Registry is the process-wide cache of leased segments.
//
// Next is the only allocation entry point. The first request for a name
// creates its segment (fetching or creating the durable row and reserving
// an initial lease); later requests are served from the cached segment and
// only reach the store when its lease runs out.
//
// Thread-safety model:
//   - Next, Len, Evict, Snapshot: safe from any goroutine
//   - allocation within a lease: wait-free
//   - refill: one at a time per segment
//   - creation: one at a time per key (single-flight)
//   - cache insertion and eviction: serialized by insertMu
type Registry struct {
	store      store.Store
	cfg        CacheConfig
	instanceID string
	logger     *slog.Logger
	metrics    *Metrics
	now        func() time.Time

	cache    *skipmap.FuncMap[string, *Segment]
	creating singleflight.Group
	insertMu sync.Mutex
	closed   atomic.Bool
}

// NewRegistry creates a ready-to-use registry over st.
//
// Returns a configuration error if st is nil or the cache sizing is invalid.
// The registry does not own st; closing the registry leaves st open.
func NewRegistry(st store.Store, opts ...Option) (*Registry, error) {
	r := &Registry{
		store: st,
		cfg:   DefaultCacheConfig(),
		cache: skipmap.NewFunc[string, *Segment](func(a, b string) bool {
			return a < b
		}),
	}

	for _, opt := range opts {
		opt(r)
	}

	if st == nil {
		return nil, configError("", "registry requires a store")
	}
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}
	if r.instanceID == "" {
		r.instanceID = newInstanceID()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.metrics == nil {
		r.metrics = NewMetrics(nil)
	}
	if r.now == nil {
		r.now = time.Now
	}

	r.logger.Info("sequence registry ready",
		"instance", r.instanceID,
		"max_cache_size", r.cfg.MaxSize,
		"analysis_threshold", r.cfg.AnalysisThreshold,
		"survivor_size", r.cfg.SurvivorSize)
	return r, nil
}

// InstanceID returns the id this registry records on reservations.
func (r *Registry) InstanceID() string {
	return r.instanceID
}

// Next returns the next value of the requested sequence.
//
// Errors are *Error values (see the Is*Error helpers) or ErrClosed.
// Duplicate-key races on creation and exhausted leases are resolved
// internally and never returned.
func (r *Registry) Next(ctx context.Context, req Request) (int64, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}
	if err := req.validate(); err != nil {
		return 0, err
	}
	key, err := cacheKey(req.Name, req.Dynamic)
	if err != nil {
		return 0, err
	}

	seg, err := r.segment(ctx, key, req)
	if err != nil {
		return 0, err
	}

	for {
		if v, ok := seg.TryAdvance(); ok {
			r.metrics.Allocations.Inc()
			return v, nil
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := r.refill(ctx, seg, req.Name); err != nil {
			return 0, err
		}
	}
}

// segment returns the cached segment for key, creating it on first use.
func (r *Registry) segment(ctx context.Context, key string, req Request) (*Segment, error) {
	if seg, ok := r.lookup(key); ok {
		return seg, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The creation is shared by every caller waiting on key, so it must not
	// die with the first caller's context. Each caller still stops waiting
	// when its own context ends.
	shared := context.WithoutCancel(ctx)
	ch := r.creating.DoChan(key, func() (any, error) {
		// Another caller may have finished creating it while we queued
		if seg, ok := r.cache.Load(key); ok {
			return seg, nil
		}
		seg, err := r.create(shared, key, req)
		if err != nil {
			return nil, err
		}
		if !r.insert(seg) {
			return nil, ErrClosed
		}
		return seg, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Segment), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// lookup is a cache read that refreshes the access time once the cache is
// large enough for eviction ranking to matter.
func (r *Registry) lookup(key string) (*Segment, bool) {
	seg, ok := r.cache.Load(key)
	if ok && r.cache.Len() > r.cfg.AnalysisThreshold {
		seg.lastAccess.Store(r.now().UnixNano())
	}
	return seg, ok
}

// create fetches or creates the durable row for key and reserves the first
// lease, all in one transaction.
func (r *Registry) create(ctx context.Context, key string, req Request) (*Segment, error) {
	seg := newSegment(key)

	var first *lease
	err := r.store.InTx(ctx, func(tx store.Tx) error {
		rec, found, err := tx.QueryForUpdate(ctx, key)
		if err != nil {
			return storeError(req.Name, "read sequence", err)
		}

		if !found {
			if !req.Dynamic {
				return unknownSequenceError(req.Name)
			}
			rec, err = r.insertRow(ctx, tx, key, req)
			if err != nil {
				return err
			}
		}

		first, err = r.reserve(ctx, tx, req.Name, rec)
		return err
	})
	if err != nil {
		var se *Error
		if !errors.As(err, &se) {
			err = storeError(req.Name, "create segment", err)
		}
		return nil, err
	}

	seg.install(first)
	r.metrics.Creations.WithLabelValues(req.mode()).Inc()
	r.logger.Info("segment created",
		"sequence", req.Name,
		"mode", req.mode(),
		"min", first.min,
		"max", first.max)
	return seg, nil
}

// insertRow creates the durable row for a dynamic request. If a concurrent
// creator got there first, its row is read back and used as is.
func (r *Registry) insertRow(ctx context.Context, tx store.Tx, key string, req Request) (store.Record, error) {
	rec := req.record(key)
	err := tx.Insert(ctx, rec)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, store.ErrDuplicate) {
		return store.Record{}, storeError(req.Name, "create sequence", err)
	}

	r.logger.Debug("sequence created concurrently, using existing row", "sequence", req.Name)
	existing, found, err := tx.QueryForUpdate(ctx, key)
	if err != nil {
		return store.Record{}, storeError(req.Name, "read sequence", err)
	}
	if !found {
		return store.Record{}, integrityError(req.Name, "row reported as duplicate but not readable", nil)
	}
	return existing, nil
}

// insert adds seg to the cache, evicting first if the cache is full.
// It reports false, leaving the cache untouched, once the registry is closed.
func (r *Registry) insert(seg *Segment) bool {
	r.insertMu.Lock()
	defer r.insertMu.Unlock()

	if r.closed.Load() {
		return false
	}
	if r.cache.Len() >= r.cfg.MaxSize {
		r.evictLocked()
	}
	seg.lastAccess.Store(r.now().UnixNano())
	r.cache.Store(seg.key, seg)
	r.metrics.CacheSize.Set(float64(r.cache.Len()))
	return true
}

// evictLocked drops the least recently used segments until SurvivorSize
// remain. Pure cache operation: unused values in dropped leases are lost.
func (r *Registry) evictLocked() {
	type entry struct {
		key  string
		last int64
	}

	entries := make([]entry, 0, r.cache.Len())
	r.cache.Range(func(key string, seg *Segment) bool {
		entries = append(entries, entry{key: key, last: seg.lastAccess.Load()})
		return true
	})
	if len(entries) <= r.cfg.SurvivorSize {
		return
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].last != entries[j].last {
			return entries[i].last < entries[j].last
		}
		return entries[i].key < entries[j].key
	})

	victims := entries[:len(entries)-r.cfg.SurvivorSize]
	for _, e := range victims {
		r.cache.Delete(e.key)
	}
	r.metrics.Evictions.Add(float64(len(victims)))
	r.logger.Info("evicted idle segments", "evicted", len(victims), "remaining", r.cache.Len())
}

// Len returns the number of cached segments.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Evict drops one segment from the cache. Its unused values are lost and
// the next request for the name re-creates it from the store.
func (r *Registry) Evict(name string, dynamic bool) bool {
	key, err := cacheKey(name, dynamic)
	if err != nil {
		return false
	}

	r.insertMu.Lock()
	defer r.insertMu.Unlock()

	_, ok := r.cache.LoadAndDelete(key)
	if ok {
		r.metrics.Evictions.Inc()
		r.metrics.CacheSize.Set(float64(r.cache.Len()))
	}
	return ok
}

// Snapshot returns the leased range of a cached segment.
func (r *Registry) Snapshot(name string, dynamic bool) (Snapshot, bool) {
	key, err := cacheKey(name, dynamic)
	if err != nil {
		return Snapshot{}, false
	}
	seg, ok := r.cache.Load(key)
	if !ok {
		return Snapshot{}, false
	}
	return seg.Snapshot(), true
}

// Close stops the registry. Later calls to Next return ErrClosed and the
// cache is dropped. The store is not closed.
func (r *Registry) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("registry already closed: %w", ErrClosed)
	}

	r.insertMu.Lock()
	defer r.insertMu.Unlock()

	var keys []string
	r.cache.Range(func(key string, _ *Segment) bool {
		keys = append(keys, key)
		return true
	})
	for _, k := range keys {
		r.cache.Delete(k)
	}
	r.metrics.CacheSize.Set(0)
	return nil
}
