package sequence

import (
	"math"

	"github.com/roach88/seqlease/internal/store"
)

// Dynamic-mode defaults.
const (
	DefaultMin   int64 = 1
	DefaultMax   int64 = math.MaxInt64
	DefaultStep  int64 = 1
	DefaultCount int64 = 100
)

// Request asks the registry for the next value of one sequence.
//
// In fixed mode only Name is used and the durable row must already exist.
// In dynamic mode the remaining fields define the row if it does not exist
// yet; once a row exists, whatever was persisted first wins and these
// fields are ignored.
type Request struct {
	Name    string
	Dynamic bool

	Min   int64
	Max   int64 // exclusive
	Step  int64
	Count int64
	Loop  bool
}

// Fixed returns a fixed-mode request for name.
func Fixed(name string) Request {
	return Request{Name: name}
}

// Dynamic returns a dynamic-mode request for name with default parameters:
// min=1, max=math.MaxInt64, step=1, count=100, no loop.
func Dynamic(name string) Request {
	return Request{
		Name:    name,
		Dynamic: true,
		Min:     DefaultMin,
		Max:     DefaultMax,
		Step:    DefaultStep,
		Count:   DefaultCount,
	}
}

// validate checks dynamic parameters. Fixed requests carry none.
func (r Request) validate() error {
	if !r.Dynamic {
		return nil
	}
	switch {
	case r.Min < 0:
		return configError(r.Name, "min=%d must not be negative", r.Min)
	case r.Max <= r.Min:
		return configError(r.Name, "max=%d must exceed min=%d", r.Max, r.Min)
	case r.Step <= 0:
		return configError(r.Name, "step=%d must be positive", r.Step)
	case r.Count <= 0:
		return configError(r.Name, "count=%d must be positive", r.Count)
	}
	return nil
}

// record builds the durable row a dynamic request creates.
func (r Request) record(key string) store.Record {
	return store.Record{
		Name:    key,
		Current: r.Min,
		Min:     r.Min,
		Max:     r.Max,
		Step:    r.Step,
		Count:   r.Count,
		Loop:    r.Loop,
	}
}

func (r Request) mode() string {
	if r.Dynamic {
		return "dynamic"
	}
	return "fixed"
}
