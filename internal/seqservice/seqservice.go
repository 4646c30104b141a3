// Package seqservice is the calling surface most code uses: fixed and
// dynamic allocators over a sequence.Registry, plus helpers that render a
// value with a text or timestamp prefix.
package seqservice

import (
	"context"
	"strconv"
	"time"

	"github.com/roach88/seqlease/internal/sequence"
)

// Timestamp prefix layouts.
const (
	DateLayout = "20060102"
	TimeLayout = "20060102150405"
)

// Fixed allocates from sequences whose rows have been defined ahead of time.
type Fixed struct {
	Registry *sequence.Registry

	// Clock supplies the time for timestamp prefixes. Default: time.Now.
	Clock func() time.Time
}

// NewFixed returns a Fixed allocator over reg.
func NewFixed(reg *sequence.Registry) *Fixed {
	return &Fixed{Registry: reg}
}

// Next returns the next value of name.
func (f *Fixed) Next(ctx context.Context, name string) (int64, error) {
	return f.Registry.Next(ctx, sequence.Fixed(name))
}

// NextWithPrefix returns prefix followed by the next value of name.
func (f *Fixed) NextWithPrefix(ctx context.Context, prefix, name string) (string, error) {
	return withPrefix(prefix, func() (int64, error) { return f.Next(ctx, name) })
}

// NextWithDateFormat prefixes the next value with the current time
// formatted by layout (a time.Format layout).
func (f *Fixed) NextWithDateFormat(ctx context.Context, layout, name string) (string, error) {
	return f.NextWithPrefix(ctx, now(f.Clock).Format(layout), name)
}

// NextWithDatePrefix prefixes the next value with yyyyMMdd.
func (f *Fixed) NextWithDatePrefix(ctx context.Context, name string) (string, error) {
	return f.NextWithDateFormat(ctx, DateLayout, name)
}

// NextWithTimePrefix prefixes the next value with yyyyMMddHHmmss.
func (f *Fixed) NextWithTimePrefix(ctx context.Context, name string) (string, error) {
	return f.NextWithDateFormat(ctx, TimeLayout, name)
}

// Dynamic allocates from sequences created on first use. Options only take
// effect when they create the row; an existing row is used as persisted.
type Dynamic struct {
	Registry *sequence.Registry
	Clock    func() time.Time
}

// NewDynamic returns a Dynamic allocator over reg.
func NewDynamic(reg *sequence.Registry) *Dynamic {
	return &Dynamic{Registry: reg}
}

// Option adjusts the parameters a dynamic sequence is created with.
type Option func(*sequence.Request)

// WithStart sets the first value (the minimum).
func WithStart(start int64) Option {
	return func(r *sequence.Request) { r.Min = start }
}

// WithBounds sets the range [min, max).
func WithBounds(min, max int64) Option {
	return func(r *sequence.Request) {
		r.Min = min
		r.Max = max
	}
}

// WithStep sets the increment.
func WithStep(step int64) Option {
	return func(r *sequence.Request) { r.Step = step }
}

// WithCount sets how many values each lease holds.
func WithCount(count int64) Option {
	return func(r *sequence.Request) { r.Count = count }
}

// WithLoop makes the sequence wrap to its minimum instead of failing when
// it runs out.
func WithLoop() Option {
	return func(r *sequence.Request) { r.Loop = true }
}

// Request builds the registry request for name.
func (d *Dynamic) Request(name string, opts ...Option) sequence.Request {
	req := sequence.Dynamic(name)
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

// Next returns the next value of name, creating the sequence if needed.
func (d *Dynamic) Next(ctx context.Context, name string, opts ...Option) (int64, error) {
	return d.Registry.Next(ctx, d.Request(name, opts...))
}

// NextWithPrefix returns prefix followed by the next value of name.
func (d *Dynamic) NextWithPrefix(ctx context.Context, prefix, name string, opts ...Option) (string, error) {
	return withPrefix(prefix, func() (int64, error) { return d.Next(ctx, name, opts...) })
}

// NextWithDateFormat prefixes the next value with the current time
// formatted by layout.
func (d *Dynamic) NextWithDateFormat(ctx context.Context, layout, name string, opts ...Option) (string, error) {
	return d.NextWithPrefix(ctx, now(d.Clock).Format(layout), name, opts...)
}

// NextWithDatePrefix prefixes the next value with yyyyMMdd.
func (d *Dynamic) NextWithDatePrefix(ctx context.Context, name string, opts ...Option) (string, error) {
	return d.NextWithDateFormat(ctx, DateLayout, name, opts...)
}

// NextWithTimePrefix prefixes the next value with yyyyMMddHHmmss.
func (d *Dynamic) NextWithTimePrefix(ctx context.Context, name string, opts ...Option) (string, error) {
	return d.NextWithDateFormat(ctx, TimeLayout, name, opts...)
}

func withPrefix(prefix string, next func() (int64, error)) (string, error) {
	v, err := next()
	if err != nil {
		return "", err
	}
	return prefix + strconv.FormatInt(v, 10), nil
}

func now(clock func() time.Time) time.Time {
	if clock == nil {
		return time.Now()
	}
	return clock()
}
