package sequence

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/seqlease/internal/store"
)

func TestSegmentWidth(t *testing.T) {
	tests := []struct {
		name         string
		count, step  int64
		want         int64
		wantOK       bool
	}{
		{"simple", 10, 1, 10, true},
		{"stepped", 100, 3, 300, true},
		{"max product", math.MaxInt64, 1, math.MaxInt64, true},
		{"overflow", math.MaxInt64/2 + 1, 2, 0, false},
		{"big overflow", math.MaxInt64, math.MaxInt64, 0, false},
		{"non-positive", 0, 1, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := segmentWidth(tt.count, tt.step)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanLease(t *testing.T) {
	tests := []struct {
		name          string
		rec           store.Record
		wantMin       int64
		wantMax       int64
		wantWrapped   bool
		wantLowSupply bool
	}{
		{
			name:          "first segment",
			rec:           store.Record{Current: 1, Min: 1, Max: 1000, Step: 1, Count: 10},
			wantMin:       1,
			wantMax:       11,
			wantLowSupply: true,
		},
		{
			name:          "clamped to durable max",
			rec:           store.Record{Current: 995, Min: 1, Max: 1000, Step: 1, Count: 10},
			wantMin:       995,
			wantMax:       1000,
			wantLowSupply: true,
		},
		{
			name:    "width is count times step",
			rec:     store.Record{Current: 0, Min: 0, Max: math.MaxInt64, Step: 5, Count: 100},
			wantMin: 0,
			wantMax: 500,
		},
		{
			name:    "overflowing width takes the rest",
			rec:     store.Record{Current: 10, Min: 0, Max: math.MaxInt64, Step: 1 << 40, Count: 1 << 40},
			wantMin: 10,
			wantMax: math.MaxInt64,
		},
		{
			name:    "negative minimum with unbounded max",
			rec:     store.Record{Current: -10, Min: -10, Max: math.MaxInt64, Step: 1, Count: 5},
			wantMin: -10,
			wantMax: -5,
		},
		{
			name:    "remaining range wider than int64",
			rec:     store.Record{Current: math.MinInt64 + 1, Min: math.MinInt64 + 1, Max: math.MaxInt64, Step: 2, Count: 3},
			wantMin: math.MinInt64 + 1,
			wantMax: math.MinInt64 + 7,
		},
		{
			name:        "wrap to min",
			rec:         store.Record{Current: 1000, Min: 1, Max: 1000, Step: 1, Count: 10, Loop: true},
			wantMin:     1,
			wantMax:     11,
			wantWrapped: true,
		},
		{
			name:    "looping sequences never warn",
			rec:     store.Record{Current: 5, Min: 1, Max: 1000, Step: 1, Count: 10, Loop: true},
			wantMin: 5,
			wantMax: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := planLease("seq", tt.rec)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMin, p.lease.min)
			assert.Equal(t, tt.wantMax, p.lease.max)
			assert.Equal(t, tt.wantMin, p.lease.current.Load())
			assert.Equal(t, tt.rec.Step, p.lease.step)
			assert.Equal(t, tt.rec.Count, p.lease.count)
			assert.Equal(t, tt.wantWrapped, p.wrapped)
			assert.Equal(t, tt.wantLowSupply, p.lowSupply)
		})
	}
}

func TestPlanLease_Exhausted(t *testing.T) {
	rec := store.Record{Current: 1000, Min: 1, Max: 1000, Step: 1, Count: 10}

	_, err := planLease("seq", rec)
	require.Error(t, err)
	assert.True(t, IsExhaustedError(err))
	assert.Contains(t, err.Error(), "sequence=seq")
}
