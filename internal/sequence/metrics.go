package sequence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	refillOK        = "ok"
	refillExhausted = "exhausted"
	refillFailed    = "error"
)

// Metrics are the registry's Prometheus collectors. Sequence names are not
// used as labels.
type Metrics struct {
	Allocations prometheus.Counter
	Refills     *prometheus.CounterVec // result: ok/exhausted/error
	Creations   *prometheus.CounterVec // mode: fixed/dynamic
	Evictions   prometheus.Counter
	Wraps       prometheus.Counter
	LowSupply   prometheus.Counter
	CacheSize   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Allocations: f.NewCounter(prometheus.CounterOpts{
			Name: "seqlease_allocations_total",
			Help: "Values handed out from leased segments",
		}),
		Refills: f.NewCounterVec(prometheus.CounterOpts{
			Name: "seqlease_refills_total",
			Help: "Segment reservations against the durable store",
		}, []string{"result"}),
		Creations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "seqlease_segment_creations_total",
			Help: "Segments created on first use of a name in this process",
		}, []string{"mode"}),
		Evictions: f.NewCounter(prometheus.CounterOpts{
			Name: "seqlease_evictions_total",
			Help: "Segments dropped from the cache",
		}),
		Wraps: f.NewCounter(prometheus.CounterOpts{
			Name: "seqlease_wraps_total",
			Help: "Looping sequences restarted at their minimum",
		}),
		LowSupply: f.NewCounter(prometheus.CounterOpts{
			Name: "seqlease_low_supply_total",
			Help: "Refills of non-looping sequences with less than 1e9 values left",
		}),
		CacheSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "seqlease_cache_size",
			Help: "Segments currently cached",
		}),
	}
}
