package sequence

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Default cache sizing.
const (
	DefaultMaxCacheSize      = 50000
	DefaultAnalysisThreshold = 40000
	DefaultSurvivorSize      = 30000
)

// CacheConfig bounds the number of segments a registry keeps in memory.
//
// Once the cache holds MaxSize segments, inserting another evicts the least
// recently used ones until SurvivorSize remain. Access times are only
// recorded while the cache holds more than AnalysisThreshold segments, so a
// small cache pays nothing for them.
type CacheConfig struct {
	MaxSize           int `yaml:"max_size" json:"max_size"`
	AnalysisThreshold int `yaml:"analysis_threshold" json:"analysis_threshold"`
	SurvivorSize      int `yaml:"survivor_size" json:"survivor_size"`
}

// DefaultCacheConfig returns the default sizing (50000, 40000, 30000).
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxSize:           DefaultMaxCacheSize,
		AnalysisThreshold: DefaultAnalysisThreshold,
		SurvivorSize:      DefaultSurvivorSize,
	}
}

// Validate requires MaxSize > AnalysisThreshold > SurvivorSize > 0.
func (c CacheConfig) Validate() error {
	if !(c.MaxSize > c.AnalysisThreshold && c.AnalysisThreshold > c.SurvivorSize && c.SurvivorSize > 0) {
		return configError("",
			"cache sizing must satisfy max_size > analysis_threshold > survivor_size > 0 (got %d, %d, %d)",
			c.MaxSize, c.AnalysisThreshold, c.SurvivorSize)
	}
	return nil
}

// Option configures a Registry.
type Option func(*Registry)

// WithCacheConfig sets the cache sizing. Validated by NewRegistry.
func WithCacheConfig(c CacheConfig) Option {
	return func(r *Registry) {
		r.cfg = c
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithInstanceID sets the id recorded as leased_by on every reservation.
// Default: a fresh UUIDv7.
func WithInstanceID(id string) Option {
	return func(r *Registry) {
		r.instanceID = id
	}
}

// WithMetrics sets the Prometheus collectors. Default: unregistered collectors.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithClock overrides the time source used for eviction ranking.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func newInstanceID() string {
	return uuid.Must(uuid.NewV7()).String()
}
