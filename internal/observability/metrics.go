// Package observability exposes Prometheus collectors for the orchestration
// core: cache effectiveness, tool latency, loop depth, bridge deadlines, and
// generation outcomes.
package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the module reports into. A nil *Metrics is
// valid and records nothing, so call sites never need to guard.
type Metrics struct {
	cacheEvents        *prometheus.CounterVec
	toolDuration       *prometheus.HistogramVec
	loopIterations     prometheus.Histogram
	bridgeTimeouts     prometheus.Counter
	generationOutcomes *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// Default returns the package-level metrics instance registered with the
// global Prometheus registry. Collectors are created once to avoid duplicate
// registration panics when several components are built in one process.
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance against the provided
// registerer. Tests pass a fresh registry; passing nil falls back to the
// global one. Registration errors other than AlreadyRegistered panic, which
// mirrors promauto semantics and surfaces wiring bugs early.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	cacheEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sceneforge",
			Subsystem: "toolcache",
			Name:      "events_total",
			Help:      "Tool result cache lookups by outcome.",
		},
		[]string{"result"},
	)
	toolDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sceneforge",
			Subsystem: "tools",
			Name:      "execution_duration_seconds",
			Help:      "Wall time of tool executions.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"tool", "status"},
	)
	loopIterations := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sceneforge",
			Subsystem: "loop",
			Name:      "iterations_per_turn",
			Help:      "Refinement iterations consumed per turn.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10, 15},
		},
	)
	bridgeTimeouts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sceneforge",
			Subsystem: "bridge",
			Name:      "request_timeouts_total",
			Help:      "Screenshot requests that hit the deadline.",
		},
	)
	generationOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sceneforge",
			Subsystem: "meshgen",
			Name:      "jobs_total",
			Help:      "3D generation jobs by terminal outcome.",
		},
		[]string{"outcome"},
	)

	collectors := []prometheus.Collector{
		cacheEvents, toolDuration, loopIterations, bridgeTimeouts, generationOutcomes,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			already, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				panic(err)
			}
			switch collector {
			case cacheEvents:
				cacheEvents = already.ExistingCollector.(*prometheus.CounterVec)
			case toolDuration:
				toolDuration = already.ExistingCollector.(*prometheus.HistogramVec)
			case loopIterations:
				loopIterations = already.ExistingCollector.(prometheus.Histogram)
			case bridgeTimeouts:
				bridgeTimeouts = already.ExistingCollector.(prometheus.Counter)
			case generationOutcomes:
				generationOutcomes = already.ExistingCollector.(*prometheus.CounterVec)
			}
		}
	}

	return &Metrics{
		cacheEvents:        cacheEvents,
		toolDuration:       toolDuration,
		loopIterations:     loopIterations,
		bridgeTimeouts:     bridgeTimeouts,
		generationOutcomes: generationOutcomes,
	}
}

// IncCacheHit records a cache hit.
func (m *Metrics) IncCacheHit() {
	if m == nil || m.cacheEvents == nil {
		return
	}
	m.cacheEvents.WithLabelValues("hit").Inc()
}

// IncCacheMiss records a cache miss (including lazy expirations).
func (m *Metrics) IncCacheMiss() {
	if m == nil || m.cacheEvents == nil {
		return
	}
	m.cacheEvents.WithLabelValues("miss").Inc()
}

// ObserveToolDuration records one tool execution with its status label.
func (m *Metrics) ObserveToolDuration(tool, status string, duration time.Duration) {
	if m == nil || m.toolDuration == nil {
		return
	}
	m.toolDuration.WithLabelValues(tool, status).Observe(duration.Seconds())
}

// ObserveLoopIterations records how many iterations one turn consumed.
func (m *Metrics) ObserveLoopIterations(iterations int) {
	if m == nil || m.loopIterations == nil {
		return
	}
	m.loopIterations.Observe(float64(iterations))
}

// IncBridgeTimeout records a screenshot request that hit its deadline.
func (m *Metrics) IncBridgeTimeout() {
	if m == nil || m.bridgeTimeouts == nil {
		return
	}
	m.bridgeTimeouts.Inc()
}

// IncGenerationOutcome records a terminal generation outcome
// (completed/failed).
func (m *Metrics) IncGenerationOutcome(outcome string) {
	if m == nil || m.generationOutcomes == nil {
		return
	}
	m.generationOutcomes.WithLabelValues(outcome).Inc()
}
