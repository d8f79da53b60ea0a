package cache

// metrics.go is a thin abstraction over Prometheus so that setcache can be
// used with or without metrics. When the caller passes a *prometheus.Registry
// via WithMetrics, labeled metrics are created and registered; otherwise a
// no-op sink is used and the hot path does not pay for metric updates.
//
// All metrics are shard-level; aggregation (sum, rate) is left to the
// Prometheus side.
//
// ┌──────────────────────────┬───────┬────────┐
// │ Metric                   │ Type  │ Labels │
// ├───────────────────────────┼───────┼────────┤
// │ setcache_hits_total       │ Ctr   │ shard  │
// │ setcache_misses_total     │ Ctr   │ shard  │
// │ setcache_evictions_total  │ Ctr   │ shard  │
// │ setcache_occupied_slots   │ Gge   │ shard  │
// └──────────────────────────┴───────┴────────┘
//
// © 2025 setcache authors. MIT License.

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsSink abstracts away the concrete backend (Prometheus vs noop). It
// is not exposed outside the package.
type metricsSink interface {
	incHit(shard uint8)
	incMiss(shard uint8)
	incEvict(shard uint8)
	setOccupancy(shard uint8, value int64)
}

type noopMetrics struct{}

func (noopMetrics) incHit(uint8)             {}
func (noopMetrics) incMiss(uint8)            {}
func (noopMetrics) incEvict(uint8)           {}
func (noopMetrics) setOccupancy(uint8, int64) {}

type promMetrics struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	evictions *prometheus.CounterVec
	occupied  *prometheus.GaugeVec
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	label := []string{"shard"}

	pm := &promMetrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "setcache",
			Name:      "hits_total",
			Help:      "Number of cache hits.",
		}, label),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "setcache",
			Name:      "misses_total",
			Help:      "Number of cache misses.",
		}, label),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "setcache",
			Name:      "evictions_total",
			Help:      "Number of slots reclaimed by a CLOCK sweep.",
		}, label),
		occupied: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "setcache",
			Name:      "occupied_slots",
			Help:      "Live key count per shard.",
		}, label),
	}

	reg.MustRegister(pm.hits, pm.misses, pm.evictions, pm.occupied)
	return pm
}

func (m *promMetrics) incHit(shard uint8)  { m.hits.WithLabelValues(strconv.Itoa(int(shard))).Inc() }
func (m *promMetrics) incMiss(shard uint8) { m.misses.WithLabelValues(strconv.Itoa(int(shard))).Inc() }
func (m *promMetrics) incEvict(shard uint8) {
	m.evictions.WithLabelValues(strconv.Itoa(int(shard))).Inc()
}
func (m *promMetrics) setOccupancy(shard uint8, value int64) {
	m.occupied.WithLabelValues(strconv.Itoa(int(shard))).Set(float64(value))
}

// newMetricsSink decides which implementation to use.
func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
