// Package metrics exposes the cache's Prometheus instrumentation, grounded
// on the teacher's namespaced Metrics wrapper
// (backend/pkg/observability/metrics.go) but backed by
// github.com/prometheus/client_golang instead of CloudWatch.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder wraps the Prometheus collectors the cache's components publish
// to. A nil *Recorder is valid and records nothing, so components never
// need a nil check beyond the receiver itself.
type Recorder struct {
	reads           *prometheus.CounterVec
	materializeHits *prometheus.CounterVec
	watcherEmits    prometheus.Counter
	networkCalls    *prometheus.CounterVec
	networkLatency  prometheus.Histogram
	inflightDedup   prometheus.Counter
}

// NewRecorder registers the cache's collectors against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphcache",
			Name:      "reads_total",
			Help:      "Materializer reads by source (canonical, strict, none).",
		}, []string{"source"}),
		materializeHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphcache",
			Name:      "materialize_cache_total",
			Help:      "Materializer result-cache hits and misses.",
		}, []string{"outcome"}),
		watcherEmits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graphcache",
			Name:      "watcher_emits_total",
			Help:      "Number of on_data emissions delivered to watchers.",
		}),
		networkCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphcache",
			Name:      "network_calls_total",
			Help:      "Transport invocations by outcome (ok, error, breaker_open).",
		}, []string{"outcome"}),
		networkLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "graphcache",
			Name:      "network_latency_seconds",
			Help:      "Transport call latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		inflightDedup: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graphcache",
			Name:      "inflight_dedup_total",
			Help:      "Requests served from the in-flight suspension-window table.",
		}),
	}

	reg.MustRegister(r.reads, r.materializeHits, r.watcherEmits, r.networkCalls, r.networkLatency, r.inflightDedup)
	return r
}

func (r *Recorder) ObserveRead(source string) {
	if r == nil {
		return
	}
	r.reads.WithLabelValues(source).Inc()
}

func (r *Recorder) ObserveMaterializeCache(hot bool) {
	if r == nil {
		return
	}
	outcome := "miss"
	if hot {
		outcome = "hit"
	}
	r.materializeHits.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveWatcherEmit() {
	if r == nil {
		return
	}
	r.watcherEmits.Inc()
}

func (r *Recorder) ObserveNetworkCall(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.networkCalls.WithLabelValues(outcome).Inc()
	r.networkLatency.Observe(d.Seconds())
}

func (r *Recorder) ObserveInflightDedup() {
	if r == nil {
		return
	}
	r.inflightDedup.Inc()
}
