package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"package-manifest/internal/manifest"
)

const namespace = "ldi"

// Outcome labels for processed manifests
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Cache lookup labels
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// DefaultDurationBuckets covers sub-second native runs up to slow docling conversions
var DefaultDurationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}

// Recorder records processing metrics on its own registry. It implements
// manifest.Observer.
type Recorder struct {
	registry *prometheus.Registry

	manifestsProcessed *prometheus.CounterVec
	packagesExtracted  *prometheus.CounterVec
	processingSeconds  prometheus.Histogram
	fallbackRuns       prometheus.Counter
	cacheRequests      *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	overduePackages    prometheus.Gauge
	autoReturned       prometheus.Counter
}

var _ manifest.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder. Go runtime and process collectors are
// registered when withRuntime is set.
func NewRecorder(withRuntime bool) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		manifestsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manifests_processed_total",
			Help:      "Manifests processed, by outcome",
		}, []string{"outcome"}),
		packagesExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packages_extracted_total",
			Help:      "Packages extracted, by source (table or fallback)",
		}, []string{"source"}),
		processingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "processing_seconds",
			Help:      "Time spent processing one manifest",
			Buckets:   DefaultDurationBuckets,
		}),
		fallbackRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_runs_total",
			Help:      "Raw-text fallback recoveries attempted",
		}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Result cache lookups, by result",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method and status code",
		}, []string{"method", "status_code"}),
		overduePackages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "packages_overdue",
			Help:      "Waiting packages past their pickup deadline at the last check",
		}),
		autoReturned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packages_auto_returned_total",
			Help:      "Overdue packages marked as returned by the deadline monitor",
		}),
	}

	r.registry.MustRegister(
		r.manifestsProcessed,
		r.packagesExtracted,
		r.processingSeconds,
		r.fallbackRuns,
		r.cacheRequests,
		r.httpRequests,
		r.overduePackages,
		r.autoReturned,
	)
	if withRuntime {
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
		)
	}
	return r
}

// ManifestProcessed records one completed run
func (r *Recorder) ManifestProcessed(result *manifest.Result, elapsed time.Duration) {
	outcome := OutcomeFailure
	if result != nil && result.Success {
		outcome = OutcomeSuccess
	}
	r.manifestsProcessed.WithLabelValues(outcome).Inc()
	r.processingSeconds.Observe(elapsed.Seconds())
}

// PackagesExtracted counts packages kept from the given source
func (r *Recorder) PackagesExtracted(source string, count int) {
	if count <= 0 {
		return
	}
	r.packagesExtracted.WithLabelValues(source).Add(float64(count))
}

// FallbackRun counts one fallback attempt
func (r *Recorder) FallbackRun() {
	r.fallbackRuns.Inc()
}

// CacheLookup counts a result cache hit or miss
func (r *Recorder) CacheLookup(hit bool) {
	if hit {
		r.cacheRequests.WithLabelValues(CacheHit).Inc()
		return
	}
	r.cacheRequests.WithLabelValues(CacheMiss).Inc()
}

// HTTPRequest counts one served request
func (r *Recorder) HTTPRequest(method string, status int) {
	r.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// OverdueChecked records the result of one deadline check
func (r *Recorder) OverdueChecked(overdue, returned int) {
	r.overduePackages.Set(float64(overdue))
	r.autoReturned.Add(float64(returned))
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
