// Package metrics exports signature, cache and HTTP activity as Prometheus
// metrics by implementing the observability hooks.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/provgraph/pkg/observability"
)

const namespace = "provgraph"

// Metrics owns a private registry so that several instances (one per test,
// say) never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	signaturesComputed *prometheus.CounterVec
	signatureSeconds   *prometheus.HistogramVec
	signatureHits      *prometheus.CounterVec
	signaturesPurged   *prometheus.CounterVec

	cacheLookups *prometheus.CounterVec
	cacheBytes   *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpSeconds  *prometheus.HistogramVec
	httpInFlight prometheus.Gauge
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		signaturesComputed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signature",
			Name:      "computed_total",
			Help:      "Signatures computed, by layer",
		}, []string{"layer"}),
		signatureSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "signature",
			Name:      "compute_seconds",
			Help:      "Time to compute one signature, including upstream recursion",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
		}, []string{"layer"}),
		signatureHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signature",
			Name:      "memo_hits_total",
			Help:      "Signature lookups answered from the memo, by layer",
		}, []string{"layer"}),
		signaturesPurged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signature",
			Name:      "purged_total",
			Help:      "Memoised signatures dropped by invalidation, by layer",
		}, []string{"layer"}),

		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Artifact cache operations, by key kind and result (hit, miss, set)",
		}, []string{"kind", "result"}),
		cacheBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "written_bytes_total",
			Help:      "Bytes written to the artifact cache, by key kind",
		}, []string{"kind"}),

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests, by method, route and status",
		}, []string{"method", "route", "status"}),
		httpSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "HTTP requests being served",
		}),
	}
}

// Install makes m the process-wide receiver of observability hooks.
func (m *Metrics) Install() {
	observability.SetSignatureHooks(signatureHooks{m})
	observability.SetCacheHooks(cacheHooks{m})
	observability.SetHTTPHooks(httpHooks{m})
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

type signatureHooks struct{ m *Metrics }

func (h signatureHooks) OnCompute(layer string, d time.Duration) {
	h.m.signaturesComputed.WithLabelValues(layer).Inc()
	h.m.signatureSeconds.WithLabelValues(layer).Observe(d.Seconds())
}

func (h signatureHooks) OnHit(layer string) {
	h.m.signatureHits.WithLabelValues(layer).Inc()
}

func (h signatureHooks) OnPurge(layer string, count int) {
	h.m.signaturesPurged.WithLabelValues(layer).Add(float64(count))
}

type cacheHooks struct{ m *Metrics }

func (h cacheHooks) OnCacheHit(_ context.Context, kind string) {
	h.m.cacheLookups.WithLabelValues(kind, "hit").Inc()
}

func (h cacheHooks) OnCacheMiss(_ context.Context, kind string) {
	h.m.cacheLookups.WithLabelValues(kind, "miss").Inc()
}

func (h cacheHooks) OnCacheSet(_ context.Context, kind string, size int) {
	h.m.cacheLookups.WithLabelValues(kind, "set").Inc()
	h.m.cacheBytes.WithLabelValues(kind).Add(float64(size))
}

type httpHooks struct{ m *Metrics }

func (h httpHooks) OnRequest(context.Context, string, string) {
	h.m.httpInFlight.Inc()
}

func (h httpHooks) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	h.m.httpInFlight.Dec()
	h.m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	h.m.httpSeconds.WithLabelValues(method, route).Observe(d.Seconds())
}
