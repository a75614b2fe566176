package obs

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the pipeline counters exported at /metrics. A nil
// receiver is valid and drops every observation, so callers never guard.
type Metrics struct {
	admissions  *prometheus.CounterVec
	pipelines   *prometheus.CounterVec
	retries     *prometheus.CounterVec
	flightHits  *prometheus.CounterVec
	queueDepth  prometheus.Gauge
	pipelineDur prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		admissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "signals_admitted_total", Help: "Admission decisions by outcome"},
			[]string{"decision"},
		),
		pipelines: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "pipelines_total", Help: "Completed signal pipelines by outcome"},
			[]string{"venue", "outcome"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "retry_attempts_total", Help: "Retry re-invocations by operation"},
			[]string{"operation"},
		),
		flightHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "flight_cache_events_total", Help: "Single-flight cache events by kind"},
			[]string{"cache", "kind"},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "pipeline_queue_depth", Help: "Signals waiting for a worker"},
		),
		pipelineDur: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pipeline_duration_seconds",
				Help:    "Wall time of one signal pipeline",
				Buckets: prometheus.ExponentialBuckets(0.1, 3, 10),
			},
		),
	}
	reg.MustRegister(m.admissions, m.pipelines, m.retries, m.flightHits, m.queueDepth, m.pipelineDur)
	return m
}

func (m *Metrics) ObserveAdmission(decision string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(decision).Inc()
}

func (m *Metrics) ObservePipeline(venue, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.pipelines.WithLabelValues(venue, outcome).Inc()
	m.pipelineDur.Observe(d.Seconds())
}

func (m *Metrics) ObserveRetry(operation string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(operation).Inc()
}

func (m *Metrics) ObserveFlight(cache, kind string) {
	if m == nil {
		return
	}
	m.flightHits.WithLabelValues(cache, kind).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// Serve exposes /metrics on addr and returns the server so the caller
// can shut it down.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
