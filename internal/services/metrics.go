package services

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private prometheus registry for the API. All methods accept
// a nil receiver so services can run without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	workflowTotal    *prometheus.CounterVec
	workflowDuration prometheus.Histogram
	captchaTotal     *prometheus.CounterVec
	captchaDuration  prometheus.Histogram
	gateCapacity     prometheus.Gauge
	gateInUse        prometheus.Gauge
	gateWaiting      prometheus.Gauge
	cndLookups       *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
}

// NewMetrics creates and registers every collector
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "certidao",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "certidao",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		requestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "certidao",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		}),
		workflowTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "certidao",
			Subsystem: "cndt",
			Name:      "workflows_total",
			Help:      "Completed CNDT workflows by outcome.",
		}, []string{"outcome"}),
		workflowDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "certidao",
			Subsystem: "cndt",
			Name:      "workflow_duration_seconds",
			Help:      "CNDT workflow duration including cleanup.",
			Buckets:   []float64{5, 15, 30, 45, 60, 90, 120, 180, 240},
		}),
		captchaTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "certidao",
			Subsystem: "captcha",
			Name:      "solves_total",
			Help:      "CAPTCHA solve attempts by result.",
		}, []string{"result"}),
		captchaDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "certidao",
			Subsystem: "captcha",
			Name:      "solve_duration_seconds",
			Help:      "Time spent waiting for the CAPTCHA solver.",
			Buckets:   []float64{5, 15, 20, 30, 45, 60, 90},
		}),
		gateCapacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "certidao",
			Subsystem: "cndt",
			Name:      "gate_capacity",
			Help:      "Maximum concurrent CNDT workflows.",
		}),
		gateInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "certidao",
			Subsystem: "cndt",
			Name:      "gate_in_use",
			Help:      "CNDT workflows currently holding a slot.",
		}),
		gateWaiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "certidao",
			Subsystem: "cndt",
			Name:      "gate_waiting",
			Help:      "Callers queued for a CNDT slot.",
		}),
		cndLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "certidao",
			Subsystem: "cnd",
			Name:      "lookups_total",
			Help:      "CND lookups by outcome.",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "certidao",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by result.",
		}, []string{"result"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.workflowTotal,
		m.workflowDuration,
		m.captchaTotal,
		m.captchaDuration,
		m.gateCapacity,
		m.gateInUse,
		m.gateWaiting,
		m.cndLookups,
		m.cacheLookups,
	)

	return m
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RequestStarted marks a request in flight and returns the func that records its end
func (m *Metrics) RequestStarted() func(method, path string, status int) {
	if m == nil {
		return func(string, string, int) {}
	}
	start := time.Now()
	m.requestInFlight.Inc()
	return func(method, path string, status int) {
		m.requestInFlight.Dec()
		m.requestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// ObserveWorkflow records one finished CNDT workflow
func (m *Metrics) ObserveWorkflow(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.workflowTotal.WithLabelValues(outcome).Inc()
	m.workflowDuration.Observe(d.Seconds())
}

// ObserveCaptcha records one CAPTCHA solve
func (m *Metrics) ObserveCaptcha(solved bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "solved"
	if !solved {
		result = "failed"
	}
	m.captchaTotal.WithLabelValues(result).Inc()
	m.captchaDuration.Observe(d.Seconds())
}

// SetGate publishes a gate snapshot
func (m *Metrics) SetGate(stats GateStats) {
	if m == nil {
		return
	}
	m.gateCapacity.Set(float64(stats.Capacity))
	m.gateInUse.Set(float64(stats.InUse))
	m.gateWaiting.Set(float64(stats.Waiting))
}

// ObserveCND records one CND lookup outcome
func (m *Metrics) ObserveCND(outcome string) {
	if m == nil {
		return
	}
	m.cndLookups.WithLabelValues(outcome).Inc()
}

// ObserveCache records a cache hit or miss
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
