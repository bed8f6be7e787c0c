package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the dashboard's own collectors. It describes this process
// (requests served, proxy failures, readiness), never the load balancer.
//
// All methods are safe on a nil *Metrics so metrics can be disabled.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec

	proxyForwarded prometheus.Counter
	proxyErrors    *prometheus.CounterVec
	corsChecks     *prometheus.CounterVec

	ready              prometheus.Gauge
	clockSubscriptions prometheus.Gauge
	themeDark          prometheus.Gauge
	preferenceFailures prometheus.Counter
	uptime             prometheus.GaugeFunc

	startTime time.Time
}

func New() *Metrics {
	m := &Metrics{
		registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
	}

	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admindash_http_requests_total",
		Help: "HTTP requests served, by server, status code and method.",
	}, []string{"server", "code", "method"})
	m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "admindash_http_request_duration_seconds",
		Help:    "HTTP request latency, by server.",
		Buckets: prometheus.DefBuckets,
	}, []string{"server", "code", "method"})
	m.inFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "admindash_http_in_flight_requests",
		Help: "Requests currently being served.",
	}, []string{"server"})

	m.proxyForwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "admindash_proxy_forwarded_total",
		Help: "Requests forwarded upstream by the metrics proxy.",
	})
	m.proxyErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admindash_proxy_errors_total",
		Help: "Forwarding failures, by kind (unreachable, timeout).",
	}, []string{"kind"})
	m.corsChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admindash_cors_checks_total",
		Help: "Cross-origin requests seen by the boundary server, by result.",
	}, []string{"result"})

	m.ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "admindash_ready",
		Help: "1 once the readiness sequence has completed.",
	})
	m.clockSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "admindash_clock_subscriptions",
		Help: "Live clock subscriptions (one timer each).",
	})
	m.themeDark = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "admindash_theme_dark",
		Help: "1 when the persisted theme is dark.",
	})
	m.preferenceFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "admindash_preference_persist_failures_total",
		Help: "Preference writes that could not be persisted.",
	})
	m.uptime = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "admindash_uptime_seconds",
		Help: "Process uptime in seconds.",
	}, func() float64 { return time.Since(m.startTime).Seconds() })

	m.registry.MustRegister(
		m.requests, m.duration, m.inFlight,
		m.proxyForwarded, m.proxyErrors, m.corsChecks,
		m.ready, m.clockSubscriptions, m.themeDark, m.preferenceFailures, m.uptime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Instrument wraps next with request count, latency and in-flight metrics
// labelled with server.
func (m *Metrics) Instrument(server string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		labels := prometheus.Labels{"server": server}
		h := promhttp.InstrumentHandlerDuration(m.duration.MustCurryWith(labels), next)
		h = promhttp.InstrumentHandlerCounter(m.requests.MustCurryWith(labels), h)
		return promhttp.InstrumentHandlerInFlight(m.inFlight.WithLabelValues(server), h)
	}
}

func (m *Metrics) RecordProxyForward() {
	if m != nil {
		m.proxyForwarded.Inc()
	}
}

// RecordProxyError counts a forwarding failure. kind is "unreachable" or "timeout".
func (m *Metrics) RecordProxyError(kind string) {
	if m != nil {
		m.proxyErrors.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) RecordCORS(granted bool) {
	if m == nil {
		return
	}
	result := "denied"
	if granted {
		result = "granted"
	}
	m.corsChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) SetReady(ready bool) {
	if m != nil {
		m.ready.Set(boolToFloat(ready))
	}
}

func (m *Metrics) SetClockSubscriptions(n int) {
	if m != nil {
		m.clockSubscriptions.Set(float64(n))
	}
}

func (m *Metrics) SetThemeDark(dark bool) {
	if m != nil {
		m.themeDark.Set(boolToFloat(dark))
	}
}

func (m *Metrics) RecordPreferenceFailure() {
	if m != nil {
		m.preferenceFailures.Inc()
	}
}

// Uptime returns time since New.
func (m *Metrics) Uptime() time.Duration {
	if m == nil {
		return 0
	}
	return time.Since(m.startTime)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
