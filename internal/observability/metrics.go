package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Compose step results.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics holds all Prometheus metrics for webedge.
//
// All recording methods are safe to call on a nil *Metrics, which lets
// components treat metrics as optional.
type Metrics struct {
	ruleMatches      *prometheus.CounterVec
	redirects        *prometheus.CounterVec
	composeSteps     *prometheus.CounterVec
	composeDuration  *prometheus.HistogramVec
	bannerSelections prometheus.Counter
	bannersRendered  prometheus.Histogram
	bannerEvalErrors *prometheus.CounterVec
	menuStatusSize   prometheus.Histogram
	configReloads    *prometheus.CounterVec
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	buildInfo        *prometheus.GaugeVec
	breakerChanges   *prometheus.CounterVec
	breakerRejects   prometheus.Counter
	registry         *prometheus.Registry
}

// NewMetrics creates a new Metrics instance backed by its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "webedge"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.ruleMatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "matches_total",
			Help:      "Total number of rule matches by rule kind",
		},
		[]string{"kind"},
	)

	m.redirects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "redirects_total",
			Help:      "Total number of redirects issued by status code",
		},
		[]string{"status"},
	)

	m.composeSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compose",
			Name:      "steps_total",
			Help:      "Total number of configuration transform executions",
		},
		[]string{"step", "result"},
	)

	m.composeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "compose",
			Name:      "step_duration_seconds",
			Help:      "Configuration transform duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"step"},
	)

	m.bannerSelections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "banners",
			Name:      "selections_total",
			Help:      "Total number of banner selection passes",
		},
	)

	m.bannersRendered = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "banners",
			Name:      "rendered",
			Help:      "Number of banners returned per selection pass",
			Buckets:   prometheus.LinearBuckets(0, 2, 10),
		},
	)

	m.bannerEvalErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "banners",
			Name:      "visibility_errors_total",
			Help:      "Total number of banner visibility evaluation failures",
		},
		[]string{"banner"},
	)

	m.menuStatusSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "menu",
			Name:      "status_entries",
			Help:      "Number of menu status entries per lookup",
			Buckets:   prometheus.LinearBuckets(0, 1, 5),
		},
	)

	m.configReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "config",
			Name:      "reloads_total",
			Help:      "Total number of configuration reload attempts",
		},
		[]string{"result"},
	)

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets: []float64{
				.001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5, 5, 10,
			},
		},
		[]string{"method"},
	)

	m.buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_time"},
	)

	m.breakerChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "breaker_transitions_total",
			Help:      "Total number of upstream circuit breaker state transitions",
		},
		[]string{"from", "to"},
	)

	m.breakerRejects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "breaker_rejections_total",
			Help:      "Total number of requests rejected by the open upstream circuit breaker",
		},
	)

	m.registerCollectors()

	return m
}

// registerCollectors registers all collectors with the registry.
func (m *Metrics) registerCollectors() {
	m.registry.MustRegister(
		m.ruleMatches,
		m.redirects,
		m.composeSteps,
		m.composeDuration,
		m.bannerSelections,
		m.bannersRendered,
		m.bannerEvalErrors,
		m.menuStatusSize,
		m.configReloads,
		m.requestsTotal,
		m.requestDuration,
		m.buildInfo,
		m.breakerChanges,
		m.breakerRejects,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// RecordRuleMatch records a match of a rule of the given kind.
func (m *Metrics) RecordRuleMatch(kind string) {
	if m == nil {
		return
	}
	m.ruleMatches.WithLabelValues(kind).Inc()
}

// RecordRedirect records a redirect with the given status code.
func (m *Metrics) RecordRedirect(status int) {
	if m == nil {
		return
	}
	m.redirects.WithLabelValues(strconv.Itoa(status)).Inc()
}

// RecordComposeStep records the execution of a configuration transform.
func (m *Metrics) RecordComposeStep(step string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.composeSteps.WithLabelValues(step, result).Inc()
	m.composeDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordBannerSelection records a banner selection pass returning count banners.
func (m *Metrics) RecordBannerSelection(count int) {
	if m == nil {
		return
	}
	m.bannerSelections.Inc()
	m.bannersRendered.Observe(float64(count))
}

// RecordBannerVisibilityError records a failed visibility evaluation.
func (m *Metrics) RecordBannerVisibilityError(banner string) {
	if m == nil {
		return
	}
	m.bannerEvalErrors.WithLabelValues(banner).Inc()
}

// RecordMenuStatus records the size of a computed menu status map.
func (m *Metrics) RecordMenuStatus(entries int) {
	if m == nil {
		return
	}
	m.menuStatusSize.Observe(float64(entries))
}

// RecordConfigReload records a configuration reload attempt.
func (m *Metrics) RecordConfigReload(err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	m.configReloads.WithLabelValues(result).Inc()
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordBreakerTransition records an upstream circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(from, to string) {
	if m == nil {
		return
	}
	m.breakerChanges.WithLabelValues(from, to).Inc()
}

// RecordBreakerRejection records a request refused by the open breaker.
func (m *Metrics) RecordBreakerRejection() {
	if m == nil {
		return
	}
	m.breakerRejects.Inc()
}

// SetBuildInfo sets the build information gauge.
func (m *Metrics) SetBuildInfo(version, commit, buildTime string) {
	if m == nil {
		return
	}
	m.buildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
