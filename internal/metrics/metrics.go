// Package metrics exposes daemon internals in the Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"codeberg.org/mutker/vitalsd/internal/refresh"
	"codeberg.org/mutker/vitalsd/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vitalsd"

// Rejection reasons used as label values.
const (
	ReasonMalformed      = "malformed"
	ReasonUnknownChannel = "unknown_channel"
	ReasonNonFinite      = "non_finite"
	ReasonUnauthorized   = "unauthorized"
)

// SignalStats is implemented by the refresh scheduler.
type SignalStats interface {
	Stats() refresh.Stats
}

// SupersededCounter is implemented by the render consumer.
type SupersededCounter interface {
	Superseded() uint64
}

// Metrics owns a dedicated registry so tests and the daemon never share
// global state.
type Metrics struct {
	registry *prometheus.Registry

	appended         *prometheus.CounterVec
	rejected         *prometheus.CounterVec
	statusRequests   prometheus.Counter
	httpRequests     *prometheus.CounterVec
	snapshotDuration prometheus.Histogram
	snapshotSize     prometheus.Gauge
	renderDuration   prometheus.Histogram
	renderFailures   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		appended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurements_appended_total",
			Help:      "Measurements appended to the store.",
		}, []string{"channel"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_rejected_total",
			Help:      "Ingestion requests or samples rejected before reaching the store.",
		}, []string{"reason"}),
		statusRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_requests_total",
			Help:      "Liveness checks served.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		snapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_duration_seconds",
			Help:      "Time spent copying the store, lock wait included.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		snapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_measurements",
			Help:      "Measurements in the most recent snapshot.",
		}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Time spent drawing one chart frame.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		renderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_failures_total",
			Help:      "Chart frames that failed to render.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.appended,
		m.rejected,
		m.statusRequests,
		m.httpRequests,
		m.snapshotDuration,
		m.snapshotSize,
		m.renderDuration,
		m.renderFailures,
	)

	return m
}

// Registry returns the registry all collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WatchScheduler exports the scheduler's delivered and dropped signal counts.
func (m *Metrics) WatchScheduler(s SignalStats) {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_signals_delivered_total",
			Help:      "Refresh signals received by the render consumer.",
		}, func() float64 { return float64(s.Stats().Delivered) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_signals_dropped_total",
			Help:      "Refresh ticks dropped because the consumer was busy.",
		}, func() float64 { return float64(s.Stats().Dropped) }),
	)
}

// WatchRenderer exports how many snapshots were replaced before drawing.
func (m *Metrics) WatchRenderer(c SupersededCounter) {
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "render_snapshots_superseded_total",
		Help:      "Snapshots replaced by a newer one before the worker drew them.",
	}, func() float64 { return float64(c.Superseded()) }))
}

func (m *Metrics) Appended(channel telemetry.Channel) {
	m.appended.WithLabelValues(string(channel)).Inc()
}

func (m *Metrics) Rejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) StatusRequest() {
	m.statusRequests.Inc()
}

func (m *Metrics) HTTPRequest(route, method string, code int) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
}

// SnapshotTaken and FrameRendered make Metrics a render.Observer.
func (m *Metrics) SnapshotTaken(elapsed time.Duration, measurements int) {
	m.snapshotDuration.Observe(elapsed.Seconds())
	m.snapshotSize.Set(float64(measurements))
}

func (m *Metrics) FrameRendered(elapsed time.Duration, err error) {
	if err != nil {
		m.renderFailures.Inc()
		return
	}
	m.renderDuration.Observe(elapsed.Seconds())
}
