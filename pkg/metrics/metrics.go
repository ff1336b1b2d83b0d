package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "scenestream"
)

// Export failure reasons.
const (
	ReasonError   = "error"
	ReasonTimeout = "timeout"
	ReasonNoData  = "no_data"
)

// Metrics holds every collector on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// FramesSent counts frames written to the socket
	FramesSent prometheus.Counter

	// BytesSent counts payload bytes written, excluding headers
	BytesSent prometheus.Counter

	// ExportFailures counts failed export cycles
	ExportFailures *prometheus.CounterVec

	// ExportDuration measures the export hand-off including the wait for the executor
	ExportDuration prometheus.Histogram

	// IdleCycles counts loop iterations skipped by the activity gate
	IdleCycles prometheus.Counter

	// Connected is 1 while a stream socket is open
	Connected prometheus.Gauge

	// Disconnects counts disconnects by cause
	Disconnects *prometheus.CounterVec

	// SessionsStarted counts stream sessions
	SessionsStarted prometheus.Counter

	// DiscoveredDevices tracks the registry size
	DiscoveredDevices prometheus.Gauge

	// Info exposes build info
	Info *prometheus.GaugeVec
}

// New registers all collectors on a fresh registry, plus the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of frames written to the receiver",
		}),
		BytesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payload_bytes_sent_total",
			Help:      "Total payload bytes written to the receiver",
		}),
		ExportFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_failures_total",
			Help:      "Total number of failed export cycles",
		}, []string{"reason"}), // error/timeout/no_data
		ExportDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_duration_seconds",
			Help:      "Export latency in seconds, measured from the stream loop",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		IdleCycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idle_cycles_total",
			Help:      "Loop iterations skipped because the scene was idle",
		}),
		Connected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while connected to a receiver",
		}),
		Disconnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Total number of disconnects",
		}, []string{"cause"}), // user/transport/shutdown
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of stream sessions started",
		}),
		DiscoveredDevices: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "discovered_devices",
			Help:      "Number of receivers currently advertised on the network",
		}),
		Info: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Scenestream build info",
		}, []string{"version", "go_version"}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// InitInfo initializes info metric
func (m *Metrics) InitInfo(version string) {
	if m == nil {
		return
	}
	m.Info.WithLabelValues(version, runtime.Version()).Set(1)
}

func (m *Metrics) ObserveFrame(payloadBytes int) {
	if m == nil {
		return
	}
	m.FramesSent.Inc()
	m.BytesSent.Add(float64(payloadBytes))
}

func (m *Metrics) ObserveExport(d time.Duration) {
	if m == nil {
		return
	}
	m.ExportDuration.Observe(d.Seconds())
}

func (m *Metrics) ExportFailed(reason string) {
	if m == nil {
		return
	}
	m.ExportFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) IdleCycle() {
	if m == nil {
		return
	}
	m.IdleCycles.Inc()
}

func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}

func (m *Metrics) Disconnected(cause string) {
	if m == nil {
		return
	}
	m.Disconnects.WithLabelValues(cause).Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

func (m *Metrics) SetDevices(n int) {
	if m == nil {
		return
	}
	m.DiscoveredDevices.Set(float64(n))
}
