package monitor

import (
	"expvar"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ActiveSessions    prometheus.Gauge
	NarrativeRequests prometheus.Counter
	NarrativeFailures prometheus.Counter
	NarrativeLatency  prometheus.Histogram
	SkyboxGenerated   prometheus.Counter
	SkyboxFailed      prometheus.Counter
	SkyboxCacheHits   prometheus.Counter
	CommandsReceived  prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of rooms with a live game session",
		}),
		NarrativeRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narrative_requests_total",
			Help:      "Total number of narrative generation requests",
		}),
		NarrativeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "narrative_failures_total",
			Help:      "Total number of failed narrative generation requests",
		}),
		NarrativeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "narrative_latency_seconds",
			Help:      "Narrative generation latency",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		SkyboxGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skybox_generated_total",
			Help:      "Total number of generated skyboxes",
		}),
		SkyboxFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skybox_failures_total",
			Help:      "Total number of failed skybox generations",
		}),
		SkyboxCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skybox_cache_hits_total",
			Help:      "Total number of scene cache hits",
		}),
		CommandsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_received_total",
			Help:      "Total number of inbound game commands",
		}),
	}

	prometheus.MustRegister(
		m.ActiveSessions,
		m.NarrativeRequests,
		m.NarrativeFailures,
		m.NarrativeLatency,
		m.SkyboxGenerated,
		m.SkyboxFailed,
		m.SkyboxCacheHits,
		m.CommandsReceived,
	)

	return m
}

// Monitor exposes the metrics endpoint. All instrumentation methods are
// nil-safe so collaborators can run without a monitor wired in.
type Monitor struct {
	metrics   *Metrics
	startTime time.Time
}

func NewMonitor(namespace string) *Monitor {
	return &Monitor{
		metrics:   NewMetrics(namespace),
		startTime: time.Now(),
	}
}

func (m *Monitor) StartServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	expvar.Publish("uptime", expvar.Func(func() interface{} {
		return time.Since(m.startTime).Seconds()
	}))
	mux.Handle("/debug/vars", expvar.Handler())

	go http.ListenAndServe(addr, mux)
}

func (m *Monitor) SetActiveSessions(count int) {
	if m == nil {
		return
	}
	m.metrics.ActiveSessions.Set(float64(count))
}

func (m *Monitor) IncNarrativeRequests() {
	if m == nil {
		return
	}
	m.metrics.NarrativeRequests.Inc()
}

func (m *Monitor) IncNarrativeFailures() {
	if m == nil {
		return
	}
	m.metrics.NarrativeFailures.Inc()
}

func (m *Monitor) ObserveNarrativeLatency(duration time.Duration) {
	if m == nil {
		return
	}
	m.metrics.NarrativeLatency.Observe(duration.Seconds())
}

func (m *Monitor) IncSkyboxGenerated() {
	if m == nil {
		return
	}
	m.metrics.SkyboxGenerated.Inc()
}

func (m *Monitor) IncSkyboxFailed() {
	if m == nil {
		return
	}
	m.metrics.SkyboxFailed.Inc()
}

func (m *Monitor) IncSkyboxCacheHits() {
	if m == nil {
		return
	}
	m.metrics.SkyboxCacheHits.Inc()
}

func (m *Monitor) IncCommandsReceived() {
	if m == nil {
		return
	}
	m.metrics.CommandsReceived.Inc()
}
