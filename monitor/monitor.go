// monitor/monitor.go
package monitor

import (
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	OnlinePlayers        prometheus.Gauge
	ActiveSessions       prometheus.Gauge
	PhaseTransitions     *prometheus.CounterVec
	Eliminations         *prometheus.CounterVec
	GamesCompleted       *prometheus.CounterVec
	CollaboratorFailures *prometheus.CounterVec
	StaleExpiries        prometheus.Counter
	MessagesReceived     prometheus.Counter
	MessageLatency       prometheus.Histogram
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of connected players",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of sessions held by the registry",
		}),
		PhaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Phase transitions by target phase",
		}, []string{"phase"}),
		Eliminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eliminations_total",
			Help:      "Eliminations by cause",
		}, []string{"cause"}),
		GamesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_completed_total",
			Help:      "Completed games by winning faction",
		}, []string{"faction"}),
		CollaboratorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_failures_total",
			Help:      "Failed broadcast or settlement calls",
		}, []string{"collaborator"}),
		StaleExpiries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_timer_expiries_total",
			Help:      "Timer expiries discarded because their cycle was cancelled",
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages received",
		}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_latency_seconds",
			Help:      "Message processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}

	reg.MustRegister(
		m.OnlinePlayers,
		m.ActiveSessions,
		m.PhaseTransitions,
		m.Eliminations,
		m.GamesCompleted,
		m.CollaboratorFailures,
		m.StaleExpiries,
		m.MessagesReceived,
		m.MessageLatency,
	)

	return m
}

// Monitor wraps the metrics. A nil *Monitor is valid and records nothing.
type Monitor struct {
	metrics      *Metrics
	gatherer     prometheus.Gatherer
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
}

// expvar names are process-wide.
var publishOnce sync.Once

// NewMonitor registers metrics on a fresh registry.
func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	return &Monitor{
		metrics:   NewMetrics(namespace, reg),
		gatherer:  reg,
		startTime: time.Now(),
	}
}

// Handler serves the metrics and expvar endpoints.
func (m *Monitor) Handler() http.Handler {
	publishOnce.Do(func() {
		expvar.Publish("uptime", expvar.Func(func() interface{} {
			return time.Since(m.startTime).Seconds()
		}))
		expvar.Publish("requests", expvar.Func(func() interface{} {
			m.mutex.Lock()
			defer m.mutex.Unlock()
			return m.requestCount
		}))
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	return mux
}

// Gatherer exposes the registry for tests.
func (m *Monitor) Gatherer() prometheus.Gatherer {
	return m.gatherer
}

func (m *Monitor) IncOnlinePlayers() {
	if m == nil {
		return
	}
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) DecOnlinePlayers() {
	if m == nil {
		return
	}
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) SetActiveSessions(count int) {
	if m == nil {
		return
	}
	m.metrics.ActiveSessions.Set(float64(count))
}

func (m *Monitor) ObservePhase(phase string) {
	if m == nil {
		return
	}
	m.metrics.PhaseTransitions.WithLabelValues(phase).Inc()
}

func (m *Monitor) ObserveElimination(cause string) {
	if m == nil {
		return
	}
	m.metrics.Eliminations.WithLabelValues(cause).Inc()
}

func (m *Monitor) ObserveGameCompleted(faction string) {
	if m == nil {
		return
	}
	m.metrics.GamesCompleted.WithLabelValues(faction).Inc()
}

func (m *Monitor) ObserveCollaboratorFailure(collaborator string) {
	if m == nil {
		return
	}
	m.metrics.CollaboratorFailures.WithLabelValues(collaborator).Inc()
}

func (m *Monitor) IncStaleExpiries() {
	if m == nil {
		return
	}
	m.metrics.StaleExpiries.Inc()
}

func (m *Monitor) IncMessagesReceived() {
	if m == nil {
		return
	}
	m.metrics.MessagesReceived.Inc()
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

func (m *Monitor) ObserveMessageLatency(duration time.Duration) {
	if m == nil {
		return
	}
	m.metrics.MessageLatency.Observe(duration.Seconds())
}
