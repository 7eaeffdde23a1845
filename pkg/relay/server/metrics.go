package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/watt-toolkit/relay/pkg/relay/http1"
)

const metricsNamespace = "relay"

// Metrics holds the server's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	queueDepth  prometheus.Gauge
	tasksPushed *prometheus.CounterVec
	rejected    prometheus.Counter
	requests    *prometheus.CounterVec
	closes      *prometheus.CounterVec
	states      *prometheus.CounterVec
	busyWorkers prometheus.Gauge
	cycle       prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Tasks waiting in the bounded queue",
		}),
		tasksPushed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "pushed_total",
			Help:      "Tasks pushed by the producer, by tag",
		}, []string{"tag"}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "queue",
			Name:      "rejected_total",
			Help:      "Accepted connections closed because the queue stayed full",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests answered, by method and status code",
		}, []string{"method", "code"}),
		closes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "connections_closed_total",
			Help:      "Connections closed by a worker, by reason",
		}, []string{"reason"}),
		states: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "worker",
			Name:      "state_entries_total",
			Help:      "Worker state machine entries, by state",
		}, []string{"state"}),
		busyWorkers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "worker",
			Name:      "busy",
			Help:      "Workers currently serving a connection",
		}),
		cycle: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "cycle_seconds",
			Help:      "Time from a parsed request to its written reply",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
	}
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) taskPushed(tag TaskTag) {
	if m == nil {
		return
	}
	m.tasksPushed.WithLabelValues(tag.String()).Inc()
}

func (m *Metrics) taskRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

func (m *Metrics) requestServed(method http1.Method, status http1.Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method.String(), statusLabel(status)).Inc()
	m.cycle.Observe(elapsed.Seconds())
}

func (m *Metrics) connClosed(reason string) {
	if m == nil {
		return
	}
	m.closes.WithLabelValues(reason).Inc()
}

func (m *Metrics) stateEntered(s State) {
	if m == nil {
		return
	}
	m.states.WithLabelValues(s.String()).Inc()
}

func (m *Metrics) workerBusy(delta float64) {
	if m == nil {
		return
	}
	m.busyWorkers.Add(delta)
}

func statusLabel(s http1.Status) string {
	if s.Code() == 0 {
		return "unknown"
	}
	return strconv.Itoa(s.Code())
}
