package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danmuck/rtmctl/internal/protocol"
	"github.com/danmuck/rtmctl/internal/protocol/session"
)

const namespace = "rtmctl"

// Metrics holds the socket and admin HTTP collectors. It records socket
// traffic (rtm.Recorder) and counts conditions (session.Observer).
type Metrics struct {
	messagesSent     prometheus.Counter
	bytesSent        prometheus.Counter
	messagesReceived *prometheus.CounterVec
	bytesReceived    prometheus.Counter
	conditions       *prometheus.CounterVec
	drainDuration    prometheus.Histogram
	drainBatch       prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg uses the default prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rtm",
			Name:      "messages_sent_total",
			Help:      "Messages written to the socket.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rtm",
			Name:      "sent_bytes_total",
			Help:      "Payload bytes written to the socket.",
		}),
		messagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rtm",
				Name:      "messages_received_total",
				Help:      "Messages received, by route key.",
			},
			[]string{"type", "subtype"},
		),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rtm",
			Name:      "received_bytes_total",
			Help:      "Payload bytes of decoded inbound messages.",
		}),
		conditions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rtm",
				Name:      "conditions_total",
				Help:      "Socket conditions reported, by kind.",
			},
			[]string{"kind"},
		),
		drainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rtm",
			Name:      "drain_duration_seconds",
			Help:      "Time one drain pass held the write side.",
			Buckets:   prometheus.DefBuckets,
		}),
		drainBatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rtm",
			Name:      "drain_batch_messages",
			Help:      "Messages written per drain pass.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total admin HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Admin HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
	reg.MustRegister(
		m.messagesSent, m.bytesSent, m.messagesReceived, m.bytesReceived,
		m.conditions, m.drainDuration, m.drainBatch, m.httpRequests, m.httpDuration,
	)
	for _, kind := range session.Kinds() {
		m.conditions.WithLabelValues(string(kind))
	}
	return m
}

func (m *Metrics) MessageSent(bytes int) {
	m.messagesSent.Inc()
	m.bytesSent.Add(float64(bytes))
}

func (m *Metrics) MessageReceived(key protocol.RouteKey, bytes int) {
	msgType := key.Type
	if msgType == "" {
		msgType = "unknown"
	}
	m.messagesReceived.WithLabelValues(msgType, key.Subtype).Inc()
	m.bytesReceived.Add(float64(bytes))
}

func (m *Metrics) DrainFinished(elapsed time.Duration, messages int) {
	m.drainDuration.Observe(elapsed.Seconds())
	m.drainBatch.Observe(float64(messages))
}

func (m *Metrics) Observe(c session.Condition) {
	m.conditions.WithLabelValues(string(c.Kind)).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusLabel := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	m.httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
