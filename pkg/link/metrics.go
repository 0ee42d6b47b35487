package link

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons a received or outgoing frame is dropped.
const (
	ReasonOversized = "oversized"
	ReasonMalformed = "malformed"
	ReasonEnvelope  = "envelope"
	ReasonDecode    = "decode"
	ReasonChecksum  = "checksum"
	ReasonEncode    = "encode"
	ReasonWrite     = "write"
)

// MetricsNamespace prefixes all link metrics.
const MetricsNamespace = "splitkb"

// Metrics counts link activity of one Eventer.
type Metrics struct {
	FramesSent     prometheus.Counter
	FramesReceived prometheus.Counter
	FrameErrors    *prometheus.CounterVec
	AcksSent       prometheus.Counter
	AcksUnmatched  prometheus.Counter
	SendAttempts   prometheus.Counter
	SendTimeouts   prometheus.Counter
	SendsCompleted prometheus.Counter
	InFlight       prometheus.Gauge
}

// NewMetrics registers the metrics of the link named name with reg.
// A nil reg uses a private registry, which keeps independent Eventers
// (and tests) from colliding.
func NewMetrics(reg prometheus.Registerer, name string) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	labels := prometheus.Labels{"link": name}
	counter := func(metric, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   MetricsNamespace,
			Subsystem:   "link",
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		})
	}
	return &Metrics{
		FramesSent:     counter("frames_sent_total", "Frames written to the transmitter"),
		FramesReceived: counter("frames_received_total", "Frames reassembled from the receiver"),
		FrameErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   MetricsNamespace,
			Subsystem:   "link",
			Name:        "frame_errors_total",
			Help:        "Frames dropped, by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
		AcksSent:       counter("acks_sent_total", "Acks queued for validated commands"),
		AcksUnmatched:  counter("acks_unmatched_total", "Valid acks without a waiter"),
		SendAttempts:   counter("send_attempts_total", "Commands queued, retries included"),
		SendTimeouts:   counter("send_timeouts_total", "Attempts that timed out waiting for an ack"),
		SendsCompleted: counter("sends_completed_total", "Logical sends acknowledged"),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   MetricsNamespace,
			Subsystem:   "link",
			Name:        "waiters_in_flight",
			Help:        "Commands waiting for an ack",
			ConstLabels: labels,
		}),
	}
}

func (m *Metrics) frameError(reason string) {
	m.FrameErrors.WithLabelValues(reason).Inc()
}
