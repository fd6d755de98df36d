package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the realtime core's drop/retry/panic counters. Every
// recovery path the core takes silently is counted here so degraded behavior
// stays diagnosable.
type Metrics struct {
	FramesReceived    prometheus.Counter
	DecodeErrors      prometheus.Counter
	HandlerPanics     *prometheus.CounterVec
	SendFailures      prometheus.Counter
	ReconnectAttempts prometheus.Counter
	DroppedUpdates    prometheus.Counter
	ConnectionState   prometheus.Gauge
}

// New builds the metric set and registers it when reg is non-nil. Passing a
// nil registerer yields working but unexported metrics, which is what tests
// and embedded library use want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aria_realtime_frames_received_total",
			Help: "Inbound frames handed to the event bus.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aria_realtime_decode_errors_total",
			Help: "Malformed inbound frames dropped by the bus.",
		}),
		HandlerPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aria_realtime_handler_panics_total",
			Help: "Subscriber callbacks that panicked during dispatch.",
		}, []string{"event_type"}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aria_realtime_send_failures_total",
			Help: "Outbound sends rejected because no channel was connected.",
		}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aria_realtime_reconnect_attempts_total",
			Help: "Connection attempts made after a drop.",
		}),
		DroppedUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aria_realtime_dropped_step_updates_total",
			Help: "Step updates ignored because no execution was initialized for the goal.",
		}),
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "aria_realtime_connection_state",
			Help: "Current connection state (0 idle, 1 connecting, 2 connected, 3 reconnecting, 4 failed).",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.FramesReceived,
			m.DecodeErrors,
			m.HandlerPanics,
			m.SendFailures,
			m.ReconnectAttempts,
			m.DroppedUpdates,
			m.ConnectionState,
		)
	}
	return m
}
