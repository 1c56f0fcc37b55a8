package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sessionMetrics aggregates counters across all sessions owned by a Manager
type sessionMetrics struct {
	activeSessions prometheus.Gauge
	reconnects     prometheus.Counter
	failures       prometheus.Counter
	audioBytes     prometheus.Counter
	metadataEvents prometheus.Counter
}

func newSessionMetrics(reg prometheus.Registerer) *sessionMetrics {
	factory := promauto.With(reg)
	return &sessionMetrics{
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stream_session",
			Name:      "active_sessions",
			Help:      "Number of sessions currently running.",
		}),
		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stream_session",
			Name:      "reconnects_total",
			Help:      "Total connection attempts consumed by the recovery protocol.",
		}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stream_session",
			Name:      "failures_total",
			Help:      "Total sessions ended by a terminal failure.",
		}),
		audioBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stream_session",
			Name:      "audio_bytes_total",
			Help:      "Total audio bytes delivered to sinks.",
		}),
		metadataEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stream_session",
			Name:      "metadata_events_total",
			Help:      "Total stream title changes observed.",
		}),
	}
}
