// Package metrics exposes Prometheus instrumentation for the voice service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the voice session service.
type Metrics struct {
	// Session metrics
	ActiveSessions  prometheus.Gauge
	SessionsOpened  prometheus.Counter
	SessionsClosed  prometheus.Counter
	SessionDuration prometheus.Histogram

	// Turn metrics
	TurnsStarted   prometheus.Counter
	TurnsCompleted prometheus.Counter
	TurnsFailed    prometheus.Counter
	TurnsRejected  prometheus.Counter
	TurnsNoOp      prometheus.Counter
	TurnDuration   prometheus.Histogram

	// Audio frame metrics
	FramesReceived prometheus.Counter
	FramesSent     prometheus.Counter
	BytesReceived  prometheus.Counter
	BytesSent      prometheus.Counter
	FramesDropped  prometheus.Counter

	// Collaborator metrics
	RecognitionFailures prometheus.Counter
	GenerationFailures  prometheus.Counter
	SynthesisFailures   prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "voicebot_active_sessions",
			Help: "Current number of open voice sessions",
		}),
		SessionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_sessions_opened_total",
			Help: "Total number of voice sessions opened",
		}),
		SessionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_sessions_closed_total",
			Help: "Total number of voice sessions closed",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicebot_session_duration_seconds",
			Help:    "Lifetime of voice sessions",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		TurnsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_turns_started_total",
			Help: "Total number of user turns started",
		}),
		TurnsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_turns_completed_total",
			Help: "Total number of turns completed through synthesis",
		}),
		TurnsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_turns_failed_total",
			Help: "Total number of turns that failed in a collaborator",
		}),
		TurnsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_turns_rejected_total",
			Help: "Total number of start-turn requests rejected outside idle",
		}),
		TurnsNoOp: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_turns_noop_total",
			Help: "Total number of turns discarded for empty transcripts",
		}),
		TurnDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicebot_turn_duration_seconds",
			Help:    "End-to-end duration of completed turns",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		FramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_frames_received_total",
			Help: "Total number of inbound audio frames",
		}),
		FramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_frames_sent_total",
			Help: "Total number of outbound audio frames",
		}),
		BytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_audio_bytes_received_total",
			Help: "Total inbound audio bytes",
		}),
		BytesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_audio_bytes_sent_total",
			Help: "Total outbound audio bytes",
		}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_frames_dropped_total",
			Help: "Total number of audio frames dropped outside a listening turn",
		}),
		RecognitionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_recognition_failures_total",
			Help: "Total number of recognition collaborator failures",
		}),
		GenerationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_generation_failures_total",
			Help: "Total number of generation collaborator failures",
		}),
		SynthesisFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "voicebot_synthesis_failures_total",
			Help: "Total number of synthesis collaborator failures",
		}),
	}
}
