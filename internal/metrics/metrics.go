// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "scrybe"

// Metrics holds all Prometheus metrics for the server.
type Metrics struct {
	// WebSocket transport
	ConnectedClients prometheus.Gauge

	// Audio ingest
	AudioChunksReceived prometheus.Counter
	AudioBytesReceived  prometheus.Counter
	RecordingsSaved     prometheus.Counter

	// Transcription streaming
	ActiveTranscriptions prometheus.Gauge
	// BacklogDepth tracks the per-session audio backlog. The backlog is
	// deliberately unbounded, so this gauge is the signal for a stalled
	// recognizer.
	BacklogDepth         *prometheus.GaugeVec
	RecognizerSendErrors prometheus.Counter
	RecognizerOpenErrors prometheus.Counter

	// Reconciler output
	TranscriptPartials prometheus.Counter
	TranscriptFinals   prometheus.Counter
	SegmentsPersisted  prometheus.Counter

	// Persistence (best-effort)
	PersistenceErrors prometheus.Counter
}

// New creates and registers all metrics on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_clients",
			Help:      "Current number of connected WebSocket clients",
		}),
		AudioChunksReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_received_total",
			Help:      "Total number of audio chunks received",
		}),
		AudioBytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio payload bytes received",
		}),
		RecordingsSaved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_saved_total",
			Help:      "Total number of finalized recordings written to disk",
		}),
		ActiveTranscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_transcriptions",
			Help:      "Current number of running transcription sessions",
		}),
		BacklogDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audio_backlog_depth",
			Help:      "Audio buffers queued for the recognizer, per session",
		}, []string{"session"}),
		RecognizerSendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognizer_send_errors_total",
			Help:      "Total transient errors sending audio to the recognizer",
		}),
		RecognizerOpenErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognizer_open_errors_total",
			Help:      "Total failures opening a recognition stream",
		}),
		TranscriptPartials: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_partials_total",
			Help:      "Total interim transcript snapshots emitted",
		}),
		TranscriptFinals: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_finals_total",
			Help:      "Total finalized utterances reconciled",
		}),
		SegmentsPersisted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_persisted_total",
			Help:      "Total finalized segments written to the transcript store",
		}),
		PersistenceErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Total best-effort persistence failures (logged and ignored)",
		}),
	}
}
