package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TracesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_traces_total",
		Help: "Total traces accepted for processing",
	})

	TracesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_traces_active",
		Help: "Traces currently in the background pipeline",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_stage_duration_seconds",
		Help:    "Per-stage latency",
		Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	}, []string{"stage"})

	E2EDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_e2e_duration_seconds",
		Help:    "End-to-end latency from pipeline start to final sidecar write",
		Buckets: []float64{0.5, 1.0, 2.0, 5.0, 10.0, 20.0, 30.0, 60.0},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_errors_total",
		Help: "Error counts by stage",
	}, []string{"stage", "error_type"})

	Warnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_warnings_total",
		Help: "Recoverable failures appended to sidecar warnings",
	}, []string{"kind"})

	TraceStatus = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_trace_status_total",
		Help: "Terminal pipeline statuses",
	}, []string{"status"})

	STTNoSpeech = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stt_no_speech_total",
		Help: "Recognitions that produced no speech",
	})

	STTConfidence = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stt_confidence",
		Help:    "Recognizer confidence per accepted transcript",
		Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	})

	UploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audio_uploads_total",
		Help: "Audio uploads accepted",
	})

	TranscodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audio_transcode_failures_total",
		Help: "ffmpeg transcode failures",
	})

	StatusStreamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_status_streams_active",
		Help: "Open trace-status WebSocket streams",
	})
)
