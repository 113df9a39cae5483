// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesPainted counts compositor runs on the live surface.
	FramesPainted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nightwalk_frames_painted_total",
		Help: "Frames painted by the render loop",
	})

	// CaptureTransitions counts capture session state changes.
	CaptureTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nightwalk_capture_transitions_total",
		Help: "Capture session state transitions",
	}, []string{"from", "to"})

	// CaptureStartFailures counts rejected start requests by reason.
	CaptureStartFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nightwalk_capture_start_failures_total",
		Help: "Capture start requests that failed",
	}, []string{"reason"})

	// CaptureBytes tracks encoded bytes received from the recorder.
	CaptureBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nightwalk_capture_bytes_total",
		Help: "Encoded bytes received from the recorder",
	})

	// ArtifactSize observes finished artifact sizes.
	ArtifactSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nightwalk_artifact_size_bytes",
		Help:    "Size of finished capture artifacts",
		Buckets: prometheus.ExponentialBuckets(64<<10, 2, 10), // 64KiB to 32MiB
	})

	// ArtifactsLive is the number of unrevoked artifact handles.
	ArtifactsLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nightwalk_artifacts_live",
		Help: "Artifact handles that have not been revoked",
	})

	// StreamFramesDropped counts frames dropped because the encoder lagged.
	StreamFramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nightwalk_stream_frames_dropped_total",
		Help: "Live stream frames dropped because the recorder lagged",
	})

	// ExportDuration observes offline export wall time.
	ExportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nightwalk_export_duration_seconds",
		Help:    "Wall time of offline exports",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
	})
)

var (
	// HTTPRequestDuration observes control API latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nightwalk_http_request_duration_seconds",
		Help:    "HTTP request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	// ArtifactRevokeErrors counts revokes of handles that were already gone.
	ArtifactRevokeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nightwalk_artifact_revoke_errors_total",
		Help: "Artifact revokes that found the handle already revoked or unknown",
	})
)
