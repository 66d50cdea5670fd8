package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guidealign_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guidealign_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Detection metrics
	detectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guidealign_detections_total",
			Help: "Total number of detection passes by outcome",
		},
		[]string{"orientation", "source"}, // orientation: portrait, landscape, none
	)

	detectDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guidealign_detect_duration_seconds",
			Help:    "Boundary detection duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"mode"}, // mode: oneshot, session
	)

	// Live session metrics
	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "guidealign_sessions_active",
			Help: "Number of active WebSocket detection sessions",
		},
	)

	sessionMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guidealign_session_messages_total",
			Help: "Total number of WebSocket session messages",
		},
		[]string{"direction"}, // direction: sent, received
	)

	sessionFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guidealign_session_frames_total",
			Help: "Total number of frames pushed into live sessions",
		},
		[]string{"status"}, // status: accepted, rejected
	)
)
