// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Messages committed to a room",
		},
		[]string{"kind"}, // direct, group, general
	)

	SendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_send_failures_total",
			Help: "Sends that did not commit",
		},
		[]string{"reason"},
	)

	SendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_send_duration_seconds",
			Help:    "Latency of the send batch",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	ReadMarkers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_read_markers_total",
			Help: "markRead calls applied",
		},
	)

	ModerationVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_moderation_verdicts_total",
			Help: "Classifier outcomes",
		},
		[]string{"outcome"}, // clean, flagged, error, skipped
	)

	AlertsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_alerts_published_total",
			Help: "Out-of-band alert events",
		},
		[]string{"status"},
	)

	DocumentWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_document_writes_total",
			Help: "Shared document overwrites",
		},
	)

	FeedSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_feed_subscribers",
			Help: "Live queries currently running",
		},
	)

	ConnectedStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_notice_streams",
			Help: "Notice streams registered in the hub",
		},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rate_limited_total",
			Help: "Calls rejected by the per-user limiter",
		},
		[]string{"method"},
	)
)
