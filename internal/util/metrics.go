package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TopicsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "provenance_topics_created_total",
		Help: "Total number of ledger topics created and registered",
	})

	TopicsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provenance_topics_failed_total",
		Help: "Total number of failed topic registrations",
	}, []string{"reason"})

	OrphanedTopicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "provenance_orphaned_topics_total",
		Help: "Topics allocated on the ledger whose product row could not be persisted",
	})

	EventsSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provenance_events_submitted_total",
		Help: "Total number of events appended to the ledger",
	}, []string{"event_type"})

	EventsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provenance_events_failed_total",
		Help: "Total number of failed event submissions",
	}, []string{"reason"})

	LedgerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "provenance_ledger_latency_seconds",
		Help:    "Latency of ledger round trips including receipt",
		Buckets: []float64{.25, .5, 1, 2, 4, 8, 16},
	}, []string{"operation"})

	MirrorLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "provenance_mirror_latency_seconds",
		Help:    "Latency of mirror service message listings",
		Buckets: prometheus.DefBuckets,
	})

	MessagesDecodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "provenance_messages_decoded_total",
		Help: "Total number of mirror messages decoded into events",
	})

	MessagesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "provenance_messages_skipped_total",
		Help: "Total number of malformed mirror messages dropped",
	})

	ProvisionalSequenceFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "provenance_provisional_sequence_fallback_total",
		Help: "Provisional sequence numbers taken from the wall clock because Redis was unavailable",
	})

	CacheDrift = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "provenance_cache_drift_messages",
		Help: "Ledger message count minus cached event count, per topic",
	}, []string{"topic_id"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
