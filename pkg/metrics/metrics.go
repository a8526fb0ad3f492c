// Package metrics holds the Prometheus collectors shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsPublished counts delivered events by routing key and path
	// ("shared" or "ephemeral").
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_service_events_published_total",
			Help: "Events accepted by the broker.",
		},
		[]string{"routing_key", "path"},
	)

	// EventsDropped counts events given up after the retry policy ran out.
	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_service_events_dropped_total",
			Help: "Events dropped after exhausting publish retries.",
		},
		[]string{"event_type"},
	)

	PublishAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "user_service_publish_attempts_total",
			Help: "Individual publish attempts, including retries.",
		},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_service_cache_requests_total",
			Help: "Response cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)

	ProfileResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "user_service_profile_resolutions_total",
			Help: "Profile reconciliations by outcome (store_hit, written_back, synthesized, not_found).",
		},
		[]string{"outcome"},
	)
)
