// Package metrics provides Prometheus metrics for the Fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OAuthFlowsTotal tracks OAuth flow stages by outcome
	OAuthFlowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "oauth",
			Name:      "flows_total",
			Help:      "Total number of OAuth flow stages by integration and outcome",
		},
		[]string{"integration", "stage", "status"},
	)

	// TokenExchangesTotal tracks token exchange attempts by upstream status
	TokenExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "oauth",
			Name:      "token_exchanges_total",
			Help:      "Total number of authorization code exchanges by upstream status code",
		},
		[]string{"integration", "status_code"},
	)

	// TokenExchangeDuration tracks token exchange duration in seconds
	TokenExchangeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "oauth",
			Name:      "token_exchange_duration_seconds",
			Help:      "Duration of token exchange requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"integration"},
	)

	// CredentialReadsTotal tracks consuming credential reads by outcome
	CredentialReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "credentials",
			Name:      "reads_total",
			Help:      "Total number of credential read attempts by outcome",
		},
		[]string{"integration", "outcome"},
	)

	// ItemsFetchedTotal tracks normalized items returned per provider collection
	ItemsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "items",
			Name:      "fetched_total",
			Help:      "Total number of integration items fetched by collection",
		},
		[]string{"integration", "collection"},
	)

	// ItemMappingErrorsTotal tracks per-item mapping failures (non-fatal)
	ItemMappingErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "items",
			Name:      "mapping_errors_total",
			Help:      "Total number of items skipped due to mapping failures",
		},
		[]string{"integration", "collection"},
	)

	// ItemFetchDuration tracks item fetch duration per provider collection
	ItemFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "items",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of item fetch operations in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"integration", "collection"},
	)

	// HTTPRequestsTotal tracks outbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"method", "status_code"},
	)

	// HTTPRequestDuration tracks outbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	// KVOperationDuration tracks ephemeral store operation duration
	KVOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "kvstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of ephemeral key-value store operations in seconds",
			Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
		[]string{"operation"},
	)

	// EventsPublished tracks lifecycle events published to Kafka
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of integration lifecycle events published",
		},
		[]string{"topic", "status"},
	)
)

// RecordOAuthFlow records an OAuth flow stage outcome
func RecordOAuthFlow(integration, stage, status string) {
	OAuthFlowsTotal.WithLabelValues(integration, stage, status).Inc()
}

// RecordTokenExchange records a token exchange attempt
func RecordTokenExchange(integration, statusCode string, durationSeconds float64) {
	TokenExchangesTotal.WithLabelValues(integration, statusCode).Inc()
	TokenExchangeDuration.WithLabelValues(integration).Observe(durationSeconds)
}

// RecordCredentialRead records a consuming credential read
func RecordCredentialRead(integration, outcome string) {
	CredentialReadsTotal.WithLabelValues(integration, outcome).Inc()
}

// RecordHTTPRequest records an outbound HTTP request metric
func RecordHTTPRequest(method, statusCode string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordEventPublish records a lifecycle event publish attempt
func RecordEventPublish(topic, status string) {
	EventsPublished.WithLabelValues(topic, status).Inc()
}
