package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	IncomingEvents  *prometheus.CounterVec
	OutgoingReplies *prometheus.CounterVec
	FlowTransitions *prometheus.CounterVec
	RepoRequests    *prometheus.CounterVec
	RepoLatency     *prometheus.HistogramVec
	CatalogLookups  *prometheus.CounterVec
	Errors          *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			IncomingEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "incoming_events_total",
				Help:      "Total inbound chat events by kind.",
			}, []string{"kind"}),
			OutgoingReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outgoing_replies_total",
				Help:      "Total replies delivered by transport.",
			}, []string{"transport"}),
			FlowTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flow_transitions_total",
				Help:      "Dialogue transitions by flow and outcome.",
			}, []string{"flow", "outcome"}),
			RepoRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "repo_requests_total",
				Help:      "Total repository calls by operation and status.",
			}, []string{"op", "status"}),
			RepoLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "repo_request_duration_seconds",
				Help:      "Latency distribution for repository calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			CatalogLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_cache_lookups_total",
				Help:      "Catalog cache lookups by result.",
			}, []string{"result"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.IncomingEvents,
			metricsInstance.OutgoingReplies,
			metricsInstance.FlowTransitions,
			metricsInstance.RepoRequests,
			metricsInstance.RepoLatency,
			metricsInstance.CatalogLookups,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
