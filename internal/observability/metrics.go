package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	messagesCreatedTotal  *prometheus.CounterVec
	reactionsToggledTotal *prometheus.CounterVec
	realtimeConnections   prometheus.Counter
	realtimeEventsTotal   *prometheus.CounterVec
	realtimeRevokedTotal  prometheus.Counter
	cascadeDeletedTotal   *prometheus.CounterVec
	uploadRequestsTotal   *prometheus.CounterVec
	uploadRejectedTotal   *prometheus.CounterVec
	uploadLatencySeconds  prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamchat_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "teamchat_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamchat_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		messagesCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamchat_messages_created_total",
			Help: "Messages posted, by scope.",
		}, []string{"scope"})

		reactionsToggledTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamchat_reactions_toggled_total",
			Help: "Reaction toggles, by resulting action.",
		}, []string{"action"})

		realtimeConnections = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teamchat_realtime_connections_total",
			Help: "Websocket connections accepted.",
		})

		realtimeEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamchat_realtime_events_total",
			Help: "Change events delivered to local subscribers, by type.",
		}, []string{"type"})

		realtimeRevokedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teamchat_realtime_revoked_total",
			Help: "Websocket subscriptions closed because access was revoked.",
		})

		cascadeDeletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamchat_cascade_deleted_rows_total",
			Help: "Rows removed by cascading deletes, by entity.",
		}, []string{"entity"})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamchat_upload_requests_total",
			Help: "Accepted uploads, by detected type.",
		}, []string{"type"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamchat_upload_rejected_total",
			Help: "Rejected uploads, by reason.",
		}, []string{"reason"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "teamchat_upload_latency_seconds",
			Help:    "Latency of server-side uploads.",
			Buckets: prometheus.DefBuckets,
		})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			messagesCreatedTotal, reactionsToggledTotal,
			realtimeConnections, realtimeEventsTotal, realtimeRevokedTotal,
			cascadeDeletedTotal,
			uploadRequestsTotal, uploadRejectedTotal, uploadLatencySeconds,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

func MessagesCreated() *prometheus.CounterVec {
	RegisterMetrics()
	return messagesCreatedTotal
}

func ReactionsToggled() *prometheus.CounterVec {
	RegisterMetrics()
	return reactionsToggledTotal
}

func RealtimeConnections() prometheus.Counter {
	RegisterMetrics()
	return realtimeConnections
}

func RealtimeEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return realtimeEventsTotal
}

func RealtimeRevocations() prometheus.Counter {
	RegisterMetrics()
	return realtimeRevokedTotal
}

// CascadeDeletes counts rows removed per entity by cascading deletes.
func CascadeDeletes() *prometheus.CounterVec {
	RegisterMetrics()
	return cascadeDeletedTotal
}

func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}
