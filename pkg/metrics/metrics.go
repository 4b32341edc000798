package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AdminRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "admin_http_requests_total", Help: "HTTP requests"},
		[]string{"method", "path", "status"},
	)
	AdminRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "admin_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	MessagesConsumed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "digest_messages_consumed_total", Help: "Queue messages pulled"},
	)
	MessagesAcked = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "digest_messages_acked_total", Help: "Queue messages acknowledged"},
		[]string{"disposition"},
	)
	CampaignFetches = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "digest_campaign_fetches_total", Help: "Content API fetches"},
	)
	CampaignFetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "digest_campaign_fetch_errors_total", Help: "Content API fetch failures"},
		[]string{"reason"},
	)
	BatchesDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "digest_batches_dispatched_total", Help: "Batches accepted by dispatch API"},
	)
	DispatchFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "digest_dispatch_failures_total", Help: "Whole-batch dispatch errors"},
	)
	RecipientsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "digest_recipients_accepted_total", Help: "Recipients reported sent or queued"},
	)
	RecipientsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "digest_recipients_rejected_total", Help: "Recipients reported rejected or invalid"},
	)
	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "digest_run_duration_seconds",
			Help:    "Time spent in one digest run",
			Buckets: prometheus.DefBuckets,
		},
	)
	BatchRecipients = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "digest_batch_recipients",
			Help:    "Recipients per dispatched batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)
)

func init() {
	prometheus.MustRegister(
		AdminRequestsTotal, AdminRequestDuration,
		MessagesConsumed, MessagesAcked,
		CampaignFetches, CampaignFetchErrors,
		BatchesDispatched, DispatchFailures,
		RecipientsAccepted, RecipientsRejected,
		RunDuration, BatchRecipients,
	)
}

func Handler() http.Handler { return promhttp.Handler() }
