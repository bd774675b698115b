package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Chat request outcomes recorded by the HTTP layer.
const (
	OutcomeOK            = "ok"
	OutcomeEmptyInput    = "empty_input"
	OutcomeDeveloperMode = "developer_mode"
	OutcomeUpstreamError = "upstream_error"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ChatRequests       *prometheus.CounterVec
	UpstreamLatency    prometheus.Histogram
	CounterLookups     *prometheus.CounterVec
	StoreErrors        prometheus.Counter
	AnswerIncrFailures prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ChatRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by outcome.",
		}, []string{"outcome"}),
		UpstreamLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_latency_seconds",
			Help:      "Latency of upstream completion calls in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 30, 60},
		}),
		CounterLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "counter_lookups_total",
			Help:      "Counter snapshot lookups by cache result.",
		}, []string{"result"}),
		StoreErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Failed counter store operations.",
		}),
		AnswerIncrFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_increment_failures_total",
			Help:      "Failed answered-questions counter increments.",
		}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
