package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "speedtest",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "speedtest",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"method", "path"})

	ActiveTransfers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "speedtest",
		Name:      "active_transfers",
		Help:      "Number of download transfers currently streaming.",
	})

	TransfersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "speedtest",
		Name:      "transfers_total",
		Help:      "Finished download transfers by outcome (completed, aborted).",
	}, []string{"outcome"})

	BytesStreamedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "speedtest",
		Name:      "bytes_streamed_total",
		Help:      "Total payload bytes written to download clients.",
	})

	BytesReceivedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "speedtest",
		Name:      "bytes_received_total",
		Help:      "Total payload bytes consumed from upload clients.",
	})

	RateLimitRejectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "speedtest",
		Name:      "rate_limit_rejections_total",
		Help:      "Requests denied by the per-client admission window.",
	})

	SessionStateTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "speedtest",
		Name:      "session_state_transitions_total",
		Help:      "Transfer session FSM transitions. Streaming brackets each chunk write with a draining/streaming pair.",
	}, []string{"from", "to"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ActiveTransfers,
		TransfersTotal,
		BytesStreamedTotal,
		BytesReceivedTotal,
		RateLimitRejectionsTotal,
		SessionStateTransitionsTotal,
	)
}
