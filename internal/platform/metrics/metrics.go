package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	voteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "awards_vote_requests_total",
		Help: "Total vote requests received, labeled by outcome",
	}, []string{"status"})

	revealsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "awards_reveals_total",
		Help: "Total reveals performed, labeled winner or draw",
	}, []string{"outcome"})

	roundsAdvancedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "awards_rounds_advanced_total",
		Help: "Total forward navigations across categories",
	})

	feedProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "awards_feed_processing_duration_seconds",
		Help:    "Time spent applying one vote event in the worker",
		Buckets: prometheus.DefBuckets,
	})
)

func ObserveVoteRequest(status string) {
	voteRequestsTotal.WithLabelValues(status).Inc()
}

func ObserveReveal(outcome string) {
	revealsTotal.WithLabelValues(outcome).Inc()
}

func IncRoundAdvanced() {
	roundsAdvancedTotal.Inc()
}

func ObserveFeedProcessing(seconds float64) {
	feedProcessingDuration.Observe(seconds)
}
