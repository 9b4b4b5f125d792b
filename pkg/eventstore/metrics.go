package eventstore

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	appendTotal   *prometheus.CounterVec
	conflictTotal *prometheus.CounterVec
	pendingTotal  *prometheus.CounterVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		appendTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventstore",
			Name:      "append_total",
			Help:      "Total number of append operations.",
		}, []string{"stream_type", "result"}),
		conflictTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventstore",
			Name:      "version_conflict_total",
			Help:      "Total number of optimistic-concurrency collisions on append.",
		}, []string{"stream_type"}),
		pendingTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eventstore",
			Name:      "projection_pending_total",
			Help:      "Total number of appends whose projection handler failed.",
		}, []string{"stream_type"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
