package projector

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	dispatchTotal   *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		dispatchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "projector",
			Name:      "dispatch_total",
			Help:      "Total number of projection dispatches.",
		}, []string{"stream_type", "result"}),
		dispatchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "projector",
			Name:      "dispatch_latency_seconds",
			Help:      "Latency distribution for projection handlers.",
			Buckets: []float64{
				0.001, 0.002, 0.005,
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5,
			},
		}, []string{"stream_type", "result"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
