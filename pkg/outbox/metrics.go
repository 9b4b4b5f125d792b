package outbox

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	dispatchTotal *prometheus.CounterVec
	deadTotal     *prometheus.CounterVec

	dispatchLatency *prometheus.HistogramVec

	pending     prometheus.Gauge
	processing  prometheus.Gauge
	relayLeader prometheus.Gauge
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		dispatchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outbox",
			Name:      "dispatch_total",
			Help:      "Total number of dispatch attempts to the workflow engine.",
		}, []string{"topic", "result"}),
		deadTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outbox",
			Name:      "dead_total",
			Help:      "Total number of entries that exhausted their attempts.",
		}, []string{"topic"}),
		dispatchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "outbox",
			Name:      "dispatch_latency_seconds",
			Help:      "Latency distribution for workflow engine dispatch.",
			Buckets: []float64{
				0.001, 0.002, 0.005,
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5, 10,
			},
		}, []string{"topic", "result"}),
		pending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "outbox",
			Name:      "pending",
			Help:      "Current number of pending queue entries.",
		}),
		processing: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "outbox",
			Name:      "processing",
			Help:      "Current number of claimed (in-flight) queue entries.",
		}),
		relayLeader: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "outbox",
			Name:      "relay_leader",
			Help:      "Whether this instance holds the relay leader lock (1/0).",
		}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
