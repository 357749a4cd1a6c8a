package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsMetric = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "counter",
			Subsystem: "actor",
			Name:      "operations_total",
			Help:      "Counter actor operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	resolutionsMetric = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "counter",
			Subsystem: "shardmap",
			Name:      "resolutions_total",
			Help:      "Shard map resolutions by outcome",
		},
		[]string{"outcome"},
	)

	routerCacheMetric = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "counter",
			Subsystem: "router",
			Name:      "cache_lookups_total",
			Help:      "Front router name cache lookups",
		},
		[]string{"result"},
	)

	publishErrorsMetric = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "counter",
			Subsystem: "events",
			Name:      "publish_errors_total",
			Help:      "Counter events that could not be published",
		},
	)
)

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
