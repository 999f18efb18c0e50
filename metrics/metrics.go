package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// StoreRequestsTotal counts remote store requests by operation and result.
	StoreRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartvision",
		Subsystem: "store",
		Name:      "requests_total",
		Help:      "Total number of remote store requests, labeled by operation and result.",
	}, []string{"op", "result"})

	// StoreRequestDurationSeconds is the round trip time of a store request.
	StoreRequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "smartvision",
		Subsystem: "store",
		Name:      "request_duration_seconds",
		Help:      "Remote store request latency, including rate limiter wait.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"op"})

	// OperationsTotal counts controller operations by entity, operation and result.
	OperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartvision",
		Subsystem: "sync",
		Name:      "operations_total",
		Help:      "Total number of entity sync operations, labeled by entity, operation and result.",
	}, []string{"entity", "op", "result"})

	// Entities is the number of persisted entities currently rendered.
	Entities = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "smartvision",
		Subsystem: "sync",
		Name:      "entities",
		Help:      "Number of confirmed entities in the rendered entity set.",
	}, []string{"entity"})

	// ZoneAreaHectares is the aggregate zone area.
	ZoneAreaHectares = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "smartvision",
		Subsystem: "sync",
		Name:      "zone_area_hectares",
		Help:      "Total area of the confirmed zones in hectares.",
	})

	// ChangesReceivedTotal counts change feed events by entity.
	ChangesReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartvision",
		Subsystem: "sync",
		Name:      "changes_received_total",
		Help:      "Total number of change feed events received, labeled by entity.",
	}, []string{"entity"})
)

// Register registers the client collectors with reg. Safe to call more than once.
func Register(reg prometheus.Registerer) {
	once.Do(func() {
		reg.MustRegister(
			StoreRequestsTotal,
			StoreRequestDurationSeconds,
			OperationsTotal,
			Entities,
			ZoneAreaHectares,
			ChangesReceivedTotal,
		)
	})
}
