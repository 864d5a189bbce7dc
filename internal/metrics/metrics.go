package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Which tier produced the total of a resolved order.
	TotalResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bistro_order_total_resolutions_total",
			Help: "Count of order total resolutions by winning source.",
		},
		[]string{"source"},
	)

	// Opportunistic writes of a corrected total back to storage.
	TotalHeals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bistro_order_total_heals_total",
			Help: "Count of persisted order total corrections by result.",
		},
		[]string{"result"},
	)

	// Total number of placed orders.
	OrdersPlaced = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bistro_orders_placed_total",
		Help: "Total number of placed orders",
	})

	// Latency of every HTTP request, by route pattern.
	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bistro_http_request_duration_seconds",
		Help:    "Latency of HTTP handlers",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

var once sync.Once

// Init registers the collectors with the default registry. Repeated calls are no-ops.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			TotalResolutions,
			TotalHeals,
			OrdersPlaced,
			RequestDuration,
		)
	})
}
