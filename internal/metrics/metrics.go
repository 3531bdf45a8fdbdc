// Package metrics exposes cycle and item counters in Prometheus format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ItemsChecked  prometheus.Counter
	PriceUpdates  prometheus.Counter
	ItemErrors    *prometheus.CounterVec // partitioned by error kind
	ShopsResynced prometheus.Counter
	CycleDuration prometheus.Histogram
	InFlight      prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ItemsChecked: factory.NewCounter(prometheus.CounterOpts{
			Name: "repricer_items_checked_total",
			Help: "Items processed, whatever the outcome.",
		}),
		PriceUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "repricer_price_updates_total",
			Help: "Successful price pushes persisted to the database.",
		}),
		ItemErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "repricer_item_errors_total",
			Help: "Per-item failures by kind.",
		}, []string{"kind"}),
		ShopsResynced: factory.NewCounter(prometheus.CounterOpts{
			Name: "repricer_shops_resynced_total",
			Help: "Completed catalog resyncs.",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "repricer_cycle_duration_seconds",
			Help:    "Wall time of one reconciliation cycle.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "repricer_items_in_flight",
			Help: "Items currently being reconciled.",
		}),
	}
}
