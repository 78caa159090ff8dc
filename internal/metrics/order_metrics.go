package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики размещения заказов.
type OrderMetrics struct {
	placed        prometheus.Counter
	failed        *prometheus.CounterVec
	duration      prometheus.Histogram
	reservedUnits prometheus.Counter
	inFlight      prometheus.Gauge
}

// NewOrderMetrics регистрирует метрики в DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer регистрирует метрики в указанном реестре.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		placed: register(registerer, "store_orders_placed_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "store_orders_placed_total",
			Help: "Total number of orders placed successfully",
		})),
		failed: register(registerer, "store_orders_failed_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "store_orders_failed_total",
			Help: "Total number of failed order placements by reason",
		}, []string{"reason"})),
		duration: register(registerer, "store_order_placement_duration_seconds", prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "store_order_placement_duration_seconds",
			Help:    "Duration of order placement transactions in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		})),
		reservedUnits: register(registerer, "store_stock_units_reserved_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "store_stock_units_reserved_total",
			Help: "Total number of stock units taken by placed orders",
		})),
		inFlight: register(registerer, "store_order_placements_in_flight", prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "store_order_placements_in_flight",
			Help: "Number of order placements currently running",
		})),
	}
}

// PlacementStarted отмечает начало размещения.
func (m *OrderMetrics) PlacementStarted() {
	m.inFlight.Inc()
}

// PlacementFinished отмечает завершение размещения и записывает его длительность.
func (m *OrderMetrics) PlacementFinished(duration time.Duration) {
	m.inFlight.Dec()
	m.duration.Observe(duration.Seconds())
}

// RecordPlaced учитывает успешный заказ и количество списанных единиц.
func (m *OrderMetrics) RecordPlaced(units int) {
	m.placed.Inc()
	m.reservedUnits.Add(float64(units))
}

// RecordFailed учитывает неудачное размещение с причиной (код бизнес-ошибки или "internal").
func (m *OrderMetrics) RecordFailed(reason string) {
	m.failed.WithLabelValues(reason).Inc()
}
