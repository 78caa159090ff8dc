package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestOrderMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetricsWithRegisterer(reg)

	m.PlacementStarted()
	if got := gaugeValue(t, m.inFlight); got != 1 {
		t.Fatalf("expected 1 placement in flight, got %v", got)
	}
	m.RecordPlaced(3)
	m.PlacementFinished(15 * time.Millisecond)

	m.RecordFailed("insufficient_stock")
	m.RecordFailed("insufficient_stock")

	if got := counterValue(t, m.placed); got != 1 {
		t.Fatalf("expected 1 placed order, got %v", got)
	}
	if got := counterValue(t, m.reservedUnits); got != 3 {
		t.Fatalf("expected 3 reserved units, got %v", got)
	}
	if got := gaugeValue(t, m.inFlight); got != 0 {
		t.Fatalf("expected no placements in flight, got %v", got)
	}
	if got := counterValue(t, m.failed.WithLabelValues("insufficient_stock")); got != 2 {
		t.Fatalf("expected 2 failures, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var histogramSeen bool
	for _, f := range families {
		if f.GetName() == "store_order_placement_duration_seconds" {
			histogramSeen = f.GetMetric()[0].GetHistogram().GetSampleCount() == 1
		}
	}
	if !histogramSeen {
		t.Fatal("expected one duration sample")
	}
}

func TestOrderMetrics_ReRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewOrderMetricsWithRegisterer(reg)
	second := NewOrderMetricsWithRegisterer(reg)

	first.RecordPlaced(1)
	if got := counterValue(t, second.placed); got != 1 {
		t.Fatalf("second instance must share the registered counter, got %v", got)
	}
}

func TestHTTPMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetricsWithRegisterer(reg)

	m.Observe("/api/orders", "POST", 201, 10*time.Millisecond)
	m.Observe("/api/orders", "POST", 409, 5*time.Millisecond)

	if got := counterValue(t, m.requests.WithLabelValues("/api/orders", "POST", "201")); got != 1 {
		t.Fatalf("expected 1 created request, got %v", got)
	}
	if got := counterValue(t, m.requests.WithLabelValues("/api/orders", "POST", "409")); got != 1 {
		t.Fatalf("expected 1 conflict request, got %v", got)
	}
}

func TestNewGRPCServerMetrics_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewGRPCServerMetrics(reg)
	second := NewGRPCServerMetrics(reg)
	if first != second {
		t.Fatal("expected already registered grpc metrics to be reused")
	}
}
