package metrics

import (
	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

// NewGRPCServerMetrics регистрирует серверные метрики gRPC с гистограммой длительности.
func NewGRPCServerMetrics(registerer prometheus.Registerer) *promgrpc.ServerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := promgrpc.NewServerMetrics()
	m.EnableHandlingTimeHistogram()
	return register(registerer, "grpc_server", m)
}
