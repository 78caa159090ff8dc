package grpcsvc

import (
	"context"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// Server — gRPC-сервер с health-сервисом и reflection.
type Server struct {
	*grpc.Server
	Health *health.Server
}

// NewServer собирает сервер: метрики (если заданы), логирование вызовов,
// store.v1.OrderService, grpc.health.v1 и reflection для grpcurl.
func NewServer(svc OrderServiceServer, metrics *promgrpc.ServerMetrics, logger *log.Entry) *Server {
	if logger == nil {
		logger = log.WithField("component", "grpc")
	}

	interceptors := make([]grpc.UnaryServerInterceptor, 0, 2)
	if metrics != nil {
		interceptors = append(interceptors, metrics.UnaryServerInterceptor())
	}
	interceptors = append(interceptors, loggingInterceptor(logger))

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	RegisterOrderServiceServer(srv, svc)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthServer)

	reflection.Register(srv)
	if metrics != nil {
		metrics.InitializeMetrics(srv)
	}

	return &Server{Server: srv, Health: healthServer}
}

// Shutdown снимает готовность и ждёт завершения вызовов не дольше timeout.
func (s *Server) Shutdown(timeout time.Duration) {
	s.Health.Shutdown()
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		s.Stop()
	}
}

func loggingInterceptor(logger *log.Entry) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.WithFields(log.Fields{
			"method":      info.FullMethod,
			"code":        status.Code(err).String(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("grpc call")
		return resp, err
	}
}
