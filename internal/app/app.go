// Package app собирает сервис: хранилище, кеш, outbox, Kafka и транспорты HTTP и gRPC.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	healthcheck "github.com/vladislavdragonenkov/store/internal/health"
	"github.com/vladislavdragonenkov/store/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/store/internal/metrics"
	"github.com/vladislavdragonenkov/store/internal/service/catalog"
	grpcsvc "github.com/vladislavdragonenkov/store/internal/service/grpc"
	"github.com/vladislavdragonenkov/store/internal/service/httpapi"
	"github.com/vladislavdragonenkov/store/internal/service/orders"
	"github.com/vladislavdragonenkov/store/internal/service/outbox"
	"github.com/vladislavdragonenkov/store/internal/service/placement"
	"github.com/vladislavdragonenkov/store/internal/tracing"
	"github.com/vladislavdragonenkov/store/internal/version"
)

// ServiceName — имя сервиса в трейсах и в Kafka client id.
const ServiceName = "store-service"

// Services — прикладной слой поверх общего хранилища.
type Services struct {
	Catalog   *catalog.Service
	Orders    *orders.Service
	Placement *placement.Orchestrator
}

// NewServices связывает сервисы с хранилищем и кешем зависимостей.
func NewServices(deps *Dependencies, orderMetrics *metrics.OrderMetrics, logger *log.Entry) Services {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	return Services{
		Catalog: catalog.NewService(deps.Tx,
			catalog.WithCache(deps.Cache),
			catalog.WithLogger(logger.WithField("component", "catalog")),
		),
		Orders: orders.NewService(deps.Tx, logger.WithField("component", "orders")),
		Placement: placement.NewOrchestrator(deps.Tx,
			placement.WithLogger(logger.WithField("component", "placement")),
			placement.WithMetrics(orderMetrics),
			placement.WithCacheInvalidator(deps.Cache),
		),
	}
}

// Run запускает сервис и блокируется до отмены ctx или падения одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return err
	}

	_, shutdownTracing, err := tracing.Init(ctx, logger.WithField("component", "tracing"), tracing.Config{
		ServiceName: ServiceName,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.WithError(err).Warn("tracing shutdown with error")
		}
	}()

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close dependencies")
		}
	}()

	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
	}
	defer closeKafka(producer, logger)

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	publisher, dlq := outboxPublishers(producer, cfg.KafkaTopic, logger)
	workerOpts := []outbox.Option{
		outbox.WithLogger(logger.WithField("component", "outbox")),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}
	if dlq != nil {
		workerOpts = append(workerOpts, outbox.WithDLQPublisher(dlq))
	}
	worker := outbox.NewWorker(deps.Outbox, publisher, workerOpts...)
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(runCtx)
	}()

	if producer != nil {
		handler := kafka.NewCacheInvalidationHandler(deps.Cache, logger.WithField("component", "cache-invalidator"))
		consumer, err := kafka.NewConsumerWithDLQ(cfg.KafkaBrokers, cfg.KafkaGroupID, consumerTopics(cfg.KafkaTopic), handler, producer, consumerMaxRetries)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka consumer, cache invalidation relies on writes only")
		} else {
			if err := consumer.Start(runCtx); err != nil {
				return err
			}
			defer func() {
				if err := consumer.Stop(); err != nil {
					logger.WithError(err).Warn("failed to stop kafka consumer")
				}
			}()
		}
	}

	svcs := NewServices(deps, metrics.NewOrderMetrics(), logger)

	httpHandler := httpapi.NewRouter(
		httpapi.NewHandler(svcs.Catalog, svcs.Orders, svcs.Placement, logger.WithField("layer", "http")),
		metrics.NewHTTPMetricsWithRegisterer(nil),
	)
	grpcServer := grpcsvc.NewServer(
		grpcsvc.NewOrderService(svcs.Placement, svcs.Orders, logger.WithField("layer", "grpc")),
		metrics.NewGRPCServerMetrics(nil),
		logger.WithField("layer", "grpc"),
	)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	for name, checker := range deps.Checkers {
		healthHandler.RegisterChecker(name, checker)
	}
	metricsSrv := startMetricsServer(cfg.MetricsAddr, logger, healthHandler)

	httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		shutdownHTTP(metricsSrv, cfg.ShutdownTimeout, logger)
		return err
	}
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = httpLis.Close()
		shutdownHTTP(metricsSrv, cfg.ShutdownTimeout, logger)
		return err
	}

	httpSrv := &http.Server{Handler: httpHandler, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 2)
	go func() {
		logger.Infof("HTTP API слушает %s", httpLis.Addr())
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Infof("gRPC сервер слушает %s", grpcLis.Addr())
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case err := <-errCh:
		logger.WithError(err).Error("server failed")
		runErr = err
	}

	grpcServer.Shutdown(cfg.ShutdownTimeout)
	shutdownHTTP(httpSrv, cfg.ShutdownTimeout, logger)
	shutdownHTTP(metricsSrv, cfg.ShutdownTimeout, logger)

	return runErr
}

// startMetricsServer запускает HTTP-обработчик /metrics и проверки здоровья.
func startMetricsServer(addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	srv := &http.Server{Addr: addr, Handler: metricsMux(healthHandler), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()
	return srv
}

func metricsMux(healthHandler *healthcheck.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	return mux
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
