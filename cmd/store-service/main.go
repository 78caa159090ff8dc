package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/store/internal/app"
	"github.com/vladislavdragonenkov/store/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.LookupEnv); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("store-service остановлен")
}

// run читает настройки из окружения, настраивает логгер и запускает сервис.
func run(ctx context.Context, lookup func(string) (string, bool)) error {
	cfg, warnings := app.ConfigFromEnv(lookup)
	cfg.ConfigureLogger()
	for _, w := range warnings {
		log.WithField("component", "config").Warn(w)
	}

	log.WithFields(log.Fields{
		"version":      version.String(),
		"http_addr":    cfg.HTTPAddr,
		"grpc_addr":    cfg.GRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
	}).Info("запускаем store-service")

	return app.Run(ctx, cfg)
}
