package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/store/internal/cache"
	"github.com/vladislavdragonenkov/store/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/store/internal/health"
	"github.com/vladislavdragonenkov/store/internal/storage/memory"
	"github.com/vladislavdragonenkov/store/internal/storage/postgres"
)

// Dependencies — хранилище, кеш и проверки готовности, общие для всех транспортов.
type Dependencies struct {
	Tx       domain.TxManager
	Outbox   domain.OutboxRepository
	Cache    cache.ProductCache
	Checkers map[string]healthcheck.Checker

	closers []func() error
}

// Close освобождает соединения в обратном порядке открытия.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// initRuntimeDependencies открывает хранилище выбранного драйвера и, если задан адрес, Redis.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{
		Cache:    cache.NoopProductCache{},
		Checkers: make(map[string]healthcheck.Checker),
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory:
		store := memory.NewStore()
		deps.Tx = store
		deps.Outbox = store.Outbox()
		deps.Checkers["storage"] = healthcheck.NewPingChecker("storage", func(context.Context) error { return nil })
		logger.Info("using in-memory storage")
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres dsn is required")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		deps.closers = append(deps.closers, store.Close)
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = deps.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		deps.Tx = store
		deps.Outbox = store.Outbox()
		deps.Checkers["postgres"] = healthcheck.NewPingChecker("postgres", store.Ping)
		logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("using postgres storage")
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		deps.closers = append(deps.closers, client.Close)
		productCache := cache.NewRedisProductCache(client, cfg.CacheTTL)
		if err := productCache.Ping(ctx); err != nil {
			// Без Redis сервис работает, чтения идут в хранилище.
			logger.WithError(err).Warn("redis is unreachable at startup")
		}
		deps.Cache = productCache
		deps.Checkers["redis"] = healthcheck.NewOptionalChecker("redis", productCache.Ping)
		logger.WithField("addr", cfg.RedisAddr).Info("product cache enabled")
	}

	return deps, nil
}
