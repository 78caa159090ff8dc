package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Переменные окружения.
const (
	envHTTPAddr            = "STORE_HTTP_ADDR"
	envGRPCAddr            = "STORE_GRPC_ADDR"
	envMetricsAddr         = "STORE_METRICS_ADDR"
	envStorageDriver       = "STORE_STORAGE_DRIVER"
	envPostgresDSN         = "STORE_POSTGRES_DSN"
	envPostgresAutoMigrate = "STORE_POSTGRES_AUTO_MIGRATE"
	envRedisAddr           = "STORE_REDIS_ADDR"
	envCacheTTL            = "STORE_CACHE_TTL"
	envKafkaBrokers        = "KAFKA_BROKERS"
	envKafkaTopic          = "STORE_KAFKA_TOPIC"
	envKafkaGroupID        = "STORE_KAFKA_GROUP_ID"
	envOutboxPollInterval  = "STORE_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize     = "STORE_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts   = "STORE_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay    = "STORE_OUTBOX_RETRY_DELAY"
	envOTLPEndpoint        = "STORE_OTLP_ENDPOINT"
	envShutdownTimeout     = "STORE_SHUTDOWN_TIMEOUT"
	envLogLevel            = "STORE_LOG_LEVEL"
	envLogFormat           = "STORE_LOG_FORMAT"
)

// Config — настройки запуска сервиса.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// RedisAddr пустой — кеш товаров отключён.
	RedisAddr string
	CacheTTL  time.Duration

	// KafkaBrokers пустой — события outbox только логируются.
	KafkaBrokers []string
	// KafkaTopic пустой — топик выбирается по типу агрегата.
	KafkaTopic   string
	KafkaGroupID string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	OTLPEndpoint    string
	ShutdownTimeout time.Duration

	LogLevel  string
	LogFormat string
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		CacheTTL:            5 * time.Minute,
		KafkaGroupID:        "store-cache-invalidator",
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    100 * time.Millisecond,
		ShutdownTimeout:     5 * time.Second,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

type envLookup func(key string) (string, bool)

// ConfigFromEnv читает настройки из окружения. Некорректное значение не
// прерывает запуск: остаётся значение по умолчанию, а причина попадает в warnings.
func ConfigFromEnv(lookup envLookup) (Config, []string) {
	cfg := DefaultConfig()
	var warnings []string
	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, value, err))
	}

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	str(envPostgresDSN, &cfg.PostgresDSN)
	str(envRedisAddr, &cfg.RedisAddr)
	str(envKafkaTopic, &cfg.KafkaTopic)
	str(envKafkaGroupID, &cfg.KafkaGroupID)
	str(envOTLPEndpoint, &cfg.OTLPEndpoint)

	if v, ok := lookup(envStorageDriver); ok && strings.TrimSpace(v) != "" {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(envLogLevel); ok && strings.TrimSpace(v) != "" {
		if _, err := log.ParseLevel(strings.TrimSpace(v)); err != nil {
			warn(envLogLevel, v, err)
		} else {
			cfg.LogLevel = strings.ToLower(strings.TrimSpace(v))
		}
	}
	if v, ok := lookup(envLogFormat); ok && strings.TrimSpace(v) != "" {
		switch format := strings.ToLower(strings.TrimSpace(v)); format {
		case "text", "json":
			cfg.LogFormat = format
		default:
			warn(envLogFormat, v, errors.New("must be text or json"))
		}
	}
	if v, ok := lookup(envKafkaBrokers); ok {
		cfg.KafkaBrokers = splitList(v)
	}

	if v, ok := lookup(envPostgresAutoMigrate); ok && strings.TrimSpace(v) != "" {
		if b, err := parseBool(v); err != nil {
			warn(envPostgresAutoMigrate, v, err)
		} else {
			cfg.PostgresAutoMigrate = b
		}
	}

	positive := func(d time.Duration) bool { return d > 0 }
	nonNegative := func(d time.Duration) bool { return d >= 0 }
	durations := []struct {
		key   string
		dst   *time.Duration
		valid func(time.Duration) bool
		msg   string
	}{
		{envCacheTTL, &cfg.CacheTTL, positive, "must be > 0"},
		{envOutboxPollInterval, &cfg.OutboxPollInterval, positive, "must be > 0"},
		{envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegative, "must be >= 0"},
		{envShutdownTimeout, &cfg.ShutdownTimeout, positive, "must be > 0"},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		parsed, err := parseDuration(v, d.valid, d.msg)
		if err != nil {
			warn(d.key, v, err)
			continue
		}
		*d.dst = parsed
	}

	ints := []struct {
		key string
		dst *int
	}{
		{envOutboxBatchSize, &cfg.OutboxBatchSize},
		{envOutboxMaxAttempts, &cfg.OutboxMaxAttempts},
	}
	for _, n := range ints {
		v, ok := lookup(n.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		parsed, err := parseInt(v, func(i int) bool { return i > 0 }, "must be > 0")
		if err != nil {
			warn(n.key, v, err)
			continue
		}
		*n.dst = parsed
	}

	return cfg, warnings
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, fmt.Errorf("%s is required for postgres storage", envPostgresDSN))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.GRPCAddr == "" {
		errs = append(errs, errors.New("grpc address is required"))
	}
	return errors.Join(errs...)
}

// ConfigureLogger применяет уровень и формат логов.
func (c Config) ConfigureLogger() {
	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", v)
	}
}

func parseInt(v string, valid func(int) bool, msg string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	if !valid(n) {
		return 0, errors.New(msg)
	}
	return n, nil
}

func parseDuration(v string, valid func(time.Duration) bool, msg string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	if !valid(d) {
		return 0, errors.New(msg)
	}
	return d, nil
}
