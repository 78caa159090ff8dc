package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/store/internal/cache"
	"github.com/vladislavdragonenkov/store/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/store/internal/health"
	"github.com/vladislavdragonenkov/store/internal/metrics"
	"github.com/vladislavdragonenkov/store/internal/service/outbox"
	"github.com/vladislavdragonenkov/store/internal/storage/memory"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second
	return cfg
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, testConfig()) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.StorageDriver = "sqlite"

	err := Run(context.Background(), cfg)
	require.ErrorContains(t, err, "unsupported storage driver")
}

func TestRun_ListenError(t *testing.T) {
	cfg := testConfig()
	cfg.HTTPAddr = "256.0.0.1:bad"

	err := Run(context.Background(), cfg)
	require.Error(t, err)
}

func TestNewServices_PlaceOrderFlowsToOutbox(t *testing.T) {
	store := memory.NewStore()
	deps := &Dependencies{Tx: store, Outbox: store.Outbox(), Cache: cache.NoopProductCache{}}
	svcs := NewServices(deps, metrics.NewOrderMetricsWithRegisterer(prometheus.NewRegistry()), nil)
	ctx := context.Background()

	pen, err := svcs.Catalog.Create(ctx, domain.ProductInput{Name: "pen", Price: decimal.RequireFromString("10"), Stock: 5})
	require.NoError(t, err)

	order, err := svcs.Placement.PlaceOrder(ctx, []domain.OrderItem{{ProductID: pen.ID, Quantity: 2}})
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusConfirmed, order.Status)

	got, err := svcs.Orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, order.Total.Equal(got.Total))

	// Создание товара, изменение остатка и заказ.
	require.Len(t, store.Outbox().AllPending(), 3)
	worker := outbox.NewWorker(deps.Outbox, outbox.NewLogPublisher(nil), outbox.WithRetryBaseDelay(0))
	require.Equal(t, 3, worker.ProcessOnce(ctx))
	require.Empty(t, store.Outbox().AllPending())
}

func TestMetricsMux(t *testing.T) {
	h := healthcheck.NewHandler("test")
	h.RegisterChecker("storage", healthcheck.NewPingChecker("storage", func(context.Context) error { return nil }))
	mux := metricsMux(h)

	for _, path := range []string{"/metrics", "/healthz", "/readyz", "/livez"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
}
