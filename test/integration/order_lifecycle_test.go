package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/store/internal/app"
	"github.com/vladislavdragonenkov/store/internal/cache"
	"github.com/vladislavdragonenkov/store/internal/domain"
	"github.com/vladislavdragonenkov/store/internal/metrics"
	grpcsvc "github.com/vladislavdragonenkov/store/internal/service/grpc"
	"github.com/vladislavdragonenkov/store/internal/service/httpapi"
	"github.com/vladislavdragonenkov/store/internal/service/outbox"
	"github.com/vladislavdragonenkov/store/internal/storage/memory"
)

// StoreLifecycleTestSuite проходит путь товара и заказа через HTTP, gRPC и outbox.
type StoreLifecycleTestSuite struct {
	suite.Suite
	store     *memory.Store
	http      *httptest.Server
	grpc      *grpcsvc.OrderServiceClient
	grpcClose func()
	published *recordingPublisher
	worker    *outbox.Worker
}

func (s *StoreLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "integration-test")

	s.store = memory.NewStore()
	deps := &app.Dependencies{Tx: s.store, Outbox: s.store.Outbox(), Cache: cache.NoopProductCache{}}
	svcs := app.NewServices(deps, metrics.NewOrderMetricsWithRegisterer(prometheus.NewRegistry()), logger)

	s.http = httptest.NewServer(httpapi.NewRouter(httpapi.NewHandler(svcs.Catalog, svcs.Orders, svcs.Placement, logger), nil))

	lis := bufconn.Listen(1 << 20)
	server := grpcsvc.NewServer(grpcsvc.NewOrderService(svcs.Placement, svcs.Orders, logger), nil, logger)
	go func() { _ = server.Serve(lis) }()
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	s.Require().NoError(err)
	s.grpc = grpcsvc.NewOrderServiceClient(conn)
	s.grpcClose = func() {
		_ = conn.Close()
		server.Stop()
	}

	s.published = &recordingPublisher{}
	s.worker = outbox.NewWorker(deps.Outbox, s.published, outbox.WithLogger(logger), outbox.WithRetryBaseDelay(0))
}

func (s *StoreLifecycleTestSuite) TearDownTest() {
	s.http.Close()
	s.grpcClose()
}

func (s *StoreLifecycleTestSuite) createProduct(name, price string, stock int) int64 {
	body, err := json.Marshal(map[string]any{"name": name, "price": price, "stock": stock})
	s.Require().NoError(err)
	resp, err := http.Post(s.http.URL+"/api/products", "application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	var created struct {
		ID int64 `json:"id"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&created))
	return created.ID
}

func (s *StoreLifecycleTestSuite) productStock(id int64) int {
	resp, err := http.Get(s.http.URL + "/api/products/" + strconv.FormatInt(id, 10))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var p struct {
		Stock int `json:"stock"`
	}
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&p))
	return p.Stock
}

func placeRequest(items ...[2]int64) *structpb.Struct {
	list := make([]any, 0, len(items))
	for _, it := range items {
		list = append(list, map[string]any{"productId": it[0], "quantity": it[1]})
	}
	req, err := structpb.NewStruct(map[string]any{"items": list})
	if err != nil {
		panic(err)
	}
	return req
}

func (s *StoreLifecycleTestSuite) TestPlaceOverGRPCReadOverHTTP() {
	ctx := context.Background()
	first := s.createProduct("laptop", "100", 10)
	second := s.createProduct("mouse", "50", 3)

	resp, err := s.grpc.PlaceOrder(ctx, placeRequest([2]int64{first, 2}, [2]int64{second, 1}))
	s.Require().NoError(err)
	s.Equal("250", resp.GetFields()["total"].GetStringValue())
	s.Equal(domain.OrderStatusConfirmed, resp.GetFields()["status"].GetStringValue())

	s.Equal(8, s.productStock(first))
	s.Equal(2, s.productStock(second))

	orderID := resp.GetFields()["id"].GetStringValue()
	httpResp, err := http.Get(s.http.URL + "/api/orders/" + orderID)
	s.Require().NoError(err)
	defer httpResp.Body.Close()
	s.Equal(http.StatusOK, httpResp.StatusCode)

	// Два товара созданы, у двух изменился остаток, один заказ.
	s.Equal(5, s.worker.ProcessOnce(ctx))
	s.ElementsMatch([]string{
		domain.EventProductStockChanged, domain.EventProductStockChanged,
		domain.EventProductStockChanged, domain.EventProductStockChanged,
		domain.EventOrderPlaced,
	}, s.published.eventTypes())
}

func (s *StoreLifecycleTestSuite) TestRejectedOrderChangesNothing() {
	ctx := context.Background()
	first := s.createProduct("laptop", "100", 10)
	second := s.createProduct("mouse", "50", 1)
	_ = s.worker.ProcessOnce(ctx)

	_, err := s.grpc.PlaceOrder(ctx, placeRequest([2]int64{first, 2}, [2]int64{second, 5}))
	s.Equal(codes.FailedPrecondition, status.Code(err))

	s.Equal(10, s.productStock(first))
	s.Equal(1, s.productStock(second))
	s.Zero(s.worker.ProcessOnce(ctx))

	listResp, err := http.Get(s.http.URL + "/api/orders")
	s.Require().NoError(err)
	defer listResp.Body.Close()
	var orders []json.RawMessage
	s.Require().NoError(json.NewDecoder(listResp.Body).Decode(&orders))
	s.Empty(orders)
}

func (s *StoreLifecycleTestSuite) TestLastUnitRaceAcrossTransports() {
	ctx := context.Background()
	id := s.createProduct("last", "10", 1)

	var (
		wg       sync.WaitGroup
		grpcErr  error
		httpCode int
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, grpcErr = s.grpc.PlaceOrder(ctx, placeRequest([2]int64{id, 1}))
	}()
	go func() {
		defer wg.Done()
		body := []byte(`{"items":[{"productId":` + strconv.FormatInt(id, 10) + `,"quantity":1}]}`)
		resp, err := http.Post(s.http.URL+"/api/orders", "application/json", bytes.NewReader(body))
		if err != nil {
			return
		}
		httpCode = resp.StatusCode
		_ = resp.Body.Close()
	}()
	wg.Wait()

	successes := 0
	if grpcErr == nil {
		successes++
	}
	if httpCode == http.StatusCreated {
		successes++
	} else {
		s.Equal(http.StatusConflict, httpCode)
	}
	s.Equal(1, successes)
	s.Zero(s.productStock(id))
}

func TestStoreLifecycle(t *testing.T) {
	suite.Run(t, new(StoreLifecycleTestSuite))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OutboxMessage
}

func (p *recordingPublisher) Publish(_ context.Context, msg domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
	return nil
}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.EventType)
	}
	return types
}

var _ domain.OutboxPublisher = (*recordingPublisher)(nil)
