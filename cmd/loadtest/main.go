// Команда loadtest нагружает размещение заказов через HTTP API или gRPC и
// печатает сводку по задержкам и кодам ответов.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	grpcsvc "github.com/vladislavdragonenkov/store/internal/service/grpc"
)

type transport string

const (
	transportHTTP transport = "http"
	transportGRPC transport = "grpc"
)

// Исходы одного вызова PlaceOrder.
const (
	outcomeOK                = "ok"
	outcomeConcurrentUpdate  = "concurrent_update"
	outcomeInsufficientStock = "insufficient_stock"
	outcomeProductNotFound   = "product_not_found"
	outcomeRejected          = "rejected"
	outcomeInvalid           = "invalid"
	outcomeError             = "error"
)

type item struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type config struct {
	transport   transport
	httpURL     string
	grpcAddr    string
	total       int
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	products    []int64
	quantity    int
	retries     int
	seedStock   int
	outputPath  string
}

// placer выполняет один вызов размещения и возвращает его исход.
type placer interface {
	Place(ctx context.Context, items []item) (string, error)
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Outcomes  map[string]int64 `json:"outcomes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt       time.Time               `json:"started_at"`
	DurationSeconds float64                 `json:"duration_seconds"`
	Orders          int64                   `json:"orders"`
	Placed          int64                   `json:"placed"`
	Rejected        int64                   `json:"rejected"`
	Errors          int64                   `json:"errors"`
	Retries         int64                   `json:"retries"`
	RPS             float64                 `json:"rps"`
	Methods         map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	outcomes  map[string]int64
	latencies []float64
}

type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
	retries int64
}

func newCollector() *collector {
	return &collector{methods: make(map[string]*methodStats)}
}

func (c *collector) record(method string, latency time.Duration, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{outcomes: make(map[string]int64)}
		c.methods[method] = stats
	}
	stats.calls++
	if outcome == outcomeOK {
		stats.success++
	}
	stats.outcomes[outcome]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) retried() {
	c.mu.Lock()
	c.retries++
	c.mu.Unlock()
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Retries:         c.retries,
		Methods:         make(map[string]methodReport, len(c.methods)),
	}
	for name, stats := range c.methods {
		outcomes := make(map[string]int64, len(stats.outcomes))
		for k, v := range stats.outcomes {
			outcomes[k] = v
		}
		failed := stats.calls - stats.success
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    failed,
			ErrorRate: ratio(failed, stats.calls),
			Outcomes:  outcomes,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}

	if scenario, ok := result.Methods["order"]; ok {
		result.Orders = scenario.Calls
		result.Placed = scenario.Success
		for outcome, n := range scenario.Outcomes {
			if isBusinessOutcome(outcome) {
				result.Rejected += n
			} else if outcome != outcomeOK {
				result.Errors += n
			}
		}
	}
	if duration > 0 {
		result.RPS = float64(result.Orders) / duration.Seconds()
	}
	return result
}

func isBusinessOutcome(outcome string) bool {
	switch outcome {
	case outcomeConcurrentUpdate, outcomeInsufficientStock, outcomeProductNotFound, outcomeRejected:
		return true
	}
	return false
}

func parseConfig(fs *flag.FlagSet, args []string) (config, error) {
	var (
		cfg          config
		transportRaw string
		productsRaw  string
	)

	fs.StringVar(&transportRaw, "transport", string(transportHTTP), "transport: http | grpc")
	fs.StringVar(&cfg.httpURL, "http-url", "http://localhost:8080", "HTTP API base URL")
	fs.StringVar(&cfg.grpcAddr, "grpc-addr", "localhost:50051", "gRPC target address")
	fs.IntVar(&cfg.total, "total", 400, "orders to place when duration is not set")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration")
	fs.IntVar(&cfg.concurrency, "concurrency", 20, "number of concurrent workers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-call timeout")
	fs.StringVar(&productsRaw, "products", "", "comma-separated product ids for each order")
	fs.IntVar(&cfg.quantity, "quantity", 1, "quantity of each product per order")
	fs.IntVar(&cfg.retries, "retries", 3, "retries after concurrent_update")
	fs.IntVar(&cfg.seedStock, "seed-stock", 0, "create two products with this stock over HTTP before the run")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	switch transport(strings.TrimSpace(transportRaw)) {
	case transportHTTP:
		cfg.transport = transportHTTP
	case transportGRPC:
		cfg.transport = transportGRPC
	default:
		return cfg, fmt.Errorf("unsupported transport: %s", transportRaw)
	}

	for _, raw := range strings.Split(productsRaw, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return cfg, fmt.Errorf("invalid product id: %q", raw)
		}
		cfg.products = append(cfg.products, id)
	}

	switch {
	case len(cfg.products) == 0 && cfg.seedStock <= 0:
		return cfg, errors.New("products or seed-stock is required")
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.quantity <= 0:
		return cfg, errors.New("quantity must be > 0")
	case cfg.retries < 0:
		return cfg, errors.New("retries must be >= 0")
	}
	return cfg, nil
}

func main() {
	cfg, err := parseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		fail("invalid config: %v", err)
	}

	httpClient := &http.Client{Timeout: cfg.timeout}
	if cfg.seedStock > 0 {
		ids, err := seedProducts(context.Background(), httpClient, cfg.httpURL, cfg.seedStock)
		if err != nil {
			fail("seed products: %v", err)
		}
		cfg.products = ids
	}

	var p placer
	switch cfg.transport {
	case transportGRPC:
		conn, err := grpc.NewClient(cfg.grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			fail("failed to create grpc client connection: %v", err)
		}
		defer conn.Close()
		p = grpcPlacer{client: grpcsvc.NewOrderServiceClient(conn)}
	default:
		p = httpPlacer{client: httpClient, baseURL: cfg.httpURL}
	}

	result := run(context.Background(), cfg, p)
	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			fail("failed to write report: %v", err)
		}
	}
	if result.Errors > 0 {
		os.Exit(1)
	}
}

// run раздаёт заказы воркерам и собирает отчёт.
func run(ctx context.Context, cfg config, p placer) report {
	items := make([]item, 0, len(cfg.products))
	for _, id := range cfg.products {
		items = append(items, item{ProductID: id, Quantity: cfg.quantity})
	}

	startedAt := time.Now()
	col := newCollector()
	jobs := make(chan int, cfg.concurrency*2)

	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				placeWithRetry(ctx, p, items, cfg, col)
			}
		}()
	}

	dispatchJobs(ctx, jobs, cfg)
	wg.Wait()

	return col.buildReport(startedAt, time.Since(startedAt))
}

func dispatchJobs(ctx context.Context, jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

// placeWithRetry повторяет размещение только при конфликте версий.
func placeWithRetry(ctx context.Context, p placer, items []item, cfg config, col *collector) {
	start := time.Now()
	outcome := outcomeError
	defer func() { col.record("order", time.Since(start), outcome) }()

	for attempt := 0; attempt <= cfg.retries; attempt++ {
		if attempt > 0 {
			col.retried()
		}
		callStart := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
		result, err := p.Place(callCtx, items)
		cancel()
		if err != nil {
			result = outcomeError
		}
		col.record("PlaceOrder", time.Since(callStart), result)

		outcome = result
		if result != outcomeConcurrentUpdate {
			return
		}
	}
}

type httpPlacer struct {
	client  *http.Client
	baseURL string
}

func (h httpPlacer) Place(ctx context.Context, items []item) (string, error) {
	body, err := json.Marshal(map[string]any{"items": items})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(h.baseURL, "/")+"/api/orders", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated {
		_, _ = io.Copy(io.Discard, resp.Body)
		return outcomeOK, nil
	}

	var apiErr struct {
		Kind string `json:"kind"`
		Code string `json:"code"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)

	switch {
	case resp.StatusCode == http.StatusConflict && apiErr.Code != "":
		return apiErr.Code, nil
	case resp.StatusCode == http.StatusConflict:
		return outcomeRejected, nil
	case resp.StatusCode == http.StatusBadRequest:
		return outcomeInvalid, nil
	default:
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
}

type grpcPlacer struct {
	client *grpcsvc.OrderServiceClient
}

func (g grpcPlacer) Place(ctx context.Context, items []item) (string, error) {
	list := make([]any, 0, len(items))
	for _, it := range items {
		list = append(list, map[string]any{"productId": it.ProductID, "quantity": it.Quantity})
	}
	req, err := structpb.NewStruct(map[string]any{"items": list})
	if err != nil {
		return "", err
	}

	_, err = g.client.PlaceOrder(ctx, req)
	switch status.Code(err) {
	case codes.OK:
		return outcomeOK, nil
	case codes.Aborted:
		return outcomeConcurrentUpdate, nil
	case codes.FailedPrecondition:
		return outcomeRejected, nil
	case codes.InvalidArgument:
		return outcomeInvalid, nil
	default:
		return "", err
	}
}

// seedProducts создаёт два товара для прогона и возвращает их идентификаторы.
func seedProducts(ctx context.Context, client *http.Client, baseURL string, stock int) ([]int64, error) {
	ids := make([]int64, 0, 2)
	for i, price := range []string{"10.00", "25.50"} {
		body, err := json.Marshal(map[string]any{
			"name":  fmt.Sprintf("loadtest-%d-%d", time.Now().UnixNano(), i),
			"price": price,
			"stock": stock,
		})
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/api/products", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		var created struct {
			ID int64 `json:"id"`
		}
		err = json.NewDecoder(resp.Body).Decode(&created)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return nil, fmt.Errorf("create product: status %d", resp.StatusCode)
		}
		if err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
		ids = append(ids, created.ID)
	}
	return ids, nil
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- путь задаётся явно флагом -output.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(w io.Writer, result report, cfg config) {
	_, _ = fmt.Fprintln(w, "Load test summary")
	_, _ = fmt.Fprintf(w, "transport=%s orders=%d placed=%d rejected=%d errors=%d retries=%d\n",
		cfg.transport, result.Orders, result.Placed, result.Rejected, result.Errors, result.Retries)
	_, _ = fmt.Fprintf(w, "duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)

	names := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stats := result.Methods[name]
		_, _ = fmt.Fprintf(w, "%s: calls=%d success=%d failed=%d p50=%.2fms p95=%.2fms p99=%.2fms\n",
			name, stats.Calls, stats.Success, stats.Failed,
			stats.LatencyMs.P50, stats.LatencyMs.P95, stats.LatencyMs.P99)
	}
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
