// Package placement размещает заказы: резервирует остатки нескольких товаров,
// считает скидку и сохраняет заказ в одной транзакции.
package placement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/store/internal/domain"
	"github.com/vladislavdragonenkov/store/internal/metrics"
	"github.com/vladislavdragonenkov/store/internal/service/pricing"
	"github.com/vladislavdragonenkov/store/internal/tracing"
)

// Сообщения бизнес-ошибок размещения.
const (
	msgProductNotFound  = "referenced product not found"
	msgConcurrentUpdate = "concurrent stock update, please retry"
)

// CacheInvalidator сбрасывает кешированные записи товаров после фиксации.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, ids ...int64) error
}

// Orchestrator выполняет размещение заказа.
type Orchestrator struct {
	tx      domain.TxManager
	logger  *log.Entry
	metrics *metrics.OrderMetrics
	cache   CacheInvalidator
	now     func() time.Time
}

// Option настраивает Orchestrator.
type Option func(*Orchestrator)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics включает метрики размещения.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithCacheInvalidator задаёт кеш, из которого удаляются изменённые товары.
func WithCacheInvalidator(c CacheInvalidator) Option {
	return func(o *Orchestrator) {
		o.cache = c
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator создаёт оркестратор поверх менеджера транзакций.
func NewOrchestrator(tx domain.TxManager, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tx:     tx,
		logger: log.WithField("component", "placement"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// PlaceOrder резервирует остатки по каждой позиции в порядке запроса, считает итог со
// скидкой и сохраняет заказ со статусом "CONFIRMED ORDER.". Первая ошибка отменяет всю
// транзакцию. Повтор при конфликте версий остаётся на стороне клиента.
func (o *Orchestrator) PlaceOrder(ctx context.Context, items []domain.OrderItem) (domain.Order, error) {
	ctx, span := tracing.AddSpan(ctx, "placement.PlaceOrder", attribute.Int("order.items", len(items)))
	defer span.End()

	if err := domain.ValidateItems(items); err != nil {
		tracing.RecordError(span, err)
		return domain.Order{}, err
	}

	start := time.Now()
	if o.metrics != nil {
		o.metrics.PlacementStarted()
		defer func() { o.metrics.PlacementFinished(time.Since(start)) }()
	}

	var (
		placed  domain.Order
		touched []int64
		units   int
	)

	err := o.tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		touched = touched[:0]
		units = 0

		saved := make(map[int64]domain.Product, len(items))
		subtotal := decimal.Zero

		for _, item := range items {
			product, err := o.reserve(ctx, repos.Products, item)
			if err != nil {
				return err
			}
			if _, seen := saved[product.ID]; !seen {
				touched = append(touched, product.ID)
			}
			saved[product.ID] = product
			subtotal = subtotal.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
			units += item.Quantity
		}

		total := pricing.ApplyDiscount(subtotal, domain.DistinctProducts(items))

		order, err := repos.Orders.Create(ctx, domain.Order{
			Date:   o.now().UTC(),
			Total:  total,
			Status: domain.OrderStatusConfirmed,
		})
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, id := range touched {
			msg, err := domain.NewProductStockChangedMessage(saved[id])
			if err != nil {
				return err
			}
			if _, err := repos.Outbox.Enqueue(ctx, msg); err != nil {
				return fmt.Errorf("enqueue stock event: %w", err)
			}
		}
		msg, err := domain.NewOrderPlacedMessage(order)
		if err != nil {
			return err
		}
		if _, err := repos.Outbox.Enqueue(ctx, msg); err != nil {
			return fmt.Errorf("enqueue order event: %w", err)
		}

		placed = order
		return nil
	})
	if err != nil {
		// Конфликт или удаление товара, обнаруженные при фиксации, для клиента не отличаются
		// от тех же ошибок при записи.
		if _, ok := domain.AsBusinessError(err); !ok {
			switch {
			case domain.IsVersionConflict(err):
				err = domain.NewBusinessError(domain.CodeConcurrentUpdate, msgConcurrentUpdate, err)
			case errors.Is(err, domain.ErrProductNotFound):
				err = domain.NewBusinessError(domain.CodeProductNotFound, msgProductNotFound, err)
			}
		}
		o.recordFailure(err)
		tracing.RecordError(span, err)
		return domain.Order{}, err
	}

	if o.metrics != nil {
		o.metrics.RecordPlaced(units)
	}
	if o.cache != nil {
		if err := o.cache.Invalidate(ctx, touched...); err != nil {
			o.logger.WithError(err).Warn("failed to invalidate product cache")
		}
	}

	span.SetAttributes(attribute.Int64("order.id", placed.ID))
	o.logger.WithFields(log.Fields{
		"order_id": placed.ID,
		"total":    placed.Total.String(),
		"products": len(touched),
	}).Info("order placed")

	return placed, nil
}

// reserve читает товар, проверяет остаток и сохраняет уменьшенный остаток с проверкой версии.
func (o *Orchestrator) reserve(ctx context.Context, products domain.ProductRepository, item domain.OrderItem) (domain.Product, error) {
	product, err := products.Get(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return domain.Product{}, domain.NewBusinessError(domain.CodeProductNotFound, msgProductNotFound, err)
		}
		return domain.Product{}, fmt.Errorf("get product %d: %w", item.ProductID, err)
	}

	if product.Stock < item.Quantity {
		return domain.Product{}, domain.NewBusinessError(
			domain.CodeInsufficientStock,
			fmt.Sprintf("insufficient stock for product %d", product.ID),
			nil,
		)
	}

	product.Stock -= item.Quantity
	saved, err := products.ConditionalSave(ctx, product)
	if err != nil {
		if domain.IsVersionConflict(err) {
			return domain.Product{}, domain.NewBusinessError(domain.CodeConcurrentUpdate, msgConcurrentUpdate, err)
		}
		if errors.Is(err, domain.ErrProductNotFound) {
			return domain.Product{}, domain.NewBusinessError(domain.CodeProductNotFound, msgProductNotFound, err)
		}
		return domain.Product{}, fmt.Errorf("save product %d: %w", product.ID, err)
	}
	return saved, nil
}

func (o *Orchestrator) recordFailure(err error) {
	reason := "internal"
	entry := o.logger.WithError(err)
	if be, ok := domain.AsBusinessError(err); ok {
		reason = be.Code
		entry.WithField("reason", reason).Info("order placement rejected")
	} else {
		entry.Error("order placement failed")
	}
	if o.metrics != nil {
		o.metrics.RecordFailed(reason)
	}
}
