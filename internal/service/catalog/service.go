// Package catalog управляет карточками товаров.
package catalog

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/store/internal/cache"
	"github.com/vladislavdragonenkov/store/internal/domain"
	"github.com/vladislavdragonenkov/store/internal/tracing"
)

const msgConcurrentUpdate = "product was modified concurrently, please retry"

// Service — CRUD каталога поверх журнала остатков.
type Service struct {
	tx     domain.TxManager
	cache  cache.ProductCache
	logger *log.Entry
}

// Option настраивает Service.
type Option func(*Service)

// WithCache включает read-through кеш товаров.
func WithCache(c cache.ProductCache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService создаёт сервис каталога.
func NewService(tx domain.TxManager, opts ...Option) *Service {
	s := &Service{
		tx:     tx,
		cache:  cache.NoopProductCache{},
		logger: log.WithField("component", "catalog"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create добавляет товар. Версия нового товара равна 0.
func (s *Service) Create(ctx context.Context, in domain.ProductInput) (domain.Product, error) {
	if err := in.Validate(); err != nil {
		return domain.Product{}, err
	}

	var created domain.Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		p, err := repos.Products.Create(ctx, domain.Product{Name: in.Name, Price: in.Price, Stock: in.Stock})
		if err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		if err := enqueueStockChanged(ctx, repos.Outbox, p); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.WithField("product_id", created.ID).Info("product created")
	return created, nil
}

// Get возвращает товар, сначала пытаясь прочитать его из кеша.
func (s *Service) Get(ctx context.Context, id int64) (domain.Product, error) {
	ctx, span := tracing.AddSpan(ctx, "catalog.Get", attribute.Int64("product.id", id))
	defer span.End()

	cached, err := s.cache.Get(ctx, id)
	if err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.WithError(err).WithField("product_id", id).Warn("product cache read failed")
	}

	product, err := s.load(ctx, id)
	if err != nil {
		tracing.RecordError(span, err)
		return domain.Product{}, err
	}

	if _, noop := s.cache.(cache.NoopProductCache); noop {
		return product, nil
	}
	if err := s.cache.Set(ctx, product); err != nil {
		s.logger.WithError(err).WithField("product_id", id).Warn("product cache write failed")
		return product, nil
	}
	// Запись, зафиксированная между чтением и Set, уже сбросила кеш до появления
	// в нём прочитанной версии. Такую версию нужно убрать.
	latest, err := s.load(ctx, id)
	if err != nil || latest.Version != product.Version {
		s.invalidate(ctx, id)
	}
	return product, nil
}

func (s *Service) load(ctx context.Context, id int64) (domain.Product, error) {
	var product domain.Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		p, err := repos.Products.Get(ctx, id)
		if err != nil {
			return err
		}
		product = p
		return nil
	})
	return product, err
}

// List возвращает все товары в порядке ID. Кеш не используется.
func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		list, err := repos.Products.List(ctx)
		if err != nil {
			return err
		}
		products = list
		return nil
	})
	return products, err
}

// Update перезаписывает имя, цену и остаток товара с проверкой версии.
// Конкурентная запись в тот же товар даёт бизнес-ошибку concurrent_update.
func (s *Service) Update(ctx context.Context, id int64, in domain.ProductInput) (domain.Product, error) {
	if err := in.Validate(); err != nil {
		return domain.Product{}, err
	}

	var updated domain.Product
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		current, err := repos.Products.Get(ctx, id)
		if err != nil {
			return err
		}
		current.Name = in.Name
		current.Price = in.Price
		current.Stock = in.Stock

		saved, err := repos.Products.ConditionalSave(ctx, current)
		if err != nil {
			return err
		}
		if err := enqueueStockChanged(ctx, repos.Outbox, saved); err != nil {
			return err
		}
		updated = saved
		return nil
	})
	if err != nil {
		if domain.IsVersionConflict(err) {
			return domain.Product{}, domain.NewBusinessError(domain.CodeConcurrentUpdate, msgConcurrentUpdate, err)
		}
		return domain.Product{}, err
	}

	s.invalidate(ctx, id)
	s.logger.WithFields(log.Fields{
		"product_id": updated.ID,
		"version":    updated.Version,
	}).Info("product updated")
	return updated, nil
}

// Delete удаляет товар. Запись в товар, зафиксированная раньше удаления,
// даёт бизнес-ошибку concurrent_update.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		return repos.Products.Delete(ctx, id)
	})
	if err != nil {
		if domain.IsVersionConflict(err) {
			return domain.NewBusinessError(domain.CodeConcurrentUpdate, msgConcurrentUpdate, err)
		}
		return err
	}
	s.invalidate(ctx, id)
	s.logger.WithField("product_id", id).Info("product deleted")
	return nil
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.WithError(err).WithField("product_id", id).Warn("failed to invalidate product cache")
	}
}

func enqueueStockChanged(ctx context.Context, outbox domain.OutboxWriter, p domain.Product) error {
	msg, err := domain.NewProductStockChangedMessage(p)
	if err != nil {
		return err
	}
	if _, err := outbox.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue stock event: %w", err)
	}
	return nil
}
