// Package orders отвечает за чтение и ручную правку сохранённых заказов.
// Размещение заказов находится в пакете placement.
package orders

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/store/internal/domain"
)

// Service — операции над журналом заказов.
type Service struct {
	tx     domain.TxManager
	logger *log.Entry
}

// NewService создаёт сервис заказов. nil logger заменяется логгером по умолчанию.
func NewService(tx domain.TxManager, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "orders")
	}
	return &Service{tx: tx, logger: logger}
}

// Get возвращает заказ или ErrOrderNotFound.
func (s *Service) Get(ctx context.Context, id int64) (domain.Order, error) {
	var order domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		o, err := repos.Orders.Get(ctx, id)
		order = o
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// List возвращает заказы в порядке ID.
func (s *Service) List(ctx context.Context) ([]domain.Order, error) {
	var list []domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		orders, err := repos.Orders.List(ctx)
		list = orders
		return err
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// Update перезаписывает дату, сумму и статус. Остатки товаров не меняются.
func (s *Service) Update(ctx context.Context, id int64, in domain.OrderInput) (domain.Order, error) {
	if err := in.Validate(); err != nil {
		return domain.Order{}, err
	}

	var updated domain.Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		o, err := repos.Orders.Update(ctx, domain.Order{
			ID:     id,
			Date:   in.Date.UTC(),
			Total:  in.Total,
			Status: in.Status,
		})
		updated = o
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logger.WithFields(log.Fields{"order_id": id, "status": updated.Status}).Info("order updated")
	return updated, nil
}

// Delete удаляет заказ. Зарезервированный остаток не возвращается.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		return repos.Orders.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.WithField("order_id", id).Info("order deleted")
	return nil
}
