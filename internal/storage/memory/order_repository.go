package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/store/internal/domain"
)

// orderRepository — журнал заказов в рамках транзакции in-memory хранилища.
type orderRepository struct {
	tx *tx
}

// Create назначает заказу следующий ID; запись станет видна другим после фиксации.
func (r *orderRepository) Create(_ context.Context, order domain.Order) (domain.Order, error) {
	order.ID = r.tx.store.nextOrderID()

	r.tx.mu.Lock()
	defer r.tx.mu.Unlock()
	r.tx.orders[order.ID] = &stagedOrder{order: order, created: true}
	return order, nil
}

func (r *orderRepository) Get(_ context.Context, id int64) (domain.Order, error) {
	r.tx.mu.Lock()
	defer r.tx.mu.Unlock()
	return r.getLocked(id)
}

func (r *orderRepository) getLocked(id int64) (domain.Order, error) {
	if change, ok := r.tx.orders[id]; ok {
		if change.deleted {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return change.order, nil
	}
	order, ok := r.tx.store.committedOrder(id)
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

func (r *orderRepository) List(_ context.Context) ([]domain.Order, error) {
	r.tx.mu.Lock()
	defer r.tx.mu.Unlock()

	r.tx.store.mu.RLock()
	merged := make(map[int64]domain.Order, len(r.tx.store.orders))
	for id, o := range r.tx.store.orders {
		merged[id] = o
	}
	r.tx.store.mu.RUnlock()

	for id, change := range r.tx.orders {
		if change.deleted {
			delete(merged, id)
			continue
		}
		merged[id] = change.order
	}

	result := make([]domain.Order, 0, len(merged))
	for _, o := range merged {
		result = append(result, o)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *orderRepository) Update(_ context.Context, order domain.Order) (domain.Order, error) {
	r.tx.mu.Lock()
	defer r.tx.mu.Unlock()

	if _, err := r.getLocked(order.ID); err != nil {
		return domain.Order{}, err
	}
	if change, ok := r.tx.orders[order.ID]; ok {
		change.order = order
		return order, nil
	}
	r.tx.orders[order.ID] = &stagedOrder{order: order}
	return order, nil
}

func (r *orderRepository) Delete(_ context.Context, id int64) error {
	r.tx.mu.Lock()
	defer r.tx.mu.Unlock()

	current, err := r.getLocked(id)
	if err != nil {
		return err
	}
	if change, ok := r.tx.orders[id]; ok {
		if change.created {
			delete(r.tx.orders, id)
			return nil
		}
		change.deleted = true
		return nil
	}
	r.tx.orders[id] = &stagedOrder{order: current, deleted: true}
	return nil
}

// autoCommitOrders выполняет каждую операцию в отдельной транзакции.
type autoCommitOrders struct {
	store *Store
}

func (a autoCommitOrders) Create(ctx context.Context, order domain.Order) (created domain.Order, err error) {
	err = a.store.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		created, err = repos.Orders.Create(ctx, order)
		return err
	})
	return created, err
}

func (a autoCommitOrders) Get(_ context.Context, id int64) (domain.Order, error) {
	order, ok := a.store.committedOrder(id)
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

func (a autoCommitOrders) List(ctx context.Context) ([]domain.Order, error) {
	return (&orderRepository{tx: newTx(a.store)}).List(ctx)
}

func (a autoCommitOrders) Update(ctx context.Context, order domain.Order) (updated domain.Order, err error) {
	err = a.store.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		updated, err = repos.Orders.Update(ctx, order)
		return err
	})
	return updated, err
}

func (a autoCommitOrders) Delete(ctx context.Context, id int64) error {
	return a.store.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		return repos.Orders.Delete(ctx, id)
	})
}

var (
	_ domain.OrderRepository = (*orderRepository)(nil)
	_ domain.OrderRepository = autoCommitOrders{}
)
