package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/store/internal/domain"
	"github.com/vladislavdragonenkov/store/internal/storage/memory"
)

func newProduct(name string, stock int) domain.Product {
	return domain.Product{Name: name, Price: decimal.NewFromInt(100), Stock: stock}
}

func TestProductRepository_CreateGetList(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Products()

	first, err := repo.Create(ctx, newProduct("pen", 10))
	require.NoError(t, err)
	second, err := repo.Create(ctx, newProduct("ink", 3))
	require.NoError(t, err)

	require.Equal(t, int64(1), first.ID)
	require.Equal(t, int64(2), second.ID)
	require.Zero(t, first.Version)

	stored, err := repo.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "pen", stored.Name)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, first.ID, list[0].ID)

	_, err = repo.Get(ctx, 99)
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestProductRepository_ConditionalSave(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Products()

	created, err := repo.Create(ctx, newProduct("pen", 10))
	require.NoError(t, err)

	created.Stock = 7
	saved, err := repo.ConditionalSave(ctx, created)
	require.NoError(t, err)
	require.Equal(t, int64(1), saved.Version)

	// Запись со старой версией отклоняется.
	created.Stock = 1
	_, err = repo.ConditionalSave(ctx, created)
	require.ErrorIs(t, err, domain.ErrProductVersionConflict)

	stored, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 7, stored.Stock)
	require.Equal(t, int64(1), stored.Version)

	_, err = repo.ConditionalSave(ctx, domain.Product{ID: 42, Stock: 1})
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	saved.Stock = -1
	_, err = repo.ConditionalSave(ctx, saved)
	require.ErrorIs(t, err, domain.ErrProductStockNegative)
}

func TestProductRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Products()

	created, err := repo.Create(ctx, newProduct("pen", 1))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, created.ID))
	require.ErrorIs(t, repo.Delete(ctx, created.ID), domain.ErrProductNotFound)
	_, err = repo.Get(ctx, created.ID)
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestWithinTx_RollbackDiscardsEverything(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	product, err := store.Products().Create(ctx, newProduct("pen", 5))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		current, err := repos.Products.Get(ctx, product.ID)
		require.NoError(t, err)
		current.Stock = 0
		_, err = repos.Products.ConditionalSave(ctx, current)
		require.NoError(t, err)

		_, err = repos.Orders.Create(ctx, domain.Order{Date: time.Now().UTC(), Total: decimal.NewFromInt(1), Status: "x"})
		require.NoError(t, err)
		_, err = repos.Outbox.Enqueue(ctx, domain.OutboxMessage{EventType: domain.EventOrderPlaced})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := store.Products().Get(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 5, stored.Stock)
	require.Zero(t, stored.Version)

	orders, err := store.Orders().List(ctx)
	require.NoError(t, err)
	require.Empty(t, orders)
	require.Empty(t, store.Outbox().AllPending())
}

func TestWithinTx_ReadsOwnWrites(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	product, err := store.Products().Create(ctx, newProduct("pen", 5))
	require.NoError(t, err)

	err = store.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		for i := 0; i < 2; i++ {
			current, err := repos.Products.Get(ctx, product.ID)
			if err != nil {
				return err
			}
			current.Stock -= 2
			if _, err := repos.Products.ConditionalSave(ctx, current); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	stored, err := store.Products().Get(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.Stock)
	require.Equal(t, int64(2), stored.Version)
}

func TestWithinTx_CommitDetectsConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	product, err := store.Products().Create(ctx, newProduct("pen", 1))
	require.NoError(t, err)

	err = store.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		current, err := repos.Products.Get(ctx, product.ID)
		require.NoError(t, err)
		current.Stock = 0
		_, err = repos.Products.ConditionalSave(ctx, current)
		require.NoError(t, err)

		// Конкурирующая транзакция успевает зафиксироваться раньше.
		concurrent := product
		concurrent.Stock = 0
		_, err = store.Products().ConditionalSave(ctx, concurrent)
		require.NoError(t, err)

		_, err = repos.Orders.Create(ctx, domain.Order{Status: "x"})
		return err
	})
	require.ErrorIs(t, err, domain.ErrProductVersionConflict)

	orders, err := store.Orders().List(ctx)
	require.NoError(t, err)
	require.Empty(t, orders)

	stored, err := store.Products().Get(ctx, product.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stored.Stock)
	require.Equal(t, int64(1), stored.Version)
}

func TestWithinTx_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := memory.NewStore().WithinTx(ctx, func(context.Context, domain.Repositories) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestOrderRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Orders()

	created, err := repo.Create(ctx, domain.Order{
		Date:   time.Now().UTC(),
		Total:  decimal.NewFromInt(250),
		Status: domain.OrderStatusConfirmed,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), created.ID)

	created.Status = "SHIPPED"
	_, err = repo.Update(ctx, created)
	require.NoError(t, err)

	stored, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "SHIPPED", stored.Status)

	_, err = repo.Update(ctx, domain.Order{ID: 99})
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	require.NoError(t, repo.Delete(ctx, created.ID))
	_, err = repo.Get(ctx, created.ID)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestOutboxRepository_EnqueuePullMark(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Outbox()

	first, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: domain.AggregateOrder, AggregateID: "1"})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	second, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: domain.AggregateOrder, AggregateID: "2"})
	require.NoError(t, err)

	pending, err := repo.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, first.ID, pending[0].ID)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.PendingCount)
	require.False(t, stats.OldestPendingAt.IsZero())

	require.NoError(t, repo.MarkSent(ctx, first.ID))
	require.NoError(t, repo.MarkFailed(ctx, second.ID))
	require.Empty(t, repo.AllPending())

	require.ErrorIs(t, repo.MarkSent(ctx, "missing"), domain.ErrOutboxPublish)
}
