package domain

import "context"

// ProductRepository — журнал остатков: записи товаров с optimistic locking.
type ProductRepository interface {
	// Create сохраняет новый товар и назначает ему ID; версия начинается с 0.
	Create(ctx context.Context, product Product) (Product, error)
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, id int64) (Product, error)
	// List возвращает все товары в порядке ID.
	List(ctx context.Context) ([]Product, error)
	// ConditionalSave сохраняет товар, только если сохранённая версия равна product.Version.
	// Возвращает запись с увеличенной версией, ErrProductVersionConflict или ErrProductNotFound.
	ConditionalSave(ctx context.Context, product Product) (Product, error)
	// Delete удаляет товар или возвращает ErrProductNotFound.
	Delete(ctx context.Context, id int64) error
}

// OrderRepository — журнал заказов.
type OrderRepository interface {
	// Create сохраняет заказ и назначает ему ID.
	Create(ctx context.Context, order Order) (Order, error)
	// Get возвращает заказ или ErrOrderNotFound.
	Get(ctx context.Context, id int64) (Order, error)
	// List возвращает все заказы в порядке ID.
	List(ctx context.Context) ([]Order, error)
	// Update перезаписывает заказ или возвращает ErrOrderNotFound.
	Update(ctx context.Context, order Order) (Order, error)
	// Delete удаляет заказ или возвращает ErrOrderNotFound.
	Delete(ctx context.Context, id int64) error
}

// Repositories — набор репозиториев, привязанных к одной единице работы.
type Repositories struct {
	Products ProductRepository
	Orders   OrderRepository
	Outbox   OutboxWriter
}

// TxManager выполняет fn в транзакции: все записи fn фиксируются вместе
// или не фиксируются вовсе. Ошибка fn приводит к откату.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
