package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/store/internal/domain"
)

// Store — in-memory хранилище товаров, заказов и outbox для локальной разработки и тестов.
// Транзакции накапливают изменения и применяют их при фиксации под одной блокировкой,
// проверяя версии товаров, поэтому поведение optimistic locking совпадает с PostgreSQL.
type Store struct {
	mu sync.RWMutex

	products   map[int64]domain.Product
	orders     map[int64]domain.Order
	outbox     map[string]*outboxRecord
	outboxSeq  []string
	productSeq int64
	orderSeq   int64
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		products: make(map[int64]domain.Product),
		orders:   make(map[int64]domain.Order),
		outbox:   make(map[string]*outboxRecord),
	}
}

// WithinTx выполняет fn в транзакции. Ошибка fn или конфликт версий при фиксации
// отменяет все изменения.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t := newTx(s)
	if err := fn(ctx, t.repositories()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(t)
}

// Products возвращает репозиторий товаров, где каждая операция фиксируется сразу.
func (s *Store) Products() domain.ProductRepository {
	return autoCommitProducts{store: s}
}

// Orders возвращает репозиторий заказов, где каждая операция фиксируется сразу.
func (s *Store) Orders() domain.OrderRepository {
	return autoCommitOrders{store: s}
}

// Outbox возвращает репозиторий outbox, работающий с зафиксированным состоянием.
func (s *Store) Outbox() *OutboxRepository {
	return &OutboxRepository{store: s}
}

func (s *Store) nextProductID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.productSeq++
	return s.productSeq
}

func (s *Store) nextOrderID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderSeq++
	return s.orderSeq
}

func (s *Store) committedProduct(id int64) (domain.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	return p, ok
}

func (s *Store) committedOrder(id int64) (domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	return o, ok
}

// commit проверяет базовые версии всех изменённых товаров и только затем применяет
// изменения целиком.
func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, change := range t.products {
		if change.created {
			continue
		}
		current, ok := s.products[id]
		if !ok {
			return domain.ErrProductNotFound
		}
		if current.Version != change.baseVersion {
			return domain.ErrProductVersionConflict
		}
	}
	for id, change := range t.orders {
		if change.created {
			continue
		}
		if _, ok := s.orders[id]; !ok {
			return domain.ErrOrderNotFound
		}
	}

	for id, change := range t.products {
		if change.deleted {
			delete(s.products, id)
			continue
		}
		s.products[id] = change.product
	}
	for id, change := range t.orders {
		if change.deleted {
			delete(s.orders, id)
			continue
		}
		s.orders[id] = change.order
	}

	now := time.Now().UTC()
	for _, msg := range t.outbox {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		s.outbox[msg.ID] = &outboxRecord{
			msg:       msg,
			status:    outboxStatusPending,
			createdAt: now,
			updatedAt: now,
		}
		s.outboxSeq = append(s.outboxSeq, msg.ID)
	}

	return nil
}

type stagedProduct struct {
	product     domain.Product
	baseVersion int64
	created     bool
	deleted     bool
}

type stagedOrder struct {
	order   domain.Order
	created bool
	deleted bool
}

// tx — незафиксированные изменения одной транзакции.
type tx struct {
	store    *Store
	mu       sync.Mutex
	products map[int64]*stagedProduct
	orders   map[int64]*stagedOrder
	outbox   []domain.OutboxMessage
}

func newTx(s *Store) *tx {
	return &tx{
		store:    s,
		products: make(map[int64]*stagedProduct),
		orders:   make(map[int64]*stagedOrder),
	}
}

func (t *tx) repositories() domain.Repositories {
	return domain.Repositories{
		Products: &productRepository{tx: t},
		Orders:   &orderRepository{tx: t},
		Outbox:   &txOutboxWriter{tx: t},
	}
}

type txOutboxWriter struct {
	tx *tx
}

func (w *txOutboxWriter) Enqueue(_ context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	w.tx.mu.Lock()
	defer w.tx.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	w.tx.outbox = append(w.tx.outbox, msg)
	return msg, nil
}

var _ domain.TxManager = (*Store)(nil)
