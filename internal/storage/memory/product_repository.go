package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/store/internal/domain"
)

// productRepository читает сначала изменения своей транзакции, затем зафиксированное состояние.
type productRepository struct {
	tx *tx
}

func (r *productRepository) Create(_ context.Context, product domain.Product) (domain.Product, error) {
	if product.Stock < 0 {
		return domain.Product{}, domain.ErrProductStockNegative
	}
	product.ID = r.tx.store.nextProductID()
	product.Version = 0

	r.tx.mu.Lock()
	defer r.tx.mu.Unlock()
	r.tx.products[product.ID] = &stagedProduct{product: product, created: true}
	return product, nil
}

func (r *productRepository) Get(_ context.Context, id int64) (domain.Product, error) {
	r.tx.mu.Lock()
	defer r.tx.mu.Unlock()
	return r.getLocked(id)
}

func (r *productRepository) getLocked(id int64) (domain.Product, error) {
	if change, ok := r.tx.products[id]; ok {
		if change.deleted {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return change.product, nil
	}
	product, ok := r.tx.store.committedProduct(id)
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

func (r *productRepository) List(_ context.Context) ([]domain.Product, error) {
	r.tx.mu.Lock()
	defer r.tx.mu.Unlock()

	r.tx.store.mu.RLock()
	merged := make(map[int64]domain.Product, len(r.tx.store.products))
	for id, p := range r.tx.store.products {
		merged[id] = p
	}
	r.tx.store.mu.RUnlock()

	for id, change := range r.tx.products {
		if change.deleted {
			delete(merged, id)
			continue
		}
		merged[id] = change.product
	}

	result := make([]domain.Product, 0, len(merged))
	for _, p := range merged {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ConditionalSave сверяет версию с видимой в транзакции записью и откладывает запись до фиксации.
func (r *productRepository) ConditionalSave(_ context.Context, product domain.Product) (domain.Product, error) {
	if product.Stock < 0 {
		return domain.Product{}, domain.ErrProductStockNegative
	}

	r.tx.mu.Lock()
	defer r.tx.mu.Unlock()

	current, err := r.getLocked(product.ID)
	if err != nil {
		return domain.Product{}, err
	}
	if current.Version != product.Version {
		return domain.Product{}, domain.ErrProductVersionConflict
	}

	product.Version++
	if change, ok := r.tx.products[product.ID]; ok {
		change.product = product
		return product, nil
	}
	r.tx.products[product.ID] = &stagedProduct{product: product, baseVersion: current.Version}
	return product, nil
}

func (r *productRepository) Delete(_ context.Context, id int64) error {
	r.tx.mu.Lock()
	defer r.tx.mu.Unlock()

	current, err := r.getLocked(id)
	if err != nil {
		return err
	}
	if change, ok := r.tx.products[id]; ok {
		if change.created {
			delete(r.tx.products, id)
			return nil
		}
		change.deleted = true
		return nil
	}
	r.tx.products[id] = &stagedProduct{product: current, baseVersion: current.Version, deleted: true}
	return nil
}

// autoCommitProducts выполняет каждую операцию в отдельной транзакции.
type autoCommitProducts struct {
	store *Store
}

func (a autoCommitProducts) Create(ctx context.Context, product domain.Product) (created domain.Product, err error) {
	err = a.store.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		created, err = repos.Products.Create(ctx, product)
		return err
	})
	return created, err
}

func (a autoCommitProducts) Get(_ context.Context, id int64) (domain.Product, error) {
	product, ok := a.store.committedProduct(id)
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

func (a autoCommitProducts) List(ctx context.Context) ([]domain.Product, error) {
	return (&productRepository{tx: newTx(a.store)}).List(ctx)
}

func (a autoCommitProducts) ConditionalSave(ctx context.Context, product domain.Product) (saved domain.Product, err error) {
	err = a.store.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		saved, err = repos.Products.ConditionalSave(ctx, product)
		return err
	})
	return saved, err
}

func (a autoCommitProducts) Delete(ctx context.Context, id int64) error {
	return a.store.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		return repos.Products.Delete(ctx, id)
	})
}

var (
	_ domain.ProductRepository = (*productRepository)(nil)
	_ domain.ProductRepository = autoCommitProducts{}
)
