package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/store/internal/domain"
)

type productRepository struct {
	q queryer
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := r.q.QueryRowContext(ctx, `
		INSERT INTO products (name, price, stock, version)
		VALUES ($1, $2, $3, 0)
		RETURNING id, version
	`, product.Name, product.Price, product.Stock).Scan(&product.ID, &product.Version)
	if err != nil {
		if isCheckViolation(err) && product.Stock < 0 {
			return domain.Product{}, domain.ErrProductStockNegative
		}
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return product, nil
}

func (r *productRepository) Get(ctx context.Context, id int64) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var p domain.Product
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, price, stock, version
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

func (r *productRepository) List(ctx context.Context) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, name, price, stock, version
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Version); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

// ConditionalSave обновляет строку только при совпадении версии (optimistic locking).
func (r *productRepository) ConditionalSave(ctx context.Context, product domain.Product) (domain.Product, error) {
	if product.Stock < 0 {
		return domain.Product{}, domain.ErrProductStockNegative
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var saved domain.Product
	err := r.q.QueryRowContext(ctx, `
		UPDATE products
		SET name = $1,
		    price = $2,
		    stock = $3,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $4
		  AND version = $5
		RETURNING id, name, price, stock, version
	`,
		product.Name,
		product.Price,
		product.Stock,
		product.ID,
		product.Version,
	).Scan(&saved.ID, &saved.Name, &saved.Price, &saved.Stock, &saved.Version)
	if err == nil {
		return saved, nil
	}
	if isCheckViolation(err) {
		return domain.Product{}, domain.ErrProductStockNegative
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}

	exists, err := r.exists(ctx, product.ID)
	if err != nil {
		return domain.Product{}, err
	}
	if !exists {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return domain.Product{}, domain.ErrProductVersionConflict
}

func (r *productRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

func (r *productRepository) exists(ctx context.Context, id int64) (bool, error) {
	var found int64
	err := r.q.QueryRowContext(ctx, `SELECT id FROM products WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check product exists: %w", err)
}

var _ domain.ProductRepository = (*productRepository)(nil)
