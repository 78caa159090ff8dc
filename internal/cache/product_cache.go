// Package cache хранит копии записей товаров для чтения каталога.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/store/internal/domain"
)

// ErrMiss — записи нет в кеше.
var ErrMiss = errors.New("cache miss")

// DefaultTTL — время жизни записи, если не задано иное.
const DefaultTTL = 5 * time.Minute

// ProductCache — read-through кеш записей товаров. Размещение заказов его не читает.
type ProductCache interface {
	Get(ctx context.Context, id int64) (domain.Product, error)
	Set(ctx context.Context, product domain.Product) error
	Invalidate(ctx context.Context, ids ...int64) error
}

// RedisProductCache хранит товары в Redis в виде JSON.
type RedisProductCache struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewRedisProductCache создаёт кеш поверх клиента go-redis.
func NewRedisProductCache(client redis.Cmdable, ttl time.Duration) *RedisProductCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisProductCache{client: client, ttl: ttl, prefix: "store:product:"}
}

type cachedProduct struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Stock   int             `json:"stock"`
	Version int64           `json:"version"`
}

func (c *RedisProductCache) key(id int64) string {
	return c.prefix + strconv.FormatInt(id, 10)
}

// Get возвращает товар из кеша или ErrMiss.
func (c *RedisProductCache) Get(ctx context.Context, id int64) (domain.Product, error) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Product{}, ErrMiss
		}
		return domain.Product{}, fmt.Errorf("redis get product %d: %w", id, err)
	}

	var cp cachedProduct
	if err := json.Unmarshal(raw, &cp); err != nil {
		return domain.Product{}, fmt.Errorf("decode cached product %d: %w", id, err)
	}
	return domain.Product{ID: cp.ID, Name: cp.Name, Price: cp.Price, Stock: cp.Stock, Version: cp.Version}, nil
}

// Set сохраняет товар с TTL.
func (c *RedisProductCache) Set(ctx context.Context, p domain.Product) error {
	raw, err := json.Marshal(cachedProduct{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock, Version: p.Version})
	if err != nil {
		return fmt.Errorf("encode product %d: %w", p.ID, err)
	}
	if err := c.client.Set(ctx, c.key(p.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set product %d: %w", p.ID, err)
	}
	return nil
}

// Invalidate удаляет записи товаров.
func (c *RedisProductCache) Invalidate(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, c.key(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del products: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis (используется health-проверкой).
func (c *RedisProductCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// NoopProductCache используется, когда Redis не настроен: всегда промах.
type NoopProductCache struct{}

func (NoopProductCache) Get(context.Context, int64) (domain.Product, error) {
	return domain.Product{}, ErrMiss
}

func (NoopProductCache) Set(context.Context, domain.Product) error { return nil }

func (NoopProductCache) Invalidate(context.Context, ...int64) error { return nil }

var (
	_ ProductCache = (*RedisProductCache)(nil)
	_ ProductCache = NoopProductCache{}
)
