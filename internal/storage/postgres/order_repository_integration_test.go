package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/store/internal/domain"
)

func TestOrderRepository_PostgresCreateGetListUpdateDelete(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := store.Orders()
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	first, err := repo.Create(ctx, domain.Order{Date: now, Total: decimal.RequireFromString("1049.3845"), Status: domain.OrderStatusConfirmed})
	if err != nil {
		t.Fatalf("create first order: %v", err)
	}
	second, err := repo.Create(ctx, domain.Order{Date: now, Total: decimal.NewFromInt(250), Status: domain.OrderStatusConfirmed})
	if err != nil {
		t.Fatalf("create second order: %v", err)
	}
	if first.ID == 0 || second.ID <= first.ID {
		t.Fatalf("unexpected ids: first=%d second=%d", first.ID, second.ID)
	}

	got, err := repo.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if !got.Total.Equal(first.Total) || got.Status != domain.OrderStatusConfirmed || !got.Date.Equal(now) {
		t.Fatalf("unexpected order payload: %+v", got)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(all) != 2 || all[0].ID != first.ID {
		t.Fatalf("unexpected list result: %+v", all)
	}

	got.Status = "SHIPPED"
	if _, err := repo.Update(ctx, got); err != nil {
		t.Fatalf("update order: %v", err)
	}
	updated, err := repo.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get updated order: %v", err)
	}
	if updated.Status != "SHIPPED" {
		t.Fatalf("unexpected status after update: %s", updated.Status)
	}

	if _, err := repo.Update(ctx, domain.Order{ID: 9999, Date: now, Total: decimal.NewFromInt(1), Status: "x"}); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on update, got %v", err)
	}
	if err := repo.Delete(ctx, second.ID); err != nil {
		t.Fatalf("delete order: %v", err)
	}
	if _, err := repo.Get(ctx, second.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound after delete, got %v", err)
	}
}
