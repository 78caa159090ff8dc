package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatusConfirmed — статус, который получает каждый успешно размещённый заказ.
const OrderStatusConfirmed = "CONFIRMED ORDER."

// TotalScale — точность колонки orders.total. Цена с двумя знаками и скидка
// в процентах дают не больше четырёх знаков.
const TotalScale = 4

// Order — сохранённая запись о заказе. Позиции не хранятся: связь с товарами
// существует только через сумму, рассчитанную при создании.
type Order struct {
	ID     int64
	Date   time.Time
	Total  decimal.Decimal
	Status string
}

// OrderItem — одна строка запроса на размещение заказа.
type OrderItem struct {
	ProductID int64
	Quantity  int
}

// OrderInput — данные для ручного изменения заказа.
type OrderInput struct {
	Date   time.Time
	Total  decimal.Decimal
	Status string
}

// ValidateItems проверяет запрос на размещение до открытия транзакции.
func ValidateItems(items []OrderItem) error {
	verr := NewValidationError()
	if len(items) == 0 {
		verr.Add("items", "items must not be empty")
		return verr
	}
	for i, item := range items {
		if item.ProductID <= 0 {
			verr.Add(fmt.Sprintf("items[%d].productId", i), "productId is required")
		}
		if item.Quantity <= 0 {
			verr.Add(fmt.Sprintf("items[%d].quantity", i), "quantity must be greater than 0")
		}
	}
	return verr.OrNil()
}

// Validate проверяет данные изменения заказа.
func (in OrderInput) Validate() error {
	verr := NewValidationError()
	if in.Date.IsZero() {
		verr.Add("orderDate", "orderDate is required")
	}
	if !in.Total.IsPositive() {
		verr.Add("total", "total must be greater than zero")
	} else if !in.Total.Equal(in.Total.Truncate(TotalScale)) {
		verr.Add("total", "total must have at most 4 decimal places")
	}
	if strings.TrimSpace(in.Status) == "" {
		verr.Add("status", "status is required")
	}
	return verr.OrNil()
}

// DistinctProducts возвращает количество различных товаров в запросе.
func DistinctProducts(items []OrderItem) int {
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		seen[item.ProductID] = struct{}{}
	}
	return len(seen)
}
