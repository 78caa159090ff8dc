package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Product — позиция каталога с остатком на складе.
type Product struct {
	ID    int64
	Name  string
	Price decimal.Decimal
	Stock int
	// Version — токен optimistic locking, растёт на каждую успешную запись.
	Version int64
}

// ProductInput — данные для создания и изменения товара.
type ProductInput struct {
	Name  string
	Price decimal.Decimal
	Stock int
}

var minProductPrice = decimal.RequireFromString("0.01")

// PriceScale — число знаков после запятой, которое хранит колонка products.price.
const PriceScale = 2

// Validate проверяет ограничения каталога на входные данные.
func (in ProductInput) Validate() error {
	verr := NewValidationError()
	if strings.TrimSpace(in.Name) == "" {
		verr.Add("name", "name is required")
	}
	if in.Price.LessThan(minProductPrice) {
		verr.Add("price", "price must be greater than 0")
	} else if !in.Price.Equal(in.Price.Truncate(PriceScale)) {
		verr.Add("price", "price must have at most 2 decimal places")
	}
	if in.Stock < 0 {
		verr.Add("stock", "stock must be >= 0")
	}
	return verr.OrNil()
}
