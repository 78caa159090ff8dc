package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ProductStockChanged — состояние товара после зафиксированной записи.
type ProductStockChanged struct {
	ProductID int64 `json:"product_id"`
	Stock     int   `json:"stock"`
	Version   int64 `json:"version"`
}

// OrderPlaced — сведения о размещённом заказе. Состав заказа не передаётся.
type OrderPlaced struct {
	OrderID   int64           `json:"order_id"`
	OrderDate time.Time       `json:"order_date"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
}

// NewProductStockChangedMessage готовит outbox-сообщение об изменении товара.
func NewProductStockChangedMessage(p Product) (OutboxMessage, error) {
	payload, err := json.Marshal(ProductStockChanged{ProductID: p.ID, Stock: p.Stock, Version: p.Version})
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s payload: %w", EventProductStockChanged, err)
	}
	return OutboxMessage{
		AggregateType: AggregateProduct,
		AggregateID:   strconv.FormatInt(p.ID, 10),
		EventType:     EventProductStockChanged,
		Payload:       payload,
	}, nil
}

// NewOrderPlacedMessage готовит outbox-сообщение о новом заказе.
func NewOrderPlacedMessage(o Order) (OutboxMessage, error) {
	payload, err := json.Marshal(OrderPlaced{OrderID: o.ID, OrderDate: o.Date, Total: o.Total, Status: o.Status})
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s payload: %w", EventOrderPlaced, err)
	}
	return OutboxMessage{
		AggregateType: AggregateOrder,
		AggregateID:   strconv.FormatInt(o.ID, 10),
		EventType:     EventOrderPlaced,
		Payload:       payload,
	}, nil
}
