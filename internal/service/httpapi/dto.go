package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/store/internal/domain"
)

type productRequest struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock *int            `json:"stock"`
}

// toInput требует явный остаток: отсутствующее поле не превращается в 0.
func (r productRequest) toInput() (domain.ProductInput, error) {
	in := domain.ProductInput{Name: r.Name, Price: r.Price}
	if r.Stock != nil {
		in.Stock = *r.Stock
		return in, nil
	}

	verr := domain.NewValidationError()
	verr.Add("stock", "stock is required")
	if err := in.Validate(); err != nil {
		if fields, ok := domain.AsValidationError(err); ok {
			for field, msg := range fields.Fields {
				verr.Add(field, msg)
			}
		}
	}
	return in, verr
}

type productResponse struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Price   decimal.Decimal `json:"price"`
	Stock   int             `json:"stock"`
	Version int64           `json:"version"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock, Version: p.Version}
}

type orderItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type placeOrderRequest struct {
	Items []orderItemRequest `json:"items"`
}

func (r placeOrderRequest) toItems() []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, domain.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return items
}

type orderRequest struct {
	OrderDate time.Time       `json:"orderDate"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
}

func (r orderRequest) toInput() domain.OrderInput {
	return domain.OrderInput{Date: r.OrderDate, Total: r.Total, Status: r.Status}
}

type orderResponse struct {
	ID        int64           `json:"id"`
	OrderDate time.Time       `json:"orderDate"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
}

func toOrderResponse(o domain.Order) orderResponse {
	return orderResponse{ID: o.ID, OrderDate: o.Date, Total: o.Total, Status: o.Status}
}

type errorResponse struct {
	Kind   string            `json:"kind"`
	Code   string            `json:"code,omitempty"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
