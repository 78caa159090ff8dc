package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/vladislavdragonenkov/store/internal/metrics"

	_ "github.com/vladislavdragonenkov/store/internal/service/httpapi/docs"
)

// NewRouter собирает маршруты API, документацию Swagger и middleware.
// m может быть nil.
func NewRouter(h *Handler, m *metrics.HTTPMetrics) http.Handler {
	r := mux.NewRouter()
	r.Use(tracingMiddleware, loggingMiddleware(h.logger, m))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/products", h.createProduct).Methods(http.MethodPost)
	api.HandleFunc("/products", h.listProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", h.getProduct).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", h.updateProduct).Methods(http.MethodPut)
	api.HandleFunc("/products/{id}", h.deleteProduct).Methods(http.MethodDelete)

	api.HandleFunc("/orders", h.placeOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders", h.listOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", h.getOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", h.updateOrder).Methods(http.MethodPut)
	api.HandleFunc("/orders/{id}", h.deleteOrder).Methods(http.MethodDelete)

	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	return r
}
