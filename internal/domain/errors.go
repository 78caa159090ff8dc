package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrProductNotFound возвращается, если товар не найден в хранилище.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductVersionConflict сигнализирует, что запись товара изменилась с момента чтения.
	ErrProductVersionConflict = errors.New("product version conflict")
	// ErrProductStockNegative — попытка сохранить товар с отрицательным остатком.
	ErrProductStockNegative = errors.New("product stock must be non-negative")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// Коды бизнес-ошибок размещения заказа и каталога.
const (
	CodeProductNotFound   = "product_not_found"
	CodeInsufficientStock = "insufficient_stock"
	CodeConcurrentUpdate  = "concurrent_update"
)

// BusinessError — ожидаемый отказ бизнес-правила, который следует показать клиенту.
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

// NewBusinessError создаёт бизнес-ошибку с причиной.
func NewBusinessError(code, message string, cause error) *BusinessError {
	return &BusinessError{Code: code, Message: message, Err: cause}
}

func (e *BusinessError) Error() string {
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// ValidationError собирает ошибки валидации входных данных по полям.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError создаёт пустой набор ошибок валидации.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add регистрирует сообщение для поля; первое сообщение по полю сохраняется.
func (e *ValidationError) Add(field, message string) {
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = message
}

// OrNil возвращает nil, если ошибок не накопилось.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid data: " + strings.Join(parts, "; ")
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrProductVersionConflict)
}

// IsNotFound проверяет, что запрошенная сущность отсутствует.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrOrderNotFound)
}

// AsBusinessError извлекает бизнес-ошибку из цепочки.
func AsBusinessError(err error) (*BusinessError, bool) {
	var be *BusinessError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// AsValidationError извлекает ошибку валидации из цепочки.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// IsBusinessCode сообщает, что err — бизнес-ошибка с указанным кодом.
func IsBusinessCode(err error, code string) bool {
	be, ok := AsBusinessError(err)
	return ok && be.Code == code
}
