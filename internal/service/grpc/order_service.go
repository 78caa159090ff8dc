package grpcsvc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/store/internal/domain"
)

// OrderPlacer размещает заказ.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, items []domain.OrderItem) (domain.Order, error)
}

// OrderReader читает сохранённые заказы.
type OrderReader interface {
	Get(ctx context.Context, id int64) (domain.Order, error)
}

// OrderService реализует store.v1.OrderService.
type OrderService struct {
	placer OrderPlacer
	orders OrderReader
	logger *log.Entry
}

// NewOrderService конструирует сервис с зависимостями.
func NewOrderService(placer OrderPlacer, orders OrderReader, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.WithField("component", "order-service")
	}
	return &OrderService{placer: placer, orders: orders, logger: logger}
}

// PlaceOrder принимает {"items":[{"productId":1,"quantity":2}]}.
func (s *OrderService) PlaceOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	items, err := parseItems(req)
	if err != nil {
		return nil, err
	}

	order, err := s.placer.PlaceOrder(ctx, items)
	if err != nil {
		return nil, s.toStatus(err, MethodPlaceOrder)
	}
	return toProtoOrder(order)
}

// GetOrder принимает {"id": 1}.
func (s *OrderService) GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := positiveInt(req.GetFields()["id"], "id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, s.toStatus(err, MethodGetOrder)
	}
	return toProtoOrder(order)
}

// toStatus переводит доменную ошибку в gRPC-статус. Детали инфраструктурных
// ошибок в ответ не попадают.
func (s *OrderService) toStatus(err error, method string) error {
	if be, ok := domain.AsBusinessError(err); ok {
		code := codes.FailedPrecondition
		if be.Code == domain.CodeConcurrentUpdate {
			code = codes.Aborted
		}
		return status.Error(code, be.Code+": "+be.Message)
	}
	if verr, ok := domain.AsValidationError(err); ok {
		return status.Error(codes.InvalidArgument, verr.Error())
	}
	if domain.IsNotFound(err) {
		return status.Error(codes.NotFound, err.Error())
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.logger.WithError(err).WithField("method", method).Error("request failed")
	return status.Error(codes.Internal, "internal error")
}

func parseItems(req *structpb.Struct) ([]domain.OrderItem, error) {
	raw := req.GetFields()["items"].GetListValue()
	if raw == nil {
		return nil, nil
	}
	items := make([]domain.OrderItem, 0, len(raw.GetValues()))
	for i, v := range raw.GetValues() {
		fields := v.GetStructValue().GetFields()
		if fields == nil {
			return nil, status.Errorf(codes.InvalidArgument, "items[%d] must be an object", i)
		}
		productID, err := integer(fields["productId"], fmt.Sprintf("items[%d].productId", i))
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		qty, err := integer(fields["quantity"], fmt.Sprintf("items[%d].quantity", i))
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		if qty > math.MaxInt32 || qty < math.MinInt32 {
			return nil, status.Errorf(codes.InvalidArgument, "items[%d].quantity is out of range", i)
		}
		items = append(items, domain.OrderItem{ProductID: productID, Quantity: int(qty)})
	}
	return items, nil
}

// integer читает целое из поля Struct. Отсутствующее поле даёт 0,
// дальше его отклонит доменная валидация.
func integer(v *structpb.Value, field string) (int64, error) {
	if v == nil {
		return 0, nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		if kind.NumberValue != math.Trunc(kind.NumberValue) || math.Abs(kind.NumberValue) > 1<<53 {
			return 0, fmt.Errorf("%s must be an integer", field)
		}
		return int64(kind.NumberValue), nil
	case *structpb.Value_StringValue:
		// int64 в JSON-представлении protobuf передаётся строкой.
		n, err := strconv.ParseInt(kind.StringValue, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", field)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be a number", field)
	}
}

func positiveInt(v *structpb.Value, field string) (int64, error) {
	n, err := integer(v, field)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", field)
	}
	return n, nil
}

func toProtoOrder(o domain.Order) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(map[string]any{
		"id":        strconv.FormatInt(o.ID, 10),
		"orderDate": o.Date.UTC().Format(time.RFC3339Nano),
		"total":     o.Total.String(),
		"status":    o.Status,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode order")
	}
	return out, nil
}
