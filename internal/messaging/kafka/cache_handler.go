package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/store/internal/domain"
)

// ProductInvalidator удаляет товары из кеша.
type ProductInvalidator interface {
	Invalidate(ctx context.Context, ids ...int64) error
}

// NewCacheInvalidationHandler возвращает обработчик, который на ProductStockChanged
// сбрасывает запись товара в кеше. Остальные события пропускаются.
func NewCacheInvalidationHandler(cache ProductInvalidator, logger *log.Entry) MessageHandler {
	if logger == nil {
		logger = log.WithField("component", "kafka-cache-invalidator")
	}
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		env, err := ParseEnvelope(message)
		if err != nil {
			return err
		}
		if env.EventType != domain.EventProductStockChanged {
			return nil
		}

		var event domain.ProductStockChanged
		if err := json.Unmarshal(env.Payload, &event); err != nil {
			return fmt.Errorf("failed to unmarshal %s payload: %w", env.EventType, err)
		}
		if err := cache.Invalidate(ctx, event.ProductID); err != nil {
			return fmt.Errorf("invalidate product %d: %w", event.ProductID, err)
		}

		logger.WithFields(log.Fields{
			"product_id": event.ProductID,
			"version":    event.Version,
		}).Debug("product cache invalidated")
		return nil
	}
}
