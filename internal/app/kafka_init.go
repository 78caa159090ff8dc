package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/store/internal/domain"
	"github.com/vladislavdragonenkov/store/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/store/internal/service/outbox"
)

// consumerMaxRetries — попыток обработки сообщения до отправки в DLQ.
const consumerMaxRetries = 3

// initKafkaProducer создаёт producer, если брокеры заданы.
// Возвращает nil, nil при пустом списке брокеров.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// outboxPublishers выбирает доставку outbox: Kafka при наличии producer, иначе лог.
func outboxPublishers(producer *kafka.Producer, topic string, logger *log.Entry) (publisher, dlq domain.OutboxPublisher) {
	if producer == nil {
		return outbox.NewLogPublisher(logger.WithField("component", "outbox-log")), nil
	}
	return kafka.NewOutboxPublisher(producer, topic), kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)
}

// consumerTopics возвращает топики, из которых приходят события об остатках.
func consumerTopics(topic string) []string {
	if topic != "" {
		return []string{topic}
	}
	return []string{kafka.TopicCatalogEvents}
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
