package app

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/store/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/store/internal/service/outbox"
)

func TestInitKafkaProducer_NoBrokers(t *testing.T) {
	producer, err := initKafkaProducer(nil, log.WithField("test", t.Name()))
	require.NoError(t, err)
	require.Nil(t, producer)

	closeKafka(nil, log.WithField("test", t.Name()))
}

func TestOutboxPublishers_WithoutKafkaFallsBackToLog(t *testing.T) {
	publisher, dlq := outboxPublishers(nil, "", log.WithField("test", t.Name()))

	require.IsType(t, &outbox.LogPublisher{}, publisher)
	require.Nil(t, dlq)
}

func TestConsumerTopics(t *testing.T) {
	require.Equal(t, []string{kafka.TopicCatalogEvents}, consumerTopics(""))
	require.Equal(t, []string{"custom"}, consumerTopics("custom"))
}
