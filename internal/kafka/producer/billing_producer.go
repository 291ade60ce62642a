package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/Dhoini/Billing-sync-service/internal/domain"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
)

const (
	TopicSubscriptionChanged = "billing.subscription.changed"
)

// SubscriptionChange представляет событие изменения подписки для Kafka
type SubscriptionChange struct {
	UserID    string           `json:"user_id"`
	EventID   string           `json:"event_id"`
	EventType domain.EventType `json:"event_type"`
	Status    string           `json:"status,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// BillingProducer интерфейс для отправки событий изменения подписок
type BillingProducer interface {
	PublishSubscriptionChanged(ctx context.Context, change SubscriptionChange) error
	Close() error
}

type kafkaBillingProducer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewKafkaBillingProducer создает новый продюсер событий биллинга
func NewKafkaBillingProducer(producer sarama.SyncProducer, log *logger.Logger) BillingProducer {
	return &kafkaBillingProducer{
		producer: producer,
		log:      log,
	}
}

// PublishSubscriptionChanged публикует событие изменения подписки
func (p *kafkaBillingProducer) PublishSubscriptionChanged(ctx context.Context, change SubscriptionChange) error {
	messageValue, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription change: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: TopicSubscriptionChanged,
		Key:   sarama.StringEncoder(change.UserID),
		Value: sarama.ByteEncoder(messageValue),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event_type"),
				Value: []byte(change.EventType),
			},
		},
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to publish subscription change: %w", err)
	}

	p.log.Info("Published subscription change to topic %s: partition=%d offset=%d",
		TopicSubscriptionChanged, partition, offset)

	return nil
}

// Close закрывает продюсер
func (p *kafkaBillingProducer) Close() error {
	return p.producer.Close()
}
