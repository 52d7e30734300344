package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Topics.
const (
	TopicOrderEvents     = "storefront.order.events"
	TopicDeadLetterQueue = "storefront.dlq"
)

// Заголовки сообщений.
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
	HeaderOutboxID      = "x-outbox-id"
	HeaderReplayedFrom  = "x-replayed-from"
)

// Envelope — формат сообщения в TopicOrderEvents.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

func (e Envelope) headers() map[string]string {
	return map[string]string{
		HeaderEventType:     e.EventType,
		HeaderAggregateType: e.AggregateType,
		HeaderOutboxID:      e.ID,
	}
}

// DecodeEnvelope читает Envelope из сообщения Kafka.
func DecodeEnvelope(msg *sarama.ConsumerMessage) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope at %s/%d/%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
	}
	return env, nil
}

// OrderEvent разбирает полезную нагрузку как событие заказа.
func (e Envelope) OrderEvent() (domain.OrderEvent, error) {
	if e.AggregateType != domain.AggregateTypeOrder {
		return domain.OrderEvent{}, fmt.Errorf("envelope %s is not an order event: %s", e.ID, e.AggregateType)
	}
	var event domain.OrderEvent
	if err := json.Unmarshal(e.Payload, &event); err != nil {
		return domain.OrderEvent{}, fmt.Errorf("decode order event %s: %w", e.ID, err)
	}
	return event, nil
}
