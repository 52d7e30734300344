package kafka

import (
	"encoding/json"
	"errors"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в заданный topic.
// Ключ сообщения — id агрегата, чтобы события одного заказа шли в одну партицию.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт паблишер; пустой topic означает TopicOrderEvents.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
	}
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errors.New("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	payload := json.RawMessage(event.Payload)
	if !json.Valid(payload) {
		payload, _ = json.Marshal(string(event.Payload))
	}

	env := Envelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		PublishedAt:   p.producer.now(),
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.producer.Send(p.topic, key, body, env.headers())
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)

// DeadLetterPublisher отправляет в DLQ тело сообщения как есть: outbox worker
// уже упаковал его в domain.DeadLetter, а Replayer читает именно этот формат.
type DeadLetterPublisher struct {
	producer *Producer
	topic    string
}

// NewDeadLetterPublisher создаёт паблишер DLQ; пустой topic означает TopicDeadLetterQueue.
func NewDeadLetterPublisher(producer *Producer, topic string) *DeadLetterPublisher {
	if topic == "" {
		topic = TopicDeadLetterQueue
	}
	return &DeadLetterPublisher{producer: producer, topic: topic}
}

func (p *DeadLetterPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errors.New("kafka dlq publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}
	return p.producer.Send(p.topic, key, event.Payload, map[string]string{
		HeaderEventType:     event.EventType,
		HeaderAggregateType: event.AggregateType,
		HeaderOutboxID:      event.ID,
	})
}

var _ domain.OutboxPublisher = (*DeadLetterPublisher)(nil)
